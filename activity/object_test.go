package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fedwire/errors"
)

func TestConstruct_Person(t *testing.T) {
	raw := map[string]any{
		"id":                "https://example.com/users/rat",
		"type":              "Person",
		"preferredUsername": "rat",
		"name":              "Rat",
		"inbox":             "https://example.com/users/rat/inbox",
		"outbox":            "https://example.com/users/rat/outbox",
		"followers":         "https://example.com/users/rat/followers",
		"unexpectedField":   "dropped on the floor",
	}

	obj, err := Construct(raw)
	require.NoError(t, err)

	person, ok := obj.(*Person)
	require.True(t, ok, "expected *Person, got %T", obj)
	assert.Equal(t, "https://example.com/users/rat", person.ID)
	assert.Equal(t, "rat", person.PreferredUsername)
	assert.Equal(t, "Person", obj.ActivityType())
	assert.Equal(t, person.ID, obj.ObjectID())
}

func TestConstruct_MissingRequiredField(t *testing.T) {
	raw := map[string]any{
		"id":   "https://example.com/users/rat",
		"type": "Person",
		// preferredUsername, inbox, outbox, followers missing
	}

	_, err := Construct(raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingField))
	assert.Contains(t, err.Error(), "preferredUsername")
}

func TestConstruct_UnknownVariant(t *testing.T) {
	_, err := Construct(map[string]any{"type": "Banana", "id": "https://example.com/1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownVariant))

	_, err = Construct(map[string]any{"id": "https://example.com/1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingField), "missing type is a missing field")
}

func TestConstruct_DefaultsApplied(t *testing.T) {
	// Document declares defaults for id and name so a bare url payload
	// still constructs.
	obj, err := Construct(map[string]any{
		"type": "Document",
		"url":  "https://example.com/images/cover.jpg",
	})
	require.NoError(t, err)

	doc, ok := obj.(*Document)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/images/cover.jpg", doc.URL)
	assert.Empty(t, doc.ID)
}

func TestConstruct_InvalidRemoteID(t *testing.T) {
	raw := map[string]any{
		"id":                "not a url",
		"type":              "Person",
		"preferredUsername": "rat",
		"inbox":             "https://example.com/users/rat/inbox",
		"outbox":            "https://example.com/users/rat/outbox",
		"followers":         "https://example.com/users/rat/followers",
	}

	_, err := Construct(raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRemoteID))
}

func TestConstruct_NoteTypeDefaulted(t *testing.T) {
	obj, err := Construct(map[string]any{
		"type":         "Note",
		"id":           "https://example.com/status/1",
		"attributedTo": "https://example.com/users/rat",
		"content":      "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "Note", obj.ActivityType())
}

func TestSerialize_InjectsContext(t *testing.T) {
	like := &Like{
		ID:     "https://example.com/like/1",
		Type:   "Like",
		Actor:  "https://example.com/users/rat",
		Object: "https://example.com/status/1",
	}

	raw, err := Serialize(like)
	require.NoError(t, err)
	assert.Equal(t, Context, raw["@context"])
	assert.Equal(t, "https://example.com/like/1", raw["id"])
	assert.Equal(t, "https://example.com/users/rat", raw["actor"])
}

func TestSerialize_RoundTrip(t *testing.T) {
	original := map[string]any{
		"type":         "Note",
		"id":           "https://example.com/status/1",
		"attributedTo": "https://example.com/users/rat",
		"content":      "round and round",
		"sensitive":    true,
	}

	obj, err := Construct(original)
	require.NoError(t, err)

	raw, err := Serialize(obj)
	require.NoError(t, err)

	again, err := Construct(raw)
	require.NoError(t, err)
	note, ok := again.(*Note)
	require.True(t, ok)
	assert.Equal(t, "round and round", note.Content)
	assert.True(t, note.Sensitive)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	reg := &Registration{
		Factory: func() Object { return &Like{} },
		Type:    "Like",
	}
	require.NoError(t, r.Register(reg))

	err := r.Register(reg)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistry_RegistrationValidation(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&Registration{Type: "NoFactory"}))
	assert.Error(t, r.Register(&Registration{Factory: func() Object { return &Like{} }}))
}

func TestListVariants_DefaultRegistry(t *testing.T) {
	variants := defaultRegistry.ListVariants()
	for _, expected := range []string{"Person", "Note", "Like", "Follow", "Accept", "Document", "Tombstone", "OrderedCollection"} {
		assert.Contains(t, variants, expected)
	}
}

func TestValidateRemoteID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"https", "https://example.com/users/rat", false},
		{"http", "http://example.com/users/rat", false},
		{"empty", "", true},
		{"no scheme", "example.com/users/rat", true},
		{"embedded space", "https://example.com/users/r at", true},
		{"ftp", "ftp://example.com/file", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ValidateRemoteID(test.id)
			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"rfc3339", "2024-03-01T10:00:00Z", true},
		{"rfc3339 offset", "2024-03-01T10:00:00+02:00", true},
		{"http date", "Fri, 01 Mar 2024 10:00:00 GMT", true},
		{"garbage", "yesterday-ish", false},
		{"empty", "", false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ts, err := ParseTime(test.value)
			if !test.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2024, ts.Year())
		})
	}
}

func TestLink_IsMention(t *testing.T) {
	assert.True(t, NewMention("https://example.com/users/rat", "@rat").IsMention())
	assert.False(t, NewLink("https://example.com/tag/books", "#books").IsMention())
}
