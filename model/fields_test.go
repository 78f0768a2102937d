package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		parsed, err := ParseType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	_, err := ParseType("spaceship")
	require.Error(t, err)
	assert.False(t, Type("spaceship").Valid())
}

func TestPrivacyLevel_Valid(t *testing.T) {
	for _, p := range []PrivacyLevel{PrivacyPublic, PrivacyUnlisted, PrivacyFollowers, PrivacyDirect} {
		assert.True(t, p.Valid())
	}
	assert.False(t, PrivacyLevel("secret").Valid())
	assert.False(t, PrivacyLevel("").Valid())
}

func TestDefaultBindings_Complete(t *testing.T) {
	// Every entity type in the enumeration carries a binding, and every
	// binding claims a distinct wire variant.
	serializers := map[string]Type{}
	for _, typ := range Types() {
		b, err := BindingFor(typ)
		require.NoError(t, err, "missing binding for %s", typ)
		assert.Equal(t, typ, b.Type)
		require.NotNil(t, b.New)
		assert.Equal(t, typ, b.New().EntityType())

		if prev, seen := serializers[b.Serializer]; seen {
			t.Errorf("serializer %q bound to both %s and %s", b.Serializer, prev, typ)
		}
		serializers[b.Serializer] = typ

		viaSerializer, err := BindingForSerializer(b.Serializer)
		require.NoError(t, err)
		assert.Same(t, b, viaSerializer)
	}
}

func TestDefaultBindings_DescriptorOrdering(t *testing.T) {
	// Multi-valued associations must come after every scalar descriptor
	// so identity fields are populated before associations are staged.
	for _, typ := range Types() {
		b, err := BindingFor(typ)
		require.NoError(t, err)

		sawMany := false
		for _, d := range b.Fields {
			if d.Kind == KindMany {
				sawMany = true
			}
			if sawMany && d.Kind == KindScalar {
				t.Errorf("%s: scalar descriptor %q declared after a multi-valued one", typ, d.Name)
			}
		}
	}
}

func TestBindingRegistry_Validation(t *testing.T) {
	r := NewBindingRegistry()

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&Binding{Type: "not-a-type", Serializer: "X", New: func() Entity { return &User{} }}))
	assert.Error(t, r.Register(&Binding{Type: TypeUser, Serializer: "", New: func() Entity { return &User{} }}))
	assert.Error(t, r.Register(&Binding{Type: TypeUser, Serializer: "Person"}))

	incomplete := &Binding{
		Type: TypeUser, Serializer: "Person",
		New:    func() Entity { return &User{} },
		Fields: []FieldDescriptor{{Name: "remote_id"}},
	}
	err := r.Register(incomplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete descriptor")
}

func TestBindingRegistry_SerializerConflict(t *testing.T) {
	r := NewBindingRegistry()

	require.NoError(t, r.Register(&Binding{
		Type: TypeUser, Serializer: "Person",
		New: func() Entity { return &User{} },
	}))

	err := r.Register(&Binding{
		Type: TypeStatus, Serializer: "Person",
		New: func() Entity { return &Status{} },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already bound")
}

func TestBase_Identity(t *testing.T) {
	u := &User{}
	assert.Zero(t, u.Key())

	u.SetKey(42)
	u.SetRemoteID("https://example.com/users/rat")
	assert.Equal(t, int64(42), u.Key())
	assert.Equal(t, "https://example.com/users/rat", u.GetRemoteID())
}

func TestStatus_DeletedTime(t *testing.T) {
	s := &Status{}
	_, ok := s.DeletedTime()
	assert.False(t, ok)

	s.Deleted = true
	ts, ok := s.DeletedTime()
	assert.True(t, ok)
	assert.NotEmpty(t, ts)
}

func TestPureStatusContent(t *testing.T) {
	s := &Status{Content: "hello"}
	assert.Equal(t, "hello", pureStatusContent(s))

	s.MentionUsers = []*User{
		{Base: Base{RemoteID: "https://example.com/users/rat"}, Username: "rat"},
	}
	got := pureStatusContent(s)
	assert.Contains(t, got, "hello")
	assert.Contains(t, got, `<a href="https://example.com/users/rat">@rat</a>`)
}
