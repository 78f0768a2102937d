package activity

import (
	"encoding/json"
	"fmt"

	"github.com/c360/fedwire/errors"
)

// init registers the protocol variants with the default registry. The
// registry is populated once here and is read-only afterwards.
func init() {
	MustRegister(&Registration{
		Type:        "Person",
		Description: "Federated actor profile",
		Factory:     func() Object { return &Person{} },
		Required:    []string{"id", "preferredUsername", "inbox", "outbox", "followers"},
		Defaults: map[string]any{
			"type":         "Person",
			"name":         "",
			"summary":      "",
			"published":    "",
			"discoverable": true,
			"icon":         map[string]any{},
		},
	})
	MustRegister(&Registration{
		Type:        "Note",
		Description: "A post",
		Factory:     func() Object { return &Note{} },
		Required:    []string{"id", "attributedTo", "content"},
		Defaults: map[string]any{
			"type":       "Note",
			"published":  "",
			"inReplyTo":  "",
			"sensitive":  false,
			"to":         []any{},
			"cc":         []any{},
			"tag":        []any{},
			"attachment": []any{},
		},
	})
	MustRegister(&Registration{
		Type:        "Like",
		Description: "An actor favoriting an object",
		Factory:     func() Object { return &Like{} },
		Required:    []string{"id", "actor", "object"},
		Defaults: map[string]any{
			"type":      "Like",
			"published": "",
		},
	})
	MustRegister(&Registration{
		Type:        "Follow",
		Description: "An actor following another actor",
		Factory:     func() Object { return &Follow{} },
		Required:    []string{"id", "actor", "object"},
		Defaults: map[string]any{
			"type": "Follow",
		},
	})
	MustRegister(&Registration{
		Type:        "Accept",
		Description: "Acceptance of a follow request",
		Factory:     func() Object { return &Accept{} },
		Required:    []string{"id", "actor", "object"},
		Defaults: map[string]any{
			"type": "Accept",
		},
	})
	MustRegister(&Registration{
		Type:        "Document",
		Description: "An attached resource",
		Factory:     func() Object { return &Document{} },
		Required:    []string{"url"},
		Defaults: map[string]any{
			"type": "Document",
			"id":   "",
			"name": "",
		},
	})
	MustRegister(&Registration{
		Type:        "Tombstone",
		Description: "Minimal representation of a deleted object",
		Factory:     func() Object { return &Tombstone{} },
		Required:    []string{"id", "url", "deleted"},
		Defaults: map[string]any{
			"type":      "Tombstone",
			"published": "",
		},
	})
	MustRegister(&Registration{
		Type:        "OrderedCollection",
		Description: "An ordered collection of object identifiers",
		Factory:     func() Object { return &OrderedCollection{} },
		Required:    []string{"id"},
		Defaults: map[string]any{
			"type":         "OrderedCollection",
			"totalItems":   0,
			"orderedItems": []any{},
		},
	})
}

// Person is a federated actor profile.
type Person struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	PreferredUsername string `json:"preferredUsername"`
	Name              string `json:"name"`
	Summary           string `json:"summary"`
	Inbox             string `json:"inbox"`
	Outbox            string `json:"outbox"`
	Followers         string `json:"followers"`
	Icon              Image  `json:"icon"`
	Published         string `json:"published"`
	Discoverable      bool   `json:"discoverable"`
}

// ActivityType returns the variant discriminant.
func (p *Person) ActivityType() string { return "Person" }

// ObjectID returns the external identifier.
func (p *Person) ObjectID() string { return p.ID }

// Validate checks identifier shape after construction.
func (p *Person) Validate() error {
	if err := ValidateRemoteID(p.ID); err != nil {
		return err
	}
	if p.PreferredUsername == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: empty preferredUsername", errors.ErrInvalidData),
			"Person", "Validate", "username validation")
	}
	return nil
}

// MarshalJSON serializes the actor to JSON.
func (p *Person) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias Person
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON deserializes JSON data into the actor.
func (p *Person) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias Person
	return json.Unmarshal(data, (*Alias)(p))
}

// Note is a post. Mentions ride in Tag, attached media in Attachment,
// and computed addressing in To/Cc.
type Note struct {
	ID           string             `json:"id"`
	Type         string             `json:"type"`
	AttributedTo string             `json:"attributedTo"`
	Content      string             `json:"content"`
	Published    string             `json:"published"`
	InReplyTo    string             `json:"inReplyTo"`
	Sensitive    bool               `json:"sensitive"`
	To           []string           `json:"to"`
	Cc           []string           `json:"cc"`
	Tag          []Link             `json:"tag"`
	Attachment   []Image            `json:"attachment"`
	Replies      *OrderedCollection `json:"replies,omitempty"`
	Signature    *Signature         `json:"signature,omitempty"`
}

// ActivityType returns the variant discriminant.
func (n *Note) ActivityType() string { return n.Type }

// ObjectID returns the external identifier.
func (n *Note) ObjectID() string { return n.ID }

// Validate checks identifier shapes after construction.
func (n *Note) Validate() error {
	if err := ValidateRemoteID(n.ID); err != nil {
		return err
	}
	return ValidateRemoteID(n.AttributedTo)
}

// MarshalJSON serializes the note to JSON.
func (n *Note) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias Note
	return json.Marshal((*Alias)(n))
}

// UnmarshalJSON deserializes JSON data into the note.
func (n *Note) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias Note
	if err := json.Unmarshal(data, (*Alias)(n)); err != nil {
		return err
	}
	if n.Type == "" {
		n.Type = "Note"
	}
	return nil
}

// Like is an actor favoriting an object.
type Like struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Actor     string `json:"actor"`
	Object    string `json:"object"`
	Published string `json:"published"`
}

// ActivityType returns the variant discriminant.
func (l *Like) ActivityType() string { return "Like" }

// ObjectID returns the external identifier.
func (l *Like) ObjectID() string { return l.ID }

// Validate checks identifier shapes after construction.
func (l *Like) Validate() error {
	if err := ValidateRemoteID(l.ID); err != nil {
		return err
	}
	if err := ValidateRemoteID(l.Actor); err != nil {
		return err
	}
	return ValidateRemoteID(l.Object)
}

// MarshalJSON serializes the like to JSON.
func (l *Like) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias Like
	return json.Marshal((*Alias)(l))
}

// UnmarshalJSON deserializes JSON data into the like.
func (l *Like) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias Like
	return json.Unmarshal(data, (*Alias)(l))
}

// Follow is an actor following another actor.
type Follow struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Actor  string `json:"actor"`
	Object string `json:"object"`
}

// ActivityType returns the variant discriminant.
func (f *Follow) ActivityType() string { return "Follow" }

// ObjectID returns the external identifier.
func (f *Follow) ObjectID() string { return f.ID }

// Validate checks identifier shapes after construction.
func (f *Follow) Validate() error {
	if err := ValidateRemoteID(f.ID); err != nil {
		return err
	}
	if err := ValidateRemoteID(f.Actor); err != nil {
		return err
	}
	return ValidateRemoteID(f.Object)
}

// MarshalJSON serializes the follow to JSON.
func (f *Follow) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias Follow
	return json.Marshal((*Alias)(f))
}

// UnmarshalJSON deserializes JSON data into the follow.
func (f *Follow) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias Follow
	return json.Unmarshal(data, (*Alias)(f))
}

// Accept is a server's acceptance of a follow request. The original
// follow activity is nested in Object.
type Accept struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Actor  string `json:"actor"`
	Object Follow `json:"object"`
}

// ActivityType returns the variant discriminant.
func (a *Accept) ActivityType() string { return "Accept" }

// ObjectID returns the external identifier.
func (a *Accept) ObjectID() string { return a.ID }

// Validate checks identifier shapes after construction.
func (a *Accept) Validate() error {
	if err := ValidateRemoteID(a.ID); err != nil {
		return err
	}
	return ValidateRemoteID(a.Actor)
}

// MarshalJSON serializes the accept to JSON.
func (a *Accept) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias Accept
	return json.Marshal((*Alias)(a))
}

// UnmarshalJSON deserializes JSON data into the accept.
func (a *Accept) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias Accept
	return json.Unmarshal(data, (*Alias)(a))
}

// Document is an attached resource, such as an image attached to a post.
// Attachments from some servers carry no identifier of their own.
type Document struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// ActivityType returns the variant discriminant.
func (d *Document) ActivityType() string { return "Document" }

// ObjectID returns the external identifier, which may be empty.
func (d *Document) ObjectID() string { return d.ID }

// Validate checks resource location shape after construction.
func (d *Document) Validate() error {
	return ValidateRemoteID(d.URL)
}

// MarshalJSON serializes the document to JSON.
func (d *Document) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias Document
	return json.Marshal((*Alias)(d))
}

// UnmarshalJSON deserializes JSON data into the document.
func (d *Document) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias Document
	return json.Unmarshal(data, (*Alias)(d))
}

// Tombstone is the minimal representation substituted for a deleted
// entity. It carries identity and deletion timing and nothing else.
type Tombstone struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	Deleted   string `json:"deleted"`
	Published string `json:"published"`
}

// ActivityType returns the variant discriminant.
func (t *Tombstone) ActivityType() string { return "Tombstone" }

// ObjectID returns the external identifier.
func (t *Tombstone) ObjectID() string { return t.ID }

// Validate checks identifier shape after construction.
func (t *Tombstone) Validate() error {
	return ValidateRemoteID(t.ID)
}

// MarshalJSON serializes the tombstone to JSON.
func (t *Tombstone) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias Tombstone
	return json.Marshal((*Alias)(t))
}

// UnmarshalJSON deserializes JSON data into the tombstone.
func (t *Tombstone) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias Tombstone
	return json.Unmarshal(data, (*Alias)(t))
}

// OrderedCollection lists related object identifiers, such as the
// replies to a post.
type OrderedCollection struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	TotalItems   int      `json:"totalItems"`
	OrderedItems []string `json:"orderedItems"`
}

// ActivityType returns the variant discriminant.
func (c *OrderedCollection) ActivityType() string { return "OrderedCollection" }

// ObjectID returns the external identifier.
func (c *OrderedCollection) ObjectID() string { return c.ID }

// Validate checks identifier shape after construction.
func (c *OrderedCollection) Validate() error {
	return ValidateRemoteID(c.ID)
}

// MarshalJSON serializes the collection to JSON.
func (c *OrderedCollection) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias OrderedCollection
	return json.Marshal((*Alias)(c))
}

// UnmarshalJSON deserializes JSON data into the collection.
func (c *OrderedCollection) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias OrderedCollection
	return json.Unmarshal(data, (*Alias)(c))
}
