package model

import (
	"context"
	"fmt"

	"github.com/c360/fedwire/activity"
	"github.com/c360/fedwire/errors"
)

// Attachment is an image attached to a status. Attachments arrive as a
// reverse collection on the status, so the status relation is set by
// the deferred resolver once the status is durable; StatusKey stays
// zero until then.
type Attachment struct {
	Base
	StatusKey int64
	Status    *Status
	Image     activity.Image
}

// EntityType returns the closed-enumeration type identifier.
func (a *Attachment) EntityType() Type { return TypeAttachment }

func init() {
	MustRegisterBinding(&Binding{
		Type:        TypeAttachment,
		Serializer:  "Document",
		Description: "An image attached to a status",
		New:         func() Entity { return &Attachment{} },
		Fields: []FieldDescriptor{
			{
				// Attachments from some servers carry no identifier.
				Name: "remote_id", WireField: "id", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					id := obj.(*activity.Document).ID
					if id == "" {
						return nil, false, nil
					}
					return id, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*Attachment).RemoteID, e.(*Attachment).RemoteID != "" },
				Assign: func(e Entity, v any) error { e.(*Attachment).RemoteID = v.(string); return nil },
			},
			{
				Name: "image_url", WireField: "url", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Document).URL, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*Attachment).Image.URL, true },
				Assign: func(e Entity, v any) error {
					a := e.(*Attachment)
					a.Image.URL = v.(string)
					if a.Image.Type == "" {
						a.Image.Type = "Image"
					}
					return nil
				},
			},
			{
				Name: "image_name", WireField: "name", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Document).Name, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*Attachment).Image.Name, e.(*Attachment).Image.Name != "" },
				Assign: func(e Entity, v any) error { e.(*Attachment).Image.Name = v.(string); return nil },
			},
		},
		Relations: map[string]RelationSetter{
			"status": func(e Entity, related Entity) error {
				status, ok := related.(*Status)
				if !ok {
					return errors.WrapInvalid(
						fmt.Errorf("%w: attachment relation requires a status", errors.ErrInvalidData),
						"Attachment", "SetRelation", "relation assignment")
				}
				a := e.(*Attachment)
				a.Status = status
				a.StatusKey = status.ID
				return nil
			},
		},
	})
}
