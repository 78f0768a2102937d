package model

import (
	"context"

	"github.com/c360/fedwire/activity"
)

// Follow is an actor following another actor. The (user, object) pair
// is a natural key alongside the remote id.
type Follow struct {
	Base
	User   *User
	Object *User
}

// EntityType returns the closed-enumeration type identifier.
func (f *Follow) EntityType() Type { return TypeFollow }

func init() {
	MustRegisterBinding(&Binding{
		Type:        TypeFollow,
		Serializer:  "Follow",
		Description: "An actor following another actor",
		New:         func() Entity { return &Follow{} },
		Fields: []FieldDescriptor{
			{
				Name: "remote_id", WireField: "id", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Follow).ID, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*Follow).RemoteID, e.(*Follow).RemoteID != "" },
				Assign: func(e Entity, v any) error { e.(*Follow).RemoteID = v.(string); return nil },
			},
			{
				Name: "user", WireField: "actor", Kind: KindScalar,
				FromWire: func(ctx context.Context, r Resolver, obj activity.Object) (any, bool, error) {
					user, err := r.Resolve(ctx, TypeUser, obj.(*activity.Follow).Actor)
					if err != nil {
						return nil, false, err
					}
					return user, true, nil
				},
				ToWire: func(e Entity) (any, bool) {
					f := e.(*Follow)
					if f.User == nil {
						return nil, false
					}
					return f.User.RemoteID, true
				},
				Assign: func(e Entity, v any) error { e.(*Follow).User = v.(*User); return nil },
			},
			{
				Name: "object", WireField: "object", Kind: KindScalar,
				FromWire: func(ctx context.Context, r Resolver, obj activity.Object) (any, bool, error) {
					user, err := r.Resolve(ctx, TypeUser, obj.(*activity.Follow).Object)
					if err != nil {
						return nil, false, err
					}
					return user, true, nil
				},
				ToWire: func(e Entity) (any, bool) {
					f := e.(*Follow)
					if f.Object == nil {
						return nil, false
					}
					return f.Object.RemoteID, true
				},
				Assign: func(e Entity, v any) error { e.(*Follow).Object = v.(*User); return nil },
			},
		},
	})
}
