package model

import (
	"context"
	"time"

	"github.com/c360/fedwire/activity"
)

// Favorite is an actor favoriting a status. Besides the remote id, the
// (user, status) pair is a natural key: an actor cannot favorite the
// same status twice.
type Favorite struct {
	Base
	User      *User
	Status    *Status
	Published time.Time
}

// EntityType returns the closed-enumeration type identifier.
func (f *Favorite) EntityType() Type { return TypeFavorite }

func init() {
	MustRegisterBinding(&Binding{
		Type:        TypeFavorite,
		Serializer:  "Like",
		Description: "An actor favoriting a status",
		New:         func() Entity { return &Favorite{} },
		Fields: []FieldDescriptor{
			{
				Name: "remote_id", WireField: "id", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Like).ID, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*Favorite).RemoteID, e.(*Favorite).RemoteID != "" },
				Assign: func(e Entity, v any) error { e.(*Favorite).RemoteID = v.(string); return nil },
			},
			{
				Name: "user", WireField: "actor", Kind: KindScalar,
				FromWire: func(ctx context.Context, r Resolver, obj activity.Object) (any, bool, error) {
					user, err := r.Resolve(ctx, TypeUser, obj.(*activity.Like).Actor)
					if err != nil {
						return nil, false, err
					}
					return user, true, nil
				},
				ToWire: func(e Entity) (any, bool) {
					f := e.(*Favorite)
					if f.User == nil {
						return nil, false
					}
					return f.User.RemoteID, true
				},
				Assign: func(e Entity, v any) error { e.(*Favorite).User = v.(*User); return nil },
			},
			{
				Name: "status", WireField: "object", Kind: KindScalar,
				FromWire: func(ctx context.Context, r Resolver, obj activity.Object) (any, bool, error) {
					status, err := r.Resolve(ctx, TypeStatus, obj.(*activity.Like).Object)
					if err != nil {
						return nil, false, err
					}
					return status, true, nil
				},
				ToWire: func(e Entity) (any, bool) {
					f := e.(*Favorite)
					if f.Status == nil {
						return nil, false
					}
					return f.Status.RemoteID, true
				},
				Assign: func(e Entity, v any) error { e.(*Favorite).Status = v.(*Status); return nil },
			},
			{
				Name: "published", WireField: "published", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					value := obj.(*activity.Like).Published
					if value == "" {
						return nil, false, nil
					}
					ts, err := activity.ParseTime(value)
					if err != nil {
						return nil, false, err
					}
					return ts, true, nil
				},
				ToWire: func(e Entity) (any, bool) {
					f := e.(*Favorite)
					return activity.FormatTime(f.Published), !f.Published.IsZero()
				},
				Assign: func(e Entity, v any) error { e.(*Favorite).Published = v.(time.Time); return nil },
			},
		},
	})
}
