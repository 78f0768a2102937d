package model

import (
	"context"
	"time"

	"github.com/c360/fedwire/activity"
)

// User is a federated actor, local or remote.
type User struct {
	Base
	Username         string
	DisplayName      string
	Summary          string
	Inbox            string
	Outbox           string
	FollowersAddress string
	Avatar           activity.Image
	Published        time.Time
	Discoverable     bool
}

// EntityType returns the closed-enumeration type identifier.
func (u *User) EntityType() Type { return TypeUser }

func init() {
	MustRegisterBinding(&Binding{
		Type:        TypeUser,
		Serializer:  "Person",
		Description: "Federated actor profile",
		New:         func() Entity { return &User{} },
		Fields: []FieldDescriptor{
			{
				Name: "remote_id", WireField: "id", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Person).ID, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*User).RemoteID, e.(*User).RemoteID != "" },
				Assign: func(e Entity, v any) error { e.(*User).RemoteID = v.(string); return nil },
			},
			{
				Name: "username", WireField: "preferredUsername", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Person).PreferredUsername, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*User).Username, true },
				Assign: func(e Entity, v any) error { e.(*User).Username = v.(string); return nil },
			},
			{
				Name: "display_name", WireField: "name", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Person).Name, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*User).DisplayName, e.(*User).DisplayName != "" },
				Assign: func(e Entity, v any) error { e.(*User).DisplayName = v.(string); return nil },
			},
			{
				Name: "summary", WireField: "summary", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Person).Summary, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*User).Summary, e.(*User).Summary != "" },
				Assign: func(e Entity, v any) error { e.(*User).Summary = v.(string); return nil },
			},
			{
				Name: "inbox", WireField: "inbox", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Person).Inbox, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*User).Inbox, true },
				Assign: func(e Entity, v any) error { e.(*User).Inbox = v.(string); return nil },
			},
			{
				Name: "outbox", WireField: "outbox", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Person).Outbox, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*User).Outbox, true },
				Assign: func(e Entity, v any) error { e.(*User).Outbox = v.(string); return nil },
			},
			{
				Name: "followers_address", WireField: "followers", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Person).Followers, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*User).FollowersAddress, true },
				Assign: func(e Entity, v any) error { e.(*User).FollowersAddress = v.(string); return nil },
			},
			{
				Name: "discoverable", WireField: "discoverable", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Person).Discoverable, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*User).Discoverable, true },
				Assign: func(e Entity, v any) error { e.(*User).Discoverable = v.(bool); return nil },
			},
			{
				Name: "published", WireField: "published", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					value := obj.(*activity.Person).Published
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
					u := e.(*User)
					return activity.FormatTime(u.Published), !u.Published.IsZero()
				},
				Assign: func(e Entity, v any) error { e.(*User).Published = v.(time.Time); return nil },
			},
			{
				// The avatar is an attached resource: stored after scalar
				// fields, before any multi-valued associations.
				Name: "avatar", WireField: "icon", Kind: KindResource,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					icon := obj.(*activity.Person).Icon
					if icon.URL == "" {
						return nil, false, nil
					}
					return icon, true, nil
				},
				ToWire: func(e Entity) (any, bool) {
					u := e.(*User)
					return u.Avatar, u.Avatar.URL != ""
				},
				Assign: func(e Entity, v any) error { e.(*User).Avatar = v.(activity.Image); return nil },
			},
		},
	})
}
