package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/c360/fedwire/activity"
)

// Status is any post. Mentions are a multi-valued association, and
// attachments are a reverse collection: attachment rows point back at
// the status via foreign key and are resolved only once the status is
// durable.
type Status struct {
	Base
	User         *User
	Content      string
	InReplyTo    string
	Published    time.Time
	Sensitive    bool
	Privacy      PrivacyLevel
	Deleted      bool
	DeletedAt    time.Time
	MentionUsers []*User
	Attachments  []*Attachment
}

// EntityType returns the closed-enumeration type identifier.
func (s *Status) EntityType() Type { return TypeStatus }

// IsDeleted reports whether the status has been tombstoned.
func (s *Status) IsDeleted() bool { return s.Deleted }

// DeletedTime returns the deletion timestamp when the status is deleted.
func (s *Status) DeletedTime() (string, bool) {
	if !s.Deleted {
		return "", false
	}
	return activity.FormatTime(s.DeletedAt), true
}

// pureStatusContent renders the simplified textual representation served
// to peers without native support: the content followed by anchors for
// each mentioned actor.
func pureStatusContent(s *Status) string {
	if len(s.MentionUsers) == 0 {
		return s.Content
	}
	anchors := make([]string, 0, len(s.MentionUsers))
	for _, u := range s.MentionUsers {
		anchors = append(anchors, fmt.Sprintf(`<a href="%s">@%s</a>`, u.RemoteID, u.Username))
	}
	return s.Content + " " + strings.Join(anchors, ", ")
}

func init() {
	MustRegisterBinding(&Binding{
		Type:        TypeStatus,
		Serializer:  "Note",
		Description: "A post",
		New:         func() Entity { return &Status{Privacy: PrivacyPublic} },
		Fields: []FieldDescriptor{
			{
				Name: "remote_id", WireField: "id", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Note).ID, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*Status).RemoteID, e.(*Status).RemoteID != "" },
				Assign: func(e Entity, v any) error { e.(*Status).RemoteID = v.(string); return nil },
			},
			{
				Name: "user", WireField: "attributedTo", Kind: KindScalar,
				FromWire: func(ctx context.Context, r Resolver, obj activity.Object) (any, bool, error) {
					user, err := r.Resolve(ctx, TypeUser, obj.(*activity.Note).AttributedTo)
					if err != nil {
						return nil, false, err
					}
					return user, true, nil
				},
				ToWire: func(e Entity) (any, bool) {
					s := e.(*Status)
					if s.User == nil {
						return nil, false
					}
					return s.User.RemoteID, true
				},
				Assign: func(e Entity, v any) error { e.(*Status).User = v.(*User); return nil },
			},
			{
				Name: "content", WireField: "content", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Note).Content, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*Status).Content, true },
				Assign: func(e Entity, v any) error { e.(*Status).Content = v.(string); return nil },
			},
			{
				Name: "reply_parent", WireField: "inReplyTo", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					parent := obj.(*activity.Note).InReplyTo
					if parent == "" {
						return nil, false, nil
					}
					return parent, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*Status).InReplyTo, e.(*Status).InReplyTo != "" },
				Assign: func(e Entity, v any) error { e.(*Status).InReplyTo = v.(string); return nil },
			},
			{
				// The published date is taken from the wire, not assigned
				// locally, because federated posts carry their own history.
				Name: "published", WireField: "published", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					value := obj.(*activity.Note).Published
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
					s := e.(*Status)
					return activity.FormatTime(s.Published), !s.Published.IsZero()
				},
				Assign: func(e Entity, v any) error { e.(*Status).Published = v.(time.Time); return nil },
			},
			{
				Name: "sensitive", WireField: "sensitive", Kind: KindScalar,
				FromWire: func(_ context.Context, _ Resolver, obj activity.Object) (any, bool, error) {
					return obj.(*activity.Note).Sensitive, true, nil
				},
				ToWire: func(e Entity) (any, bool) { return e.(*Status).Sensitive, true },
				Assign: func(e Entity, v any) error { e.(*Status).Sensitive = v.(bool); return nil },
			},
			{
				Name: "mention_users", WireField: "tag", Kind: KindMany,
				FromWire: func(ctx context.Context, r Resolver, obj activity.Object) (any, bool, error) {
					var mentioned []*User
					for _, tag := range obj.(*activity.Note).Tag {
						if !tag.IsMention() {
							continue
						}
						user, err := r.Resolve(ctx, TypeUser, tag.Href)
						if err != nil {
							return nil, false, err
						}
						mentioned = append(mentioned, user.(*User))
					}
					return mentioned, true, nil
				},
				ToWire: func(e Entity) (any, bool) {
					s := e.(*Status)
					if len(s.MentionUsers) == 0 {
						return nil, false
					}
					tags := make([]activity.Link, 0, len(s.MentionUsers))
					for _, u := range s.MentionUsers {
						tags = append(tags, activity.NewMention(u.RemoteID, "@"+u.Username))
					}
					return tags, true
				},
				Assign: func(e Entity, v any) error { e.(*Status).MentionUsers = v.([]*User); return nil },
			},
		},
		Reverse: []ReverseField{
			{
				ModelField: "status",
				WireField:  "attachment",
				Target:     TypeAttachment,
				Items: func(obj activity.Object) []any {
					note := obj.(*activity.Note)
					items := make([]any, 0, len(note.Attachment))
					for _, img := range note.Attachment {
						items = append(items, map[string]any{
							"type": "Document",
							"url":  img.URL,
							"name": img.Name,
						})
					}
					return items
				},
				Collect: func(e Entity) (any, bool) {
					s := e.(*Status)
					if len(s.Attachments) == 0 {
						return nil, false
					}
					images := make([]activity.Image, 0, len(s.Attachments))
					for _, a := range s.Attachments {
						images = append(images, a.Image)
					}
					return images, true
				},
			},
		},
		Recipients: func(e Entity) (string, []string, PrivacyLevel, bool) {
			s := e.(*Status)
			followers := ""
			if s.User != nil {
				followers = s.User.FollowersAddress
			}
			mentions := make([]string, 0, len(s.MentionUsers))
			for _, u := range s.MentionUsers {
				mentions = append(mentions, u.RemoteID)
			}
			return followers, mentions, s.Privacy, true
		},
		PureType: "Note",
		PureContent: func(e Entity) (string, bool) {
			return pureStatusContent(e.(*Status)), true
		},
		PureAttachments: func(e Entity) []activity.Image {
			s := e.(*Status)
			var images []activity.Image
			for _, u := range s.MentionUsers {
				if u.Avatar.URL != "" {
					images = append(images, u.Avatar)
				}
			}
			for _, a := range s.Attachments {
				images = append(images, a.Image)
			}
			return images
		},
	})
}
