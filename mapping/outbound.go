package mapping

import (
	"context"
	"fmt"
	"strconv"

	"github.com/c360/fedwire/activity"
	"github.com/c360/fedwire/errors"
	"github.com/c360/fedwire/model"
)

// Addressing computes the to and cc recipient lists for a privacy
// level. Public posts address the shared collection directly and copy
// followers; unlisted posts invert the two; followers-only posts drop
// the shared collection; direct posts address mentions alone. Mentioned
// actors are always reachable except on followers-only posts, where
// they ride in cc anyway.
func Addressing(privacy model.PrivacyLevel, followers string, mentions []string) (to, cc []string) {
	to = []string{}
	cc = []string{}
	switch privacy {
	case model.PrivacyPublic:
		to = append(to, activity.PublicAddress)
		if followers != "" {
			cc = append(cc, followers)
		}
		cc = append(cc, mentions...)
	case model.PrivacyUnlisted:
		if followers != "" {
			to = append(to, followers)
		}
		cc = append(cc, activity.PublicAddress)
		cc = append(cc, mentions...)
	case model.PrivacyFollowers:
		if followers != "" {
			to = append(to, followers)
		}
		cc = append(cc, mentions...)
	case model.PrivacyDirect:
		to = append(to, mentions...)
	}
	return to, cc
}

// ToActivity renders an entity back into its wire object. A deleted
// entity renders as a Tombstone carrying only identity and the
// deletion timestamp. The pure flag substitutes the plain-text
// representation for consumers that do not understand the richer
// variant. Rendering never mutates the entity or the store.
func (eng *Engine) ToActivity(ctx context.Context, e model.Entity, pure bool) (activity.Object, error) {
	binding, err := model.BindingFor(e.EntityType())
	if err != nil {
		return nil, err
	}

	if d, ok := e.(model.Deletable); ok && d.IsDeleted() {
		deletedAt, _ := d.DeletedTime()
		return activity.Construct(map[string]any{
			"id":        e.GetRemoteID(),
			"type":      "Tombstone",
			"url":       e.GetRemoteID(),
			"deleted":   deletedAt,
			"published": deletedAt,
		})
	}

	raw := map[string]any{
		"id":   e.GetRemoteID(),
		"type": binding.Serializer,
	}
	for i := range binding.Fields {
		d := &binding.Fields[i]
		if d.ToWire == nil {
			continue
		}
		if v, ok := d.ToWire(e); ok {
			raw[d.WireField] = v
		}
	}
	for _, rf := range binding.Reverse {
		if rf.Collect == nil {
			continue
		}
		if v, ok := rf.Collect(e); ok {
			raw[rf.WireField] = v
		}
	}

	if st, ok := e.(*model.Status); ok {
		replies, rerr := eng.store.Replies(ctx, st)
		if rerr != nil {
			return nil, rerr
		}
		raw["replies"] = &activity.OrderedCollection{
			ID:           st.RemoteID + "/replies",
			Type:         "OrderedCollection",
			TotalItems:   len(replies),
			OrderedItems: replies,
		}
	}

	if binding.Recipients != nil {
		if followers, mentions, privacy, ok := binding.Recipients(e); ok {
			to, cc := Addressing(privacy, followers, mentions)
			raw["to"] = to
			raw["cc"] = cc
		}
	}

	if pure && binding.PureType != "" {
		raw["type"] = binding.PureType
		if binding.PureContent != nil {
			if c, ok := binding.PureContent(e); ok {
				raw["content"] = c
			}
		}
		if binding.PureAttachments != nil {
			raw["attachment"] = binding.PureAttachments(e)
		}
	}

	return activity.Construct(raw)
}

// BuildAccept renders the acceptance of a stored follow, addressed
// from the followed account back to the requester.
func (eng *Engine) BuildAccept(f *model.Follow) (*activity.Accept, error) {
	if f == nil || f.User == nil || f.Object == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: follow is missing its accounts", errors.ErrInvalidData),
			"Engine", "BuildAccept", "relation check")
	}
	accept := &activity.Accept{
		ID:    f.Object.RemoteID + "#accepts/follows/" + strconv.FormatInt(f.ID, 10),
		Type:  "Accept",
		Actor: f.Object.RemoteID,
		Object: activity.Follow{
			ID:     f.RemoteID,
			Type:   "Follow",
			Actor:  f.User.RemoteID,
			Object: f.Object.RemoteID,
		},
	}
	if err := accept.Validate(); err != nil {
		return nil, err
	}
	return accept, nil
}
