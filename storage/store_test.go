package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fedwire/activity"
	"github.com/c360/fedwire/errors"
	"github.com/c360/fedwire/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir()+"/test.db", Options{Domain: "local.test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func saveEntity(t *testing.T, s *Store, e model.Entity) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.Save(context.Background(), e)
	}))
}

func TestOpen_RequiresDomain(t *testing.T) {
	_, err := Open(t.TempDir()+"/test.db", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))
}

func TestSave_RemoteUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &model.User{
		Base:             model.Base{RemoteID: "https://example.com/users/rat"},
		Username:         "rat",
		DisplayName:      "Rat",
		Inbox:            "https://example.com/users/rat/inbox",
		Outbox:           "https://example.com/users/rat/outbox",
		FollowersAddress: "https://example.com/users/rat/followers",
		Published:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	saveEntity(t, s, u)
	assert.NotZero(t, u.Key())

	found, err := s.FindByRemoteID(ctx, model.TypeUser, u.RemoteID)
	require.NoError(t, err)
	loaded := found.(*model.User)
	assert.Equal(t, u.Key(), loaded.Key())
	assert.Equal(t, "rat", loaded.Username)
	assert.Equal(t, u.Published, loaded.Published)
}

func TestSave_LocalEntityDerivesRemoteID(t *testing.T) {
	s := newTestStore(t)

	u := &model.User{Base: model.Base{Local: true}, Username: "badger"}
	saveEntity(t, s, u)

	want := "https://local.test/user/1"
	assert.Equal(t, want, u.RemoteID)

	found, err := s.FindByRemoteID(context.Background(), model.TypeUser, want)
	require.NoError(t, err)
	assert.Equal(t, u.Key(), found.Key())
}

func TestSave_DuplicateRemoteID(t *testing.T) {
	s := newTestStore(t)

	first := &model.User{Base: model.Base{RemoteID: "https://example.com/users/rat"}, Username: "rat"}
	saveEntity(t, s, first)

	second := &model.User{Base: model.Base{RemoteID: "https://example.com/users/rat"}, Username: "rat2"}
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.Save(context.Background(), second)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateKey))
}

func TestSave_UpdateInPlace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &model.User{Base: model.Base{RemoteID: "https://example.com/users/rat"}, Username: "rat"}
	saveEntity(t, s, u)
	key := u.Key()

	u.DisplayName = "Rat, renamed"
	saveEntity(t, s, u)
	assert.Equal(t, key, u.Key(), "update must not change identity")

	found, err := s.FindByRemoteID(ctx, model.TypeUser, u.RemoteID)
	require.NoError(t, err)
	assert.Equal(t, "Rat, renamed", found.(*model.User).DisplayName)
}

func TestSave_StatusRequiresDurableUser(t *testing.T) {
	s := newTestStore(t)

	st := &model.Status{
		Base:    model.Base{RemoteID: "https://example.com/status/1"},
		User:    &model.User{Username: "ghost"},
		Content: "hello",
	}
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.Save(context.Background(), st)
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &model.User{Base: model.Base{RemoteID: "https://example.com/users/rat"}, Username: "rat"}
	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.Save(ctx, u); err != nil {
			return err
		}
		return errors.New("deliberate failure")
	})
	require.Error(t, err)

	_, err = s.FindByRemoteID(ctx, model.TypeUser, u.RemoteID)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "rollback must discard the insert")
}

func TestSetAssociation_Mentions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := &model.User{Base: model.Base{RemoteID: "https://example.com/users/rat"}, Username: "rat"}
	mentioned := &model.User{Base: model.Base{RemoteID: "https://example.com/users/badger"}, Username: "badger"}
	saveEntity(t, s, author)
	saveEntity(t, s, mentioned)

	st := &model.Status{
		Base:    model.Base{RemoteID: "https://example.com/status/1"},
		User:    author,
		Content: "hi @badger",
	}
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.Save(ctx, st); err != nil {
			return err
		}
		return tx.SetAssociation(ctx, st, "mention_users", []*model.User{mentioned})
	}))

	found, err := s.FindByRemoteID(ctx, model.TypeStatus, st.RemoteID)
	require.NoError(t, err)
	loaded := found.(*model.Status)
	require.Len(t, loaded.MentionUsers, 1)
	assert.Equal(t, "badger", loaded.MentionUsers[0].Username)

	// Replacing the association drops the old members.
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.SetAssociation(ctx, st, "mention_users", []*model.User{})
	}))
	found, err = s.FindByRemoteID(ctx, model.TypeStatus, st.RemoteID)
	require.NoError(t, err)
	assert.Empty(t, found.(*model.Status).MentionUsers)
}

func TestSetAssociation_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := &model.Status{}
	err := s.WithTx(ctx, func(tx *Tx) error {
		return tx.SetAssociation(ctx, st, "mention_users", []*model.User{})
	})
	require.Error(t, err, "associations need a durable owner")

	author := &model.User{Base: model.Base{RemoteID: "https://example.com/users/rat"}, Username: "rat"}
	saveEntity(t, s, author)
	durable := &model.Status{Base: model.Base{RemoteID: "https://example.com/status/1"}, User: author}
	saveEntity(t, s, durable)

	err = s.WithTx(ctx, func(tx *Tx) error {
		return tx.SetAssociation(ctx, durable, "bookshelves", []*model.User{})
	})
	require.Error(t, err, "unknown association names are rejected")
}

func TestFindExisting_FavoriteByPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	actor := &model.User{Base: model.Base{RemoteID: "https://example.com/users/rat"}, Username: "rat"}
	saveEntity(t, s, actor)
	st := &model.Status{Base: model.Base{RemoteID: "https://example.com/status/1"}, User: actor}
	saveEntity(t, s, st)
	fav := &model.Favorite{
		Base:   model.Base{RemoteID: "https://example.com/fav/1"},
		User:   actor,
		Status: st,
	}
	saveEntity(t, s, fav)

	// A payload with a different id but the same (actor, object) pair
	// still finds the stored favorite.
	found, err := s.FindExisting(ctx, model.TypeFavorite, map[string]any{
		"id":     "https://elsewhere.example/fav/99",
		"actor":  actor.RemoteID,
		"object": st.RemoteID,
	})
	require.NoError(t, err)
	assert.Equal(t, fav.Key(), found.Key())

	_, err = s.FindExisting(ctx, model.TypeFavorite, map[string]any{
		"id":     "https://elsewhere.example/fav/100",
		"actor":  actor.RemoteID,
		"object": "https://example.com/status/other",
	})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestFindExisting_AttachmentByURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &model.Attachment{Image: activity.NewImage("https://example.com/img/1.jpg", "cover")}
	saveEntity(t, s, a)

	found, err := s.FindExisting(ctx, model.TypeAttachment, map[string]any{
		"url": "https://example.com/img/1.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, a.Key(), found.Key())
}

func TestFindRelated_AttachmentScopedToStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := &model.User{Base: model.Base{RemoteID: "https://example.com/users/rat"}, Username: "rat"}
	saveEntity(t, s, author)
	first := &model.Status{Base: model.Base{RemoteID: "https://example.com/status/1"}, User: author}
	second := &model.Status{Base: model.Base{RemoteID: "https://example.com/status/2"}, User: author}
	saveEntity(t, s, first)
	saveEntity(t, s, second)

	bound := &model.Attachment{
		StatusKey: first.Key(),
		Image:     activity.NewImage("https://example.com/img/1.jpg", "cover"),
	}
	saveEntity(t, s, bound)

	raw := map[string]any{"url": "https://example.com/img/1.jpg"}

	// A row owned by a status is invisible to the unscoped lookup.
	_, err := s.FindExisting(ctx, model.TypeAttachment, raw)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// Scoped to the owning status the row matches; scoped to another
	// status the same URL is a different attachment.
	found, err := s.FindRelated(ctx, model.TypeAttachment, raw, first)
	require.NoError(t, err)
	assert.Equal(t, bound.Key(), found.Key())

	_, err = s.FindRelated(ctx, model.TypeAttachment, raw, second)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// An unbound row is still claimable from any scope.
	loose := &model.Attachment{Image: activity.NewImage("https://example.com/img/2.jpg", "")}
	saveEntity(t, s, loose)
	found, err = s.FindRelated(ctx, model.TypeAttachment, map[string]any{
		"url": "https://example.com/img/2.jpg",
	}, second)
	require.NoError(t, err)
	assert.Equal(t, loose.Key(), found.Key())
}

func TestReplies_OrderedAndFiltered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := &model.User{Base: model.Base{RemoteID: "https://example.com/users/rat"}, Username: "rat"}
	saveEntity(t, s, author)
	parent := &model.Status{Base: model.Base{RemoteID: "https://example.com/status/1"}, User: author}
	saveEntity(t, s, parent)

	later := &model.Status{
		Base: model.Base{RemoteID: "https://example.com/status/3"}, User: author,
		InReplyTo: parent.RemoteID, Published: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	earlier := &model.Status{
		Base: model.Base{RemoteID: "https://example.com/status/2"}, User: author,
		InReplyTo: parent.RemoteID, Published: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	gone := &model.Status{
		Base: model.Base{RemoteID: "https://example.com/status/4"}, User: author,
		InReplyTo: parent.RemoteID, Deleted: true, DeletedAt: time.Now(),
	}
	saveEntity(t, s, later)
	saveEntity(t, s, earlier)
	saveEntity(t, s, gone)

	replies, err := s.Replies(ctx, parent)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/status/2",
		"https://example.com/status/3",
	}, replies)
}

func TestFindByRemoteID_EmptyID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindByRemoteID(context.Background(), model.TypeUser, "")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
