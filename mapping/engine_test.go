package mapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fedwire/activity"
	"github.com/c360/fedwire/errors"
	"github.com/c360/fedwire/model"
	"github.com/c360/fedwire/storage"
	"github.com/c360/fedwire/testutil"
)

type testRig struct {
	engine     *Engine
	store      *storage.Store
	connector  *testutil.FakeConnector
	dispatcher *testutil.RecordingDispatcher
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{
		store:      testutil.NewStore(t, "local.test"),
		connector:  testutil.NewFakeConnector(),
		dispatcher: testutil.NewRecordingDispatcher(),
	}
	engine, err := New(Config{
		Store:      rig.store,
		Connector:  rig.connector,
		Dispatcher: rig.dispatcher,
	})
	require.NoError(t, err)
	rig.engine = engine
	return rig
}

func (rig *testRig) saveUser(t *testing.T, remoteID, username string) *model.User {
	t.Helper()
	u := &model.User{
		Base:             model.Base{RemoteID: remoteID},
		Username:         username,
		FollowersAddress: remoteID + "/followers",
	}
	require.NoError(t, rig.store.WithTx(context.Background(), func(tx *storage.Tx) error {
		return tx.Save(context.Background(), u)
	}))
	return u
}

func (rig *testRig) saveStatus(t *testing.T, remoteID string, author *model.User) *model.Status {
	t.Helper()
	st := &model.Status{
		Base:    model.Base{RemoteID: remoteID},
		User:    author,
		Content: "a post",
	}
	require.NoError(t, rig.store.WithTx(context.Background(), func(tx *storage.Tx) error {
		return tx.Save(context.Background(), st)
	}))
	return st
}

func TestNew_Validation(t *testing.T) {
	store := testutil.NewStore(t, "local.test")

	_, err := New(Config{Connector: testutil.NewFakeConnector(), Dispatcher: testutil.NewRecordingDispatcher()})
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))

	_, err = New(Config{Store: store, Dispatcher: testutil.NewRecordingDispatcher()})
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))

	_, err = New(Config{Store: store, Connector: testutil.NewFakeConnector()})
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))
}

func TestToEntity_TypeMismatch(t *testing.T) {
	rig := newTestRig(t)

	obj, err := activity.Construct(testutil.PersonDoc("https://example.com/users/rat", "rat"))
	require.NoError(t, err)

	_, err = rig.engine.ToEntity(context.Background(), obj, model.TypeStatus, nil, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTypeMismatch))
	assert.True(t, errors.IsInvalid(err))
}

func TestToEntity_PersistsNoteWithResolvedAuthor(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	author := "https://example.com/users/rat"
	rig.connector.Add(author, testutil.PersonDoc(author, "rat"))

	obj, err := activity.Construct(testutil.NoteDoc("https://example.com/status/1", author, "hello there"))
	require.NoError(t, err)

	e, err := rig.engine.ToEntity(ctx, obj, model.TypeStatus, nil, true)
	require.NoError(t, err)

	st := e.(*model.Status)
	assert.NotZero(t, st.Key())
	assert.Equal(t, "hello there", st.Content)
	require.NotNil(t, st.User)
	assert.Equal(t, "rat", st.User.Username)
	assert.Equal(t, 2024, st.Published.Year())

	// The author was persisted as a side effect of resolution.
	found, err := rig.store.FindByRemoteID(ctx, model.TypeUser, author)
	require.NoError(t, err)
	assert.Equal(t, st.User.Key(), found.Key())
}

func TestToEntity_NoPersist(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	author := rig.saveUser(t, "https://example.com/users/rat", "rat")

	doc := testutil.NoteDoc("https://example.com/status/1", author.RemoteID, "ephemeral")
	doc["attachment"] = []any{map[string]any{"url": "https://example.com/img/1.jpg", "name": "cover"}}
	obj, err := activity.Construct(doc)
	require.NoError(t, err)

	e, err := rig.engine.ToEntity(ctx, obj, model.TypeStatus, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "ephemeral", e.(*model.Status).Content)
	assert.Zero(t, e.Key(), "nothing may be written without persist")

	_, err = rig.store.FindByRemoteID(ctx, model.TypeStatus, "https://example.com/status/1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Empty(t, rig.dispatcher.Requests(), "reverse items must not dispatch without persistence")
}

func TestToEntity_IdempotentUpsert(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	author := rig.saveUser(t, "https://example.com/users/rat", "rat")

	obj, err := activity.Construct(testutil.NoteDoc("https://example.com/status/1", author.RemoteID, "first"))
	require.NoError(t, err)
	first, err := rig.engine.ToEntity(ctx, obj, model.TypeStatus, nil, true)
	require.NoError(t, err)

	edited, err := activity.Construct(testutil.NoteDoc("https://example.com/status/1", author.RemoteID, "edited"))
	require.NoError(t, err)
	second, err := rig.engine.ToEntity(ctx, edited, model.TypeStatus, nil, true)
	require.NoError(t, err)

	assert.Equal(t, first.Key(), second.Key(), "re-delivery updates in place")

	found, err := rig.store.FindByRemoteID(ctx, model.TypeStatus, "https://example.com/status/1")
	require.NoError(t, err)
	assert.Equal(t, "edited", found.(*model.Status).Content)
}

func TestToEntity_MentionsAssociated(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	author := rig.saveUser(t, "https://example.com/users/rat", "rat")
	mentioned := "https://example.com/users/badger"
	rig.connector.Add(mentioned, testutil.PersonDoc(mentioned, "badger"))

	doc := testutil.NoteDoc("https://example.com/status/1", author.RemoteID, "hi @badger")
	doc["tag"] = []any{map[string]any{
		"type": "Mention",
		"href": mentioned,
		"name": "@badger",
	}}
	obj, err := activity.Construct(doc)
	require.NoError(t, err)

	_, err = rig.engine.ToEntity(ctx, obj, model.TypeStatus, nil, true)
	require.NoError(t, err)

	found, err := rig.store.FindByRemoteID(ctx, model.TypeStatus, "https://example.com/status/1")
	require.NoError(t, err)
	st := found.(*model.Status)
	require.Len(t, st.MentionUsers, 1)
	assert.Equal(t, "badger", st.MentionUsers[0].Username)
}

func TestToEntity_DispatchesAttachments(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	author := rig.saveUser(t, "https://example.com/users/rat", "rat")

	doc := testutil.NoteDoc("https://example.com/status/1", author.RemoteID, "with cover")
	doc["attachment"] = []any{map[string]any{
		"url":  "https://example.com/img/1.jpg",
		"name": "cover",
	}}
	obj, err := activity.Construct(doc)
	require.NoError(t, err)

	_, err = rig.engine.ToEntity(ctx, obj, model.TypeStatus, nil, true)
	require.NoError(t, err)

	reqs := rig.dispatcher.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "attachment", reqs[0].Target)
	assert.Equal(t, "status", reqs[0].Origin)
	assert.Equal(t, "status", reqs[0].Field)
	assert.Equal(t, "https://example.com/status/1", reqs[0].OriginRemoteID)

	// Replay the deferred work the way the consumer would.
	require.NoError(t, rig.dispatcher.Drain(ctx, rig.engine))

	found, err := rig.store.FindByRemoteID(ctx, model.TypeStatus, "https://example.com/status/1")
	require.NoError(t, err)
	st := found.(*model.Status)
	require.Len(t, st.Attachments, 1)
	assert.Equal(t, "https://example.com/img/1.jpg", st.Attachments[0].Image.URL)
	assert.Equal(t, "cover", st.Attachments[0].Image.Name)
}

func TestResolve_LikeCreatesFavorite(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	local := rig.saveUser(t, "https://local.test/user/mouse", "mouse")
	status := rig.saveStatus(t, "https://local.test/status/1", local)

	actor := "https://example.com/users/rat"
	likeID := "http://example.com/fav/1"
	rig.connector.Add(actor, testutil.PersonDoc(actor, "rat"))
	rig.connector.Add(likeID, testutil.LikeDoc(likeID, actor, status.RemoteID))

	e, err := rig.engine.Resolve(ctx, model.TypeFavorite, likeID)
	require.NoError(t, err)

	fav := e.(*model.Favorite)
	assert.NotZero(t, fav.Key())
	assert.Equal(t, likeID, fav.RemoteID)
	require.NotNil(t, fav.User)
	assert.Equal(t, "rat", fav.User.Username)
	require.NotNil(t, fav.Status)
	assert.Equal(t, status.Key(), fav.Status.Key())

	// The remote actor was created on the way.
	_, err = rig.store.FindByRemoteID(ctx, model.TypeUser, actor)
	assert.NoError(t, err)
}
