package mapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fedwire/deferred"
	"github.com/c360/fedwire/errors"
	"github.com/c360/fedwire/model"
)

func attachmentRequest(t *testing.T, origin string, item any) deferred.Request {
	t.Helper()
	req, err := deferred.NewRequest("attachment", "status", "status", origin, item)
	require.NoError(t, err)
	return req
}

func TestSetRelatedField_InlineItem(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	author := rig.saveUser(t, "https://example.com/users/rat", "rat")
	status := rig.saveStatus(t, "https://example.com/status/1", author)

	req := attachmentRequest(t, status.RemoteID, map[string]any{
		"type": "Document",
		"url":  "https://example.com/img/1.jpg",
		"name": "cover",
	})
	require.NoError(t, rig.engine.SetRelatedField(ctx, req))

	found, err := rig.store.FindByRemoteID(ctx, model.TypeStatus, status.RemoteID)
	require.NoError(t, err)
	st := found.(*model.Status)
	require.Len(t, st.Attachments, 1)
	assert.Equal(t, "https://example.com/img/1.jpg", st.Attachments[0].Image.URL)
	assert.Equal(t, status.Key(), st.Attachments[0].StatusKey)
}

func TestSetRelatedField_StringItem(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	author := rig.saveUser(t, "https://example.com/users/rat", "rat")
	status := rig.saveStatus(t, "https://example.com/status/1", author)

	itemID := "https://example.com/img/remote.jpg"
	rig.connector.Add(itemID, map[string]any{
		"type": "Document",
		"id":   itemID,
		"url":  itemID,
		"name": "remote cover",
	})

	req := attachmentRequest(t, status.RemoteID, itemID)
	require.NoError(t, rig.engine.SetRelatedField(ctx, req))

	found, err := rig.store.FindByRemoteID(ctx, model.TypeStatus, status.RemoteID)
	require.NoError(t, err)
	st := found.(*model.Status)
	require.Len(t, st.Attachments, 1)
	assert.Equal(t, "remote cover", st.Attachments[0].Image.Name)
}

func TestSetRelatedField_Idempotent(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	author := rig.saveUser(t, "https://example.com/users/rat", "rat")
	status := rig.saveStatus(t, "https://example.com/status/1", author)

	req := attachmentRequest(t, status.RemoteID, map[string]any{
		"type": "Document",
		"url":  "https://example.com/img/1.jpg",
		"name": "cover",
	})

	// At-least-once delivery: the same request replayed after
	// completion must not create a second attachment.
	require.NoError(t, rig.engine.SetRelatedField(ctx, req))
	require.NoError(t, rig.engine.SetRelatedField(ctx, req))

	found, err := rig.store.FindByRemoteID(ctx, model.TypeStatus, status.RemoteID)
	require.NoError(t, err)
	assert.Len(t, found.(*model.Status).Attachments, 1)
}

func TestSetRelatedField_SameImageOnDistinctStatuses(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	author := rig.saveUser(t, "https://example.com/users/rat", "rat")
	first := rig.saveStatus(t, "https://example.com/status/1", author)
	second := rig.saveStatus(t, "https://example.com/status/2", author)

	item := map[string]any{
		"type": "Document",
		"url":  "https://example.com/img/shared.jpg",
		"name": "cover",
	}

	// Two statuses carrying the same image URL are distinct attachments;
	// binding the second must not steal the first status's row.
	require.NoError(t, rig.engine.SetRelatedField(ctx, attachmentRequest(t, first.RemoteID, item)))
	require.NoError(t, rig.engine.SetRelatedField(ctx, attachmentRequest(t, second.RemoteID, item)))

	for _, status := range []*model.Status{first, second} {
		found, err := rig.store.FindByRemoteID(ctx, model.TypeStatus, status.RemoteID)
		require.NoError(t, err)
		st := found.(*model.Status)
		require.Len(t, st.Attachments, 1, "%s must keep its attachment", status.RemoteID)
		assert.Equal(t, "https://example.com/img/shared.jpg", st.Attachments[0].Image.URL)
		assert.Equal(t, status.Key(), st.Attachments[0].StatusKey)
	}
}

func TestSetRelatedField_DanglingOrigin(t *testing.T) {
	rig := newTestRig(t)

	req := attachmentRequest(t, "https://example.com/status/gone", map[string]any{
		"type": "Document",
		"url":  "https://example.com/img/1.jpg",
	})

	err := rig.engine.SetRelatedField(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDanglingOrigin))
	assert.True(t, errors.IsFatal(err), "a missing origin cannot be retried into existence")
}

func TestSetRelatedField_UnknownRelation(t *testing.T) {
	rig := newTestRig(t)

	req, err := deferred.NewRequest("attachment", "status", "bookshelf",
		"https://example.com/status/1", "https://example.com/img/1.jpg")
	require.NoError(t, err)

	err = rig.engine.SetRelatedField(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestSetRelatedField_InvalidRequest(t *testing.T) {
	rig := newTestRig(t)

	err := rig.engine.SetRelatedField(context.Background(), deferred.Request{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	req, rerr := deferred.NewRequest("spaceship", "status", "status",
		"https://example.com/status/1", "https://example.com/img/1.jpg")
	require.NoError(t, rerr)
	err = rig.engine.SetRelatedField(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
