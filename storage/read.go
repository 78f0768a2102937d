package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/c360/fedwire/errors"
	"github.com/c360/fedwire/model"
)

// notFound wraps ErrNotFound with the type and identifier that missed.
func notFound(typ model.Type, key string) error {
	return errors.Wrap(
		fmt.Errorf("%w: %s %q", errors.ErrNotFound, typ, key),
		"Store", "find", "entity lookup")
}

// FindByRemoteID looks an entity up by its durable external identifier.
// Returns ErrNotFound when no entity of that type carries the id.
func (s *Store) FindByRemoteID(ctx context.Context, typ model.Type, remoteID string) (model.Entity, error) {
	if remoteID == "" {
		return nil, notFound(typ, remoteID)
	}

	switch typ {
	case model.TypeUser:
		return s.userBy(ctx, "remote_id = ?", remoteID)
	case model.TypeStatus:
		return s.statusBy(ctx, "remote_id = ?", remoteID)
	case model.TypeFavorite:
		return s.favoriteBy(ctx, "remote_id = ?", remoteID)
	case model.TypeFollow:
		return s.followBy(ctx, "remote_id = ?", remoteID)
	case model.TypeAttachment:
		return s.attachmentBy(ctx, "remote_id = ?", remoteID)
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unsupported entity type %q", errors.ErrInvalidData, typ),
			"Store", "FindByRemoteID", "type dispatch")
	}
}

// FindExisting searches for an entity matching any natural key present
// in a wire payload: the remote id first, then type-specific uniqueness
// signals such as a favorite's (actor, object) pair. Returns ErrNotFound
// when no identity signal matches.
func (s *Store) FindExisting(ctx context.Context, typ model.Type, raw map[string]any) (model.Entity, error) {
	if remoteID, _ := raw["id"].(string); remoteID != "" {
		e, err := s.FindByRemoteID(ctx, typ, remoteID)
		if err == nil || !errors.Is(err, errors.ErrNotFound) {
			return e, err
		}
	}

	switch typ {
	case model.TypeFavorite:
		actor, _ := raw["actor"].(string)
		object, _ := raw["object"].(string)
		if actor != "" && object != "" {
			return s.favoriteByPair(ctx, actor, object)
		}
	case model.TypeFollow:
		actor, _ := raw["actor"].(string)
		object, _ := raw["object"].(string)
		if actor != "" && object != "" {
			return s.followByPair(ctx, actor, object)
		}
	case model.TypeAttachment:
		// Only rows not yet bound to a status match here; a bound row
		// belongs to its status and an identical image URL elsewhere is
		// a distinct attachment.
		if url, _ := raw["url"].(string); url != "" {
			return s.attachmentBy(ctx, "image_url = ? AND status_id IS NULL", url)
		}
	}

	return nil, notFound(typ, fmt.Sprintf("%v", raw["id"]))
}

// FindRelated searches for the existing target of a reverse relation,
// scoped to the origin entity: an attachment payload matches only rows
// bound to that origin or not yet bound, per the (status, image url)
// natural key. Other types fall through to FindExisting.
func (s *Store) FindRelated(ctx context.Context, typ model.Type, raw map[string]any, origin model.Entity) (model.Entity, error) {
	if typ == model.TypeAttachment && origin != nil && origin.Key() != 0 {
		if url, _ := raw["url"].(string); url != "" {
			a, err := s.attachmentBy(ctx,
				"image_url = ? AND (status_id = ? OR status_id IS NULL)", url, origin.Key())
			if err == nil || !errors.Is(err, errors.ErrNotFound) {
				return a, err
			}
		}
	}
	return s.FindExisting(ctx, typ, raw)
}

// Replies lists the remote identifiers of non-deleted statuses replying
// to the given status, oldest first.
func (s *Store) Replies(ctx context.Context, status *model.Status) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT remote_id FROM statuses
		WHERE in_reply_to = ? AND deleted = 0
		ORDER BY published, id`, status.RemoteID)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "Replies", "reply query")
	}
	defer rows.Close()

	var replies []string
	for rows.Next() {
		var remoteID string
		if err := rows.Scan(&remoteID); err != nil {
			return nil, errors.WrapTransient(err, "Store", "Replies", "reply scan")
		}
		replies = append(replies, remoteID)
	}
	return replies, rows.Err()
}

func (s *Store) userBy(ctx context.Context, where string, args ...any) (*model.User, error) {
	u := &model.User{}
	var published string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, remote_id, username, display_name, summary, inbox, outbox,
			followers_address, avatar_url, avatar_name, discoverable, local, published
		FROM users WHERE `+where, args...).Scan(
		&u.ID, &u.RemoteID, &u.Username, &u.DisplayName, &u.Summary, &u.Inbox, &u.Outbox,
		&u.FollowersAddress, &u.Avatar.URL, &u.Avatar.Name, &u.Discoverable, &u.Local, &published)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(model.TypeUser, fmt.Sprintf("%v", args[0]))
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "userBy", "user query")
	}
	if u.Avatar.URL != "" {
		u.Avatar.Type = "Image"
	}
	u.Published = timeFromDB(published)
	return u, nil
}

func (s *Store) statusBy(ctx context.Context, where string, args ...any) (*model.Status, error) {
	st := &model.Status{}
	var userID int64
	var published string
	var privacy string
	var deletedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, remote_id, user_id, content, in_reply_to, sensitive, privacy,
			published, local, deleted, deleted_at
		FROM statuses WHERE `+where, args...).Scan(
		&st.ID, &st.RemoteID, &userID, &st.Content, &st.InReplyTo, &st.Sensitive, &privacy,
		&published, &st.Local, &st.Deleted, &deletedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(model.TypeStatus, fmt.Sprintf("%v", args[0]))
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "statusBy", "status query")
	}

	st.Privacy = model.PrivacyLevel(privacy)
	st.Published = timeFromDB(published)
	if deletedAt.Valid {
		st.DeletedAt = timeFromDB(deletedAt.String)
	}

	user, err := s.userBy(ctx, "id = ?", userID)
	if err != nil {
		return nil, err
	}
	st.User = user

	if err := s.loadMentions(ctx, st); err != nil {
		return nil, err
	}
	if err := s.loadAttachments(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) loadMentions(ctx context.Context, st *model.Status) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM status_mentions WHERE status_id = ? ORDER BY user_id`, st.ID)
	if err != nil {
		return errors.WrapTransient(err, "Store", "loadMentions", "mention query")
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return errors.WrapTransient(err, "Store", "loadMentions", "mention scan")
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return errors.WrapTransient(err, "Store", "loadMentions", "mention iteration")
	}

	for _, id := range userIDs {
		user, err := s.userBy(ctx, "id = ?", id)
		if err != nil {
			return err
		}
		st.MentionUsers = append(st.MentionUsers, user)
	}
	return nil
}

func (s *Store) loadAttachments(ctx context.Context, st *model.Status) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, remote_id, image_url, image_name FROM attachments
		WHERE status_id = ? ORDER BY id`, st.ID)
	if err != nil {
		return errors.WrapTransient(err, "Store", "loadAttachments", "attachment query")
	}
	defer rows.Close()

	for rows.Next() {
		a := &model.Attachment{StatusKey: st.ID, Status: st}
		if err := rows.Scan(&a.ID, &a.RemoteID, &a.Image.URL, &a.Image.Name); err != nil {
			return errors.WrapTransient(err, "Store", "loadAttachments", "attachment scan")
		}
		a.Image.Type = "Image"
		st.Attachments = append(st.Attachments, a)
	}
	return rows.Err()
}

func (s *Store) favoriteBy(ctx context.Context, where string, args ...any) (*model.Favorite, error) {
	f := &model.Favorite{}
	var userID, statusID int64
	var published string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, remote_id, user_id, status_id, published
		FROM favorites WHERE `+where, args...).Scan(
		&f.ID, &f.RemoteID, &userID, &statusID, &published)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(model.TypeFavorite, fmt.Sprintf("%v", args[0]))
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "favoriteBy", "favorite query")
	}

	f.Published = timeFromDB(published)

	if f.User, err = s.userBy(ctx, "id = ?", userID); err != nil {
		return nil, err
	}
	if f.Status, err = s.statusBy(ctx, "id = ?", statusID); err != nil {
		return nil, err
	}
	return f, nil
}

// favoriteByPair checks the (actor, object) natural key from a wire
// payload: both sides must already exist locally for the pair to match.
func (s *Store) favoriteByPair(ctx context.Context, actor, object string) (*model.Favorite, error) {
	var userID, statusID int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE remote_id = ?", actor).Scan(&userID); err != nil {
		return nil, notFound(model.TypeFavorite, actor)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT id FROM statuses WHERE remote_id = ?", object).Scan(&statusID); err != nil {
		return nil, notFound(model.TypeFavorite, object)
	}
	return s.favoriteBy(ctx, "user_id = ? AND status_id = ?", userID, statusID)
}

func (s *Store) followBy(ctx context.Context, where string, args ...any) (*model.Follow, error) {
	f := &model.Follow{}
	var userID, objectID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, remote_id, user_id, object_id FROM follows WHERE `+where, args...).Scan(
		&f.ID, &f.RemoteID, &userID, &objectID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(model.TypeFollow, fmt.Sprintf("%v", args[0]))
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "followBy", "follow query")
	}

	if f.User, err = s.userBy(ctx, "id = ?", userID); err != nil {
		return nil, err
	}
	if f.Object, err = s.userBy(ctx, "id = ?", objectID); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) followByPair(ctx context.Context, actor, object string) (*model.Follow, error) {
	var userID, objectID int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE remote_id = ?", actor).Scan(&userID); err != nil {
		return nil, notFound(model.TypeFollow, actor)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE remote_id = ?", object).Scan(&objectID); err != nil {
		return nil, notFound(model.TypeFollow, object)
	}
	return s.followBy(ctx, "user_id = ? AND object_id = ?", userID, objectID)
}

func (s *Store) attachmentBy(ctx context.Context, where string, args ...any) (*model.Attachment, error) {
	a := &model.Attachment{}
	var statusID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, remote_id, status_id, image_url, image_name
		FROM attachments WHERE `+where+` ORDER BY id LIMIT 1`, args...).Scan(
		&a.ID, &a.RemoteID, &statusID, &a.Image.URL, &a.Image.Name)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(model.TypeAttachment, fmt.Sprintf("%v", args[0]))
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "attachmentBy", "attachment query")
	}
	if statusID.Valid {
		a.StatusKey = statusID.Int64
	}
	a.Image.Type = "Image"
	return a, nil
}
