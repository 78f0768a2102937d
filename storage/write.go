package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/c360/fedwire/errors"
	"github.com/c360/fedwire/model"
)

// localPathFor maps entity types onto the path segment used when
// deriving remote identifiers for locally created entities.
func localPathFor(typ model.Type) string {
	switch typ {
	case model.TypeUser:
		return "user"
	case model.TypeStatus:
		return "status"
	case model.TypeFavorite:
		return "favorite"
	case model.TypeFollow:
		return "follow"
	case model.TypeAttachment:
		return "attachment"
	default:
		return string(typ)
	}
}

// Save persists the entity's scalar row, inserting when it has no local
// identity yet and updating otherwise. A natural-key rejection from the
// schema surfaces as ErrDuplicateKey. Locally created entities with no
// remote identifier are assigned one derived from the instance domain
// and the new local identity.
func (t *Tx) Save(ctx context.Context, e model.Entity) error {
	var err error
	switch v := e.(type) {
	case *model.User:
		err = t.saveUser(ctx, v)
	case *model.Status:
		err = t.saveStatus(ctx, v)
	case *model.Favorite:
		err = t.saveFavorite(ctx, v)
	case *model.Follow:
		err = t.saveFollow(ctx, v)
	case *model.Attachment:
		err = t.saveAttachment(ctx, v)
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unsupported entity type %q", errors.ErrInvalidData, e.EntityType()),
			"Tx", "Save", "entity dispatch")
	}

	if err != nil && isUniqueViolation(err) {
		return errors.Wrap(errors.ErrDuplicateKey, "Tx", "Save", string(e.EntityType())+" insert")
	}
	return err
}

// ensureRemoteID derives and stores the durable identifier for a local
// entity saved without one. Runs after the insert so the local identity
// is known.
func (t *Tx) ensureRemoteID(ctx context.Context, e model.Entity, table string) error {
	if e.GetRemoteID() != "" {
		return nil
	}
	remoteID := fmt.Sprintf("https://%s/%s/%d", t.domain, localPathFor(e.EntityType()), e.Key())
	if _, err := t.tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET remote_id = ? WHERE id = ?", table), remoteID, e.Key()); err != nil {
		return errors.WrapTransient(err, "Tx", "ensureRemoteID", "remote id assignment")
	}
	e.SetRemoteID(remoteID)
	return nil
}

func (t *Tx) saveUser(ctx context.Context, u *model.User) error {
	if u.ID == 0 {
		res, err := t.tx.ExecContext(ctx, `
			INSERT INTO users (remote_id, username, display_name, summary, inbox, outbox,
				followers_address, avatar_url, avatar_name, discoverable, local, published)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.RemoteID, u.Username, u.DisplayName, u.Summary, u.Inbox, u.Outbox,
			u.FollowersAddress, u.Avatar.URL, u.Avatar.Name, u.Discoverable, u.Local,
			timeToDB(u.Published))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.WrapTransient(err, "Tx", "saveUser", "identity readback")
		}
		u.SetKey(id)
		return t.ensureRemoteID(ctx, u, "users")
	}

	_, err := t.tx.ExecContext(ctx, `
		UPDATE users SET remote_id = ?, username = ?, display_name = ?, summary = ?,
			inbox = ?, outbox = ?, followers_address = ?, avatar_url = ?, avatar_name = ?,
			discoverable = ?, local = ?, published = ?
		WHERE id = ?`,
		u.RemoteID, u.Username, u.DisplayName, u.Summary, u.Inbox, u.Outbox,
		u.FollowersAddress, u.Avatar.URL, u.Avatar.Name, u.Discoverable, u.Local,
		timeToDB(u.Published), u.ID)
	return err
}

func (t *Tx) saveStatus(ctx context.Context, s *model.Status) error {
	if s.User == nil || s.User.Key() == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: status requires a durable user", errors.ErrInvalidData),
			"Tx", "saveStatus", "relation validation")
	}
	if !s.Privacy.Valid() {
		s.Privacy = model.PrivacyPublic
	}

	var deletedAt sql.NullString
	if s.Deleted {
		deletedAt = sql.NullString{String: timeToDB(s.DeletedAt), Valid: true}
	}

	if s.ID == 0 {
		res, err := t.tx.ExecContext(ctx, `
			INSERT INTO statuses (remote_id, user_id, content, in_reply_to, sensitive,
				privacy, published, local, deleted, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.RemoteID, s.User.Key(), s.Content, s.InReplyTo, s.Sensitive,
			string(s.Privacy), timeToDB(s.Published), s.Local, s.Deleted, deletedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.WrapTransient(err, "Tx", "saveStatus", "identity readback")
		}
		s.SetKey(id)
		return t.ensureRemoteID(ctx, s, "statuses")
	}

	_, err := t.tx.ExecContext(ctx, `
		UPDATE statuses SET remote_id = ?, user_id = ?, content = ?, in_reply_to = ?,
			sensitive = ?, privacy = ?, published = ?, local = ?, deleted = ?, deleted_at = ?
		WHERE id = ?`,
		s.RemoteID, s.User.Key(), s.Content, s.InReplyTo, s.Sensitive,
		string(s.Privacy), timeToDB(s.Published), s.Local, s.Deleted, deletedAt, s.ID)
	return err
}

func (t *Tx) saveFavorite(ctx context.Context, f *model.Favorite) error {
	if f.User == nil || f.User.Key() == 0 || f.Status == nil || f.Status.Key() == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: favorite requires a durable user and status", errors.ErrInvalidData),
			"Tx", "saveFavorite", "relation validation")
	}

	if f.ID == 0 {
		res, err := t.tx.ExecContext(ctx, `
			INSERT INTO favorites (remote_id, user_id, status_id, published)
			VALUES (?, ?, ?, ?)`,
			f.RemoteID, f.User.Key(), f.Status.Key(), timeToDB(f.Published))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.WrapTransient(err, "Tx", "saveFavorite", "identity readback")
		}
		f.SetKey(id)
		return t.ensureRemoteID(ctx, f, "favorites")
	}

	_, err := t.tx.ExecContext(ctx, `
		UPDATE favorites SET remote_id = ?, user_id = ?, status_id = ?, published = ?
		WHERE id = ?`,
		f.RemoteID, f.User.Key(), f.Status.Key(), timeToDB(f.Published), f.ID)
	return err
}

func (t *Tx) saveFollow(ctx context.Context, f *model.Follow) error {
	if f.User == nil || f.User.Key() == 0 || f.Object == nil || f.Object.Key() == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: follow requires two durable users", errors.ErrInvalidData),
			"Tx", "saveFollow", "relation validation")
	}

	if f.ID == 0 {
		res, err := t.tx.ExecContext(ctx, `
			INSERT INTO follows (remote_id, user_id, object_id) VALUES (?, ?, ?)`,
			f.RemoteID, f.User.Key(), f.Object.Key())
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.WrapTransient(err, "Tx", "saveFollow", "identity readback")
		}
		f.SetKey(id)
		return t.ensureRemoteID(ctx, f, "follows")
	}

	_, err := t.tx.ExecContext(ctx, `
		UPDATE follows SET remote_id = ?, user_id = ?, object_id = ? WHERE id = ?`,
		f.RemoteID, f.User.Key(), f.Object.Key(), f.ID)
	return err
}

func (t *Tx) saveAttachment(ctx context.Context, a *model.Attachment) error {
	statusKey := a.StatusKey
	if a.Status != nil {
		statusKey = a.Status.Key()
	}
	var statusID sql.NullInt64
	if statusKey != 0 {
		statusID = sql.NullInt64{Int64: statusKey, Valid: true}
	}

	if a.ID == 0 {
		res, err := t.tx.ExecContext(ctx, `
			INSERT INTO attachments (remote_id, status_id, image_url, image_name)
			VALUES (?, ?, ?, ?)`,
			a.RemoteID, statusID, a.Image.URL, a.Image.Name)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.WrapTransient(err, "Tx", "saveAttachment", "identity readback")
		}
		a.SetKey(id)
		return nil
	}

	_, err := t.tx.ExecContext(ctx, `
		UPDATE attachments SET remote_id = ?, status_id = ?, image_url = ?, image_name = ?
		WHERE id = ?`,
		a.RemoteID, statusID, a.Image.URL, a.Image.Name, a.ID)
	return err
}

// SetAssociation replaces a multi-valued association. The owning entity
// must already be durable.
func (t *Tx) SetAssociation(ctx context.Context, e model.Entity, field string, value any) error {
	if e.Key() == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: associations require a durable entity", errors.ErrInvalidData),
			"Tx", "SetAssociation", "identity validation")
	}

	status, ok := e.(*model.Status)
	if ok && field == "mention_users" {
		users, ok := value.([]*model.User)
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("%w: mention_users expects users", errors.ErrInvalidData),
				"Tx", "SetAssociation", "value validation")
		}
		if _, err := t.tx.ExecContext(ctx,
			"DELETE FROM status_mentions WHERE status_id = ?", status.Key()); err != nil {
			return errors.WrapTransient(err, "Tx", "SetAssociation", "association reset")
		}
		for _, u := range users {
			if u.Key() == 0 {
				return errors.WrapInvalid(
					fmt.Errorf("%w: mentioned user %q is not durable", errors.ErrInvalidData, u.RemoteID),
					"Tx", "SetAssociation", "member validation")
			}
			if _, err := t.tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO status_mentions (status_id, user_id) VALUES (?, ?)",
				status.Key(), u.Key()); err != nil {
				return errors.WrapTransient(err, "Tx", "SetAssociation", "association insert")
			}
		}
		return nil
	}

	return errors.WrapInvalid(
		fmt.Errorf("%w: unknown association %q on %q", errors.ErrInvalidData, field, e.EntityType()),
		"Tx", "SetAssociation", "association dispatch")
}
