package model

import (
	"context"
	"fmt"

	"github.com/c360/fedwire/errors"
)

// Type identifies one persisted entity type. The set of types is a
// closed enumeration; free-form type names are rejected at the edges.
type Type string

// The entity types known to the conversion registry.
const (
	TypeUser       Type = "user"
	TypeStatus     Type = "status"
	TypeFavorite   Type = "favorite"
	TypeFollow     Type = "follow"
	TypeAttachment Type = "attachment"
)

// Types returns all members of the closed entity type enumeration.
func Types() []Type {
	return []Type{TypeUser, TypeStatus, TypeFavorite, TypeFollow, TypeAttachment}
}

// ParseType validates a type name against the closed enumeration.
func ParseType(name string) (Type, error) {
	for _, t := range Types() {
		if string(t) == name {
			return t, nil
		}
	}
	return "", errors.WrapInvalid(
		fmt.Errorf("%w: unknown entity type %q", errors.ErrInvalidData, name),
		"model", "ParseType", "type validation")
}

// Valid reports whether the type is a member of the enumeration.
func (t Type) Valid() bool {
	_, err := ParseType(string(t))
	return err == nil
}

// Entity is a persisted domain object. Every entity carries a local
// identity assigned by the store and a durable external identifier used
// as the federation-wide unique key.
type Entity interface {
	// EntityType returns the closed-enumeration type identifier.
	EntityType() Type

	// Key returns the local identity, zero until the entity is durable.
	Key() int64

	// SetKey records the local identity assigned by the store.
	SetKey(int64)

	// GetRemoteID returns the durable external identifier.
	GetRemoteID() string

	// SetRemoteID records the durable external identifier.
	SetRemoteID(string)
}

// Deletable is implemented by entities whose deletion is represented as
// a status flag and timestamp rather than row removal.
type Deletable interface {
	IsDeleted() bool
	DeletedTime() (string, bool)
}

// Resolver resolves an external identifier to a local entity, fetching
// and converting on cache miss. It is consumed by field converters that
// need to turn actor or object references into entities; the mapping
// engine provides the implementation.
type Resolver interface {
	Resolve(ctx context.Context, typ Type, remoteID string) (Entity, error)
}

// Base carries the identity fields shared by all entities.
type Base struct {
	ID       int64
	RemoteID string
	Local    bool
}

// Key returns the local identity, zero until persisted.
func (b *Base) Key() int64 { return b.ID }

// SetKey records the local identity assigned by the store.
func (b *Base) SetKey(id int64) { b.ID = id }

// GetRemoteID returns the durable external identifier.
func (b *Base) GetRemoteID() string { return b.RemoteID }

// SetRemoteID records the durable external identifier.
func (b *Base) SetRemoteID(remoteID string) { b.RemoteID = remoteID }

// PrivacyLevel controls computed recipient addressing for outbound
// activities.
type PrivacyLevel string

// The four privacy levels.
const (
	PrivacyPublic    PrivacyLevel = "public"
	PrivacyUnlisted  PrivacyLevel = "unlisted"
	PrivacyFollowers PrivacyLevel = "followers"
	PrivacyDirect    PrivacyLevel = "direct"
)

// Valid reports whether the privacy level is one of the four policies.
func (p PrivacyLevel) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyUnlisted, PrivacyFollowers, PrivacyDirect:
		return true
	}
	return false
}
