// Package storage provides the durable entity store backed by SQLite.
// Natural-key uniqueness is enforced by the schema's UNIQUE constraints,
// which are the only concurrency guard against duplicate creation:
// concurrent resolutions of the same external identifier race to insert,
// the loser receives ErrDuplicateKey, and the caller re-reads the
// winner. Multi-step writes run inside a scoped transaction guard with
// guaranteed rollback on any failing path.
package storage
