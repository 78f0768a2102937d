// Package deferred provides the asynchronous dispatch substrate for
// reverse-relation resolution. A reverse relation cannot be set before
// the referenced entity has a durable identity, so the mapping engine
// publishes a Request per item to a JetStream work queue instead of
// resolving inline; a durable consumer replays each request against the
// engine's handler with at-least-once delivery. Handlers must therefore
// be idempotent: the request carries enough information to be safely
// re-run after partial completion.
package deferred

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/c360/fedwire/errors"
)

// Request is one deferred reverse-relation resolution unit of work.
// Target and Origin are entity type names from the closed enumeration;
// Item is either a bare identifier string or an inline wire payload.
type Request struct {
	ID             string          `json:"id"`
	Target         string          `json:"target_type"`
	Origin         string          `json:"origin_type"`
	Field          string          `json:"field"`
	OriginRemoteID string          `json:"origin_remote_id"`
	Item           json.RawMessage `json:"item"`
}

// NewRequest builds a dispatchable request, serializing the item.
func NewRequest(target, origin, field, originRemoteID string, item any) (Request, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return Request{}, errors.WrapInvalid(err, "deferred", "NewRequest", "item encoding")
	}
	return Request{
		ID:             uuid.NewString(),
		Target:         target,
		Origin:         origin,
		Field:          field,
		OriginRemoteID: originRemoteID,
		Item:           data,
	}, nil
}

// Validate checks the request for completeness before dispatch.
func (r Request) Validate() error {
	if r.Target == "" || r.Origin == "" || r.Field == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: target, origin, and field are required", errors.ErrInvalidData),
			"Request", "Validate", "request validation")
	}
	if r.OriginRemoteID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: origin remote id is required", errors.ErrInvalidData),
			"Request", "Validate", "origin validation")
	}
	if len(r.Item) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: item payload is required", errors.ErrInvalidData),
			"Request", "Validate", "item validation")
	}
	return nil
}

// ItemRemoteID reports whether the item is a bare identifier string,
// and returns it when so.
func (r Request) ItemRemoteID() (string, bool) {
	var remoteID string
	if err := json.Unmarshal(r.Item, &remoteID); err != nil {
		return "", false
	}
	return remoteID, true
}

// ItemPayload decodes the item as an inline wire payload.
func (r Request) ItemPayload() (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(r.Item, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "Request", "ItemPayload", "item decoding")
	}
	return raw, nil
}

// Handler completes one deferred reverse-relation request. The mapping
// engine provides the implementation.
type Handler interface {
	SetRelatedField(ctx context.Context, req Request) error
}
