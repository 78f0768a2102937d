package mapping

import (
	"context"
	"fmt"

	"github.com/c360/fedwire/activity"
	"github.com/c360/fedwire/deferred"
	"github.com/c360/fedwire/errors"
	"github.com/c360/fedwire/model"
	"github.com/c360/fedwire/storage"
)

// SetRelatedField completes one deferred reverse relation: it looks up
// the origin entity that must already be durable, resolves or
// constructs the target item, binds the relation, and saves the target. The
// operation is idempotent so at-least-once delivery is safe. A missing
// origin is unrecoverable and reported as fatal. It satisfies
// deferred.Handler.
func (eng *Engine) SetRelatedField(ctx context.Context, req deferred.Request) error {
	if err := req.Validate(); err != nil {
		eng.metrics.DeferredHandled.WithLabelValues("invalid").Inc()
		return err
	}
	targetType, err := model.ParseType(req.Target)
	if err != nil {
		eng.metrics.DeferredHandled.WithLabelValues("invalid").Inc()
		return err
	}
	originType, err := model.ParseType(req.Origin)
	if err != nil {
		eng.metrics.DeferredHandled.WithLabelValues("invalid").Inc()
		return err
	}
	binding, err := model.BindingFor(targetType)
	if err != nil {
		return err
	}
	setter, ok := binding.Relations[req.Field]
	if !ok {
		eng.metrics.DeferredHandled.WithLabelValues("invalid").Inc()
		return errors.WrapInvalid(
			fmt.Errorf("%w: entity %q has no relation %q", errors.ErrInvalidData, targetType, req.Field),
			"Engine", "SetRelatedField", "relation lookup")
	}

	origin, err := eng.store.FindByRemoteID(ctx, originType, req.OriginRemoteID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			eng.metrics.DeferredHandled.WithLabelValues("dangling").Inc()
			return errors.WrapFatal(
				fmt.Errorf("%w: %s %q", errors.ErrDanglingOrigin, originType, req.OriginRemoteID),
				"Engine", "SetRelatedField", "origin lookup")
		}
		return err
	}

	var item model.Entity
	if remoteID, inline := req.ItemRemoteID(); inline {
		item, err = eng.ResolveWith(ctx, targetType, remoteID, ResolveOpts{})
		if err != nil {
			eng.metrics.DeferredHandled.WithLabelValues("error").Inc()
			return err
		}
	} else {
		raw, perr := req.ItemPayload()
		if perr != nil {
			eng.metrics.DeferredHandled.WithLabelValues("invalid").Inc()
			return perr
		}
		// Dedup is scoped to the origin so an identical payload already
		// bound to another entity is not rebound here.
		found, ferr := eng.store.FindRelated(ctx, targetType, raw, origin)
		switch {
		case ferr == nil:
			item = found
		case errors.Is(ferr, errors.ErrNotFound):
			obj, cerr := activity.Construct(raw)
			if cerr != nil {
				eng.metrics.DeferredHandled.WithLabelValues("invalid").Inc()
				return cerr
			}
			item, err = eng.ToEntity(ctx, obj, targetType, nil, false)
			if err != nil {
				eng.metrics.DeferredHandled.WithLabelValues("error").Inc()
				return err
			}
		default:
			return ferr
		}
	}

	if err := setter(item, origin); err != nil {
		eng.metrics.DeferredHandled.WithLabelValues("invalid").Inc()
		return errors.WrapInvalid(err, "Engine", "SetRelatedField", "relation "+req.Field)
	}

	err = eng.store.WithTx(ctx, func(tx *storage.Tx) error {
		return tx.Save(ctx, item)
	})
	if err != nil {
		if errors.Is(err, errors.ErrDuplicateKey) {
			// Redelivery after a completed save; the relation holds.
			eng.metrics.DeferredHandled.WithLabelValues("ok").Inc()
			return nil
		}
		eng.metrics.DeferredHandled.WithLabelValues("error").Inc()
		return err
	}

	eng.logger.Debug("deferred relation completed",
		"target", req.Target, "origin", req.Origin, "field", req.Field)
	eng.metrics.DeferredHandled.WithLabelValues("ok").Inc()
	return nil
}
