package mapping

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/fedwire/activity"
	"github.com/c360/fedwire/errors"
	"github.com/c360/fedwire/model"
)

// ResolveOpts tunes a single resolution.
type ResolveOpts struct {
	// Refresh forces a remote fetch even when the identifier is
	// already known, updating the stored entity in place.
	Refresh bool

	// Persist controls whether a newly constructed entity is saved.
	Persist bool
}

// Resolve looks up an entity by its canonical identifier, fetching and
// persisting it when it is not yet known. It satisfies model.Resolver.
func (eng *Engine) Resolve(ctx context.Context, typ model.Type, remoteID string) (model.Entity, error) {
	return eng.ResolveWith(ctx, typ, remoteID, ResolveOpts{Persist: true})
}

// ResolveWith resolves remoteID with explicit options. A cache hit
// returns the stored entity without touching the network unless
// Refresh is set. A fetched document is checked against the
// deduplication keys a second time before anything new is created, so
// identifier aliases collapse onto the stored entity.
func (eng *Engine) ResolveWith(ctx context.Context, typ model.Type, remoteID string, opts ResolveOpts) (model.Entity, error) {
	if err := activity.ValidateRemoteID(remoteID); err != nil {
		return nil, errors.WrapInvalid(err, "Engine", "Resolve", "identifier validation")
	}

	existing, err := eng.store.FindByRemoteID(ctx, typ, remoteID)
	if err == nil && !opts.Refresh {
		eng.metrics.ResolveTotal.WithLabelValues(string(typ), "hit").Inc()
		return existing, nil
	}
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		existing = nil
	}

	start := time.Now()
	raw, ferr := eng.connector.Fetch(ctx, remoteID)
	eng.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if ferr != nil {
		eng.metrics.ResolveTotal.WithLabelValues(string(typ), "error").Inc()
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %s %q: %w", errors.ErrResolution, typ, remoteID, ferr),
			"Engine", "Resolve", "remote fetch")
	}

	// The document may carry a different canonical identifier than the
	// one we were asked for; check the deduplication keys again before
	// creating anything.
	if existing == nil {
		found, derr := eng.store.FindExisting(ctx, typ, raw)
		switch {
		case derr == nil:
			if !opts.Refresh {
				eng.metrics.ResolveTotal.WithLabelValues(string(typ), "hit").Inc()
				return found, nil
			}
			existing = found
		case errors.Is(derr, errors.ErrNotFound):
		default:
			return nil, derr
		}
	}

	obj, err := activity.Construct(raw)
	if err != nil {
		eng.metrics.ResolveTotal.WithLabelValues(string(typ), "error").Inc()
		return nil, err
	}

	e, err := eng.ToEntity(ctx, obj, typ, existing, opts.Persist)
	if err != nil {
		if errors.Is(err, errors.ErrDuplicateKey) {
			// Lost an insert race; the winner is already durable,
			// possibly under the document's canonical identifier
			// rather than the one we were asked for.
			return eng.store.FindExisting(ctx, typ, raw)
		}
		eng.metrics.ResolveTotal.WithLabelValues(string(typ), "error").Inc()
		return nil, err
	}

	eng.metrics.ResolveTotal.WithLabelValues(string(typ), "fetched").Inc()
	return e, nil
}

// ResolveMany resolves a batch of identifiers concurrently, bounded by
// the configured fetch parallelism. The first failure cancels the rest.
func (eng *Engine) ResolveMany(ctx context.Context, typ model.Type, remoteIDs []string) ([]model.Entity, error) {
	out := make([]model.Entity, len(remoteIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(eng.fetchParallelism)
	for i, id := range remoteIDs {
		g.Go(func() error {
			e, err := eng.Resolve(gctx, typ, id)
			if err != nil {
				return err
			}
			out[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
