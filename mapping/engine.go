package mapping

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/fedwire/activity"
	"github.com/c360/fedwire/deferred"
	"github.com/c360/fedwire/errors"
	"github.com/c360/fedwire/metric"
	"github.com/c360/fedwire/model"
	"github.com/c360/fedwire/storage"
)

// Connector fetches a remote document by its canonical identifier.
type Connector interface {
	Fetch(ctx context.Context, remoteID string) (map[string]any, error)
}

// Dispatcher hands a deferred relation request to a delivery channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, req deferred.Request) error
}

// Config carries the collaborators an Engine needs.
type Config struct {
	Store      *storage.Store
	Connector  Connector
	Dispatcher Dispatcher
	Metrics    *metric.Metrics
	Logger     *slog.Logger

	// FetchParallelism bounds concurrent remote fetches in ResolveMany.
	FetchParallelism int
}

// Engine converts between wire objects and entities. It satisfies
// model.Resolver so field converters can resolve nested references,
// and deferred.Handler so the consumer can replay reverse relations.
type Engine struct {
	store            *storage.Store
	connector        Connector
	dispatcher       Dispatcher
	metrics          *metric.Metrics
	logger           *slog.Logger
	fetchParallelism int
}

// New validates the configuration and builds an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: store", errors.ErrMissingConfig), "Engine", "New", "config validation")
	}
	if cfg.Connector == nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: connector", errors.ErrMissingConfig), "Engine", "New", "config validation")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: dispatcher", errors.ErrMissingConfig), "Engine", "New", "config validation")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metric.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FetchParallelism <= 0 {
		cfg.FetchParallelism = 4
	}
	return &Engine{
		store:            cfg.Store,
		connector:        cfg.Connector,
		dispatcher:       cfg.Dispatcher,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
		fetchParallelism: cfg.FetchParallelism,
	}, nil
}

// stagedField holds a converted value whose assignment is postponed
// until the persistence phase.
type stagedField struct {
	desc  *model.FieldDescriptor
	value any
}

// ToEntity converts obj into an entity of the given type. When existing
// is nil the engine first looks for a match through the deduplication
// keys; a miss creates a fresh instance. Scalar fields are assigned
// immediately, attached resources after the conversion loop, and
// many-to-many associations inside the save transaction. With persist
// false the populated instance is returned before anything is written.
// Reverse collections are dispatched as deferred requests only after
// the transaction commits.
func (eng *Engine) ToEntity(ctx context.Context, obj activity.Object, typ model.Type, existing model.Entity, persist bool) (model.Entity, error) {
	binding, err := model.BindingFor(typ)
	if err != nil {
		return nil, err
	}
	if obj.ActivityType() != binding.Serializer {
		eng.metrics.MappingTotal.WithLabelValues(string(typ), "mismatch").Inc()
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: activity %q cannot map to entity %q (expects %q)",
				errors.ErrTypeMismatch, obj.ActivityType(), typ, binding.Serializer),
			"Engine", "ToEntity", "serializer validation")
	}

	e := existing
	if e == nil {
		raw, serr := activity.Serialize(obj)
		if serr != nil {
			return nil, serr
		}
		found, ferr := eng.store.FindExisting(ctx, typ, raw)
		switch {
		case ferr == nil:
			e = found
		case errors.Is(ferr, errors.ErrNotFound):
			e = binding.New()
		default:
			return nil, ferr
		}
	}

	var resources, associations []stagedField
	for i := range binding.Fields {
		d := &binding.Fields[i]
		if d.FromWire == nil {
			continue
		}
		value, present, cerr := d.FromWire(ctx, eng, obj)
		if cerr != nil {
			eng.metrics.MappingTotal.WithLabelValues(string(typ), "error").Inc()
			return nil, cerr
		}
		if !present {
			continue
		}
		switch d.Kind {
		case model.KindScalar:
			if aerr := d.Assign(e, value); aerr != nil {
				return nil, errors.WrapInvalid(aerr, "Engine", "ToEntity", "field "+d.Name)
			}
		case model.KindResource:
			resources = append(resources, stagedField{desc: d, value: value})
		case model.KindMany:
			associations = append(associations, stagedField{desc: d, value: value})
		}
	}

	if !persist {
		return e, nil
	}

	for _, st := range resources {
		if aerr := st.desc.Assign(e, st.value); aerr != nil {
			return nil, errors.WrapInvalid(aerr, "Engine", "ToEntity", "field "+st.desc.Name)
		}
	}

	err = eng.store.WithTx(ctx, func(tx *storage.Tx) error {
		if serr := tx.Save(ctx, e); serr != nil {
			return serr
		}
		for _, st := range associations {
			if aerr := st.desc.Assign(e, st.value); aerr != nil {
				return errors.WrapInvalid(aerr, "Engine", "ToEntity", "field "+st.desc.Name)
			}
			if aerr := tx.SetAssociation(ctx, e, st.desc.Name, st.value); aerr != nil {
				return aerr
			}
		}
		return nil
	})
	if err != nil {
		eng.metrics.MappingTotal.WithLabelValues(string(typ), "error").Inc()
		return nil, err
	}

	for _, rf := range binding.Reverse {
		if rf.Items == nil {
			continue
		}
		for _, item := range rf.Items(obj) {
			req, rerr := deferred.NewRequest(string(rf.Target), string(typ), rf.ModelField, e.GetRemoteID(), item)
			if rerr != nil {
				return nil, rerr
			}
			if derr := eng.dispatcher.Dispatch(ctx, req); derr != nil {
				return nil, derr
			}
			eng.metrics.DeferredDispatched.Inc()
		}
	}

	eng.metrics.MappingTotal.WithLabelValues(string(typ), "ok").Inc()
	return e, nil
}
