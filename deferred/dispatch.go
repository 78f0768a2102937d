package deferred

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/fedwire/errors"
)

// Default JetStream wiring for the deferred work queue.
const (
	DefaultStream   = "FEDWIRE_DEFERRED"
	DefaultSubject  = "fedwire.deferred.related"
	DefaultConsumer = "related-field-worker"
)

// StreamConfig names the JetStream stream, subject, and durable
// consumer carrying deferred requests.
type StreamConfig struct {
	Stream   string
	Subject  string
	Consumer string

	// MaxDeliver bounds redelivery of a request whose handler keeps
	// failing transiently. Zero means the default of 5.
	MaxDeliver int
}

// withDefaults fills unset fields.
func (c StreamConfig) withDefaults() StreamConfig {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.Consumer == "" {
		c.Consumer = DefaultConsumer
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = 5
	}
	return c
}

// EnsureStream creates or updates the work-queue stream. Idempotent.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg StreamConfig) (jetstream.Stream, error) {
	cfg = cfg.withDefaults()
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "deferred", "EnsureStream", "stream creation")
	}
	return stream, nil
}

// Dispatcher publishes deferred requests to the work queue. JetStream
// persistence gives the at-least-once delivery the handler contract
// assumes.
type Dispatcher struct {
	js      jetstream.JetStream
	subject string
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher publishing on the configured subject.
func NewDispatcher(js jetstream.JetStream, cfg StreamConfig, logger *slog.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{js: js, subject: cfg.Subject, logger: logger}
}

// Dispatch enqueues one deferred reverse-relation request.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return errors.WrapInvalid(err, "Dispatcher", "Dispatch", "request encoding")
	}

	if _, err := d.js.Publish(ctx, d.subject, data); err != nil {
		return errors.WrapTransient(err, "Dispatcher", "Dispatch", "request publish")
	}

	d.logger.Debug("dispatched deferred request",
		"request_id", req.ID,
		"target", req.Target,
		"origin", req.OriginRemoteID,
		"field", req.Field)
	return nil
}

// Consume attaches a durable consumer to the work queue and runs each
// request through the handler. Transient handler failures are negatively
// acknowledged for redelivery; invalid and fatal failures terminate the
// message, since replaying them cannot succeed.
func Consume(ctx context.Context, js jetstream.JetStream, cfg StreamConfig, h Handler, logger *slog.Logger) (jetstream.ConsumeContext, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		Durable:       cfg.Consumer,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    cfg.MaxDeliver,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "deferred", "Consume", "consumer creation")
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var req Request
		if err := json.Unmarshal(msg.Data(), &req); err != nil {
			logger.Error("dropping undecodable deferred request", "error", err)
			_ = msg.Term()
			return
		}

		switch err := h.SetRelatedField(ctx, req); {
		case err == nil:
			_ = msg.Ack()
		case errors.IsTransient(err):
			logger.Warn("deferred request failed, will be redelivered",
				"request_id", req.ID, "error", err)
			_ = msg.Nak()
		default:
			logger.Error("deferred request failed fatally",
				"request_id", req.ID, "error", err)
			_ = msg.Term()
		}
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "deferred", "Consume", "consumer start")
	}
	return consumeCtx, nil
}
