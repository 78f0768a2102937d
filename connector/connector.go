// Package connector fetches remote federation documents over HTTP.
// Requests are rate limited so a burst of resolutions cannot hammer a
// single remote instance.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/fedwire/errors"
)

const (
	// ContentType is the media type federation documents are served as.
	ContentType = "application/activity+json"

	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "fedwire/1.0"
	maxBodyBytes     = 1 << 20
)

// Options tunes a Connector.
type Options struct {
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 5
	}
	if o.Burst <= 0 {
		o.Burst = 10
	}
	return o
}

// Connector retrieves remote documents with a shared rate limit.
type Connector struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// New builds a Connector from options, applying defaults for any
// zero-valued field.
func New(opts Options) *Connector {
	opts = opts.withDefaults()
	return &Connector{
		client:    &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		userAgent: opts.UserAgent,
	}
}

// Fetch retrieves the document at remoteID and decodes it into a map.
// Network and server failures are transient; a body that is not a JSON
// object is invalid.
func (c *Connector) Fetch(ctx context.Context, remoteID string) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.WrapTransient(err, "Connector", "Fetch", "rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteID, nil)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q: %w", errors.ErrInvalidRemoteID, remoteID, err),
			"Connector", "Fetch", "request build")
	}
	req.Header.Set("Accept", ContentType)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: GET %q: %w", errors.ErrNoConnection, remoteID, err),
			"Connector", "Fetch", "http request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, errors.Wrap(
			fmt.Errorf("%w: GET %q returned %d", errors.ErrNotFound, remoteID, resp.StatusCode),
			"Connector", "Fetch", "http status")
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.WrapTransient(
			fmt.Errorf("GET %q returned %d", remoteID, resp.StatusCode),
			"Connector", "Fetch", "http status")
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: GET %q returned %d", errors.ErrInvalidData, remoteID, resp.StatusCode),
			"Connector", "Fetch", "http status")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.WrapTransient(err, "Connector", "Fetch", "body read")
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: GET %q: %w", errors.ErrInvalidData, remoteID, err),
			"Connector", "Fetch", "json decode")
	}
	return doc, nil
}
