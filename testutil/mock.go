package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/c360/fedwire/deferred"
	"github.com/c360/fedwire/errors"
	"github.com/c360/fedwire/storage"
)

// FakeConnector serves documents from a map keyed by identifier and
// records every fetch it sees.
type FakeConnector struct {
	mu      sync.Mutex
	docs    map[string]map[string]any
	fetched []string

	// Fail, when set, makes every fetch return this error.
	Fail error
}

// NewFakeConnector builds a connector with no documents.
func NewFakeConnector() *FakeConnector {
	return &FakeConnector{docs: map[string]map[string]any{}}
}

// Add registers a document under its identifier.
func (c *FakeConnector) Add(remoteID string, doc map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[remoteID] = doc
}

// Fetch returns the stored document or a transient resolution failure.
func (c *FakeConnector) Fetch(_ context.Context, remoteID string) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetched = append(c.fetched, remoteID)
	if c.Fail != nil {
		return nil, c.Fail
	}
	doc, ok := c.docs[remoteID]
	if !ok {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: no document for %q", errors.ErrNoConnection, remoteID),
			"FakeConnector", "Fetch", "lookup")
	}
	// Shallow copy so callers cannot mutate the fixture.
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

// Fetched returns the identifiers fetched so far, in order.
func (c *FakeConnector) Fetched() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.fetched...)
}

// RecordingDispatcher collects dispatched requests instead of
// publishing them. Drain hands them to a handler the way the broker
// consumer would.
type RecordingDispatcher struct {
	mu       sync.Mutex
	requests []deferred.Request
}

// NewRecordingDispatcher builds an empty dispatcher.
func NewRecordingDispatcher() *RecordingDispatcher {
	return &RecordingDispatcher{}
}

// Dispatch appends the request to the record.
func (d *RecordingDispatcher) Dispatch(_ context.Context, req deferred.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	return nil
}

// Requests returns a copy of everything dispatched so far.
func (d *RecordingDispatcher) Requests() []deferred.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]deferred.Request(nil), d.requests...)
}

// Drain replays every recorded request through the handler and clears
// the record. It returns the first handler error.
func (d *RecordingDispatcher) Drain(ctx context.Context, h deferred.Handler) error {
	d.mu.Lock()
	pending := d.requests
	d.requests = nil
	d.mu.Unlock()
	for _, req := range pending {
		if err := h.SetRelatedField(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// NewStore opens a throwaway SQLite store under t.TempDir.
func NewStore(t *testing.T, domain string) *storage.Store {
	t.Helper()
	store, err := storage.Open(t.TempDir()+"/test.db", storage.Options{Domain: domain})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
