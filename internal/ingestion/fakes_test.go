package ingestion

import (
	"context"
	"errors"
	"sync"

	"surveyflow/internal/broker"
	"surveyflow/internal/enrichment"
	"surveyflow/internal/reference"
	"surveyflow/internal/store"
	"surveyflow/pkg/models"
)

type delivery struct {
	msg models.RawMessage
	err error
}

// fakeConnection replays its deliveries, then blocks until ctx is done.
type fakeConnection struct {
	mu         sync.Mutex
	deliveries []delivery
	closed     bool
}

func (c *fakeConnection) NextMessage(ctx context.Context) (models.RawMessage, error) {
	c.mu.Lock()
	if len(c.deliveries) > 0 {
		d := c.deliveries[0]
		c.deliveries = c.deliveries[1:]
		c.mu.Unlock()
		return d.msg, d.err
	}
	c.mu.Unlock()

	<-ctx.Done()
	return models.RawMessage{}, ctx.Err()
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type connectResult struct {
	conn broker.Connection
	err  error
}

type fakeConnector struct {
	mu      sync.Mutex
	results []connectResult
	calls   int
}

func (c *fakeConnector) Connect(ctx context.Context) (broker.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.results) == 0 {
		return nil, errors.New("no broker")
	}
	r := c.results[0]
	c.results = c.results[1:]
	return r.conn, r.err
}

func (c *fakeConnector) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// scriptedWriter fails the calls listed in failOn (1-based) and delegates the rest.
type scriptedWriter struct {
	next   RecordWriter
	failOn map[int]bool
	calls  int
}

func (w *scriptedWriter) Append(ctx context.Context, table string, records []enrichment.EnrichedRecord) (int64, error) {
	w.calls++
	if w.failOn[w.calls] {
		return 0, &store.StoreError{Op: "append", Table: table, Err: errors.New("database is locked")}
	}
	return w.next.Append(ctx, table, records)
}

type panickingEnricher struct{}

func (panickingEnricher) Enrich(models.RawMessage, *reference.Table) ([]enrichment.EnrichedRecord, error) {
	panic("unexpected column layout")
}

type recordingGuard struct {
	claims   map[string]bool
	released []string
}

func (g *recordingGuard) Claim(_ context.Context, raw models.RawMessage) (bool, error) {
	if g.claims == nil {
		g.claims = map[string]bool{}
	}
	key := raw.IdempotencyKey()
	if g.claims[key] {
		return false, nil
	}
	g.claims[key] = true
	return true, nil
}

func (g *recordingGuard) Release(_ context.Context, raw models.RawMessage) error {
	delete(g.claims, raw.IdempotencyKey())
	g.released = append(g.released, raw.IdempotencyKey())
	return nil
}

func (g *recordingGuard) Reset(context.Context) error {
	g.claims = nil
	return nil
}
