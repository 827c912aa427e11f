package multicast

import (
	"context"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/observability"
	"github.com/kbukum/seqkit/pipeline"
)

// Option configures a Connector.
type Option func(*options)

type options struct {
	id      string
	log     *logger.Logger
	metrics *observability.Metrics
}

// WithLogger sets the logger used for connector events.
// Defaults to the registered "multicast" logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records pulls, cache reads and open cursors on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithID sets the connector ID used in logs, spans and metrics.
// Defaults to a random UUID.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.log == nil {
		o.log = logger.Get("multicast")
	}
	return o
}

// Stats is a snapshot of a connector's shared state.
type Stats struct {
	ID       string
	Produced int   // records in the item log, terminal record included
	Pulls    int64 // physical Next calls on the source
	Cursors  int   // open cursors
	Sealed   bool  // the source completed or failed
}

// Connector shares one iteration of a source pipeline among the iterators it
// hands out. The item log and upstream driver are created by the first Iter
// call and released once the connector and all of its cursors are closed.
type Connector[T any] struct {
	source *pipeline.Pipeline[T]
	opts   options

	mu       sync.Mutex
	drv      *driver[T]
	refs     int
	cursors  int
	nextID   int
	closed   bool
	released bool
}

// Publish creates a connector over p. The source is not iterated until a
// cursor first reads past the end of the log.
func Publish[T any](p *pipeline.Pipeline[T], opts ...Option) *Connector[T] {
	o := buildOptions(opts)
	o.log = o.log.WithFields(logger.Fields(logger.FieldConnectorID, o.id))
	return &Connector[T]{source: p, opts: o, refs: 1}
}

// ID returns the connector ID.
func (c *Connector[T]) ID() string { return c.opts.id }

// Iter returns a new cursor starting at the current end of the log.
// After Close the returned iterator fails with a CONNECTOR_CLOSED error.
func (c *Connector[T]) Iter(ctx context.Context) pipeline.Iterator[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return pipeline.Fail[T](apperrors.ConnectorClosed(c.opts.id)).Iter(ctx)
	}
	if c.drv == nil {
		c.drv = newDriver(ctx, c.opts.id, c.source, c.opts.log, c.opts.metrics)
	}
	c.refs++
	c.cursors++
	c.nextID++
	start := c.drv.items.len()
	cur := &cursor[T]{drv: c.drv, id: c.nextID, start: start, pos: start}
	cur.onClose = func() { c.closeCursor(cur) }

	c.opts.metrics.RecordCursorOpen(ctx, c.opts.id)
	if c.opts.log.DebugEnabled() {
		c.opts.log.Debug("cursor opened", logger.Fields(
			logger.FieldCursor, cur.id,
			logger.FieldIndex, start,
		))
	}
	return cur
}

// Pipeline returns a pipeline whose every iteration is a new cursor on this
// connector.
func (c *Connector[T]) Pipeline() *pipeline.Pipeline[T] {
	return pipeline.FromFunc(c.Iter)
}

// Stats returns a snapshot of the connector's shared state.
func (c *Connector[T]) Stats() Stats {
	c.mu.Lock()
	drv := c.drv
	s := Stats{ID: c.opts.id, Cursors: c.cursors}
	c.mu.Unlock()
	if drv != nil {
		s.Produced = drv.items.len()
		s.Pulls = drv.pulls.Load()
		s.Sealed = drv.items.isSealed()
	}
	return s
}

// Close drops the connector's own reference. Open cursors keep working; the
// source connection is released when the last of them is closed.
func (c *Connector[T]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	drv := c.unref()
	c.mu.Unlock()

	if drv != nil {
		drv.release()
	}
	return nil
}

func (c *Connector[T]) closeCursor(cur *cursor[T]) {
	c.mu.Lock()
	c.cursors--
	drv := c.unref()
	c.mu.Unlock()

	c.opts.metrics.RecordCursorClose(context.Background(), c.opts.id)
	if c.opts.log.DebugEnabled() {
		c.opts.log.Debug("cursor closed", logger.Fields(
			logger.FieldCursor, cur.id,
			logger.FieldIndex, cur.pos,
		))
	}
	if drv != nil {
		drv.release()
	}
}

// unref drops one reference and returns the driver to release when it was
// the last one. Callers hold mu.
func (c *Connector[T]) unref() *driver[T] {
	c.refs--
	if c.refs > 0 || c.released || c.drv == nil {
		return nil
	}
	c.released = true
	return c.drv
}
