package multicast

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/observability"
	"github.com/kbukum/seqkit/pipeline"
)

// driver owns the single live iteration of the source and appends every
// record it produces to the item log.
type driver[T any] struct {
	id      string
	source  *pipeline.Pipeline[T]
	items   *itemLog[T]
	log     *logger.Logger
	metrics *observability.Metrics

	// inflight coalesces advances keyed by the frontier index.
	inflight singleflight.Group

	// connCtx is the context the source iterator runs under. It carries the
	// values of the first cursor's context but not its cancellation.
	connCtx context.Context
	cancel  context.CancelFunc

	pullMu   sync.Mutex // serializes source pulls and guards iter and released
	iter     pipeline.Iterator[T]
	released bool

	pulls atomic.Int64
}

func newDriver[T any](ctx context.Context, id string, source *pipeline.Pipeline[T], log *logger.Logger, metrics *observability.Metrics) *driver[T] {
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &driver[T]{
		id:      id,
		source:  source,
		items:   &itemLog[T]{},
		log:     log,
		metrics: metrics,
		connCtx: connCtx,
		cancel:  cancel,
	}
}

// readAt returns the record at index i, advancing the source when i is the
// frontier. Cancelling ctx abandons only this caller's wait; the shared
// advance keeps running and its record is appended for later readers.
func (d *driver[T]) readAt(ctx context.Context, i int) (record[T], error) {
	if rec, ok := d.items.at(i); ok {
		d.metrics.RecordCacheRead(ctx, d.id)
		return rec, nil
	}
	ch := d.inflight.DoChan(strconv.Itoa(i), func() (any, error) {
		return d.advance(i)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return record[T]{}, res.Err
		}
		return res.Val.(record[T]), nil
	case <-ctx.Done():
		return record[T]{}, ctx.Err()
	}
}

// advance pulls the source once and appends the result as record i.
func (d *driver[T]) advance(i int) (record[T], error) {
	d.pullMu.Lock()
	defer d.pullMu.Unlock()

	// An earlier advance may already have produced i.
	if rec, ok := d.items.at(i); ok {
		return rec, nil
	}
	if d.released {
		return record[T]{}, apperrors.ConnectorClosed(d.id)
	}
	if d.iter == nil {
		d.iter = d.source.Iter(d.connCtx)
	}

	ctx, span := observability.StartSpan(d.connCtx, observability.SpanMulticastAdvance,
		trace.WithAttributes(
			attribute.String(observability.AttrConnectorID, d.id),
			attribute.Int(observability.AttrIndex, i),
		),
	)
	defer span.End()

	start := time.Now()
	value, ok, err := d.iter.Next(ctx)
	elapsed := time.Since(start)
	d.pulls.Add(1)

	kind := kindValue
	switch {
	case err != nil:
		kind = kindFailure
	case !ok:
		kind = kindCompleted
	}
	rec, appendErr := d.items.append(kind, value, err)
	if appendErr != nil {
		span.RecordError(appendErr)
		span.SetStatus(codes.Error, appendErr.Error())
		return record[T]{}, apperrors.Internal(appendErr)
	}

	span.SetAttributes(attribute.String(observability.AttrKind, kind.String()))
	d.metrics.RecordPull(ctx, d.id, kind.String(), elapsed)
	if kind == kindFailure {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.metrics.RecordFailure(ctx, "multicast")
	}
	if d.log.DebugEnabled() {
		d.log.WithContext(ctx).Debug("source advanced", logger.Fields(
			logger.FieldIndex, rec.index,
			logger.FieldKind, kind.String(),
			logger.FieldDuration, elapsed.Milliseconds(),
		))
	}

	if rec.terminal() {
		d.closeSource()
	}
	return rec, nil
}

// closeSource closes the live source iterator. Callers hold pullMu.
func (d *driver[T]) closeSource() {
	if d.iter == nil {
		return
	}
	if err := d.iter.Close(); err != nil {
		d.log.Warn("closing source iterator failed", logger.ErrorFields("close", err))
	}
	d.iter = nil
}

// release cancels the connection context and closes the source iterator.
// Cancelling first lets a pull blocked on the context return before the
// iterator is closed.
func (d *driver[T]) release() {
	d.cancel()
	d.pullMu.Lock()
	defer d.pullMu.Unlock()
	if d.released {
		return
	}
	d.released = true
	d.closeSource()
	d.log.Debug("connection released", logger.Fields(logger.FieldPulls, d.pulls.Load()))
}
