package multicast

import (
	"context"

	apperrors "github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/pipeline"
)

// Selector derives a pipeline from the shared view of a published source.
// It may iterate shared any number of times; the source is still pulled once
// per produced record.
type Selector[T, R any] func(shared *pipeline.Pipeline[T]) (*pipeline.Pipeline[R], error)

// PublishWith returns a pipeline that, for every iteration, publishes p on a
// fresh connector, calls selector once with the connector's pipeline and
// yields the derived pipeline's output. The connector is released when the
// derived pipeline completes or fails, or when the iterator is closed.
//
// An error returned by selector, or a nil pipeline, is delivered by the first
// Next call.
func PublishWith[T, R any](
	p *pipeline.Pipeline[T],
	selector func(shared *pipeline.Pipeline[T]) (*pipeline.Pipeline[R], error),
	opts ...Option,
) *pipeline.Pipeline[R] {
	return pipeline.FromFunc(func(_ context.Context) pipeline.Iterator[R] {
		return &selectorIter[T, R]{source: p, selector: selector, opts: opts}
	})
}

type selectorIter[T, R any] struct {
	source   *pipeline.Pipeline[T]
	selector Selector[T, R]
	opts     []Option

	conn    *Connector[T]
	inner   pipeline.Iterator[R]
	started bool
	done    bool
	err     error
}

func (it *selectorIter[T, R]) Next(ctx context.Context) (R, bool, error) {
	var zero R
	if it.done {
		return zero, false, it.err
	}
	if !it.started {
		it.started = true
		if err := it.connect(ctx); err != nil {
			it.finish(err)
			return zero, false, err
		}
	}

	v, ok, err := it.inner.Next(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
			// The caller gave up waiting; the derived pipeline is still live.
			return zero, false, err
		}
		it.finish(err)
		return zero, false, err
	}
	if !ok {
		it.finish(nil)
		return zero, false, nil
	}
	return v, true, nil
}

func (it *selectorIter[T, R]) connect(ctx context.Context) error {
	it.conn = Publish(it.source, it.opts...)
	derived, err := it.selector(it.conn.Pipeline())
	if err != nil {
		return err
	}
	if derived == nil {
		return apperrors.InvalidSelector("selector returned a nil pipeline").
			WithDetail("connector_id", it.conn.ID())
	}
	it.inner = derived.Iter(ctx)
	return nil
}

// finish records the terminal state and releases the connector.
func (it *selectorIter[T, R]) finish(err error) {
	it.done = true
	it.err = err
	it.teardown()
}

func (it *selectorIter[T, R]) teardown() {
	if it.inner != nil {
		_ = it.inner.Close()
		it.inner = nil
	}
	if it.conn != nil {
		_ = it.conn.Close()
		it.conn = nil
	}
}

func (it *selectorIter[T, R]) Close() error {
	it.done = true
	it.teardown()
	return nil
}
