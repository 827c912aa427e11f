package multicast

import (
	"context"
)

// cursor is one consumer's read position into the shared item log.
// A cursor must not be driven from more than one goroutine at a time.
type cursor[T any] struct {
	drv     *driver[T]
	id      int
	start   int
	pos     int
	closed  bool
	onClose func()
}

// Next returns the record at the cursor position. Values advance the cursor;
// terminal records are replayed on every later call. When ctx is done the
// error is ctx.Err() and the position is unchanged.
func (c *cursor[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if c.closed {
		return zero, false, nil
	}
	rec, err := c.drv.readAt(ctx, c.pos)
	if err != nil {
		return zero, false, err
	}
	switch rec.kind {
	case kindValue:
		c.pos++
		return rec.value, true, nil
	case kindFailure:
		return zero, false, rec.err
	default:
		return zero, false, nil
	}
}

// Close detaches the cursor from the connector. Calling it more than once is a no-op.
func (c *cursor[T]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.onClose()
	return nil
}
