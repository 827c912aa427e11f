package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kbukum/seqkit/pipeline"
)

// Unbounded makes a Source yield values until it is closed.
const Unbounded = -1

// Source is an instrumented integer source. Every iteration yields 0, 1, 2, ...
// and every Next call that reaches the source counts as a pull.
type Source struct {
	limit       int
	failAt      int
	failErr     error
	failFirst   int
	gate        chan struct{}
	releaseOnce sync.Once
	entered     chan struct{}

	pulls      atomic.Int64
	iterations atomic.Int64
	closes     atomic.Int64
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// FailAt makes iterations fail with err when index i would be produced.
func FailAt(i int, err error) SourceOption {
	return func(s *Source) {
		s.failAt = i
		s.failErr = err
	}
}

// FailFirst limits FailAt to the first n iterations; later iterations succeed.
func FailFirst(n int) SourceOption {
	return func(s *Source) { s.failFirst = n }
}

// Gated makes every pull block until Release is called or the pull's context is done.
func Gated() SourceOption {
	return func(s *Source) { s.gate = make(chan struct{}) }
}

// NewSource creates a source yielding limit values per iteration.
func NewSource(limit int, opts ...SourceOption) *Source {
	s := &Source{
		limit:   limit,
		failAt:  -1,
		entered: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pipeline returns a pipeline whose iterations read from this source.
func (s *Source) Pipeline() *pipeline.Pipeline[int] {
	return pipeline.FromFunc(func(_ context.Context) pipeline.Iterator[int] {
		n := s.iterations.Add(1)
		fails := s.failAt >= 0 && (s.failFirst == 0 || int(n) <= s.failFirst)
		return &sourceIter{src: s, fails: fails}
	})
}

// Pulls returns the number of Next calls that reached the source.
func (s *Source) Pulls() int { return int(s.pulls.Load()) }

// Iterations returns the number of iterations started.
func (s *Source) Iterations() int { return int(s.iterations.Load()) }

// Closes returns the number of iterator Close calls.
func (s *Source) Closes() int { return int(s.closes.Load()) }

// Entered receives once a pull has entered the source.
// Signals coalesce when nobody is listening.
func (s *Source) Entered() <-chan struct{} { return s.entered }

// Release unblocks all current and future pulls of a gated source.
func (s *Source) Release() {
	if s.gate == nil {
		return
	}
	s.releaseOnce.Do(func() { close(s.gate) })
}

type sourceIter struct {
	src    *Source
	fails  bool
	next   int
	closed bool
}

func (it *sourceIter) Next(ctx context.Context) (int, bool, error) {
	s := it.src
	if it.closed {
		return 0, false, nil
	}
	s.pulls.Add(1)
	select {
	case s.entered <- struct{}{}:
	default:
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return 0, false, ctx.Err()
		}
	}
	if it.fails && it.next == s.failAt {
		return 0, false, s.failErr
	}
	if s.limit != Unbounded && it.next >= s.limit {
		return 0, false, nil
	}
	v := it.next
	it.next++
	return v, true, nil
}

func (it *sourceIter) Close() error {
	if !it.closed {
		it.closed = true
		it.src.closes.Add(1)
	}
	return nil
}
