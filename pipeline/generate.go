package pipeline

import "context"

// Range creates a pipeline yielding count consecutive integers starting at start.
func Range(start, count int) *Pipeline[int] {
	return &Pipeline[int]{
		create: func(_ context.Context) Iterator[int] {
			return &rangeIter{next: start, end: start + count}
		},
	}
}

// Generate creates an unbounded pipeline whose i-th value is fn(ctx, i).
// Each iteration restarts at i = 0. An error from fn terminates the iteration.
func Generate[T any](fn func(ctx context.Context, i int) (T, error)) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			return &generateIter[T]{fn: fn}
		},
	}
}

// Fail creates a pipeline whose iterations fail immediately with err.
// Every Next returns the same error value.
func Fail[T any](err error) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			return &failIter[T]{err: err}
		},
	}
}

type rangeIter struct {
	next, end int
}

func (it *rangeIter) Next(_ context.Context) (int, bool, error) {
	if it.next >= it.end {
		return 0, false, nil
	}
	v := it.next
	it.next++
	return v, true, nil
}

func (it *rangeIter) Close() error { return nil }

type generateIter[T any] struct {
	fn   func(context.Context, int) (T, error)
	i    int
	err  error
	done bool
}

func (it *generateIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, it.err
	}
	v, err := it.fn(ctx, it.i)
	if err != nil {
		it.done, it.err = true, err
		return zero, false, err
	}
	it.i++
	return v, true, nil
}

func (it *generateIter[T]) Close() error {
	it.done = true
	return nil
}

type failIter[T any] struct {
	err error
}

func (it *failIter[T]) Next(_ context.Context) (T, bool, error) {
	var zero T
	return zero, false, it.err
}

func (it *failIter[T]) Close() error { return nil }
