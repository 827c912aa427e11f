// Package pipeline provides composable, pull-based lazy sequences.
//
// A *Pipeline[T] is a factory of iterations: every Iter call starts an
// independent pass over the data. Pipelines are lazy, so no work happens
// until values are pulled via Collect, Drain, ForEach or an Iterator. Each
// stage pulls from the previous stage on demand, which gives natural
// backpressure without explicit flow control.
//
// Failures travel as the error returned by Next and are passed through every
// operator unmodified, so consumers can compare them by identity.
//
// # Constructors
//
//   - FromSlice, From, FromFunc: wrap existing data or iterators
//   - Range, Generate: integer ranges and index-driven generators
//   - Fail: a sequence that fails immediately
//
// # Operators
//
//   - Map, Filter, Tap: per-value transforms and side-effects
//   - Take: stop after n values without pulling more
//   - Zip: pair two pipelines value by value
//   - Concat: join pipelines sequentially
//
// Shared iteration and restart-on-failure live in the multicast and
// resilience packages respectively.
//
// # Usage
//
//	src := pipeline.Range(0, 5)
//	doubled := pipeline.Map(src, func(_ context.Context, n int) (int, error) {
//	    return n * 2, nil
//	})
//	evens := pipeline.Filter(doubled, func(n int) bool { return n%4 == 0 })
//	results, err := pipeline.Collect(ctx, evens)
package pipeline
