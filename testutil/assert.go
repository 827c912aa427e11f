package testutil

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kbukum/seqkit/pipeline"
)

// Iter starts an iteration of p and closes it when the test ends.
func Iter[T any](t testing.TB, p *pipeline.Pipeline[T]) pipeline.Iterator[T] {
	t.Helper()
	it := p.Iter(context.Background())
	t.Cleanup(func() { _ = it.Close() })
	return it
}

// ExpectValues pulls len(want) values from it and fails the test on any mismatch.
func ExpectValues[T comparable](t testing.TB, it pipeline.Iterator[T], want ...T) {
	t.Helper()
	got := make([]T, 0, len(want))
	for range want {
		v, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatalf("after %v: unexpected error %v", got, err)
		}
		if !ok {
			t.Fatalf("after %v: sequence ended, want %v", got, want)
		}
		got = append(got, v)
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// ExpectDone asserts that the next pull reports normal completion.
func ExpectDone[T any](t testing.TB, it pipeline.Iterator[T]) {
	t.Helper()
	v, ok, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("expected completion, got error %v", err)
	}
	if ok {
		t.Fatalf("expected completion, got value %v", v)
	}
}

// ExpectError asserts that the next pull fails with an error matching want.
func ExpectError[T any](t testing.TB, it pipeline.Iterator[T], want error) {
	t.Helper()
	v, ok, err := it.Next(context.Background())
	if ok {
		t.Fatalf("expected error %v, got value %v", want, v)
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected error %v, got %v", want, err)
	}
}
