package testutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSource_CountsPullsAndIterations(t *testing.T) {
	src := NewSource(2)
	for range 2 {
		it := Iter(t, src.Pipeline())
		ExpectValues(t, it, 0, 1)
		ExpectDone(t, it)
		_ = it.Close()
	}
	if src.Iterations() != 2 {
		t.Errorf("expected 2 iterations, got %d", src.Iterations())
	}
	if src.Pulls() != 6 {
		t.Errorf("expected 6 pulls, got %d", src.Pulls())
	}
	if src.Closes() != 2 {
		t.Errorf("expected 2 closes, got %d", src.Closes())
	}
}

func TestSource_FailFirst(t *testing.T) {
	boom := errors.New("boom")
	src := NewSource(3, FailAt(1, boom), FailFirst(1))

	first := Iter(t, src.Pipeline())
	ExpectValues(t, first, 0)
	ExpectError(t, first, boom)

	second := Iter(t, src.Pipeline())
	ExpectValues(t, second, 0, 1, 2)
	ExpectDone(t, second)
}

func TestSource_Gated(t *testing.T) {
	src := NewSource(1, Gated())
	it := Iter(t, src.Pipeline())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, _, err := it.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	select {
	case <-src.Entered():
	default:
		t.Fatal("expected an entered signal")
	}

	src.Release()
	src.Release()
	ExpectValues(t, it, 0)
	ExpectDone(t, it)
}
