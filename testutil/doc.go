// Package testutil provides testing infrastructure for seqkit sequences.
//
// It offers instrumented integer sources that record how often they are
// pulled, started and closed, iterator assertions that register cleanup with
// the running test, and readers for collected OpenTelemetry metrics.
//
// # Quick Start
//
//	func TestShared(t *testing.T) {
//	    src := testutil.NewSource(5)
//	    it := testutil.Iter(t, src.Pipeline())
//	    testutil.ExpectValues(t, it, 0, 1, 2, 3, 4)
//	    testutil.ExpectDone(t, it)
//	    if src.Pulls() != 5 { ... }
//	}
//
// Gated sources block every pull until Release is called, which lets tests
// hold a pull in flight while other consumers pile up behind it:
//
//	src := testutil.NewSource(testutil.Unbounded, testutil.Gated())
//	go consume(src.Pipeline())
//	<-src.Entered()
//	src.Release()
package testutil
