// Package resilience restarts failed pipelines.
//
// Retry wraps a pipeline so that a failed iteration is discarded and a fresh
// iteration is started from the source's beginning, up to a bound. Values of
// each attempt are forwarded as they are produced, so an observer sees the
// repeated prefix of every failed attempt. Once the attempts are exhausted,
// or the failure is not retryable, the final error is returned unmodified.
//
//	// 0, 1, 0, 1, then the source's error
//	res := resilience.RetryN(flaky, 2)
//
//	// Exponential backoff between attempts, retrying only upstream errors.
//	cfg := resilience.DefaultRetryConfig()
//	cfg.InitialBackoff = 50 * time.Millisecond
//	cfg.RetryIf = func(err error) bool { return errors.HasCode(err, errors.ErrCodeUpstream) }
//	res := resilience.Retry(src, cfg)
//
// Retrying a published pipeline restarts a cursor on the same connector, and
// a connector that already failed replays its failure to every new cursor.
// Publish a retried pipeline instead to share a self-healing source.
package resilience
