package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	apperrors "github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/multicast"
	"github.com/kbukum/seqkit/observability"
	"github.com/kbukum/seqkit/pipeline"
	"github.com/kbukum/seqkit/testutil"
)

func quiet(cfg RetryConfig) RetryConfig {
	cfg.Logger = logger.Nop()
	return cfg
}

func TestRetry_NoErrorsDoesNotRetry(t *testing.T) {
	tests := []struct {
		name  string
		retry func(*pipeline.Pipeline[int]) *pipeline.Pipeline[int]
	}{
		{"forever", RetryForever[int]},
		{"bounded", func(p *pipeline.Pipeline[int]) *pipeline.Pipeline[int] { return RetryN(p, 2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.NewSource(10)
			ok, err := pipeline.Equal(context.Background(), tt.retry(src.Pipeline()), pipeline.Range(0, 10))
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Error("retried sequence differs from the source")
			}
			if src.Iterations() != 1 {
				t.Errorf("source iterations = %d, want 1", src.Iterations())
			}
		})
	}
}

func TestRetry_EventuallyGivesUp(t *testing.T) {
	boom := errors.New("boom")
	xs := pipeline.Concat(pipeline.Range(0, 2), pipeline.Fail[int](boom))

	it := testutil.Iter(t, RetryN(xs, 2))
	testutil.ExpectValues(t, it, 0, 1, 0, 1)
	_, ok, err := it.Next(context.Background())
	if ok || err != boom {
		t.Fatalf("Next = ok %v, err %v; want the source error unmodified", ok, err)
	}
	testutil.ExpectError(t, it, boom)
}

func TestRetry_RecoversWithinBound(t *testing.T) {
	boom := errors.New("transient")
	src := testutil.NewSource(3, testutil.FailAt(2, boom), testutil.FailFirst(2))

	it := testutil.Iter(t, Retry(src.Pipeline(), quiet(RetryConfig{MaxAttempts: 3})))
	testutil.ExpectValues(t, it, 0, 1, 0, 1, 0, 1, 2)
	testutil.ExpectDone(t, it)
	testutil.ExpectDone(t, it)

	if src.Iterations() != 3 {
		t.Errorf("iterations = %d, want 3", src.Iterations())
	}
	if src.Closes() != 3 {
		t.Errorf("closes = %d, want 3 (every attempt closed)", src.Closes())
	}
}

func TestRetry_ForeverKeepsRestarting(t *testing.T) {
	boom := errors.New("transient")
	src := testutil.NewSource(1, testutil.FailAt(0, boom), testutil.FailFirst(25))

	got, err := pipeline.Collect(context.Background(), RetryForever(src.Pipeline()))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 0 {
		t.Errorf("got %v, want [0]", got)
	}
	if src.Iterations() != 26 {
		t.Errorf("iterations = %d, want 26", src.Iterations())
	}
}

func TestRetry_ZeroAttemptsIsEmpty(t *testing.T) {
	src := testutil.NewSource(3)
	got, err := pipeline.Collect(context.Background(), RetryN(src.Pipeline(), 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
	if src.Iterations() != 0 {
		t.Errorf("source iterated %d times, want 0", src.Iterations())
	}
}

func TestRetry_RetryIf(t *testing.T) {
	permanent := errors.New("permanent")
	tests := []struct {
		name       string
		err        error
		retryIf    func(error) bool
		iterations int
	}{
		{"custom filter rejects", permanent, func(err error) bool { return err != permanent }, 1},
		{"custom filter accepts", permanent, func(error) bool { return true }, 3},
		{"default skips closed connector", apperrors.ConnectorClosed("c1"), nil, 1},
		{"default retries upstream", apperrors.Upstream("feed", permanent), nil, 3},
		{"default skips cancellation", context.Canceled, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.NewSource(5, testutil.FailAt(1, tt.err))
			cfg := quiet(RetryConfig{MaxAttempts: 3, RetryIf: tt.retryIf})
			_, err := pipeline.Collect(context.Background(), Retry(src.Pipeline(), cfg))
			if err != tt.err {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
			if src.Iterations() != tt.iterations {
				t.Errorf("iterations = %d, want %d", src.Iterations(), tt.iterations)
			}
		})
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("x"), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"upstream", apperrors.Upstream("feed", errors.New("x")), true},
		{"invalid config", apperrors.InvalidConfig("bad"), false},
		{"internal", apperrors.Internal(errors.New("x")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetry_OnRetryWithBackoff(t *testing.T) {
	boom := errors.New("boom")
	src := testutil.NewSource(2, testutil.FailAt(1, boom), testutil.FailFirst(2))

	var attempts []int
	var backoffs []time.Duration
	cfg := quiet(RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			if err != boom {
				t.Errorf("OnRetry got %v, want boom", err)
			}
			attempts = append(attempts, attempt)
			backoffs = append(backoffs, backoff)
		},
	})

	got, err := pipeline.Collect(context.Background(), Retry(src.Pipeline(), cfg))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Errorf("got %v, want [0 0 0 1]", got)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("attempts = %v, want [1 2]", attempts)
	}
	if len(backoffs) != 2 || backoffs[0] != time.Millisecond || backoffs[1] != 2*time.Millisecond {
		t.Errorf("backoffs = %v, want [1ms 2ms]", backoffs)
	}
}

func TestRetry_NoBackoffByDefault(t *testing.T) {
	boom := errors.New("boom")
	src := testutil.NewSource(1, testutil.FailAt(0, boom), testutil.FailFirst(1))
	var backoff time.Duration = -1
	cfg := DefaultRetryConfig()
	cfg.Logger = logger.Nop()
	cfg.OnRetry = func(_ int, _ error, b time.Duration) { backoff = b }

	if _, err := pipeline.Collect(context.Background(), Retry(src.Pipeline(), cfg)); err != nil {
		t.Fatal(err)
	}
	if backoff != 0 {
		t.Errorf("backoff = %v, want immediate restart", backoff)
	}
}

func TestRetry_RespectsContextDuringBackoff(t *testing.T) {
	boom := errors.New("boom")
	src := testutil.NewSource(3, testutil.FailAt(0, boom))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := quiet(RetryConfig{
		MaxAttempts:    Unbounded,
		InitialBackoff: time.Hour,
		MaxBackoff:     time.Hour,
		OnRetry:        func(int, error, time.Duration) { cancel() },
	})
	start := time.Now()
	_, err := pipeline.Collect(ctx, Retry(src.Pipeline(), cfg))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Minute {
		t.Error("backoff wait ignored cancellation")
	}
	if src.Iterations() != 1 {
		t.Errorf("iterations = %d, want 1", src.Iterations())
	}
}

func TestRetry_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  RetryConfig
	}{
		{"attempts below unbounded", RetryConfig{MaxAttempts: -2}},
		{"jitter above one", RetryConfig{MaxAttempts: 1, Jitter: 1.5}},
		{"negative backoff", RetryConfig{MaxAttempts: 1, InitialBackoff: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.NewSource(3)
			_, err := pipeline.Collect(context.Background(), Retry(src.Pipeline(), tt.cfg))
			if !apperrors.HasCode(err, apperrors.ErrCodeInvalidConfig) {
				t.Errorf("err = %v, want INVALID_CONFIG", err)
			}
			if src.Iterations() != 0 {
				t.Error("source iterated with an invalid config")
			}
		})
	}
}

func TestRetry_CloseClosesCurrentAttempt(t *testing.T) {
	src := testutil.NewSource(testutil.Unbounded)
	ctx := context.Background()
	it := RetryForever(src.Pipeline()).Iter(ctx)
	testutil.ExpectValues(t, it, 0, 1)
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
	if src.Closes() != 1 {
		t.Errorf("closes = %d, want 1", src.Closes())
	}
	if _, ok, err := it.Next(ctx); ok || err != nil {
		t.Errorf("Next after Close = ok %v, err %v; want exhausted", ok, err)
	}
}

func TestRetry_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())
	metrics, err := observability.NewMetrics(provider.Meter("retry-test"))
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	src := testutil.NewSource(2, testutil.FailAt(1, boom))
	cfg := quiet(RetryConfig{MaxAttempts: 3, Metrics: metrics})
	if _, err := pipeline.Collect(context.Background(), Retry(src.Pipeline(), cfg)); err != boom {
		t.Fatalf("err = %v, want boom", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	if got := testutil.SumCounter(rm, observability.MetricRetryRestarts); got != 2 {
		t.Errorf("restarts = %d, want 2", got)
	}
	if got := testutil.SumCounter(rm, observability.MetricFailures); got != 1 {
		t.Errorf("failures = %d, want 1", got)
	}
}

func TestRetry_SharedByPublish(t *testing.T) {
	boom := errors.New("transient")
	src := testutil.NewSource(3, testutil.FailAt(1, boom), testutil.FailFirst(1))
	conn := multicast.Publish(RetryN(src.Pipeline(), 2), multicast.WithLogger(logger.Nop()))
	defer conn.Close()

	a := testutil.Iter(t, conn.Pipeline())
	b := testutil.Iter(t, conn.Pipeline())
	testutil.ExpectValues(t, a, 0, 0, 1, 2)
	testutil.ExpectDone(t, a)
	testutil.ExpectValues(t, b, 0, 0, 1, 2)
	testutil.ExpectDone(t, b)
	if src.Iterations() != 2 {
		t.Errorf("iterations = %d, want 2", src.Iterations())
	}
}

func TestRetry_OverFailedConnectorReplaysFailure(t *testing.T) {
	boom := errors.New("boom")
	conn := multicast.Publish(pipeline.Fail[int](boom), multicast.WithLogger(logger.Nop()))
	defer conn.Close()

	_, err := pipeline.Collect(context.Background(), RetryN(conn.Pipeline(), 3))
	if err != boom {
		t.Fatalf("err = %v, want boom", err)
	}
	if s := conn.Stats(); s.Pulls != 1 {
		t.Errorf("connector pulls = %d, want 1", s.Pulls)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     1 * time.Second,
		BackoffFactor:  2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt, cfg); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestCalculateBackoff_JitterStaysInRange(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.5,
	}
	for range 100 {
		got := calculateBackoff(1, cfg)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("backoff %v outside [50ms, 150ms]", got)
		}
	}
}
