package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/observability"
	"github.com/kbukum/seqkit/pipeline"
	"github.com/kbukum/seqkit/validation"
)

// Unbounded disables the attempt limit.
const Unbounded = -1

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of iterations (including the first).
	// Unbounded retries forever; zero yields an empty sequence.
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=-1"`
	// InitialBackoff is the delay before the first restart. Zero restarts immediately.
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gte=0"`
	// MaxBackoff caps the delay between restarts.
	MaxBackoff time.Duration `mapstructure:"max_backoff" validate:"gte=0"`
	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64 `mapstructure:"backoff_factor" validate:"gte=0"`
	// Jitter adds randomness to backoff (0.0 to 1.0).
	Jitter float64 `mapstructure:"jitter" validate:"gte=0,lte=1"`
	// RetryIf determines if an error should be retried. Defaults to DefaultRetryIf.
	RetryIf func(error) bool `mapstructure:"-" validate:"-"`
	// OnRetry is called before each restart with the failed attempt number.
	OnRetry func(attempt int, err error, backoff time.Duration) `mapstructure:"-" validate:"-"`
	// Logger receives restart events. Defaults to the registered "retry" logger.
	Logger *logger.Logger `mapstructure:"-" validate:"-"`
	// Metrics records restarts and final failures. Optional.
	Metrics *observability.Metrics `mapstructure:"-" validate:"-"`
}

// DefaultRetryConfig returns three attempts with immediate restarts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		MaxBackoff:    10 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        0.1,
		RetryIf:       DefaultRetryIf,
	}
}

// DefaultRetryIf retries all errors except context cancellation and
// non-retryable library errors.
func DefaultRetryIf(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Retryable
	}
	return true
}

// Retry returns a pipeline that restarts p from scratch each time an
// iteration fails, until cfg.MaxAttempts iterations have been started.
// An invalid cfg is reported as the first failure of every iteration.
func Retry[T any](p *pipeline.Pipeline[T], cfg RetryConfig) *pipeline.Pipeline[T] {
	if err := validation.Validate(cfg); err != nil {
		return pipeline.Fail[T](err)
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 2.0
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get("retry")
	}
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[T] {
		return &retryIter[T]{source: p, cfg: cfg, ctx: ctx}
	})
}

// RetryN restarts p immediately on failure, for at most n iterations in total.
func RetryN[T any](p *pipeline.Pipeline[T], n int) *pipeline.Pipeline[T] {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = n
	return Retry(p, cfg)
}

// RetryForever restarts p immediately on every retryable failure.
func RetryForever[T any](p *pipeline.Pipeline[T]) *pipeline.Pipeline[T] {
	return RetryN(p, Unbounded)
}

type retryIter[T any] struct {
	source  *pipeline.Pipeline[T]
	cfg     RetryConfig
	ctx     context.Context
	current pipeline.Iterator[T]
	attempt int
	done    bool
	err     error
}

func (it *retryIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for !it.done {
		if it.current == nil {
			if !it.attemptsLeft() {
				it.finish(nil)
				break
			}
			it.attempt++
			it.current = it.source.Iter(it.ctx)
		}

		v, ok, err := it.current.Next(ctx)
		if err == nil {
			if ok {
				return v, true, nil
			}
			it.finish(nil)
			break
		}

		it.closeCurrent()
		if !it.cfg.RetryIf(err) || !it.attemptsLeft() {
			it.cfg.Metrics.RecordFailure(ctx, "retry")
			it.cfg.Logger.WithContext(ctx).Warn("giving up", logger.Fields(
				logger.FieldAttempt, it.attempt,
				logger.FieldError, err.Error(),
			))
			it.finish(err)
			break
		}
		if err := it.restart(ctx, err); err != nil {
			it.finish(err)
		}
	}
	return zero, false, it.err
}

func (it *retryIter[T]) attemptsLeft() bool {
	return it.cfg.MaxAttempts == Unbounded || it.attempt < it.cfg.MaxAttempts
}

// restart reports the failed attempt and waits out the backoff.
func (it *retryIter[T]) restart(ctx context.Context, cause error) error {
	var backoff time.Duration
	if it.cfg.InitialBackoff > 0 {
		backoff = calculateBackoff(it.attempt, it.cfg)
	}

	_, span := observability.StartSpan(ctx, observability.SpanRetryAttempt,
		trace.WithAttributes(attribute.Int(observability.AttrAttempt, it.attempt)),
	)
	span.RecordError(cause)
	span.End()

	if it.cfg.OnRetry != nil {
		it.cfg.OnRetry(it.attempt, cause, backoff)
	}
	it.cfg.Metrics.RecordRestart(ctx, it.attempt+1)
	if it.cfg.Logger.DebugEnabled() {
		it.cfg.Logger.WithContext(ctx).Debug("restarting source", logger.Fields(
			logger.FieldAttempt, it.attempt,
			logger.FieldBackoff, backoff.Milliseconds(),
			logger.FieldError, cause.Error(),
		))
	}

	if backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (it *retryIter[T]) finish(err error) {
	it.done = true
	it.err = err
	it.closeCurrent()
}

func (it *retryIter[T]) closeCurrent() {
	if it.current == nil {
		return
	}
	if err := it.current.Close(); err != nil {
		it.cfg.Logger.Warn("closing failed attempt", logger.ErrorFields("close", err))
	}
	it.current = nil
}

func (it *retryIter[T]) Close() error {
	it.done = true
	it.closeCurrent()
	return nil
}

// calculateBackoff calculates the delay after the given failed attempt.
func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	// Exponential backoff: initial * factor^(attempt-1)
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt-1))

	if cfg.Jitter > 0 {
		spread := backoff * cfg.Jitter
		backoff += (rand.Float64()*2 - 1) * spread
	}

	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	if backoff < 0 {
		backoff = float64(cfg.InitialBackoff)
	}
	return time.Duration(backoff)
}
