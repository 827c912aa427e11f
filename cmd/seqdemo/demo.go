package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/multicast"
	"github.com/kbukum/seqkit/observability"
	"github.com/kbukum/seqkit/pipeline"
	"github.com/kbukum/seqkit/resilience"
)

// Report summarizes one demo run.
type Report struct {
	ConnectorID string
	Elapsed     time.Duration
	// Consumers holds the values each regular consumer observed, in order.
	Consumers [][]int
	// LateJoiner holds the values observed by the consumer that joined late.
	LateJoiner []int
	Restarts   int
	Stats      multicast.Stats
	// PairSums is the output of the selector run, which zips the shared
	// sequence with itself.
	PairSums []int
}

// flakySource counts from zero up to cfg.Items. Its first iteration fails
// with a retryable upstream error after cfg.FailAfter values.
func flakySource(cfg SourceConfig) *pipeline.Pipeline[int] {
	var iterations atomic.Int64
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[int] {
		first := iterations.Add(1) == 1
		counter := pipeline.Generate(func(ctx context.Context, i int) (int, error) {
			if first && cfg.FailAfter > 0 && i == cfg.FailAfter {
				return 0, apperrors.Upstream("counter", fmt.Errorf("counter stalled at %d", i))
			}
			if cfg.Delay > 0 {
				timer := time.NewTimer(cfg.Delay)
				defer timer.Stop()
				select {
				case <-timer.C:
				case <-ctx.Done():
					return 0, ctx.Err()
				}
			}
			return i, nil
		})
		return pipeline.Take(counter, cfg.Items).Iter(ctx)
	})
}

func runDemo(ctx context.Context, cfg *Config, log *logger.Logger, metrics *observability.Metrics) (*Report, error) {
	start := time.Now()
	var restarts atomic.Int64
	retryCfg := cfg.Retry
	retryCfg.Metrics = metrics
	retryCfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		restarts.Add(1)
		log.Warn("source failed, restarting", logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldError, err.Error(),
			logger.FieldBackoff, backoff.Milliseconds(),
		))
	}

	conn := multicast.Publish(resilience.Retry(flakySource(cfg.Source), retryCfg),
		multicast.WithMetrics(metrics),
	)
	defer func() { _ = conn.Close() }()
	log.Info("connector published", logger.Fields(logger.FieldConnectorID, conn.ID(), "consumers", cfg.Multicast.Consumers))

	// Cursors created before any consumption all start at the beginning of the log.
	iters := make([]pipeline.Iterator[int], cfg.Multicast.Consumers)
	for i := range iters {
		iters[i] = conn.Iter(ctx)
	}

	report := &Report{
		ConnectorID: conn.ID(),
		Consumers:   make([][]int, len(iters)),
	}

	joined := make(chan struct{})
	var joinOnce sync.Once
	signalJoin := func() { joinOnce.Do(func() { close(joined) }) }

	g, gctx := errgroup.WithContext(ctx)
	for i, it := range iters {
		g.Go(func() error {
			defer func() { _ = it.Close() }()
			if i == 0 {
				defer signalJoin()
				if cfg.Multicast.LateJoinAfter == 0 {
					signalJoin()
				}
			}
			for {
				v, ok, err := it.Next(gctx)
				if err != nil {
					return fmt.Errorf("consumer %d: %w", i, err)
				}
				if !ok {
					return nil
				}
				report.Consumers[i] = append(report.Consumers[i], v)
				if i == 0 && len(report.Consumers[i]) == cfg.Multicast.LateJoinAfter {
					signalJoin()
				}
			}
		})
	}
	g.Go(func() error {
		select {
		case <-joined:
		case <-gctx.Done():
			return gctx.Err()
		}
		values, err := pipeline.Collect(gctx, pipeline.FromFunc(conn.Iter))
		report.LateJoiner = values
		if err != nil {
			return fmt.Errorf("late consumer: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Restarts = int(restarts.Load())
	report.Stats = conn.Stats()

	pairs := multicast.PublishWith(pipeline.Range(0, cfg.Source.Items),
		func(shared *pipeline.Pipeline[int]) (*pipeline.Pipeline[int], error) {
			return pipeline.Zip(shared, shared, func(_ context.Context, a, b int) (int, error) {
				return a + b, nil
			}), nil
		},
		multicast.WithMetrics(metrics),
	)
	sums, err := pipeline.Collect(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("selector run: %w", err)
	}
	report.PairSums = sums
	report.Elapsed = time.Since(start)
	return report, nil
}

func (r *Report) log(log *logger.Logger) {
	for i, values := range r.Consumers {
		log.Info("consumer finished", logger.Fields("consumer", i, "count", len(values)))
	}
	first := -1
	if len(r.LateJoiner) > 0 {
		first = r.LateJoiner[0]
	}
	log.Info("late consumer finished", logger.Fields("count", len(r.LateJoiner), "first", first))
	log.Info("run complete", logger.Fields(
		logger.FieldConnectorID, r.ConnectorID,
		"produced", r.Stats.Produced,
		logger.FieldPulls, r.Stats.Pulls,
		"restarts", r.Restarts,
		"pair_sums", len(r.PairSums),
	))
	log.Debug("run timing", logger.DurationFields("run", r.Elapsed))
}
