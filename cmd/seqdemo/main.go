// Command seqdemo shares one flaky, retried counting source among several
// consumers and reports what each of them observed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/seqkit/config"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/observability"
	"github.com/kbukum/seqkit/version"
)

const meterName = "github.com/kbukum/seqkit"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seqdemo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := config.LoadConfig("seqdemo", &cfg, config.WithDefaults(defaults())); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyDefaults()
	if cfg.Version == "" {
		cfg.Version = version.Get().Version
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	logger.Init(cfg.Logging)
	logger.RegisterDefaults("multicast", "retry", "seqdemo")
	log := logger.Get("seqdemo")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, shutdown, err := initTelemetry(ctx, &cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", logger.ErrorFields("shutdown", err))
		}
	}()

	log.Info("starting", logger.Fields(
		"version", version.Get().String(),
		"environment", cfg.Environment,
		"telemetry", cfg.Telemetry.Enabled,
	))

	report, err := runDemo(ctx, &cfg, log, metrics)
	if err != nil {
		log.Error("run failed", logger.ErrorFields("run", err))
		return err
	}
	report.log(log)
	return nil
}

// initTelemetry installs OTLP meter and tracer providers when telemetry is
// enabled. Otherwise instruments are created on the global no-op provider.
func initTelemetry(ctx context.Context, cfg *Config) (*observability.Metrics, func(context.Context) error, error) {
	noShutdown := func(context.Context) error { return nil }
	if !cfg.Telemetry.Enabled {
		metrics, err := observability.NewMetrics(observability.Meter(meterName))
		if err != nil {
			return nil, nil, err
		}
		return metrics, noShutdown, nil
	}

	export := observability.ExportConfig{
		ServiceName:    cfg.Name,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	}

	meterCfg := observability.DefaultMeterConfig(cfg.Name)
	meterCfg.ExportConfig = export
	if cfg.Telemetry.ExportInterval > 0 {
		meterCfg.Interval = cfg.Telemetry.ExportInterval
	}
	mp, err := observability.InitMeter(ctx, meterCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init meter: %w", err)
	}

	tp, err := observability.InitTracer(ctx, observability.TracerConfig{
		ExportConfig: export,
		SampleRate:   cfg.Telemetry.SampleRate,
	})
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, nil, fmt.Errorf("init tracer: %w", err)
	}

	metrics, err := observability.NewMetrics(observability.Meter(meterName))
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	return metrics, func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
