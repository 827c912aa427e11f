package main

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/seqkit/config"
	apperrors "github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/resilience"
)

func testConfig() *Config {
	cfg := &Config{
		Source:    SourceConfig{Items: 8, FailAfter: 3},
		Multicast: MulticastConfig{Consumers: 3, LateJoinAfter: 4},
		Retry:     resilience.DefaultRetryConfig(),
	}
	cfg.Name = "seqdemo"
	cfg.ApplyDefaults()
	return cfg
}

func TestLoadConfig_FromFile(t *testing.T) {
	var cfg Config
	err := config.LoadConfig("seqdemo", &cfg,
		config.WithConfigFile("config.yml"),
		config.WithDefaults(defaults()),
	)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Name != "seqdemo" || cfg.Source.Items != 20 || cfg.Multicast.Consumers != 3 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Retry.InitialBackoff != 50*time.Millisecond || cfg.Retry.MaxAttempts != 3 {
		t.Errorf("unexpected retry config: %+v", cfg.Retry)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no items", func(c *Config) { c.Source.Items = -1 }, true},
		{"too many consumers", func(c *Config) { c.Multicast.Consumers = 65 }, true},
		{"negative late join", func(c *Config) { c.Multicast.LateJoinAfter = -1 }, true},
		{"bad retry jitter", func(c *Config) { c.Retry.Jitter = 2 }, true},
		{"telemetry without endpoint", func(c *Config) { c.Telemetry.Enabled = true }, true},
		{"telemetry bad endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = "not an endpoint"
		}, true},
		{"telemetry enabled", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = "localhost:4318"
		}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err != nil {
				if _, ok := apperrors.AsAppError(err); !ok {
					t.Errorf("expected an AppError, got %T", err)
				}
			}
		})
	}
}

func TestRunDemo(t *testing.T) {
	cfg := testConfig()
	metrics, shutdown, err := initTelemetry(context.Background(), cfg)
	if err != nil {
		t.Fatalf("initTelemetry: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := runDemo(ctx, cfg, logger.Nop(), metrics)
	if err != nil {
		t.Fatalf("runDemo: %v", err)
	}

	// The first iteration fails after FailAfter values and the retry restarts
	// the count from zero.
	var want []int
	for i := 0; i < cfg.Source.FailAfter; i++ {
		want = append(want, i)
	}
	for i := 0; i < cfg.Source.Items; i++ {
		want = append(want, i)
	}

	if len(report.Consumers) != cfg.Multicast.Consumers {
		t.Fatalf("expected %d consumers, got %d", cfg.Multicast.Consumers, len(report.Consumers))
	}
	for i, got := range report.Consumers {
		if !equalInts(got, want) {
			t.Errorf("consumer %d: got %v, want %v", i, got, want)
		}
	}
	if report.Restarts != 1 {
		t.Errorf("expected 1 restart, got %d", report.Restarts)
	}
	if report.Stats.Produced != len(want)+1 || !report.Stats.Sealed {
		t.Errorf("unexpected stats: %+v", report.Stats)
	}
	if report.Stats.Pulls != int64(len(want)+1) {
		t.Errorf("expected %d pulls, got %d", len(want)+1, report.Stats.Pulls)
	}
	if report.ConnectorID == "" || report.Stats.ID != report.ConnectorID {
		t.Errorf("unexpected connector id %q (stats %q)", report.ConnectorID, report.Stats.ID)
	}

	// The late consumer only sees what was produced after it joined.
	if len(report.LateJoiner) > len(want)-cfg.Multicast.LateJoinAfter {
		t.Errorf("late consumer saw %d values, at most %d expected",
			len(report.LateJoiner), len(want)-cfg.Multicast.LateJoinAfter)
	}
	if n := len(report.LateJoiner); n > 0 && !equalInts(report.LateJoiner, want[len(want)-n:]) {
		t.Errorf("late consumer saw %v, want a suffix of %v", report.LateJoiner, want)
	}

	if len(report.PairSums) != cfg.Source.Items {
		t.Fatalf("expected %d pair sums, got %d", cfg.Source.Items, len(report.PairSums))
	}
	for i, sum := range report.PairSums {
		if sum != 2*i {
			t.Errorf("pair %d: got %d, want %d", i, sum, 2*i)
		}
	}
}

func TestRunDemo_RetryExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.MaxAttempts = 1

	_, err := runDemo(context.Background(), cfg, logger.Nop(), nil)
	if !apperrors.HasCode(err, apperrors.ErrCodeUpstream) {
		t.Fatalf("expected the upstream failure, got %v", err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
