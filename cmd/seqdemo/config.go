package main

import (
	"time"

	"github.com/kbukum/seqkit/config"
	apperrors "github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/resilience"
	"github.com/kbukum/seqkit/validation"
)

// Config is the seqdemo configuration loaded from config.yml and SEQDEMO_* variables.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Source               SourceConfig           `yaml:"source" mapstructure:"source"`
	Multicast            MulticastConfig        `yaml:"multicast" mapstructure:"multicast"`
	Retry                resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
	Telemetry            TelemetryConfig        `yaml:"telemetry" mapstructure:"telemetry"`
}

// SourceConfig shapes the flaky counting source.
type SourceConfig struct {
	// Items is the number of values per successful iteration.
	Items int `yaml:"items" mapstructure:"items" validate:"gte=1"`
	// FailAfter makes the first iteration fail after this many values. Zero disables the failure.
	FailAfter int `yaml:"fail_after" mapstructure:"fail_after" validate:"gte=0"`
	// Delay is slept before producing each value.
	Delay time.Duration `yaml:"delay" mapstructure:"delay" validate:"gte=0"`
}

// MulticastConfig controls how many consumers share the source.
type MulticastConfig struct {
	Consumers int `yaml:"consumers" mapstructure:"consumers" validate:"gte=1,lte=64"`
	// LateJoinAfter is the number of values the first consumer reads before
	// the late consumer joins.
	LateJoinAfter int `yaml:"late_join_after" mapstructure:"late_join_after" validate:"gte=0"`
}

// TelemetryConfig enables OTLP/HTTP export of metrics and traces.
type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint       string        `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Insecure       bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate     float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	ExportInterval time.Duration `yaml:"export_interval" mapstructure:"export_interval" validate:"gte=0"`
}

func defaults() map[string]any {
	retry := resilience.DefaultRetryConfig()
	return map[string]any{
		"name":                      "seqdemo",
		"source.items":              20,
		"source.fail_after":         5,
		"multicast.consumers":       3,
		"multicast.late_join_after": 10,
		"retry.max_attempts":        retry.MaxAttempts,
		"retry.max_backoff":         retry.MaxBackoff,
		"retry.backoff_factor":      retry.BackoffFactor,
		"retry.jitter":              retry.Jitter,
		"telemetry.endpoint":        "localhost:4318",
		"telemetry.sample_rate":     1.0,
	}
}

// ApplyDefaults fills fields that loading left empty.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Source.Items == 0 {
		c.Source.Items = 20
	}
	if c.Multicast.Consumers == 0 {
		c.Multicast.Consumers = 1
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return apperrors.InvalidInput("telemetry.endpoint", "required when telemetry is enabled")
	}
	return validation.Validate(c)
}
