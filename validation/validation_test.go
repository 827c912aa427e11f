package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/seqkit/errors"
)

type innerConfig struct {
	Consumers int `mapstructure:"consumers" validate:"min=1,max=8"`
}

type sampleConfig struct {
	Name        string      `mapstructure:"name" validate:"required"`
	MaxAttempts int         `mapstructure:"max_attempts" validate:"gte=-1"`
	Mode        string      `mapstructure:"mode" validate:"omitempty,oneof=fast slow"`
	Inner       innerConfig `mapstructure:"inner"`
	NoTag       int         `validate:"lte=3"`
}

func TestValidate_Valid(t *testing.T) {
	cfg := sampleConfig{Name: "x", MaxAttempts: -1, Inner: innerConfig{Consumers: 2}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		cfg   sampleConfig
		field string
		msg   string
	}{
		{"missing name", sampleConfig{MaxAttempts: 1, Inner: innerConfig{Consumers: 1}}, "name", "is required"},
		{"attempts below bound", sampleConfig{Name: "x", MaxAttempts: -2, Inner: innerConfig{Consumers: 1}}, "max_attempts", "must be at least -1"},
		{"bad mode", sampleConfig{Name: "x", Mode: "warp", Inner: innerConfig{Consumers: 1}}, "mode", "must be one of: fast slow"},
		{"nested", sampleConfig{Name: "x", Inner: innerConfig{Consumers: 0}}, "inner.consumers", "must be at least 1"},
		{"snake case fallback", sampleConfig{Name: "x", Inner: innerConfig{Consumers: 1}, NoTag: 4}, "no_tag", "must be at most 3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.HasCode(err, errors.ErrCodeInvalidConfig) {
				t.Fatalf("expected INVALID_CONFIG, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.field+": "+tc.msg) {
				t.Errorf("expected %q in %q", tc.field+": "+tc.msg, err.Error())
			}
			appErr, _ := errors.AsAppError(err)
			fields, ok := appErr.Details["fields"].([]FieldError)
			if !ok || len(fields) == 0 {
				t.Fatalf("expected field details, got %v", appErr.Details)
			}
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("MaxAttempts"); got != "max_attempts" {
		t.Errorf("got %q", got)
	}
}
