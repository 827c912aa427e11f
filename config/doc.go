// Package config loads service configuration from config.yml, .env files and
// environment variables.
//
// Values are layered lowest to highest: defaults passed with WithDefaults,
// the YAML file, then environment variables. Environment variables are named
// after the service and the mapstructure path of the field, upper-cased and
// joined with underscores:
//
//	type Config struct {
//	    config.ServiceConfig `mapstructure:",squash"`
//	    Retry resilience.RetryConfig `mapstructure:"retry"`
//	}
//
//	// SEQDEMO_RETRY_MAX_ATTEMPTS=5 overrides retry.max_attempts
//	err := config.LoadConfig("seqdemo", &cfg)
//
// A .env file, when found, is loaded into the process environment before
// the variables are read. Variables already set in the environment win.
package config
