// Package validation validates configuration structs using struct tags
// (github.com/go-playground/validator/v10) and reports failures as
// errors.AppError with code INVALID_CONFIG.
//
//	type RetryConfig struct {
//	    MaxAttempts int `validate:"gte=-1"`
//	}
//	err := validation.Validate(cfg)
package validation
