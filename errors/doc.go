// Package errors provides the structured error type used by seqkit for
// failures the library itself raises (closed connectors, invalid selectors,
// invalid configuration).
//
// Failures produced by a wrapped source are never converted to AppError:
// they travel through pipelines unmodified so every consumer can compare
// them by identity.
package errors
