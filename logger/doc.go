// Package logger provides structured logging for seqkit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("multicast")
//	log.Debug("source advanced", logger.Fields(logger.FieldIndex, 3))
package logger
