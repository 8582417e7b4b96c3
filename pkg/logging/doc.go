// Package logging provides structured logging configuration for netmock.
//
// This package wraps log/slog so the engine, the definition loader and the
// CLI share one set of levels and output formats.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelDebug,
//	    Format: logging.FormatJSON,
//	})
//	engine := intercept.New(intercept.WithLogger(logger))
//
// Components should accept a *slog.Logger in their constructor or via an
// option, and call Component to tag their records. If no logger is provided,
// use logging.Nop().
package logging
