// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components take a *Logger and derive a named child (logger.Named("bridge"))
// so every line carries its origin.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Proxy listening", zap.String("addr", addr))
//	logger.Named("dispatch").Warn("confirmation overwritten", zap.Error(err))
package logging
