// Package logging provides structured logging for Gray Logic Shelly.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Component child loggers (component=coiot, component=relay, ...)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("listener started", "address", "224.0.1.187:5683")
//	logger.Component("relay").Warn("mqtt publish failed", "error", err)
//
// # Security
//
// Never log device passwords, MQTT passwords or API tokens.
package logging
