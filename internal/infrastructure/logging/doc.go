// Package logging provides structured logging for the node.
//
// It wraps log/slog so every entry carries the service name and build
// version, and so packages can take a *Logger wherever they accept the
// small Debug/Info/Warn/Error interface.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"     # debug, info, warn, error
//	  format: "json"    # json, text
//	  output: "stdout"  # stdout, stderr
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	mqttLog := log.With("component", "mqtt")
//	mqttLog.Info("connected", "broker", url)
//
// Never log credentials; the config and transport packages only log broker
// hosts and topic names.
package logging
