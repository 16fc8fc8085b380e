// Package logging provides structured logging for rfbridge.
//
// It wraps log/slog with JSON or text output, level filtering, and the
// default fields service and version on every entry. Components derive
// child loggers with Component or With:
//
//	log := logging.New(cfg.Logging, version)
//	mqttLog := log.Component("mqtt")
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
package logging
