// Package logging provides structured logging for vmemd built on zap.
//
// Loggers write JSON (or console) output to stdout and, when an
// OpenTelemetry logger provider is configured, mirror records through the
// otelzap bridge so logs correlate with traces. All log methods take a
// context first and automatically attach trace, request, scope, and
// project fields found on it.
//
// Usage:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	if err != nil {
//		return err
//	}
//	defer logger.Sync()
//
//	logger.Info(ctx, "entry stored", zap.String("entry.id", id))
package logging
