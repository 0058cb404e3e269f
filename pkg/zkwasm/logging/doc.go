// Package logging provides the logging facade used by the zkwasm bindings.
//
// The Logger interface wraps a context-aware subset of log/slog. Two backends
// are provided: New binds a *slog.Logger and NewZap adapts a *zap.Logger for
// hosts that already run zap. Discard is the default for wasm builds.
//
//	logger := logging.New(nil)
//	logger.Info(ctx, "pool started", "workers", 8)
//
// Key material must never reach a log record. Use Redacted in its place:
//
//	logger.Debug(ctx, "derived view key", logging.Redacted("view_key"))
package logging
