// Package log provides the structured logging facade used across the engine.
//
// It exposes a small Logger interface with leveled methods and typed Field
// helpers, backed by the standard library slog. Components receive a Logger
// by injection and tag themselves with Component; they never construct their
// own outputs.
//
//	l := log.NewLogger(log.WithLevel(log.InfoLevel), log.WithFormat(log.FormatText))
//	l = l.With(log.Component("delivery"))
//	l.Info("processor started", log.Dur("interval", interval))
package log
