// Package logging provides structured logging for pixood.
//
// It wraps the standard library's log/slog with configuration-driven
// format and level selection, plus default fields identifying the service
// and version. All components receive a *Logger (or a narrow interface
// satisfied by it) rather than using a global logger.
package logging
