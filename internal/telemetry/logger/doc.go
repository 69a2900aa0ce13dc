// Package logger provides structured logging for snapback.
//
// It wraps log/slog to provide structured JSON or text logging with a
// dynamically adjustable level and context-aware operation ID propagation,
// so every log line of one backup run can be correlated.
package logger
