package logging

import (
	"go.uber.org/zap"
)

// New builds the process-wide logger. production selects the encoder and
// level the same way spec.md's NODE_ENV check does: detailed, development
// formatting (and debug level) outside production, compact JSON in it.
func New(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// Truncate caps an error message at n characters before it is logged or
// persisted, per spec.md §7 ("error payloads are truncated to 500
// characters").
func Truncate(msg string, n int) string {
	runes := []rune(msg)
	if len(runes) <= n {
		return msg
	}
	return string(runes[:n])
}
