package logging

import (
	"context"
	"os"
)

// New returns a Logger for the given format ("slog" or "zap") and level.
// Any format other than "zap" selects slog.
func New(format, level string) (Logger, error) {
	if format == "zap" {
		return NewProductionZapLogger(level)
	}
	return NewJSONSlogLogger(os.Stdout, level), nil
}

// Nop discards everything. It is used by tests and as a safe default.
type Nop struct{}

func (Nop) Debug(context.Context, string, ...any) {}
func (Nop) Info(context.Context, string, ...any)  {}
func (Nop) Warn(context.Context, string, ...any)  {}
func (Nop) Error(context.Context, string, ...any) {}
func (n Nop) With(...any) Logger                  { return n }
