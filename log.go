package gputune

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured-logging surface used throughout this package,
// in place of the original's fprintf(stderr, ...)/DEBUG-gated printf
// diagnostics. It is an alias for logiface.Logger[*stumpy.Event], so
// SetLogger accepts only stumpy-backed loggers (for example one with a
// different writer or level); other logiface backends do not fit it.
type Logger = logiface.Logger[*stumpy.Event]

// defaultLogger writes leveled, structured JSON to stderr, matching
// stumpy's default writer.
var defaultLogger = stumpy.L.New(
	stumpy.L.WithStumpy(),
	stumpy.L.WithLevel(stumpy.L.LevelInformational()),
)

var pkgLogger = defaultLogger

// SetLogger overrides the package-wide logger. Passing nil restores the
// default (stderr, informational level).
func SetLogger(l *Logger) {
	if l == nil {
		pkgLogger = defaultLogger
		return
	}
	pkgLogger = l
}

func logTuneEvent(ctx *Context, msg string) {
	pkgLogger.Info().
		Str("project", ctx.Project).
		Str("plan", ctx.PlanName).
		Uint64("tune_iter", ctx.TuneIter).
		Log(msg)
}

func logFallback(ctx *Context, entry *PlanEntry, reason string) {
	pkgLogger.Warning().
		Int("knob", entry.ID).
		Uint64("size", entry.Size).
		Str("reason", reason).
		Log("falling back to pinned host memory")
}

func logFatal(ctx *Context, err error) {
	b := pkgLogger.Err().Err(err)
	if ctx != nil {
		b = b.Str("project", ctx.Project).Str("plan", ctx.PlanName)
	}
	b.Log("fatal tuning error")
}
