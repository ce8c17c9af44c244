// Package log builds the slog logger for a remap run and reports its summary.
// The logger is created once per invocation and passed down explicitly.
package log

import (
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"remapflame/internal/config"
	"remapflame/internal/replacement"
)

// Summary describes one completed transform.
type Summary struct {
	Target         string
	Output         string
	Stats          replacement.Stats
	ProcessingTime time.Duration
	DryRun         bool
}

// New returns a logger writing to w with the given level and format.
// LogFormatAuto resolves to text when w is a terminal and JSON otherwise.
func New(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	if resolveFormat(format, w) == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Fallback is used before the configuration has been loaded, for example
// when the argument count is wrong.
func Fallback() *slog.Logger {
	return New(os.Stderr, slog.LevelInfo, config.LogFormatAuto)
}

func resolveFormat(format config.LogFormat, w io.Writer) config.LogFormat {
	switch format {
	case config.LogFormatText, config.LogFormatJSON:
		return format
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return config.LogFormatText
	}
	return config.LogFormatJSON
}

// LogSummary writes the outcome of a transform at info level. Unmapped
// tokens are reported at warn level. Profile runs report a function count
// in place of the line count.
func LogSummary(logger *slog.Logger, s Summary) {
	mode := "production"
	if s.DryRun {
		mode = "dry-run"
	}

	attrs := []any{
		slog.String("mode", mode),
		slog.String("target", s.Target),
		slog.String("output", s.Output),
	}
	if s.Stats.Functions > 0 {
		attrs = append(attrs, slog.Int("functions", s.Stats.Functions))
	} else {
		attrs = append(attrs, slog.Int("lines", s.Stats.Lines))
	}
	attrs = append(attrs,
		slog.Int("matches", s.Stats.Matches),
		slog.Int("replaced", s.Stats.Replaced),
		slog.Duration("processing_time", s.ProcessingTime),
	)
	logger.Info("remap summary", attrs...)

	if s.Stats.Unmapped > 0 {
		logger.Warn("tokens without mapping left unchanged", slog.Int("unmapped", s.Stats.Unmapped))
	}
}
