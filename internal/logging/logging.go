package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const timeFormat = "2006-01-02 15:04:05"

var levelNames = map[log.Level]string{
	log.DebugLevel: "DEBUG",
	log.InfoLevel:  "INFO",
	log.WarnLevel:  "WARNING",
	log.ErrorLevel: "ERROR",
	log.FatalLevel: "CRITICAL",
}

// New returns a logger writing lines of the form
// "2006-01-02 15:04:05 [LEVEL] message key=value" to w.
func New(w io.Writer, level string) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Formatter:       log.TextFormatter,
		Level:           parseLevel(level),
	})
	styles := log.DefaultStyles()
	for lvl, name := range levelNames {
		styles.Levels[lvl] = lipgloss.NewStyle().SetString("[" + name + "]")
	}
	handler.SetStyles(styles)
	return slog.New(handler)
}

// Open returns the log sink: the file at path opened for appending, or
// stdout when path is empty. The returned closer is a no-op for stdout.
func Open(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// SetLevel is used once the config file has been read; the logger is
// created before that so config errors can be reported.
func SetLevel(logger *slog.Logger, level string) {
	if h, ok := logger.Handler().(*log.Logger); ok {
		h.SetLevel(parseLevel(level))
	}
}
