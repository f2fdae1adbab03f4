package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/quizstat/internal/errors"
)

// Logger provides structured logging with event helpers for each part of a run
type Logger struct {
	*slog.Logger
}

// Options selects the handler behind a Logger
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// NewLogger creates a JSON logger at info level on stdout
func NewLogger() *Logger {
	l, _ := NewLoggerWithOptions(Options{})
	return l
}

// NewLoggerWithOptions creates a logger from configured level and format.
// Empty fields fall back to info, json and stdout.
func NewLoggerWithOptions(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	case "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	default:
		return nil, errors.NewValidationError("unknown log format "+opts.Format, "format", opts.Format)
	}

	return &Logger{Logger: slog.New(handler)}, nil
}

// ParseLevel maps debug, info, warn and error to slog levels
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.NewValidationError("unknown log level "+level, "level", level)
}

// Discard returns a logger that drops everything, for tests and library callers
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// StageLogger logs a pipeline stage transition
func (l *Logger) StageLogger(runID, stage string, duration time.Duration, ok bool) {
	level := slog.LevelInfo
	if !ok {
		level = slog.LevelError
	}

	l.Log(context.Background(), level, "Pipeline Stage",
		"run_id", runID,
		"stage", stage,
		"duration_ms", duration.Milliseconds(),
		"success", ok,
	)
}

// ExtractionLogger logs one respondent's extraction
func (l *Logger) ExtractionLogger(source string, answered int) {
	l.Debug("Answers Extracted",
		"source", source,
		"answered", answered,
	)
}

// SkipLogger logs a respondent left out of the aggregate
func (l *Logger) SkipLogger(source string, err error) {
	l.Warn("Respondent Skipped",
		"source", source,
		"error", err.Error(),
	)
}

// AnalysisLogger logs analysis outcome details
func (l *Logger) AnalysisLogger(runID string, respondents, answered int, randomness float64, hypothesis string, duration time.Duration) {
	l.Info("Analysis Completed",
		"run_id", runID,
		"respondents", respondents,
		"answered_questions", answered,
		"randomness_score", randomness,
		"hypothesis", hypothesis,
		"duration_ms", duration.Milliseconds(),
	)
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// DownloadLogger logs a fetch attempt against the answer host
func (l *Logger) DownloadLogger(url string, attempt int, duration time.Duration, err error) {
	if err != nil {
		l.Warn("Download Failed",
			"url", url,
			"attempt", attempt,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	l.Debug("Download Completed",
		"url", url,
		"attempt", attempt,
		"duration_ms", duration.Milliseconds(),
	)
}

// SystemLogger logs process-level events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

var startTime = time.Now()
