package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger provides enhanced structured logging with context
type Logger struct {
	*slog.Logger
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a JSON logger on stdout.
func NewLogger(level string) *Logger {
	return NewLoggerWithWriter(os.Stdout, level)
}

func NewLoggerWithWriter(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// NopLogger discards everything. Used when no logger is injected.
func NopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}

	l.Log(context.Background(), level, "HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// ScoreLogger records a completed scoring request. Only identifiers and the
// outcome are logged, never the applicant's financial inputs.
func (l *Logger) ScoreLogger(userID, scoreID string, score int, riskLevel string, duration time.Duration) {
	l.Info("Score Computed",
		"user_id", userID,
		"score_id", scoreID,
		"yecs_score", score,
		"risk_level", riskLevel,
		"duration_ms", duration.Milliseconds(),
	)
}

// ValidationLogger records a rejected scoring request.
func (l *Logger) ValidationLogger(userID, field, message string) {
	l.Warn("Scoring Input Rejected",
		"user_id", userID,
		"field", field,
		"reason", message,
	)
}

// BiasLogger records the verdict for one audited attribute.
func (l *Logger) BiasLogger(attribute string, ratio *float64, detected, insufficientSample bool) {
	attrs := []any{
		"attribute", attribute,
		"bias_detected", detected,
		"insufficient_sample", insufficientSample,
	}
	if ratio != nil {
		attrs = append(attrs, "disparity_ratio", *ratio)
	}

	if detected {
		l.Warn("Bias Analysis", attrs...)
		return
	}
	l.Info("Bias Analysis", attrs...)
}

// StorageLogger logs a failed storage attempt.
func (l *Logger) StorageLogger(operation, backend string, attempt int, err error) {
	l.Warn("Storage Operation Failed",
		"operation", operation,
		"backend", backend,
		"attempt", attempt,
		"error", err,
	)
}

// SystemLogger logs system-level events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

var startTime = time.Now()
