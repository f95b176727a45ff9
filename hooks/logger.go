// Package hooks provides observability hooks for pgkit: query logging,
// Prometheus metrics, OpenTelemetry tracing, and pool statistics export.
package hooks

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// maxQueryLength bounds the query text attached to logs and spans
const maxQueryLength = 500

// queryPreview returns the query truncated for log and span attributes
func queryPreview(query string) string {
	if len(query) > maxQueryLength {
		return query[:maxQueryLength] + "..."
	}
	return query
}

// LoggerHook logs queries through slog. Failed queries log at error level,
// queries slower than slowThreshold at warn level, and with logAll every
// remaining query at debug level.
type LoggerHook struct {
	logger        *slog.Logger
	logAll        bool
	slowThreshold time.Duration
}

// NewLoggerHook creates a new logger hook
func NewLoggerHook(logger *slog.Logger, logAll bool, slowThreshold time.Duration) *LoggerHook {
	return &LoggerHook{
		logger:        logger,
		logAll:        logAll,
		slowThreshold: slowThreshold,
	}
}

// BeforeQuery implements bun.QueryHook
func (h *LoggerHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery implements bun.QueryHook
func (h *LoggerHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)
	slow := h.slowThreshold > 0 && duration >= h.slowThreshold

	var level slog.Level
	var msg string
	switch {
	case event.Err != nil && event.Err != sql.ErrNoRows:
		level, msg = slog.LevelError, "database query failed"
	case slow:
		level, msg = slog.LevelWarn, "slow database query"
	case h.logAll:
		level, msg = slog.LevelDebug, "database query"
	default:
		return
	}

	attrs := []slog.Attr{
		slog.Duration("duration", duration),
		slog.String("operation", OperationType(event.Query)),
	}
	if h.logAll || slow {
		attrs = append(attrs, slog.String("query", queryPreview(event.Query)))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}

	h.logger.LogAttrs(ctx, level, msg, attrs...)
}

// OperationType extracts the operation type from a query
func OperationType(query string) string {
	query = strings.TrimSpace(strings.ToUpper(query))
	switch {
	case strings.HasPrefix(query, "SELECT"):
		return "select"
	case strings.HasPrefix(query, "INSERT"):
		return "insert"
	case strings.HasPrefix(query, "UPDATE"):
		return "update"
	case strings.HasPrefix(query, "DELETE"):
		return "delete"
	case strings.HasPrefix(query, "CREATE"):
		return "create"
	case strings.HasPrefix(query, "DROP"):
		return "drop"
	case strings.HasPrefix(query, "ALTER"):
		return "alter"
	case strings.HasPrefix(query, "BEGIN"):
		return "begin"
	case strings.HasPrefix(query, "COMMIT"):
		return "commit"
	case strings.HasPrefix(query, "ROLLBACK"):
		return "rollback"
	case strings.HasPrefix(query, "SAVEPOINT"):
		return "savepoint"
	case strings.HasPrefix(query, "RELEASE"):
		return "release"
	default:
		return "other"
	}
}
