package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SQLiteExporterConfig configures the SQLite span exporter.
type SQLiteExporterConfig struct {
	// DB is an open SQLite connection. The exporter does not close it.
	DB *sql.DB

	// SpansTable is the table name (default: "command_spans")
	SpansTable string

	// Retention removes spans older than this after each export (0 = keep forever)
	Retention time.Duration
}

// DefaultSQLiteExporterConfig returns sensible defaults
func DefaultSQLiteExporterConfig(db *sql.DB) SQLiteExporterConfig {
	return SQLiteExporterConfig{
		DB:         db,
		SpansTable: "command_spans",
		Retention:  7 * 24 * time.Hour,
	}
}

// SQLiteTraceExporter stores finished spans in SQLite so the gateway's
// per-command traces can be inspected without a tracing backend. Command
// attributes are kept in their own indexed columns.
type SQLiteTraceExporter struct {
	config SQLiteExporterConfig
	now    func() time.Time
	mu     sync.Mutex
}

var _ sdktrace.SpanExporter = (*SQLiteTraceExporter)(nil)

// NewSQLiteTraceExporter creates the spans table and returns the exporter.
func NewSQLiteTraceExporter(config SQLiteExporterConfig) (*SQLiteTraceExporter, error) {
	if config.DB == nil {
		return nil, errors.New("database connection is required")
	}
	if config.SpansTable == "" {
		config.SpansTable = "command_spans"
	}

	e := &SQLiteTraceExporter{config: config, now: time.Now}
	if err := e.createTable(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return e, nil
}

func (e *SQLiteTraceExporter) createTable() error {
	table := e.config.SpansTable
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				span_id TEXT PRIMARY KEY,
				trace_id TEXT NOT NULL,
				parent_span_id TEXT,
				name TEXT NOT NULL,
				command_name TEXT,
				command_id TEXT,
				error_code TEXT,
				start_time INTEGER NOT NULL,
				end_time INTEGER NOT NULL,
				status_code INTEGER NOT NULL,
				status_message TEXT,
				attributes TEXT
			)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_trace_id ON %s(trace_id)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_command_id ON %s(command_id)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_start_time ON %s(start_time)`, table, table),
	}

	for _, stmt := range statements {
		if _, err := e.config.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ExportSpans implements sdktrace.SpanExporter
func (e *SQLiteTraceExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(spans) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.config.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (
			span_id, trace_id, parent_span_id, name,
			command_name, command_id, error_code,
			start_time, end_time, status_code, status_message, attributes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.config.SpansTable))
	if err != nil {
		return fmt.Errorf("prepare span statement: %w", err)
	}
	defer stmt.Close()

	for _, span := range spans {
		spanCtx := span.SpanContext()

		var parentSpanID *string
		if span.Parent().SpanID().IsValid() {
			sid := span.Parent().SpanID().String()
			parentSpanID = &sid
		}

		attrs := attributesToMap(span.Attributes())
		encoded, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("encode attributes: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			spanCtx.SpanID().String(),
			spanCtx.TraceID().String(),
			parentSpanID,
			span.Name(),
			attrs[string(AttrCommandName)],
			attrs[string(AttrCommandID)],
			attrs[string(AttrErrorCode)],
			span.StartTime().UnixNano(),
			span.EndTime().UnixNano(),
			int(span.Status().Code),
			span.Status().Description,
			string(encoded),
		); err != nil {
			return fmt.Errorf("insert span: %w", err)
		}
	}

	if e.config.Retention > 0 {
		cutoff := e.now().Add(-e.config.Retention).UnixNano()
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE start_time < ?`, e.config.SpansTable), cutoff); err != nil {
			return fmt.Errorf("apply retention: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter. The connection is owned by the caller.
func (e *SQLiteTraceExporter) Shutdown(context.Context) error {
	return nil
}

// StoredSpan is a span read back from the exporter's table.
type StoredSpan struct {
	SpanID        string
	TraceID       string
	ParentSpanID  string
	Name          string
	CommandName   string
	CommandID     string
	ErrorCode     string
	StartTime     time.Time
	EndTime       time.Time
	StatusMessage string
	Attributes    map[string]any
}

// Duration returns the span's wall time.
func (s StoredSpan) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// SpansForCommand returns the spans recorded for a command id, oldest first.
func (e *SQLiteTraceExporter) SpansForCommand(ctx context.Context, commandID string) ([]StoredSpan, error) {
	return e.query(ctx, "command_id = ?", commandID)
}

// SpansForTrace returns all spans of a trace, oldest first.
func (e *SQLiteTraceExporter) SpansForTrace(ctx context.Context, traceID string) ([]StoredSpan, error) {
	return e.query(ctx, "trace_id = ?", traceID)
}

func (e *SQLiteTraceExporter) query(ctx context.Context, where string, arg any) ([]StoredSpan, error) {
	rows, err := e.config.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT span_id, trace_id, COALESCE(parent_span_id, ''), name,
			COALESCE(command_name, ''), COALESCE(command_id, ''), COALESCE(error_code, ''),
			start_time, end_time, COALESCE(status_message, ''), COALESCE(attributes, '{}')
		FROM %s WHERE %s ORDER BY start_time
	`, e.config.SpansTable, where), arg)
	if err != nil {
		return nil, fmt.Errorf("query spans: %w", err)
	}
	defer rows.Close()

	var spans []StoredSpan
	for rows.Next() {
		var (
			s          StoredSpan
			start, end int64
			attrs      string
		)
		if err := rows.Scan(&s.SpanID, &s.TraceID, &s.ParentSpanID, &s.Name,
			&s.CommandName, &s.CommandID, &s.ErrorCode,
			&start, &end, &s.StatusMessage, &attrs); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		s.StartTime = time.Unix(0, start)
		s.EndTime = time.Unix(0, end)
		if err := json.Unmarshal([]byte(attrs), &s.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		spans = append(spans, s)
	}
	return spans, rows.Err()
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}
