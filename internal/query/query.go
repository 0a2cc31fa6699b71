package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Request struct {
	SQL      string
	RowLimit int
}

// Record is one row keyed by column name.
type Record map[string]any

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

func (r Result) Empty() bool {
	return len(r.Rows) == 0
}

// Records returns the rows in result order as column-keyed maps.
func (r Result) Records() []Record {
	records := make([]Record, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := make(Record, len(r.Columns))
		for i, column := range r.Columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		records = append(records, record)
	}
	return records
}

// Engine runs a validated read-only statement. A statement that matches
// nothing yields an empty Result, not an error.
type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PrepareSQL strips trailing semicolons and applies the row limit.
func PrepareSQL(request Request) (string, error) {
	sqlText := StripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return "", fmt.Errorf("sql is required")
	}
	if request.RowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, request.RowLimit)
	}
	return sqlText, nil
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// ScanRows drains rows into memory. Nothing is returned on a mid-stream error.
func ScanRows(rows *sql.Rows) ([]string, [][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, resultRows, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
