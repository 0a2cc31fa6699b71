package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopassist/shopassist/internal/nl2sql"
	"github.com/shopassist/shopassist/internal/query"
)

// Engine executes statements inside a read-only transaction that is always
// rolled back.
type Engine struct {
	db      *sql.DB
	dialect Dialect
}

type EngineOption func(*Engine)

// WithDialect tells the engine which database it talks to. Postgres LIKE is
// case-sensitive, so on that dialect LIKE is executed as ILIKE.
func WithDialect(dialect Dialect) EngineOption {
	return func(e *Engine) {
		e.dialect = dialect
	}
}

func NewEngine(db *sql.DB, opts ...EngineOption) *Engine {
	engine := &Engine{db: db, dialect: DialectSQLite}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if e.db == nil {
		return query.Result{}, fmt.Errorf("store is not configured")
	}
	sqlText, err := query.PrepareSQL(request)
	if err != nil {
		return query.Result{}, err
	}
	if e.dialect == DialectPostgres {
		if sqlText, err = nl2sql.CaseInsensitiveLike(sqlText); err != nil {
			return query.Result{}, err
		}
	}

	start := time.Now()
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return query.Result{}, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, resultRows, err := query.ScanRows(rows)
	if err != nil {
		return query.Result{}, err
	}

	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func (e *Engine) HealthCheck(ctx context.Context) error {
	if e.db == nil {
		return fmt.Errorf("store is not configured")
	}
	return e.db.PingContext(ctx)
}
