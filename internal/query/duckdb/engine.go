package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/shopassist/shopassist/internal/catalog"
	"github.com/shopassist/shopassist/internal/nl2sql"
	"github.com/shopassist/shopassist/internal/query"
	"github.com/shopassist/shopassist/internal/storage"
)

// Engine serves the product table from a Parquet snapshot held in the object
// store. Every request downloads the snapshot into a scratch directory and
// runs against a fresh in-memory DuckDB, so nothing is ever written back.
// DuckDB's LIKE ignores the session collation, so text matches are executed
// as ILIKE.
type Engine struct {
	Store       storage.SnapshotReader
	SnapshotKey string
}

func NewEngine(store storage.SnapshotReader, snapshotKey string) *Engine {
	return &Engine{Store: store, SnapshotKey: strings.TrimSpace(snapshotKey)}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText, err := query.PrepareSQL(request)
	if err != nil {
		return query.Result{}, err
	}
	if sqlText, err = nl2sql.CaseInsensitiveLike(sqlText); err != nil {
		return query.Result{}, err
	}
	if e.Store == nil {
		return query.Result{}, fmt.Errorf("object store is required")
	}
	if e.SnapshotKey == "" {
		return query.Result{}, fmt.Errorf("catalog snapshot key is required")
	}

	start := time.Now()
	workDir, err := os.MkdirTemp("", "shopassist-query-")
	if err != nil {
		return query.Result{}, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPath := filepath.Join(workDir, catalog.ProductTable+".parquet")
	if err := e.download(ctx, localPath); err != nil {
		return query.Result{}, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()
	// one connection so the session settings below apply to the query
	db.SetMaxOpenConns(1)

	setup := []string{
		"SET default_collation = 'nocase'",
		fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(catalog.ProductTable), quoteString(localPath)),
	}
	for _, stmt := range setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return query.Result{}, fmt.Errorf("prepare product view: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx, sqlText)
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

// HealthCheck reports whether the catalog snapshot is reachable.
func (e *Engine) HealthCheck(ctx context.Context) error {
	if e.Store == nil {
		return fmt.Errorf("object store is required")
	}
	if _, err := e.Store.Stat(ctx, e.SnapshotKey); err != nil {
		return fmt.Errorf("stat catalog snapshot %q: %w", e.SnapshotKey, err)
	}
	return nil
}

// download copies the current snapshot to localPath.
func (e *Engine) download(ctx context.Context, localPath string) error {
	body, err := e.Store.Get(ctx, e.SnapshotKey)
	if err != nil {
		return fmt.Errorf("get catalog snapshot %q: %w", e.SnapshotKey, err)
	}
	defer func() { _ = body.Close() }()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local snapshot %q: %w", localPath, err)
	}
	if _, err := io.Copy(file, body); err != nil {
		_ = file.Close()
		return fmt.Errorf("copy catalog snapshot %q: %w", e.SnapshotKey, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close local snapshot %q: %w", localPath, err)
	}
	return nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
