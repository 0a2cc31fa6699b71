package loader

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopassist/shopassist/internal/catalog"
	"github.com/shopassist/shopassist/internal/query/sqlstore"
)

// sqliteSchema mirrors migration 000001 for file databases, which are not
// managed by the Postgres migration runner.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS product (
	product_link TEXT,
	title TEXT NOT NULL,
	brand TEXT NOT NULL DEFAULT '',
	price INTEGER NOT NULL,
	discount REAL NOT NULL DEFAULT 0,
	avg_rating REAL NOT NULL DEFAULT 0,
	total_ratings INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS idx_product_brand ON product (brand)`,
	`CREATE INDEX IF NOT EXISTS idx_product_price ON product (price)`,
	`CREATE INDEX IF NOT EXISTS idx_product_avg_rating ON product (avg_rating DESC)`,
}

func EnsureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure sqlite schema: %w", err)
		}
	}
	return nil
}

func CountProducts(ctx context.Context, db *sql.DB) (int64, error) {
	var count int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+catalog.ProductTable).Scan(&count); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

// InsertSQL replaces the product table contents in a single transaction.
func InsertSQL(ctx context.Context, db *sql.DB, dialect sqlstore.Dialect, products []catalog.Product) (int, error) {
	stmtText, err := insertStatement(dialect)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+catalog.ProductTable); err != nil {
		return 0, fmt.Errorf("clear products: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtText)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, p := range products {
		if _, err := stmt.ExecContext(ctx, p.ProductLink, p.Title, p.Brand, p.Price, p.Discount, p.AvgRating, p.TotalRatings); err != nil {
			return 0, fmt.Errorf("insert product %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit products: %w", err)
	}
	return len(products), nil
}

func insertStatement(dialect sqlstore.Dialect) (string, error) {
	fields := catalog.ProductSchema().FieldNames()
	placeholders := make([]string, len(fields))
	for i := range fields {
		switch dialect {
		case sqlstore.DialectPostgres:
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		case sqlstore.DialectSQLite:
			placeholders[i] = "?"
		default:
			return "", fmt.Errorf("unsupported dialect %q", dialect)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		catalog.ProductTable, strings.Join(fields, ", "), strings.Join(placeholders, ", ")), nil
}

// SQLTarget loads products into a SQLite or Postgres product table.
type SQLTarget struct {
	DB      *sql.DB
	Dialect sqlstore.Dialect
}

func (t *SQLTarget) Name() string { return string(t.Dialect) }

func (t *SQLTarget) Populated(ctx context.Context) (bool, error) {
	if err := t.prepare(ctx); err != nil {
		return false, err
	}
	count, err := CountProducts(ctx, t.DB)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (t *SQLTarget) Write(ctx context.Context, products []catalog.Product) (int, error) {
	if err := t.prepare(ctx); err != nil {
		return 0, err
	}
	return InsertSQL(ctx, t.DB, t.Dialect, products)
}

func (t *SQLTarget) prepare(ctx context.Context) error {
	if t.Dialect == sqlstore.DialectSQLite {
		return EnsureSQLiteSchema(ctx, t.DB)
	}
	return nil
}
