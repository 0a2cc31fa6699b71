package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/shopassist/shopassist/internal/query"
)

func TestExecuteRunsInsideReadOnlyTransaction(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT * FROM (SELECT * FROM product WHERE brand LIKE '%Puma%') AS q LIMIT 2").
		WillReturnRows(sqlmock.NewRows([]string{"title", "price"}).
			AddRow([]byte("Puma Runner"), int64(2499)).
			AddRow("Puma Speed", int64(2999)))
	mock.ExpectRollback()

	result, err := NewEngine(db).Execute(context.Background(), query.Request{
		SQL:      "SELECT * FROM product WHERE brand LIKE '%Puma%';",
		RowLimit: 2,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != "Puma Runner" {
		t.Fatalf("[]byte value not normalised: %#v", result.Rows[0][0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteReturnsEngineErrorWithoutRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	engineErr := errors.New("no such column: size")
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnError(engineErr)
	mock.ExpectRollback()

	result, err := NewEngine(db).Execute(context.Background(), query.Request{SQL: "SELECT * FROM product WHERE size = 9"})
	if !errors.Is(err, engineErr) {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows != nil {
		t.Fatalf("expected no rows on failure, got %#v", result.Rows)
	}
}

func TestPostgresDialectExecutesLikeAsILike(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT * FROM (SELECT * FROM product WHERE brand ILIKE '%puma%' AND title NOT ILIKE '%LIKE%') AS q LIMIT 10").
		WillReturnRows(sqlmock.NewRows([]string{"brand"}).AddRow("PUMA"))
	mock.ExpectRollback()

	engine := NewEngine(db, WithDialect(DialectPostgres))
	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT * FROM product WHERE brand LIKE '%puma%' AND title NOT LIKE '%LIKE%'",
		RowLimit: 10,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0][0] != "PUMA" {
		t.Fatalf("rows = %#v", result.Rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteRequiresSQL(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := NewEngine(db).Execute(context.Background(), query.Request{SQL: "  "}); err == nil {
		t.Fatal("expected error for empty sql")
	}
}

func seedSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.sqlite")
	db, err := sql.Open("sqlite", SQLiteDSN(path, false))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = db.Close() }()
	stmts := []string{
		`CREATE TABLE product (product_link TEXT, title TEXT, brand TEXT, price INTEGER, discount REAL, avg_rating REAL, total_ratings INTEGER)`,
		`INSERT INTO product VALUES ('https://shop/p1', 'Puma Runner', 'PUMA', 2499, 0.35, 4.2, 120)`,
		`INSERT INTO product VALUES ('https://shop/p2', 'Nike Pegasus', 'Nike', 7999, 0.1, 4.6, 900)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	return path
}

func openReadOnly(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), DBConfig{Dialect: DialectSQLite, DSN: SQLiteDSN(path, true), MaxOpenConns: 2})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteLikeMatchIsCaseInsensitive(t *testing.T) {
	engine := NewEngine(openReadOnly(t, seedSQLite(t)))
	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT * FROM product WHERE brand LIKE '%puma%' AND price < 3000",
		RowLimit: 10,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	records := result.Records()
	if len(records) != 1 || records[0]["title"] != "Puma Runner" {
		t.Fatalf("Records() = %#v", records)
	}
	if len(result.Columns) != 7 {
		t.Fatalf("columns = %v", result.Columns)
	}
	if err := engine.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
}

func TestSQLiteEmptyMatchIsNotAnError(t *testing.T) {
	engine := NewEngine(openReadOnly(t, seedSQLite(t)))
	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT * FROM product WHERE brand LIKE '%adidas%'"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Empty() {
		t.Fatalf("expected empty result, got %#v", result.Rows)
	}
}

func TestSQLiteUnknownColumnFails(t *testing.T) {
	engine := NewEngine(openReadOnly(t, seedSQLite(t)))
	_, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT * FROM product WHERE size = 9"})
	if err == nil || !strings.Contains(err.Error(), "size") {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestSQLiteReadOnlyHandleRejectsWrites(t *testing.T) {
	path := seedSQLite(t)
	engine := NewEngine(openReadOnly(t, path))
	if _, err := engine.Execute(context.Background(), query.Request{SQL: "DELETE FROM product"}); err == nil {
		t.Fatal("expected write through read-only handle to fail")
	}
	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT * FROM product"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d, store was modified", len(result.Rows))
	}
}

func TestOpenValidatesConfig(t *testing.T) {
	if _, err := Open(context.Background(), DBConfig{Dialect: DialectSQLite}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := Open(context.Background(), DBConfig{Dialect: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected error for unsupported dialect")
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := SQLiteDSN(":memory:", true); got != MemoryPath {
		t.Fatalf("SQLiteDSN(:memory:) = %q", got)
	}
	got := SQLiteDSN("data/db.sqlite", true)
	if !strings.HasPrefix(got, "file:data/db.sqlite?") || !strings.Contains(got, "mode=ro") || !strings.Contains(got, "query_only(1)") {
		t.Fatalf("SQLiteDSN() = %q", got)
	}
	if strings.Contains(SQLiteDSN("db.sqlite", false), "mode=ro") {
		t.Fatal("writable DSN must not be read-only")
	}
}
