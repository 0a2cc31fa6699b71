package loader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/shopassist/shopassist/internal/catalog"
	"github.com/shopassist/shopassist/internal/query"
	"github.com/shopassist/shopassist/internal/query/sqlstore"
	"github.com/shopassist/shopassist/internal/storage"
)

const sampleCSV = `title,brand,price,discount,avg_rating,total_ratings,product_link,category
Puma Runner,Puma,2499.0,0.35,4.2,120,https://shop.example/p1,shoes
Nike Pegasus,Nike,7999,0.1,4.6,900,https://shop.example/p2,shoes

Campus Walk,Campus,899,0,3.9,45,https://shop.example/p3,shoes
`

func TestReadCSVMapsColumnsByHeader(t *testing.T) {
	products, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("len(products) = %d", len(products))
	}
	first := products[0]
	if first.Title != "Puma Runner" || first.Price != 2499 || first.Discount != 0.35 || first.TotalRatings != 120 {
		t.Fatalf("first product = %+v", first)
	}
	if first.ProductLink != "https://shop.example/p1" {
		t.Fatalf("ProductLink = %q", first.ProductLink)
	}
}

func TestReadCSVRejectsMissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("title,brand,price\nA,B,1\n"))
	if err == nil {
		t.Fatal("expected header error")
	}
	if !strings.Contains(err.Error(), "discount") || !strings.Contains(err.Error(), "product_link") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadCSVReportsLineOfBadValue(t *testing.T) {
	input := "product_link,title,brand,price,discount,avg_rating,total_ratings\n" +
		"l1,A,B,100,0.2,4,10\n" +
		"l2,C,D,abc,0.2,4,10\n"
	_, err := ReadCSV(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	input = "product_link,title,brand,price,discount,avg_rating,total_ratings\nl1,A,B,100,35,4,10\n"
	if _, err := ReadCSV(strings.NewReader(input)); err == nil {
		t.Fatal("expected discount range error")
	}
}

func TestReadCSVRejectsNegativeCounts(t *testing.T) {
	header := "product_link,title,brand,price,discount,avg_rating,total_ratings\n"
	cases := map[string]string{
		"negative integer price":  "l1,A,B,-5,0.2,4,10\n",
		"negative float price":    "l1,A,B,-5.0,0.2,4,10\n",
		"negative total_ratings":  "l1,A,B,100,0.2,4,-5\n",
		"rounded negative rating": "l1,A,B,100,0.2,4,-0.4\n",
	}
	for name, row := range cases {
		_, err := ReadCSV(strings.NewReader(header + row))
		if err == nil || !strings.Contains(err.Error(), "negative") {
			t.Fatalf("%s: ReadCSV() error = %v, want negative value error", name, err)
		}
	}
}

func TestReadCSVRejectsEmptyInput(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Fatal("expected empty csv error")
	}
}

func TestEncodeParquetRoundTrip(t *testing.T) {
	products, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	data, err := EncodeParquet(products)
	if err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}

	reader := parquet.NewGenericReader[catalog.Product](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()
	rows := make([]catalog.Product, len(products))
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader.Read() error = %v", err)
	}
	if count != len(products) {
		t.Fatalf("read rows = %d", count)
	}
	if rows[1] != products[1] {
		t.Fatalf("row = %+v, want %+v", rows[1], products[1])
	}

	if _, err := EncodeParquet(nil); err == nil {
		t.Fatal("expected error for empty product list")
	}
}

func TestLoadIntoSQLiteThenSkipUnlessForced(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.sqlite")
	db, err := sqlstore.Open(ctx, sqlstore.DBConfig{Dialect: sqlstore.DialectSQLite, DSN: sqlstore.SQLiteDSN(path, false)})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	target := &SQLTarget{DB: db, Dialect: sqlstore.DialectSQLite}

	report, err := Load(ctx, strings.NewReader(sampleCSV), target, Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if report.Skipped || report.Written != 3 || report.Target != "sqlite" {
		t.Fatalf("Load() report = %+v", report)
	}

	report, err = Load(ctx, strings.NewReader("not even a header"), target, Options{})
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if !report.Skipped {
		t.Fatalf("second Load() report = %+v, want skipped", report)
	}

	forced := "product_link,title,brand,price,discount,avg_rating,total_ratings\nl9,Solo,Brand,10,0,5,1\n"
	if _, err := Load(ctx, strings.NewReader(forced), target, Options{Force: true}); err != nil {
		t.Fatalf("forced Load() error = %v", err)
	}
	count, err := CountProducts(ctx, db)
	if err != nil {
		t.Fatalf("CountProducts() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("CountProducts() = %d, want 1 after forced reload", count)
	}
}

func TestLoadedSQLiteCatalogIsQueryableReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.sqlite")
	db, err := sqlstore.Open(ctx, sqlstore.DBConfig{Dialect: sqlstore.DialectSQLite, DSN: sqlstore.SQLiteDSN(path, false)})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := Load(ctx, strings.NewReader(sampleCSV), &SQLTarget{DB: db, Dialect: sqlstore.DialectSQLite}, Options{}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	_ = db.Close()

	readDB, err := sqlstore.Open(ctx, sqlstore.DBConfig{Dialect: sqlstore.DialectSQLite, DSN: sqlstore.SQLiteDSN(path, true)})
	if err != nil {
		t.Fatalf("Open(read-only) error = %v", err)
	}
	defer func() { _ = readDB.Close() }()

	result, err := sqlstore.NewEngine(readDB).Execute(ctx, query.Request{SQL: "SELECT * FROM product WHERE brand LIKE '%nike%'"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	records := result.Records()
	if len(records) != 1 || records[0]["title"] != "Nike Pegasus" {
		t.Fatalf("Records() = %#v", records)
	}
}

func TestInsertStatementPlaceholdersPerDialect(t *testing.T) {
	pg, err := insertStatement(sqlstore.DialectPostgres)
	if err != nil {
		t.Fatalf("insertStatement(postgres) error = %v", err)
	}
	if !strings.Contains(pg, "VALUES ($1, $2, $3, $4, $5, $6, $7)") {
		t.Fatalf("postgres statement = %q", pg)
	}
	lite, err := insertStatement(sqlstore.DialectSQLite)
	if err != nil {
		t.Fatalf("insertStatement(sqlite) error = %v", err)
	}
	if !strings.Contains(lite, "VALUES (?, ?, ?, ?, ?, ?, ?)") {
		t.Fatalf("sqlite statement = %q", lite)
	}
	if _, err := insertStatement("oracle"); err == nil {
		t.Fatal("expected unsupported dialect error")
	}
}

func TestSnapshotTargetPublishesVersionAndCurrent(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	target := &SnapshotTarget{Store: store, Now: func() time.Time {
		return time.Date(2026, time.March, 4, 9, 30, 0, 0, time.UTC)
	}}

	report, err := Load(context.Background(), strings.NewReader(sampleCSV), target, Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if report.Written != 3 {
		t.Fatalf("report = %+v", report)
	}
	if target.LastRef.CurrentKey != "catalog/product/current.parquet" {
		t.Fatalf("CurrentKey = %q", target.LastRef.CurrentKey)
	}
	if target.LastRef.VersionKey != "catalog/product/date=2026-03-04/snapshot-20260304T093000Z.parquet" {
		t.Fatalf("VersionKey = %q", target.LastRef.VersionKey)
	}
	if len(store.objects) != 2 {
		t.Fatalf("objects = %d, want 2", len(store.objects))
	}

	populated, err := target.Populated(context.Background())
	if err != nil || !populated {
		t.Fatalf("Populated() = %v, %v", populated, err)
	}
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}
