package query

import "testing"

func TestPrepareSQLStripsSemicolonsAndWrapsLimit(t *testing.T) {
	got, err := PrepareSQL(Request{SQL: " SELECT * FROM product ; ;", RowLimit: 3})
	if err != nil {
		t.Fatalf("PrepareSQL() error = %v", err)
	}
	want := "SELECT * FROM (SELECT * FROM product) AS q LIMIT 3"
	if got != want {
		t.Fatalf("PrepareSQL() = %q, want %q", got, want)
	}

	got, err = PrepareSQL(Request{SQL: "SELECT * FROM product;"})
	if err != nil {
		t.Fatalf("PrepareSQL() error = %v", err)
	}
	if got != "SELECT * FROM product" {
		t.Fatalf("PrepareSQL() = %q", got)
	}

	if _, err := PrepareSQL(Request{SQL: " ; "}); err == nil {
		t.Fatal("expected error for empty sql")
	}
}

func TestRecordsKeepRowOrder(t *testing.T) {
	result := Result{
		Columns: []string{"title", "price"},
		Rows:    [][]any{{"A", int64(10)}, {"B", int64(20)}},
	}
	records := result.Records()
	if len(records) != 2 || records[0]["title"] != "A" || records[1]["price"] != int64(20) {
		t.Fatalf("Records() = %#v", records)
	}
	if result.Empty() {
		t.Fatal("Empty() = true")
	}
	if !(Result{Columns: []string{"title"}}).Empty() {
		t.Fatal("Empty() = false for zero rows")
	}
}
