package loader

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/shopassist/shopassist/internal/catalog"
	"github.com/shopassist/shopassist/internal/storage"
)

func EncodeParquet(products []catalog.Product) ([]byte, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("products are required")
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[catalog.Product](buf)
	if _, err := writer.Write(products); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// SnapshotTarget publishes the catalog as a Parquet snapshot in object storage.
type SnapshotTarget struct {
	Store storage.SnapshotWriter
	Now   func() time.Time

	LastRef storage.SnapshotRef
}

func (t *SnapshotTarget) Name() string { return "snapshot" }

func (t *SnapshotTarget) Populated(ctx context.Context) (bool, error) {
	key, err := storage.BuildCurrentSnapshotPath(catalog.ProductTable)
	if err != nil {
		return false, err
	}
	exists, err := storage.Exists(ctx, t.Store, key)
	if err != nil {
		return false, fmt.Errorf("stat current snapshot: %w", err)
	}
	return exists, nil
}

func (t *SnapshotTarget) Write(ctx context.Context, products []catalog.Product) (int, error) {
	data, err := EncodeParquet(products)
	if err != nil {
		return 0, err
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	ref, err := storage.PublishSnapshot(ctx, t.Store, catalog.ProductTable, data, now().UTC())
	if err != nil {
		return 0, err
	}
	t.LastRef = ref
	return len(products), nil
}
