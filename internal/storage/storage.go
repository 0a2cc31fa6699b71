// Package storage holds the object store contract the catalog snapshot moves
// through: the loader publishes Parquet snapshots and the DuckDB engine reads
// them back. Snapshots are immutable once written, so the contract has no
// delete or list operation.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned for a missing key or bucket.
var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

type PutOptions struct {
	// ContentType defaults to a type derived from the key extension.
	ContentType string
}

// SnapshotReader is what a query engine needs to serve a snapshot.
type SnapshotReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// SnapshotWriter is what the loader needs to publish a snapshot and to tell
// whether one already exists.
type SnapshotWriter interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

type ObjectStore interface {
	SnapshotReader
	SnapshotWriter
}

// Exists reports whether key is present. A missing object is not an error.
func Exists(ctx context.Context, store SnapshotWriter, key string) (bool, error) {
	if _, err := store.Stat(ctx, key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
