package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

type SnapshotRef struct {
	VersionKey string
	CurrentKey string
	Size       int64
}

// PublishSnapshot writes an immutable copy of a table snapshot and then
// replaces the current pointer object. Readers of the current key see either
// the previous or the new snapshot, never a partial one.
func PublishSnapshot(ctx context.Context, store SnapshotWriter, tableName string, data []byte, takenAt time.Time) (SnapshotRef, error) {
	if store == nil {
		return SnapshotRef{}, fmt.Errorf("object store is required")
	}
	if len(data) == 0 {
		return SnapshotRef{}, fmt.Errorf("snapshot is empty")
	}
	versionKey, err := BuildCatalogSnapshotPath(tableName, takenAt)
	if err != nil {
		return SnapshotRef{}, err
	}
	currentKey, err := BuildCurrentSnapshotPath(tableName)
	if err != nil {
		return SnapshotRef{}, err
	}
	size := int64(len(data))
	for _, key := range []string{versionKey, currentKey} {
		if _, err := store.Put(ctx, key, bytes.NewReader(data), size, PutOptions{}); err != nil {
			return SnapshotRef{}, fmt.Errorf("publish snapshot %q: %w", key, err)
		}
	}
	return SnapshotRef{VersionKey: versionKey, CurrentKey: currentKey, Size: size}, nil
}
