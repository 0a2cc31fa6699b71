package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

type recordingStore struct {
	keys   []string
	putErr error
}

func (r *recordingStore) Put(_ context.Context, key string, body io.Reader, size int64, _ PutOptions) (ObjectInfo, error) {
	if r.putErr != nil {
		return ObjectInfo{}, r.putErr
	}
	data, _ := io.ReadAll(body)
	if int64(len(data)) != size {
		return ObjectInfo{}, errors.New("size mismatch")
	}
	r.keys = append(r.keys, key)
	return ObjectInfo{Key: key, Size: size}, nil
}

func (r *recordingStore) Stat(context.Context, string) (ObjectInfo, error) {
	return ObjectInfo{}, ErrObjectNotFound
}

func TestPublishSnapshotWritesVersionThenCurrent(t *testing.T) {
	store := &recordingStore{}
	at := time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC)
	ref, err := PublishSnapshot(context.Background(), store, "product", []byte("PAR1"), at)
	if err != nil {
		t.Fatalf("PublishSnapshot() error = %v", err)
	}
	if len(store.keys) != 2 || store.keys[0] != ref.VersionKey || store.keys[1] != ref.CurrentKey {
		t.Fatalf("put order = %v, ref = %+v", store.keys, ref)
	}
	if ref.CurrentKey != "catalog/product/current.parquet" || ref.Size != 4 {
		t.Fatalf("ref = %+v", ref)
	}
}

func TestExistsTreatsMissingAsFalse(t *testing.T) {
	exists, err := Exists(context.Background(), &recordingStore{}, "catalog/product/current.parquet")
	if err != nil || exists {
		t.Fatalf("Exists() = %v, %v", exists, err)
	}
}

func TestPublishSnapshotRejectsEmptyData(t *testing.T) {
	if _, err := PublishSnapshot(context.Background(), &recordingStore{}, "product", nil, time.Now()); err == nil {
		t.Fatal("expected empty snapshot error")
	}
}

func TestPublishSnapshotStopsOnPutFailure(t *testing.T) {
	store := &recordingStore{putErr: errors.New("bucket gone")}
	if _, err := PublishSnapshot(context.Background(), store, "product", []byte("x"), time.Now()); err == nil {
		t.Fatal("expected put error")
	}
}
