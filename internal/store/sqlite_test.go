package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	if err := s.Set(ctx, "HOST-web01", []byte("state")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "HOST-web01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "state" {
		t.Errorf("Get = %q, want state", got)
	}

	// Upsert semantics
	if err := s.Set(ctx, "HOST-web01", []byte("newer")); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, "HOST-web01")
	if string(got) != "newer" {
		t.Errorf("Get after overwrite = %q, want newer", got)
	}
}

func TestSQLiteStoreMissingKey(t *testing.T) {
	s := newTestSQLite(t)
	if _, err := s.Get(context.Background(), "absent"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get(absent) = %v, want ErrKeyNotFound", err)
	}
}

func TestSQLiteStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	_ = s.Set(ctx, "k", []byte("v"))

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrKeyNotFound) {
		t.Error("key should be gone after Delete")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete(absent) = %v, want nil", err)
	}
}

func TestSQLiteStoreKeysGlob(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	_ = s.Set(ctx, "HOST-a", []byte("1"))
	_ = s.Set(ctx, "SERVICE-a,ping", []byte("2"))
	_ = s.Set(ctx, "unrelated", []byte("3"))

	keys, err := s.Keys(ctx, "HOST-*")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "HOST-a" {
		t.Errorf("Keys(HOST-*) = %v, want [HOST-a]", keys)
	}

	all, err := s.Keys(ctx, "*")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Keys(*) = %d keys, want 3", len(all))
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "retention.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "HOST-web01", []byte("survives")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "HOST-web01")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "survives" {
		t.Errorf("Get after reopen = %q, want survives", got)
	}
}
