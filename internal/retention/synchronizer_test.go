package retention

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	reterrors "git.home.luguber.info/inful/retentiond/internal/errors"
	"git.home.luguber.info/inful/retentiond/internal/store"
)

// faultyStore wraps a KV and fails selected operations, for exercising
// abort and skip paths.
type faultyStore struct {
	store.KV
	failSetOn    string // key that makes Set fail
	failDeleteOn string // key that makes Delete fail
	failKeys     bool
}

func (f *faultyStore) Set(ctx context.Context, key string, value []byte) error {
	if key == f.failSetOn {
		return reterrors.StoreUnavailable(fmt.Errorf("injected"), "set "+key)
	}
	return f.KV.Set(ctx, key, value)
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if key == f.failDeleteOn {
		return reterrors.StoreUnavailable(fmt.Errorf("injected"), "delete "+key)
	}
	return f.KV.Delete(ctx, key)
}

func (f *faultyStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if f.failKeys {
		return nil, reterrors.StoreUnavailable(fmt.Errorf("injected"), "scan")
	}
	return f.KV.Keys(ctx, pattern)
}

func testSnapshot() *Snapshot {
	snap := NewSnapshot()
	snap.Hosts["web01"] = []byte("state-web01")
	snap.Hosts["db 1"] = []byte("state-db1")
	snap.Services[ServiceID{"web01", "CPU load"}] = []byte("state-cpu")
	snap.Services[ServiceID{"web01", "http"}] = []byte("state-http")
	return snap
}

func TestSaveWritesEveryRecord(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	sync := NewSynchronizer(mem, nil, nil)

	stats, err := sync.Save(ctx, testSnapshot())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if stats.Hosts != 2 || stats.Services != 2 {
		t.Errorf("stats = %+v, want 2 hosts and 2 services", stats)
	}

	for _, key := range []string{"HOST-web01", "HOST-db 1", "SERVICE-web01,CPUSPACEload", "SERVICE-web01,http"} {
		if _, err := mem.Get(ctx, key); err != nil {
			t.Errorf("expected key %q in store: %v", key, err)
		}
	}
}

func TestSaveThenLoadIdempotence(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	sync := NewSynchronizer(mem, nil, nil)

	original := testSnapshot()
	if _, err := sync.Save(ctx, original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, stats, err := sync.Load(ctx, IdentitiesOf(original))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.Read() != 4 || stats.Missing != 0 {
		t.Errorf("stats = %+v, want 4 read and 0 missing", stats)
	}

	for name, want := range original.Hosts {
		if got := loaded.Hosts[name]; !bytes.Equal(got, want) {
			t.Errorf("host %q state = %q, want %q", name, got, want)
		}
	}
	for id, want := range original.Services {
		if got := loaded.Services[id]; !bytes.Equal(got, want) {
			t.Errorf("service %v state = %q, want %q", id, got, want)
		}
	}
}

func TestLoadToleratesMissingKeys(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	sync := NewSynchronizer(mem, nil, nil)

	known := NewIdentitySet()
	known.AddHost("brand-new-host")
	known.AddService("brand-new-host", "ping")

	snap, stats, err := sync.Load(ctx, known)
	if err != nil {
		t.Fatalf("Load should tolerate missing keys: %v", err)
	}
	if len(snap.Hosts) != 0 || len(snap.Services) != 0 {
		t.Errorf("snapshot should be empty, got %d hosts %d services", len(snap.Hosts), len(snap.Services))
	}
	if stats.Missing != 2 {
		t.Errorf("stats.Missing = %d, want 2", stats.Missing)
	}
}

func TestLoadPropagatesDecodeError(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	sync := NewSynchronizer(mem, nil, nil)

	// Corrupt payload straight into the store, bypassing the codec.
	if err := mem.Set(ctx, "HOST-web01", []byte("not a payload")); err != nil {
		t.Fatal(err)
	}

	known := NewIdentitySet()
	known.AddHost("web01")

	_, _, err := sync.Load(ctx, known)
	if err == nil {
		t.Fatal("Load should fail on a corrupt payload")
	}
	var re *reterrors.RetentionError
	if !errors.As(err, &re) || re.Category != reterrors.CategoryCodec {
		t.Errorf("want codec-category error, got %v", err)
	}
}

func TestSaveAbortsOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	// Hosts iterate sorted: "db 1" before "web01". Failing on web01
	// verifies earlier writes land and the pass still errors.
	kv := &faultyStore{KV: mem, failSetOn: "HOST-web01"}
	sync := NewSynchronizer(kv, nil, nil)

	snap := NewSnapshot()
	snap.Hosts["db 1"] = []byte("a")
	snap.Hosts["web01"] = []byte("b")
	snap.Services[ServiceID{"web01", "http"}] = []byte("c")

	_, err := sync.Save(ctx, snap)
	if err == nil {
		t.Fatal("Save should propagate the write failure")
	}
	if _, getErr := mem.Get(ctx, "HOST-db 1"); getErr != nil {
		t.Error("write before the failure should have landed")
	}
	// The failing write aborts the pass: the service record is never attempted.
	if _, getErr := mem.Get(ctx, "SERVICE-web01,http"); !errors.Is(getErr, store.ErrKeyNotFound) {
		t.Error("writes after the failure should not have been attempted")
	}
}

func TestReconcileDeletesStaleKeepsLive(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	sync := NewSynchronizer(mem, nil, nil)

	snap := NewSnapshot()
	snap.Hosts["hostA"] = []byte("a")
	snap.Hosts["hostB"] = []byte("b")
	snap.Services[ServiceID{"hostB", "CPU load"}] = []byte("c")
	if _, err := sync.Save(ctx, snap); err != nil {
		t.Fatal(err)
	}

	// hostB and its service disappear from the scheduler's config.
	known := NewIdentitySet()
	known.AddHost("hostA")

	stats, err := sync.Reconcile(ctx, known)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if stats.Deleted != 2 {
		t.Errorf("stats.Deleted = %d, want 2", stats.Deleted)
	}
	if _, err := mem.Get(ctx, "HOST-hostA"); err != nil {
		t.Error("live key HOST-hostA must survive reconciliation")
	}
	if _, err := mem.Get(ctx, "HOST-hostB"); !errors.Is(err, store.ErrKeyNotFound) {
		t.Error("stale key HOST-hostB must be deleted")
	}
	if _, err := mem.Get(ctx, "SERVICE-hostB,CPUSPACEload"); !errors.Is(err, store.ErrKeyNotFound) {
		t.Error("stale service key must be deleted")
	}
}

func TestReconcileSkipsUnrecognizedKeys(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	sync := NewSynchronizer(mem, nil, nil)

	// Foreign data sharing the store, plus a malformed service key.
	_ = mem.Set(ctx, "session:42", []byte("x"))
	_ = mem.Set(ctx, "SERVICE-nocomma", []byte("y"))

	stats, err := sync.Reconcile(ctx, NewIdentitySet())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if stats.Skipped != 2 || stats.Deleted != 0 {
		t.Errorf("stats = %+v, want 2 skipped and 0 deleted", stats)
	}
	if _, err := mem.Get(ctx, "session:42"); err != nil {
		t.Error("unrecognized keys must never be deleted")
	}
	if _, err := mem.Get(ctx, "SERVICE-nocomma"); err != nil {
		t.Error("malformed service keys must never be deleted")
	}
}

func TestReconcileContinuesPastDeleteFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	kv := &faultyStore{KV: mem, failDeleteOn: "HOST-goneA"}
	sync := NewSynchronizer(kv, nil, nil)

	_ = mem.Set(ctx, "HOST-goneA", mustEncode(t, []byte("a")))
	_ = mem.Set(ctx, "HOST-goneB", mustEncode(t, []byte("b")))

	stats, err := sync.Reconcile(ctx, NewIdentitySet())
	if err != nil {
		t.Fatalf("a failed delete must not fail the pass: %v", err)
	}
	if stats.Deleted != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 1 deleted and 1 skipped", stats)
	}
}

func TestReconcileFailsOnScanError(t *testing.T) {
	sync := NewSynchronizer(&faultyStore{KV: store.NewMemoryStore(), failKeys: true}, nil, nil)
	_, err := sync.Reconcile(context.Background(), NewIdentitySet())
	if err == nil {
		t.Fatal("Reconcile must propagate a scan failure")
	}
	var re *reterrors.RetentionError
	if !errors.As(err, &re) {
		t.Fatalf("want structured error, got %v", err)
	}
	if re.Context["pattern"] != "*" {
		t.Errorf("scan error should carry the pattern, got context %v", re.Context)
	}
}

func TestFailureLogCarriesIdentityFields(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	kv := &faultyStore{KV: store.NewMemoryStore(), failSetOn: "SERVICE-web01,CPUSPACEload"}
	sync := NewSynchronizer(kv, logger, nil)

	snap := NewSnapshot()
	snap.Services[ServiceID{"web01", "CPU load"}] = []byte("state")
	if _, err := sync.Save(ctx, snap); err == nil {
		t.Fatal("Save should propagate the write failure")
	}

	out := buf.String()
	if !strings.Contains(out, "host=web01") {
		t.Errorf("failure log missing host field: %s", out)
	}
	if !strings.Contains(out, `service="CPU load"`) {
		t.Errorf("failure log missing service field: %s", out)
	}
}

func mustEncode(t *testing.T, state []byte) []byte {
	t.Helper()
	payload, err := EncodePayload(state)
	if err != nil {
		t.Fatal(err)
	}
	return payload
}
