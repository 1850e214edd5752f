package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	reterrors "git.home.luguber.info/inful/retentiond/internal/errors"
	"git.home.luguber.info/inful/retentiond/internal/logfields"
	"git.home.luguber.info/inful/retentiond/internal/metrics"
	"git.home.luguber.info/inful/retentiond/internal/store"
)

// SaveStats summarizes a completed save pass.
type SaveStats struct {
	Hosts    int
	Services int
}

// Written reports the total number of records written.
func (s SaveStats) Written() int { return s.Hosts + s.Services }

// LoadStats summarizes a completed load pass.
type LoadStats struct {
	Hosts    int
	Services int
	Missing  int // identities with no stored state (new objects)
}

// Read reports the total number of records read.
func (s LoadStats) Read() int { return s.Hosts + s.Services }

// ReconcileStats summarizes a completed reconciliation pass.
type ReconcileStats struct {
	Scanned int
	Deleted int
	Skipped int // unparseable keys and failed deletes, both left in place
}

// Synchronizer drives the save, load, and reconciliation passes against
// an injected key-value client. It holds no durable state of its own.
type Synchronizer struct {
	kv       store.KV
	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewSynchronizer creates a synchronizer over the given store client.
// A nil logger falls back to slog.Default; a nil recorder disables metrics.
func NewSynchronizer(kv store.KV, logger *slog.Logger, recorder metrics.Recorder) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Synchronizer{kv: kv, logger: logger, recorder: recorder}
}

// Save writes every record in the snapshot to the store, one independent
// set per key. There is no transaction across the snapshot: on the first
// failed write the pass aborts and the error propagates, leaving the
// store partially updated. The caller is expected to retry a full save
// at the next checkpoint. Keys for objects that disappeared from the
// scheduler since the previous save are not touched here; cleanup is
// deferred to Reconcile.
func (s *Synchronizer) Save(ctx context.Context, snap *Snapshot) (SaveStats, error) {
	start := time.Now()
	var stats SaveStats

	if snap == nil {
		snap = NewSnapshot()
	}

	ids := IdentitiesOf(snap)
	for _, name := range ids.Hosts() {
		key := HostKey(name)
		if err := s.writeRecord(ctx, key, snap.Hosts[name]); err != nil {
			s.failPass(metrics.PassSave, key, err, logfields.Host(name))
			return stats, err
		}
		stats.Hosts++
	}
	for _, id := range ids.Services() {
		key := ServiceKey(id.Host, id.Description)
		if err := s.writeRecord(ctx, key, snap.Services[id]); err != nil {
			s.failPass(metrics.PassSave, key, err, logfields.Host(id.Host), logfields.Service(id.Description))
			return stats, err
		}
		stats.Services++
	}

	s.recorder.AddRecords(metrics.PassSave, metrics.OpWritten, stats.Written())
	s.finishPass(metrics.PassSave, start,
		logfields.Written(stats.Written()),
		slog.Int("hosts", stats.Hosts),
		slog.Int("services", stats.Services))
	return stats, nil
}

func (s *Synchronizer) writeRecord(ctx context.Context, key string, state []byte) error {
	payload, err := EncodePayload(state)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, payload); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Load fetches the stored state for every known identity and assembles a
// snapshot. Missing keys are tolerated: a new object simply has no
// history. Store-connectivity errors and payload decode errors propagate
// so the scheduler can decide between starting with empty retention and
// halting.
func (s *Synchronizer) Load(ctx context.Context, known *IdentitySet) (*Snapshot, LoadStats, error) {
	start := time.Now()
	var stats LoadStats
	snap := NewSnapshot()

	if known == nil {
		known = NewIdentitySet()
	}

	for _, name := range known.Hosts() {
		key := HostKey(name)
		state, found, err := s.readRecord(ctx, key)
		if err != nil {
			s.failPass(metrics.PassLoad, key, err, logfields.Host(name))
			return nil, stats, err
		}
		if !found {
			stats.Missing++
			continue
		}
		snap.Hosts[name] = state
		stats.Hosts++
	}
	for _, id := range known.Services() {
		key := ServiceKey(id.Host, id.Description)
		state, found, err := s.readRecord(ctx, key)
		if err != nil {
			s.failPass(metrics.PassLoad, key, err, logfields.Host(id.Host), logfields.Service(id.Description))
			return nil, stats, err
		}
		if !found {
			stats.Missing++
			continue
		}
		snap.Services[id] = state
		stats.Services++
	}

	s.recorder.AddRecords(metrics.PassLoad, metrics.OpRead, stats.Read())
	s.finishPass(metrics.PassLoad, start,
		logfields.Read(stats.Read()),
		slog.Int("hosts", stats.Hosts),
		slog.Int("services", stats.Services),
		slog.Int("missing", stats.Missing))
	return snap, stats, nil
}

func (s *Synchronizer) readRecord(ctx context.Context, key string) (state []byte, found bool, err error) {
	payload, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	state, err = DecodePayload(payload)
	if err != nil {
		// Corrupt stored state: failing loudly beats silently dropping
		// the object's history.
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return state, true, nil
}

// Reconcile scans every key in the store and deletes entries whose
// decoded identity the scheduler no longer owns. It runs once, after a
// successful Load. Keys matching neither prefix are skipped, never
// deleted; a failed delete is logged and skipped. Only the scan itself
// can fail the pass.
//
// The scan is a full enumeration of the store and must not run against
// a store shared by several scheduler instances: each instance only
// knows its own identities and would delete the others' entries.
func (s *Synchronizer) Reconcile(ctx context.Context, known *IdentitySet) (ReconcileStats, error) {
	start := time.Now()
	var stats ReconcileStats

	if known == nil {
		known = NewIdentitySet()
	}

	keys, err := s.kv.Keys(ctx, "*")
	if err != nil {
		err = reterrors.Wrap(err, reterrors.CategoryStore, reterrors.SeverityError, "reconcile key scan").
			WithContext("pattern", "*")
		s.failPass(metrics.PassReconcile, "", err)
		return stats, err
	}
	stats.Scanned = len(keys)

	for _, key := range keys {
		kind, host, desc := DecodeKey(key)
		var stale bool
		switch kind {
		case KindHost:
			stale = !known.HasHost(host)
		case KindService:
			stale = !known.HasService(host, desc)
		default:
			// Not a retention key. Conservative about data we do not
			// understand: skip, never delete.
			s.logger.Debug("Skipping unrecognized store key", logfields.StoreKey(key))
			stats.Skipped++
			continue
		}
		if !stale {
			continue
		}
		if err := s.kv.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to delete stale retention key",
				logfields.StoreKey(key), logfields.Error(err))
			stats.Skipped++
			continue
		}
		stats.Deleted++
	}

	s.recorder.AddRecords(metrics.PassReconcile, metrics.OpDeleted, stats.Deleted)
	s.recorder.AddRecords(metrics.PassReconcile, metrics.OpSkipped, stats.Skipped)
	s.finishPass(metrics.PassReconcile, start,
		slog.Int("scanned", stats.Scanned),
		logfields.Deleted(stats.Deleted),
		logfields.Skipped(stats.Skipped))
	return stats, nil
}

func (s *Synchronizer) finishPass(pass string, start time.Time, attrs ...slog.Attr) {
	d := time.Since(start)
	s.recorder.ObservePassDuration(pass, d)
	s.recorder.IncPassOutcome(pass, metrics.OutcomeSuccess)
	args := make([]any, 0, len(attrs)+2)
	args = append(args, logfields.Pass(pass), logfields.DurationMS(float64(d.Milliseconds())))
	for _, a := range attrs {
		args = append(args, a)
	}
	s.logger.Info("Retention pass completed", args...)
}

func (s *Synchronizer) failPass(pass, key string, err error, extra ...slog.Attr) {
	s.recorder.IncPassOutcome(pass, metrics.OutcomeFailed)
	attrs := []any{logfields.Pass(pass), logfields.Error(err)}
	if key != "" {
		attrs = append(attrs, logfields.StoreKey(key))
	}
	for _, a := range extra {
		attrs = append(attrs, a)
	}
	s.logger.Error("Retention pass failed", attrs...)
}
