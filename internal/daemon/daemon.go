// Package daemon wires the retention synchronizer to a monitoring
// scheduler's lifecycle: load and reconcile at startup, periodic
// checkpoint saves while running, and a final save on shutdown.
package daemon

import (
	"sync"

	"git.home.luguber.info/inful/retentiond/internal/config"
	"git.home.luguber.info/inful/retentiond/internal/retention"
)

// Daemon is the contract a monitoring scheduler exposes to the
// retention layer. It owns the in-memory object state; the retention
// layer never inspects the opaque per-object blobs it transports.
type Daemon interface {
	// RetentionSnapshot produces a fresh snapshot of all retained state.
	RetentionSnapshot() (*retention.Snapshot, error)

	// RestoreRetention hands a loaded snapshot back to the scheduler.
	RestoreRetention(*retention.Snapshot) error

	// KnownIdentities enumerates the hosts and services the scheduler
	// currently owns, without their state.
	KnownIdentities() (*retention.IdentitySet, error)
}

// StaticDaemon is a Daemon backed by a fixed inventory and an in-memory
// snapshot. The CLI uses it for one-shot passes where no live scheduler
// is attached; tests use it as a scheduler stand-in.
type StaticDaemon struct {
	mu       sync.Mutex
	known    *retention.IdentitySet
	snapshot *retention.Snapshot
	restored bool
}

// NewStaticDaemon builds a static daemon from a configured inventory.
func NewStaticDaemon(inv config.InventoryConfig) *StaticDaemon {
	known := retention.NewIdentitySet()
	for _, h := range inv.Hosts {
		known.AddHost(h)
	}
	for _, s := range inv.Services {
		known.AddService(s.Host, s.Description)
	}
	return &StaticDaemon{known: known, snapshot: retention.NewSnapshot()}
}

// SetState seeds retained state for one host, for tests and demos.
func (d *StaticDaemon) SetState(host string, state []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.known.AddHost(host)
	d.snapshot.Hosts[host] = state
}

// SetServiceState seeds retained state for one service.
func (d *StaticDaemon) SetServiceState(host, description string, state []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.known.AddService(host, description)
	d.snapshot.Services[retention.ServiceID{Host: host, Description: description}] = state
}

// RetentionSnapshot returns a copy of the current in-memory snapshot.
func (d *StaticDaemon) RetentionSnapshot() (*retention.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := retention.NewSnapshot()
	for name, state := range d.snapshot.Hosts {
		snap.Hosts[name] = state
	}
	for id, state := range d.snapshot.Services {
		snap.Services[id] = state
	}
	return snap, nil
}

// RestoreRetention replaces the in-memory snapshot with a loaded one.
func (d *StaticDaemon) RestoreRetention(snap *retention.Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if snap == nil {
		snap = retention.NewSnapshot()
	}
	d.snapshot = snap
	d.restored = true
	return nil
}

// Restored reports whether RestoreRetention has been called.
func (d *StaticDaemon) Restored() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.restored
}

// KnownIdentities returns the configured inventory.
func (d *StaticDaemon) KnownIdentities() (*retention.IdentitySet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.known, nil
}
