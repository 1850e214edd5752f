// Package retention implements the persistence protocol between a
// monitoring scheduler and an external key-value store: the key-naming
// scheme, the payload codec, and the save/load/reconcile passes that move
// retained host and service state across process restarts.
//
// # Key layout
//
// The store holds one entry per monitored object:
//
//	HOST-<hostName>                                -> encoded host state
//	SERVICE-<hostName>,<serviceDescription>        -> encoded service state
//
// Spaces in the service identity are replaced by the literal token
// "SPACE" because the target key alphabet forbids whitespace. The
// substitution is reversed exactly on decode. A host name or service
// description that itself contains the token "SPACE" (or a host name
// containing a comma) would collide after encoding; this is a documented
// limitation of the layout, inherited for compatibility with stores
// written by earlier deployments, and is not validated here.
//
// # Ownership
//
// The store is the sole owner of durable state and the scheduler owns
// the in-memory snapshot; the Synchronizer is a stateless transform
// between the two. Save, Load, and Reconcile run synchronously on the
// calling goroutine with no internal concurrency; the caller schedules
// them at lifecycle points (checkpoint, startup) and must not overlap
// them.
//
// Reconcile performs a full key scan and deletes entries for identities
// the scheduler no longer owns. It cannot distinguish "unknown to this
// scheduler" from "deleted everywhere", so it must be disabled when
// several scheduler instances share one store.
package retention
