package metrics

import "time"

// Pass names used as metric label values.
const (
	PassSave      = "save"
	PassLoad      = "load"
	PassReconcile = "reconcile"
)

// OutcomeLabel enumerates pass result categories for counters.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success"
	OutcomeFailed  OutcomeLabel = "failed"
)

// Record operation labels for the records counter.
const (
	OpWritten = "written"
	OpRead    = "read"
	OpDeleted = "deleted"
	OpSkipped = "skipped"
)

// Recorder defines observability hooks for retention passes. Implementations
// may forward to Prometheus, OpenTelemetry, etc. All methods must be safe for
// nil receivers when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObservePassDuration(pass string, d time.Duration)
	IncPassOutcome(pass string, outcome OutcomeLabel)
	AddRecords(pass, op string, n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePassDuration(string, time.Duration) {}
func (NoopRecorder) IncPassOutcome(string, OutcomeLabel)       {}
func (NoopRecorder) AddRecords(string, string, int)            {}
