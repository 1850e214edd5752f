package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPassID     = "pass_id"
	KeyPass       = "pass"
	KeyBackend    = "backend"
	KeyStoreKey   = "key"
	KeyHost       = "host"
	KeyService    = "service"
	KeyWritten    = "written"
	KeyRead       = "read"
	KeyDeleted    = "deleted"
	KeySkipped    = "skipped"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func PassID(id string) slog.Attr      { return slog.String(KeyPassID, id) }
func Pass(name string) slog.Attr      { return slog.String(KeyPass, name) }
func Backend(b string) slog.Attr      { return slog.String(KeyBackend, b) }
func StoreKey(k string) slog.Attr     { return slog.String(KeyStoreKey, k) }
func Host(h string) slog.Attr         { return slog.String(KeyHost, h) }
func Service(s string) slog.Attr      { return slog.String(KeyService, s) }
func Written(n int) slog.Attr         { return slog.Int(KeyWritten, n) }
func Read(n int) slog.Attr            { return slog.Int(KeyRead, n) }
func Deleted(n int) slog.Attr         { return slog.Int(KeyDeleted, n) }
func Skipped(n int) slog.Attr         { return slog.Int(KeySkipped, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
