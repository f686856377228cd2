package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyInvocationID = "invocation_id"
	KeyTarget       = "target"
	KeyTask         = "task"
	KeyKind         = "kind"
	KeyState        = "state"
	KeyChanged      = "changed"
	KeyPath         = "path"
	KeyDurationMS   = "duration_ms"
	KeyError        = "error"
)

func InvocationID(id string) slog.Attr { return slog.String(KeyInvocationID, id) }
func Target(name string) slog.Attr     { return slog.String(KeyTarget, name) }
func Task(desc string) slog.Attr       { return slog.String(KeyTask, desc) }
func Kind(k string) slog.Attr          { return slog.String(KeyKind, k) }
func State(s string) slog.Attr         { return slog.String(KeyState, s) }
func Changed(c bool) slog.Attr         { return slog.Bool(KeyChanged, c) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }

// Duration records d in fractional milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
