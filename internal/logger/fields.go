package logger

import (
	"log/slog"
	"time"
)

// Standard field keys. Use them consistently so log queries keep working
// across the plugin, the daemon and the CLI.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeyComponent = "component" // credstore, plugin, api, watch
	KeyHook      = "hook"      // host lifecycle hook name
	KeyReload    = "reload"    // whether a hook runs as part of a reload
	KeyResult    = "result"    // authentication outcome or host result code
	KeyOp        = "op"        // store mutation: load, clear

	KeyUsername   = "username"
	KeyClientIP   = "client_ip"
	KeyRequestID  = "request_id"
	KeyMethod     = "method"
	KeyURI        = "uri"
	KeyStatus     = "status"
	KeyDurationMs = "duration_ms"

	KeyPath       = "path"       // users file path
	KeyCount      = "count"      // number of credential records
	KeyDuplicates = "duplicates" // usernames defined more than once
	KeyError      = "error"
)

// Component returns a slog.Attr naming the emitting component
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Hook returns a slog.Attr for a lifecycle hook name
func Hook(name string) slog.Attr {
	return slog.String(KeyHook, name)
}

// Reload returns a slog.Attr for the reload flag of a hook
func Reload(reload bool) slog.Attr {
	return slog.Bool(KeyReload, reload)
}

// Result returns a slog.Attr for an outcome
func Result(r string) slog.Attr {
	return slog.String(KeyResult, r)
}

// Username returns a slog.Attr for a username
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// ClientIP returns a slog.Attr for a client address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Path returns a slog.Attr for a file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Count returns a slog.Attr for a record count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Duplicates returns a slog.Attr listing duplicated usernames
func Duplicates(names []string) slog.Attr {
	return slog.Any(KeyDuplicates, names)
}

// DurationMs returns a slog.Attr for the time elapsed since start
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
