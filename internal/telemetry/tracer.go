package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for authentication spans.
const (
	AttrClientIP  = "client.ip"
	AttrRequestID = "http.request_id"

	AttrUsername   = "user.name"
	AttrAuthResult = "auth.result"

	AttrHook       = "plugin.hook"
	AttrReload     = "plugin.reload"
	AttrHostResult = "plugin.result"

	AttrUsersFile  = "credentials.file"
	AttrUserCount  = "credentials.count"
	AttrDuplicates = "credentials.duplicates"

	AttrReloadTrigger = "reload.trigger"
)

// Span names. Format: <component>.<operation>
const (
	SpanSecurityInit    = "plugin.security_init"
	SpanSecurityCleanup = "plugin.security_cleanup"
	SpanUnpwdCheck      = "plugin.unpwd_check"
	SpanACLCheck        = "plugin.acl_check"
	SpanPSKKeyGet       = "plugin.psk_key_get"

	SpanLoadCredentials = "credentials.load"

	SpanHTTPAuth   = "api.auth"
	SpanHTTPReload = "api.reload"

	SpanDaemonReload = "daemon.reload"
)

// ClientIP returns an attribute for the client address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// RequestID returns an attribute for the HTTP request ID
func RequestID(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

// Username returns an attribute for the username being authenticated
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

// AuthResult returns an attribute for an authentication outcome
func AuthResult(result string) attribute.KeyValue {
	return attribute.String(AttrAuthResult, result)
}

// Reload returns an attribute for the reload flag of a lifecycle hook
func Reload(reload bool) attribute.KeyValue {
	return attribute.Bool(AttrReload, reload)
}

// HostResult returns an attribute for the status code returned to the host
func HostResult(code int) attribute.KeyValue {
	return attribute.Int(AttrHostResult, code)
}

// UsersFile returns an attribute for the credential file path
func UsersFile(path string) attribute.KeyValue {
	return attribute.String(AttrUsersFile, path)
}

// UserCount returns an attribute for the number of loaded records
func UserCount(n int) attribute.KeyValue {
	return attribute.Int(AttrUserCount, n)
}

// Duplicates returns an attribute listing duplicated usernames
func Duplicates(names []string) attribute.KeyValue {
	return attribute.StringSlice(AttrDuplicates, names)
}

// ReloadTrigger returns an attribute naming what started a reload (watch, sighup)
func ReloadTrigger(trigger string) attribute.KeyValue {
	return attribute.String(AttrReloadTrigger, trigger)
}

// StartHookSpan starts a span for a host lifecycle hook.
func StartHookSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	hook, _ := strings.CutPrefix(name, "plugin.")
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(append([]attribute.KeyValue{attribute.String(AttrHook, hook)}, attrs...)...),
	)
}

// StartAuthSpan starts a span for an authentication attempt.
func StartAuthSpan(ctx context.Context, name, username string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(append([]attribute.KeyValue{Username(username)}, attrs...)...),
	)
}
