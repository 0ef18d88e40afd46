// Package plugin maps the broker's authentication plugin lifecycle onto a
// credential store.
//
// The broker drives a Plugin through these hooks:
//
//	New              plugin_init       store created empty, nothing read
//	SecurityInit     security_init     users_file located, loaded, swapped in
//	UnpwdCheck       unpwd_check       username/password checked
//	ACLCheck         acl_check         always deferred
//	PSKKeyGet        psk_key_get       always deferred
//	SecurityCleanup  security_cleanup  store cleared (deferred on reload)
//	Cleanup          plugin_cleanup    store cleared
//
// A reload is SecurityCleanup(reload=true) followed by SecurityInit(reload=true).
// The clear requested by the first call is folded into the second: a
// successful load replaces the mapping in one swap, and a failed load keeps
// the credentials that were in force. Clients authenticating during a reload
// never see an empty store.
package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/marmos91/yamlauth/internal/logger"
	"github.com/marmos91/yamlauth/internal/telemetry"
	"github.com/marmos91/yamlauth/pkg/credentials"
	"github.com/marmos91/yamlauth/pkg/credstore"
)

// APIVersion is the broker plugin API version implemented.
const APIVersion = 4

// EnvDebug enables debug logging when set to "1".
const EnvDebug = "YAML_AUTH_DEBUG"

// DebugFromEnv reports whether EnvDebug asks for debug output.
func DebugFromEnv() bool {
	return os.Getenv(EnvDebug) == "1"
}

// Plugin owns the credential store of one broker plugin instance.
type Plugin struct {
	store *credstore.Store

	// hookMu serializes lifecycle hooks. Authentication never takes it.
	hookMu       sync.Mutex
	opts         []Option
	pendingClear bool
	usersFile    string
}

// New is the plugin_init hook. opts are the options known at start-up and
// are reused by Reload when it is called without options.
func New(opts []Option, storeOpts ...credstore.Option) *Plugin {
	if DebugFromEnv() {
		logger.SetLevel("DEBUG")
	}

	p := &Plugin{
		store: credstore.New(storeOpts...),
		opts:  append([]Option(nil), opts...),
	}
	logger.Debug("plugin initialized", logger.Component("plugin"), slog.Int("api_version", APIVersion))
	return p
}

// Version returns the plugin API version.
func (p *Plugin) Version() int {
	return APIVersion
}

// Store returns the credential store.
func (p *Plugin) Store() *credstore.Store {
	return p.store
}

// UsersFile returns the path of the last successfully loaded file.
func (p *Plugin) UsersFile() string {
	p.hookMu.Lock()
	defer p.hookMu.Unlock()
	return p.usersFile
}

// SecurityInit is the security_init hook. It locates users_file in opts,
// loads it and swaps the result into the store. On any failure the store
// keeps its previous contents and a single descriptive error is returned.
func (p *Plugin) SecurityInit(ctx context.Context, opts []Option, reload bool) error {
	ctx, span := telemetry.StartHookSpan(ctx, telemetry.SpanSecurityInit, telemetry.Reload(reload))
	defer span.End()
	ctx = hookContext(ctx, "security_init")

	p.hookMu.Lock()
	defer p.hookMu.Unlock()

	// Any clear requested by a reload cleanup is consumed here, whatever
	// the outcome.
	p.pendingClear = false

	path, err := usersFile(opts)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "failed to load config", logger.Reload(reload), logger.Err(err))
		return err
	}
	telemetry.SetAttributes(ctx, telemetry.UsersFile(path))

	logger.DebugCtx(ctx, "loading users file", logger.Path(path))
	loadCtx, loadSpan := telemetry.StartSpan(ctx, telemetry.SpanLoadCredentials)
	records, err := credentials.Load(path)
	if err != nil {
		telemetry.RecordError(loadCtx, err)
	}
	loadSpan.End()
	if err != nil {
		err = fmt.Errorf("load users file: %w", err)
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "failed to load config", logger.Path(path), logger.Reload(reload), logger.Err(err))
		return err
	}

	if dups := credentials.Duplicates(records); len(dups) > 0 {
		telemetry.SetAttributes(ctx, telemetry.Duplicates(dups))
		logger.WarnCtx(ctx, "users defined more than once, last definition wins",
			logger.Path(path), logger.Duplicates(dups))
	}

	p.store.Load(records)
	p.opts = append([]Option(nil), opts...)
	p.usersFile = path

	telemetry.SetAttributes(ctx, telemetry.UserCount(len(records)))
	logger.InfoCtx(ctx, "users file loaded",
		logger.Path(path), logger.Count(len(records)), logger.Reload(reload))
	return nil
}

// SecurityCleanup is the security_cleanup hook. At shutdown it clears the
// store. During a reload the clear is deferred to the next SecurityInit.
func (p *Plugin) SecurityCleanup(ctx context.Context, opts []Option, reload bool) {
	ctx, span := telemetry.StartHookSpan(ctx, telemetry.SpanSecurityCleanup, telemetry.Reload(reload))
	defer span.End()
	ctx = hookContext(ctx, "security_cleanup")

	p.hookMu.Lock()
	defer p.hookMu.Unlock()

	if reload {
		p.pendingClear = true
		logger.DebugCtx(ctx, "clear deferred until reload completes")
		return
	}

	p.pendingClear = false
	p.store.Clear()
	logger.DebugCtx(ctx, "credentials cleared")
}

// Reload runs a cleanup/init pair with reload set. With no opts the options
// of the last successful SecurityInit (or of New) are reused.
func (p *Plugin) Reload(ctx context.Context, opts []Option) error {
	if len(opts) == 0 {
		p.hookMu.Lock()
		opts = append([]Option(nil), p.opts...)
		p.hookMu.Unlock()
	}

	p.SecurityCleanup(ctx, opts, true)
	return p.SecurityInit(ctx, opts, true)
}

// ReloadPending reports whether a reload cleanup is waiting for its init.
func (p *Plugin) ReloadPending() bool {
	p.hookMu.Lock()
	defer p.hookMu.Unlock()
	return p.pendingClear
}

// Cleanup is the plugin_cleanup hook.
func (p *Plugin) Cleanup() {
	p.hookMu.Lock()
	defer p.hookMu.Unlock()

	p.pendingClear = false
	p.store.Clear()
	logger.Debug("plugin cleaned up", logger.Component("plugin"))
}

// UnpwdCheck is the unpwd_check hook. A nil username or password is an
// authentication failure, not an error.
func (p *Plugin) UnpwdCheck(ctx context.Context, username, password *string) Result {
	var name string
	if username != nil {
		name = *username
	}

	ctx, span := telemetry.StartAuthSpan(ctx, telemetry.SpanUnpwdCheck, name)
	defer span.End()

	result := ResultAuth
	if username != nil && password != nil && p.store.CheckUser(*username, *password) {
		result = ResultSuccess
	}

	telemetry.SetAttributes(ctx, telemetry.HostResult(int(result)), telemetry.AuthResult(result.String()))
	logger.DebugCtx(hookContext(ctx, "unpwd_check"), "authentication",
		logger.Username(name), logger.Result(result.String()))
	return result
}

// ACLCheck is the acl_check hook. Topic access control is left to other
// plugins, so every request is deferred.
func (p *Plugin) ACLCheck(ctx context.Context, req ACLRequest) Result {
	_, span := telemetry.StartHookSpan(ctx, telemetry.SpanACLCheck)
	span.End()
	return ResultDefer
}

// PSKKeyGet is the psk_key_get hook. TLS-PSK is not handled here.
func (p *Plugin) PSKKeyGet(ctx context.Context, hint, identity string) (string, Result) {
	_, span := telemetry.StartHookSpan(ctx, telemetry.SpanPSKKeyGet)
	span.End()
	return "", ResultDefer
}

func hookContext(ctx context.Context, hook string) context.Context {
	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext(hook)
	} else {
		lc = lc.WithHook(hook)
	}
	lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	return logger.WithContext(ctx, lc)
}
