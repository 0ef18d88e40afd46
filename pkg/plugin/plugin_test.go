package plugin

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/marmos91/yamlauth/internal/logger"
	"github.com/marmos91/yamlauth/internal/telemetry"
	"github.com/marmos91/yamlauth/pkg/credentials"
	"github.com/marmos91/yamlauth/pkg/credstore"
)

const aliceFile = `
- username: alice
  password: secret1
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func ptr(s string) *string { return &s }

func usersOpts(path string) []Option {
	return []Option{{Key: OptUsersFile, Value: path}}
}

func TestLookupOption(t *testing.T) {
	opts := []Option{
		{Key: "other", Value: "x"},
		{Key: OptUsersFile, Value: "/first.yaml"},
		{Key: OptUsersFile, Value: "/second.yaml"},
	}

	v, ok := LookupOption(opts, OptUsersFile)
	assert.True(t, ok)
	assert.Equal(t, "/first.yaml", v)

	_, ok = LookupOption(opts, "missing")
	assert.False(t, ok)

	_, ok = LookupOption(nil, OptUsersFile)
	assert.False(t, ok)
}

func TestNew_NothingLoaded(t *testing.T) {
	p := New(nil)

	assert.Equal(t, APIVersion, p.Version())
	assert.Equal(t, 4, p.Version())
	assert.Equal(t, credstore.StateEmpty, p.Store().State())
	assert.Empty(t, p.UsersFile())
}

func TestSecurityInit_EndToEnd(t *testing.T) {
	path := writeFile(t, t.TempDir(), "users.yaml", aliceFile)
	p := New(nil)
	ctx := context.Background()

	require.NoError(t, p.SecurityInit(ctx, usersOpts(path), false))
	assert.Equal(t, credstore.StatePopulated, p.Store().State())
	assert.Equal(t, path, p.UsersFile())

	assert.Equal(t, ResultSuccess, p.UnpwdCheck(ctx, ptr("alice"), ptr("secret1")))
	assert.Equal(t, ResultAuth, p.UnpwdCheck(ctx, ptr("alice"), ptr("wrong")))
	assert.Equal(t, ResultAuth, p.UnpwdCheck(ctx, ptr("bob"), ptr("x")))
}

func TestSecurityInit_MissingOption(t *testing.T) {
	for name, opts := range map[string][]Option{
		"no options":  nil,
		"other keys":  {{Key: "password_file", Value: "/etc/passwd"}},
		"empty value": {{Key: OptUsersFile, Value: ""}},
		"empty first": {{Key: OptUsersFile, Value: ""}, {Key: OptUsersFile, Value: "/x.yaml"}},
	} {
		t.Run(name, func(t *testing.T) {
			p := New(nil)
			p.Store().Load([]credentials.Record{{Username: "alice", Password: "secret1"}})

			err := p.SecurityInit(context.Background(), opts, false)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, OptUsersFile, cfgErr.Key)
			assert.ErrorIs(t, err, ErrMissingOption)
			assert.NotErrorIs(t, err, credentials.ErrIO)
			assert.Equal(t, "users_file option not found", err.Error())

			assert.True(t, p.Store().CheckUser("alice", "secret1"))
		})
	}
}

func TestSecurityInit_FirstOptionWins(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.yaml", aliceFile)
	second := writeFile(t, dir, "second.yaml", "- username: bob\n  password: secret2\n")

	p := New(nil)
	opts := []Option{{Key: OptUsersFile, Value: first}, {Key: OptUsersFile, Value: second}}
	require.NoError(t, p.SecurityInit(context.Background(), opts, false))

	assert.True(t, p.Store().HasUser("alice"))
	assert.False(t, p.Store().HasUser("bob"))
}

func TestSecurityInit_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.yaml")
	malformed := writeFile(t, dir, "bad.yaml", "- username: alice\n")

	t.Run("IO", func(t *testing.T) {
		p := New(nil)
		err := p.SecurityInit(context.Background(), usersOpts(missing), false)
		require.Error(t, err)
		assert.ErrorIs(t, err, credentials.ErrIO)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.Equal(t, 1, strings.Count(err.Error(), missing), err.Error())
		assert.Equal(t, credstore.StateEmpty, p.Store().State())
	})

	t.Run("Parse", func(t *testing.T) {
		p := New(nil)
		err := p.SecurityInit(context.Background(), usersOpts(malformed), false)
		require.Error(t, err)
		assert.ErrorIs(t, err, credentials.ErrParse)
		assert.Equal(t, 1, strings.Count(err.Error(), malformed), err.Error())
		assert.True(t, strings.HasPrefix(err.Error(), "load users file: "), err.Error())
		assert.Equal(t, credstore.StateEmpty, p.Store().State())
	})
}

func TestReload_Success(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "users.yaml", aliceFile)
	p := New(usersOpts(path))
	ctx := context.Background()
	require.NoError(t, p.SecurityInit(ctx, usersOpts(path), false))

	writeFile(t, dir, "users.yaml", "- username: bob\n  password: secret2\n")
	require.NoError(t, p.Reload(ctx, nil))

	assert.False(t, p.Store().HasUser("alice"))
	assert.True(t, p.Store().CheckUser("bob", "secret2"))
	assert.False(t, p.ReloadPending())
}

func TestReload_FailurePreservesCredentials(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "users.yaml", aliceFile)
	p := New(nil)
	ctx := context.Background()
	require.NoError(t, p.SecurityInit(ctx, usersOpts(path), false))

	for name, breakIt := range map[string]func(){
		"parse error": func() { writeFile(t, dir, "users.yaml", "not: [a, list") },
		"wrong shape": func() { writeFile(t, dir, "users.yaml", "- username: alice\n  password: 42\n") },
		"file gone":   func() { require.NoError(t, os.Remove(path)) },
	} {
		t.Run(name, func(t *testing.T) {
			writeFile(t, dir, "users.yaml", aliceFile)
			require.NoError(t, p.Reload(ctx, usersOpts(path)))
			breakIt()

			require.Error(t, p.Reload(ctx, usersOpts(path)))
			assert.Equal(t, credstore.StatePopulated, p.Store().State())
			assert.True(t, p.Store().HasUser("alice"))
			assert.True(t, p.Store().CheckUser("alice", "secret1"))
			assert.False(t, p.Store().CheckUser("alice", "wrong"))
			assert.False(t, p.ReloadPending())
		})
	}

	t.Run("missing option", func(t *testing.T) {
		p.SecurityCleanup(ctx, nil, true)
		require.Error(t, p.SecurityInit(ctx, nil, true))
		assert.True(t, p.Store().CheckUser("alice", "secret1"))
	})
}

func TestSecurityCleanup_ReloadDefersClear(t *testing.T) {
	path := writeFile(t, t.TempDir(), "users.yaml", aliceFile)
	p := New(nil)
	ctx := context.Background()
	require.NoError(t, p.SecurityInit(ctx, usersOpts(path), false))

	p.SecurityCleanup(ctx, usersOpts(path), true)
	assert.True(t, p.ReloadPending())
	assert.True(t, p.Store().CheckUser("alice", "secret1"), "credentials stay in force until the reload completes")

	require.NoError(t, p.SecurityInit(ctx, usersOpts(path), true))
	assert.False(t, p.ReloadPending())
	assert.True(t, p.Store().CheckUser("alice", "secret1"))
}

func TestSecurityCleanup_ShutdownClears(t *testing.T) {
	path := writeFile(t, t.TempDir(), "users.yaml", aliceFile)
	p := New(nil)
	ctx := context.Background()
	require.NoError(t, p.SecurityInit(ctx, usersOpts(path), false))

	p.SecurityCleanup(ctx, nil, false)
	assert.Equal(t, credstore.StateEmpty, p.Store().State())
	assert.Equal(t, ResultAuth, p.UnpwdCheck(ctx, ptr("alice"), ptr("secret1")))

	// Twice is the same as once.
	p.SecurityCleanup(ctx, nil, false)
	assert.Equal(t, credstore.StateEmpty, p.Store().State())
}

func TestCleanup(t *testing.T) {
	path := writeFile(t, t.TempDir(), "users.yaml", aliceFile)
	p := New(nil)
	require.NoError(t, p.SecurityInit(context.Background(), usersOpts(path), false))

	p.Cleanup()
	assert.False(t, p.Store().HasUser("alice"))
}

func TestUnpwdCheck_NilInputs(t *testing.T) {
	path := writeFile(t, t.TempDir(), "users.yaml", aliceFile)
	p := New(nil)
	ctx := context.Background()
	require.NoError(t, p.SecurityInit(ctx, usersOpts(path), false))

	assert.Equal(t, ResultAuth, p.UnpwdCheck(ctx, nil, ptr("secret1")))
	assert.Equal(t, ResultAuth, p.UnpwdCheck(ctx, ptr("alice"), nil))
	assert.Equal(t, ResultAuth, p.UnpwdCheck(ctx, nil, nil))
	assert.Equal(t, ResultAuth, p.UnpwdCheck(ctx, ptr(""), ptr("")))
}

func TestUnpwdCheck_EmptyUsernameFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "users.yaml", "- username: \"\"\n  password: pw\n")
	p := New(nil)
	ctx := context.Background()
	require.NoError(t, p.SecurityInit(ctx, usersOpts(path), false))

	assert.Equal(t, 1, p.Store().Len())
	assert.Equal(t, []string{""}, p.Store().Usernames())
	assert.True(t, p.Store().HasUser(""))
	assert.Equal(t, ResultSuccess, p.UnpwdCheck(ctx, ptr(""), ptr("pw")))
	assert.Equal(t, ResultAuth, p.UnpwdCheck(ctx, ptr(""), ptr("")))
	assert.Equal(t, ResultAuth, p.UnpwdCheck(ctx, nil, ptr("pw")))
}

func TestDeferredHooks(t *testing.T) {
	p := New(nil)
	ctx := context.Background()

	for _, access := range []ACLAccess{ACLRead, ACLWrite, ACLSubscribe, ACLUnsubscribe} {
		assert.Equal(t, ResultDefer, p.ACLCheck(ctx, ACLRequest{Access: access, Username: "alice", Topic: "a/b"}))
	}

	key, res := p.PSKKeyGet(ctx, "hint", "identity")
	assert.Empty(t, key)
	assert.Equal(t, ResultDefer, res)
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "success", ResultSuccess.String())
	assert.Equal(t, "auth", ResultAuth.String())
	assert.Equal(t, "defer", ResultDefer.String())
	assert.Equal(t, "Result(99)", Result(99).String())
	assert.Equal(t, "subscribe", ACLSubscribe.String())
}

func TestDebugFromEnv(t *testing.T) {
	t.Setenv(EnvDebug, "0")
	assert.False(t, DebugFromEnv())

	t.Setenv(EnvDebug, "1")
	assert.True(t, DebugFromEnv())

	previous := logger.GetLevel()
	t.Cleanup(func() { logger.SetLevel(previous.String()) })

	New(nil)
	assert.True(t, logger.IsDebug())
}

func TestHooksEmitSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	telemetry.UseTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { telemetry.UseTracerProvider(nil) })

	path := writeFile(t, t.TempDir(), "users.yaml", aliceFile)
	p := New(nil)
	ctx := context.Background()
	require.NoError(t, p.SecurityInit(ctx, usersOpts(path), false))
	p.UnpwdCheck(ctx, ptr("alice"), ptr("secret1"))
	require.Error(t, p.SecurityInit(ctx, nil, true))

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	// The load span nests inside the first init and ends before it. The
	// second init fails on options, before any file is read.
	assert.Equal(t, []string{
		telemetry.SpanLoadCredentials,
		telemetry.SpanSecurityInit,
		telemetry.SpanUnpwdCheck,
		telemetry.SpanSecurityInit,
	}, names)
	ended := recorder.Ended()
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, "Error", ended[3].Status().Code.String())
}
