package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/yamlauth/pkg/credstore"
	"github.com/marmos91/yamlauth/pkg/plugin"
)

func newTestPlugin(t *testing.T) (*plugin.Plugin, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- username: alice\n  password: secret1\n"), 0600))

	registry := prometheus.NewRegistry()
	opts := []plugin.Option{{Key: plugin.OptUsersFile, Value: path}}
	p := plugin.New(opts, credstore.WithMetrics(credstore.NewMetrics(registry)))
	return p, path
}

func newTestRouter(t *testing.T, p *plugin.Plugin, token string) http.Handler {
	t.Helper()
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{Name: "yamlauth_test_gauge", Help: "test"}))
	return NewRouter(Dependencies{
		Auth:       p,
		Reloader:   p,
		Store:      p.Store(),
		Gatherer:   registry,
		AdminToken: token,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Lifecycle(t *testing.T) {
	p, path := newTestPlugin(t)
	h := newTestRouter(t, p, "")
	form := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	// Nothing loaded yet.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/health/ready", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/auth", "username=alice&password=secret1", form).Code)

	require.NoError(t, p.SecurityInit(context.Background(), []plugin.Option{{Key: plugin.OptUsersFile, Value: path}}, false))
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/auth", "username=alice&password=secret1", form).Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/auth", "username=alice&password=wrong", form).Code)

	// Replace the file and reload over HTTP.
	require.NoError(t, os.WriteFile(path, []byte("- username: bob\n  password: secret2\n"), 0600))
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/reload", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/auth", "username=alice&password=secret1", form).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/auth", `{"username":"bob","password":"secret2"}`,
		map[string]string{"Content-Type": "application/json"}).Code)

	// A broken file leaves bob in place.
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0600))
	w := do(t, h, http.MethodPost, "/reload", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "load users file")
	assert.True(t, p.Store().CheckUser("bob", "secret2"))
}

func TestRouter_MethodsAndRedirect(t *testing.T) {
	p, _ := newTestPlugin(t)
	h := newTestRouter(t, p, "")

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/auth", "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/reload", "", nil).Code)

	w := do(t, h, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/health", w.Header().Get("Location"))
}

func TestRouter_Metrics(t *testing.T) {
	p, _ := newTestPlugin(t)
	h := newTestRouter(t, p, "")

	w := do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "yamlauth_test_gauge")
}

func TestRouter_OptionalRoutes(t *testing.T) {
	h := NewRouter(Dependencies{})

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/auth", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/reload", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/metrics", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/health/ready", "", nil).Code)
}

func TestRouter_AdminToken(t *testing.T) {
	p, path := newTestPlugin(t)
	require.NoError(t, p.SecurityInit(context.Background(), []plugin.Option{{Key: plugin.OptUsersFile, Value: path}}, false))
	h := newTestRouter(t, p, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/reload", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/reload", "",
		map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/reload", "",
		map[string]string{"Authorization": "Basic czNjcmV0"}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/reload", "",
		map[string]string{"Authorization": "Bearer s3cret"}).Code)

	// /auth stays open to the broker.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/auth", "username=alice&password=secret1",
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"}).Code)
}

func TestAPIConfig_Defaults(t *testing.T) {
	var cfg APIConfig
	assert.True(t, cfg.IsEnabled())

	cfg.ApplyDefaults()
	assert.Equal(t, 8085, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)

	disabled := false
	cfg.Enabled = &disabled
	assert.False(t, cfg.IsEnabled())
}

func TestServer_StartStop(t *testing.T) {
	p, path := newTestPlugin(t)
	require.NoError(t, p.SecurityInit(context.Background(), []plugin.Option{{Key: plugin.OptUsersFile, Value: path}}, false))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(APIConfig{}, Dependencies{Auth: p, Store: p.Store()})
	assert.Equal(t, 8085, srv.Port())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/health/ready")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, ln.Addr().String(), srv.Addr())

	resp, err := http.Post(url+"/auth", "application/json", strings.NewReader(`{"username":"alice","password":"secret1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	// Stopping again is a no-op.
	assert.NoError(t, srv.Stop(context.Background()))
}
