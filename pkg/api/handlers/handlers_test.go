package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/yamlauth/pkg/credentials"
	"github.com/marmos91/yamlauth/pkg/credstore"
	"github.com/marmos91/yamlauth/pkg/plugin"
)

// storeAuth adapts a credstore.Store to Authenticator.
type storeAuth struct {
	store *credstore.Store
	calls int
}

func (a *storeAuth) UnpwdCheck(_ context.Context, username, password *string) plugin.Result {
	a.calls++
	if username == nil || password == nil || !a.store.CheckUser(*username, *password) {
		return plugin.ResultAuth
	}
	return plugin.ResultSuccess
}

type fakeReloader struct {
	err   error
	calls int
}

func (f *fakeReloader) Reload(context.Context, []plugin.Option) error {
	f.calls++
	return f.err
}

func newAliceStore() *credstore.Store {
	s := credstore.New()
	s.Load([]credentials.Record{{Username: "alice", Password: "secret1"}})
	return s
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestAuthenticate_JSON(t *testing.T) {
	auth := &storeAuth{store: newAliceStore()}
	h := NewAuthHandler(auth)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"username":"alice","password":"secret1"}`, http.StatusOK},
		{"wrong password", `{"username":"alice","password":"nope"}`, http.StatusForbidden},
		{"unknown user", `{"username":"bob","password":"secret1"}`, http.StatusForbidden},
		{"missing password", `{"username":"alice"}`, http.StatusForbidden},
		{"missing username", `{"password":"secret1"}`, http.StatusForbidden},
		{"null password", `{"username":"alice","password":null}`, http.StatusForbidden},
		{"extra fields", `{"username":"alice","password":"secret1","clientid":"c1"}`, http.StatusOK},
		{"malformed", `{"username":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json; charset=utf-8")
			w := httptest.NewRecorder()

			h.Authenticate(w, req)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			resp := decodeResponse(t, w)
			if tt.want == http.StatusOK {
				assert.Equal(t, "ok", resp.Status)
			} else {
				assert.Equal(t, "error", resp.Status)
			}
		})
	}
}

func TestAuthenticate_Form(t *testing.T) {
	auth := &storeAuth{store: newAliceStore()}
	h := NewAuthHandler(auth)

	post := func(form url.Values) int {
		req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		h.Authenticate(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post(url.Values{"username": {"alice"}, "password": {"secret1"}}))
	assert.Equal(t, http.StatusForbidden, post(url.Values{"username": {"alice"}, "password": {"secret2"}}))
	assert.Equal(t, http.StatusForbidden, post(url.Values{"username": {"alice"}}))
	assert.Equal(t, http.StatusForbidden, post(url.Values{}))
}

func TestAuthenticate_NoBody(t *testing.T) {
	auth := &storeAuth{store: newAliceStore()}
	req := httptest.NewRequest(http.MethodPost, "/auth", nil)
	w := httptest.NewRecorder()

	NewAuthHandler(auth).Authenticate(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 1, auth.calls)
}

func TestLiveness_ReturnsOK(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(nil).Liveness(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "healthy", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "Data is %T", resp.Data)
	assert.Equal(t, "yamlauth", data["service"])
	assert.Equal(t, "0s", data["uptime"])
	_, err := time.Parse(time.RFC3339, data["started_at"].(string))
	assert.NoError(t, err)
}

func TestReadiness(t *testing.T) {
	t.Run("NoStore", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(nil).Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "store not initialized", decodeResponse(t, w).Error)
	})

	t.Run("Empty", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(credstore.New()).Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "credentials not loaded", resp.Error)
	})

	t.Run("Populated", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(newAliceStore()).Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		data, ok := decodeResponse(t, w).Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "populated", data["state"])
		assert.Equal(t, float64(1), data["users"])
	})
}

func TestReload(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r := &fakeReloader{}
		w := httptest.NewRecorder()
		NewReloadHandler(r, newAliceStore()).Reload(w, httptest.NewRequest(http.MethodPost, "/reload", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, r.calls)
		data, ok := decodeResponse(t, w).Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(1), data["users"])
	})

	t.Run("Failure", func(t *testing.T) {
		r := &fakeReloader{err: errors.New("load users file: parse users file /x.yaml: boom")}
		w := httptest.NewRecorder()
		NewReloadHandler(r, nil).Reload(w, httptest.NewRequest(http.MethodPost, "/reload", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, "error", resp.Status)
		assert.Contains(t, resp.Error, "boom")
	})
}
