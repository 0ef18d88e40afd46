package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/yamlauth/pkg/api"
	"github.com/marmos91/yamlauth/pkg/plugin"
)

func TestNew(t *testing.T) {
	client := New("http://localhost:8085/")
	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:8085", client.BaseURL())
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
}

func TestWithToken(t *testing.T) {
	client := New("http://localhost:8085")
	tokenClient := client.WithToken("test-token")

	assert.Empty(t, client.token)
	assert.Equal(t, "test-token", tokenClient.token)
	assert.Equal(t, "http://localhost:8085", tokenClient.baseURL)

	client.SetToken("my-token")
	assert.Equal(t, "my-token", client.token)
}

func TestDo_DecodesEnvelopeData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"ok","timestamp":"2024-01-01T00:00:00Z","data":{"users":3}}`))
	}))
	defer server.Close()

	res, err := New(server.URL).WithToken("test-token").Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Users)
}

func TestDo_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"envelope", http.StatusInternalServerError, `{"status":"error","error":"boom"}`, "boom"},
		{"plain text", http.StatusUnauthorized, "Invalid token\n", "Invalid token"},
		{"empty", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(server.URL).Health(context.Background())
			require.Error(t, err)
			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestDo_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := New(server.URL).Health(context.Background())
	require.Error(t, err)
	_, ok := AsAPIError(err)
	assert.False(t, ok)
}

func TestDo_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url).Health(context.Background())
	assert.Error(t, err)
}

func TestAPIError(t *testing.T) {
	assert.Equal(t, "HTTP 401: nope", (&APIError{StatusCode: 401, Message: "nope"}).Error())
	assert.Equal(t, "HTTP 404", (&APIError{StatusCode: 404}).Error())

	assert.True(t, (&APIError{StatusCode: http.StatusUnauthorized}).IsAuthError())
	assert.True(t, (&APIError{StatusCode: http.StatusForbidden}).IsForbidden())
	assert.True(t, (&APIError{StatusCode: http.StatusNotFound}).IsNotFound())
	assert.True(t, (&APIError{StatusCode: http.StatusServiceUnavailable}).IsUnavailable())
	assert.False(t, (&APIError{StatusCode: http.StatusOK}).IsAuthError())
}

func TestAuthenticate_SendsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"username": "alice", "password": "secret1"}, body)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	ok, err := New(server.URL).Authenticate(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestAgainstRouter drives the real API router through the client.
func TestAgainstRouter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- username: alice\n  password: secret1\n"), 0600))

	opts := []plugin.Option{{Key: plugin.OptUsersFile, Value: path}}
	p := plugin.New(opts)
	t.Cleanup(p.Cleanup)

	server := httptest.NewServer(api.NewRouter(api.Dependencies{
		Auth:       p,
		Reloader:   p,
		Store:      p.Store(),
		AdminToken: "admin",
	}))
	defer server.Close()

	ctx := context.Background()
	client := New(server.URL)

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "yamlauth", health.Service)
	assert.NotEmpty(t, health.StartedAt)
	assert.NotEmpty(t, health.Uptime)

	_, err = client.Ready(ctx)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok, "err = %v", err)
	assert.True(t, apiErr.IsUnavailable())
	assert.Equal(t, "credentials not loaded", apiErr.Message)

	require.NoError(t, p.SecurityInit(ctx, opts, false))

	ready, err := client.Ready(ctx)
	require.NoError(t, err)
	assert.Equal(t, "populated", ready.State)
	assert.Equal(t, 1, ready.Users)

	ok, err = client.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Authenticate(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.Reload(ctx)
	apiErr, ok = AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.IsAuthError())

	require.NoError(t, os.WriteFile(path, []byte("- username: alice\n  password: a\n- username: bob\n  password: b\n"), 0600))
	res, err := client.WithToken("admin").Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Users)

	ok, err = client.Authenticate(ctx, "bob", "b")
	require.NoError(t, err)
	assert.True(t, ok)
}
