package apiclient

import (
	"context"
	"net/http"
)

// Health is the data returned by GET /health.
type Health struct {
	Service   string `json:"service" yaml:"service"`
	StartedAt string `json:"started_at" yaml:"started_at"`
	Uptime    string `json:"uptime" yaml:"uptime"`
}

// Readiness is the data returned by GET /health/ready.
type Readiness struct {
	State string `json:"state" yaml:"state"`
	Users int    `json:"users" yaml:"users"`
}

// ReloadResult is the data returned by POST /reload.
type ReloadResult struct {
	Users int `json:"users" yaml:"users"`
}

// Health calls the liveness probe.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	return getResource[Health](ctx, c, "/health")
}

// Ready calls the readiness probe. A daemon without credentials answers
// with an *APIError for which IsUnavailable is true.
func (c *Client) Ready(ctx context.Context) (*Readiness, error) {
	return getResource[Readiness](ctx, c, "/health/ready")
}

// Reload asks the daemon to re-read its users file. The admin token, when
// the daemon requires one, must have been set on the client.
func (c *Client) Reload(ctx context.Context) (*ReloadResult, error) {
	return postResource[ReloadResult](ctx, c, "/reload", nil)
}

// Authenticate checks a username/password pair through POST /auth. A
// rejected pair returns false and no error.
func (c *Client) Authenticate(ctx context.Context, username, password string) (bool, error) {
	body := map[string]string{"username": username, "password": password}
	err := c.post(ctx, "/auth", body, nil)
	if err == nil {
		return true, nil
	}
	if apiErr, ok := AsAPIError(err); ok && apiErr.StatusCode == http.StatusForbidden {
		return false, nil
	}
	return false, err
}
