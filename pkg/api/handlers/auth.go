package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/yamlauth/internal/logger"
	"github.com/marmos91/yamlauth/internal/telemetry"
	"github.com/marmos91/yamlauth/pkg/plugin"
)

// Authenticator checks a username/password pair. *plugin.Plugin satisfies it.
type Authenticator interface {
	UnpwdCheck(ctx context.Context, username, password *string) plugin.Result
}

// AuthHandler serves POST /auth for brokers that delegate authentication
// over HTTP.
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// AuthRequest is the JSON body of POST /auth. Other fields sent by broker
// backends (clientid, acc, ...) are ignored.
type AuthRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// Authenticate handles POST /auth.
//
// The body is either a form (application/x-www-form-urlencoded or
// multipart) or JSON. A missing field is an ordinary authentication
// failure: 200 means authenticated, 403 means rejected, 400 is reserved for
// bodies that cannot be decoded at all.
func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}

	var username string
	if req.Username != nil {
		username = *req.Username
	}

	ctx, span := telemetry.StartAuthSpan(r.Context(), telemetry.SpanHTTPAuth, username,
		telemetry.ClientIP(r.RemoteAddr),
		telemetry.RequestID(middleware.GetReqID(r.Context())),
	)
	defer span.End()

	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext("http_auth")
	}
	ctx = logger.WithContext(ctx, lc.WithUsername(username))

	if h.auth.UnpwdCheck(ctx, req.Username, req.Password) != plugin.ResultSuccess {
		telemetry.SetAttributes(ctx, telemetry.AuthResult("denied"))
		Forbidden(w, "authentication failed")
		return
	}

	telemetry.SetAttributes(ctx, telemetry.AuthResult("ok"))
	writeJSON(w, http.StatusOK, okResponse(nil))
}

func decodeAuthRequest(w http.ResponseWriter, r *http.Request) (AuthRequest, bool) {
	var req AuthRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "Invalid request body")
			return req, false
		}
		return req, true
	}

	if err := r.ParseMultipartForm(32 << 10); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		BadRequest(w, "Invalid form body")
		return req, false
	}
	req.Username = formValue(r, "username")
	req.Password = formValue(r, "password")
	return req, true
}

// formValue returns nil when the field is absent, so that a missing field
// and an empty one stay distinguishable.
func formValue(r *http.Request, key string) *string {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}
