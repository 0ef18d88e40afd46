package handlers

import (
	"context"
	"net/http"

	"github.com/marmos91/yamlauth/internal/logger"
	"github.com/marmos91/yamlauth/internal/telemetry"
	"github.com/marmos91/yamlauth/pkg/plugin"
)

// Reloader re-reads the users file. *plugin.Plugin satisfies it.
type Reloader interface {
	Reload(ctx context.Context, opts []plugin.Option) error
}

// ReloadHandler serves POST /reload.
type ReloadHandler struct {
	reloader Reloader
	store    StoreStatus
}

// NewReloadHandler creates a new ReloadHandler.
func NewReloadHandler(reloader Reloader, store StoreStatus) *ReloadHandler {
	return &ReloadHandler{reloader: reloader, store: store}
}

// Reload handles POST /reload. On failure the previous credentials stay in
// force and the error is returned with a 500.
func (h *ReloadHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.StartSpan(r.Context(), telemetry.SpanHTTPReload)
	defer span.End()

	if err := h.reloader.Reload(ctx, nil); err != nil {
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "reload via API failed", logger.Err(err))
		InternalServerError(w, err.Error())
		return
	}

	data := map[string]any{}
	if h.store != nil {
		data["users"] = h.store.Len()
	}
	writeJSON(w, http.StatusOK, okResponse(data))
}
