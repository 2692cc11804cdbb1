// Package httpapi exposes the operational endpoints of the sync core: health
// with per-collection serving modes, and Prometheus metrics. The platform's
// presentation layer consumes the core as a library, not over this router.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ajira/internal/store"
	"ajira/internal/sync/degrade"
)

type Handler struct {
	session *store.Session
	ctrl    *degrade.Controller
}

func NewHandler(session *store.Session, ctrl *degrade.Controller) *Handler {
	return &Handler{session: session, ctrl: ctrl}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	modes := make(map[string]string)
	for col, mode := range h.ctrl.Modes() {
		modes[string(col)] = string(mode)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"storeConnected":  h.session.Connected(),
		"collectionModes": modes,
	})
}
