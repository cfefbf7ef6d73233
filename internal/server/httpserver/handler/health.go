package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/thingvault/internal/infra/buildinfo"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: buildinfo.Get().Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ready",
		Version: buildinfo.Get().Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			resp.Status = "not ready"
			resp.Error = err.Error()
			h.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}
