package handler

import (
	"context"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

type healthResponse struct {
	Status string `json:"status"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.Enrollment.Ping(ctx); err != nil {
		h.log.InternalError("health.check: store ping failed", err)
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
