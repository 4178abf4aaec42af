package http

import (
	"io"
	"net/http"

	"github.com/threadlens/entitlement-service/internal/application"
)

func (h *Handler) trackUsage(w http.ResponseWriter, r *http.Request) {
	var req application.UsageRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "track_usage", err)
		return
	}
	if err := h.service.TrackUsage(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "track_usage", err)
		return
	}
	writeMessage(w, http.StatusAccepted, "usage recorded")
}

func (h *Handler) recentUsage(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	entries, err := h.service.RecentUsage(r.Context(), limit)
	if err != nil {
		writeMappedError(r.Context(), w, "recent_usage", err)
		return
	}
	writeResult(w, http.StatusOK, entries)
}

// modelState serves the opaque blob verbatim; it is client-defined JSON.
func (h *Handler) modelState(w http.ResponseWriter, r *http.Request) {
	blob, err := h.service.ModelState(r.Context())
	if err != nil {
		writeMappedError(r.Context(), w, "model_state", err)
		return
	}
	if blob == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no model state saved")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

func (h *Handler) saveModelState(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeValidationError(r.Context(), w, "save_model_state", err)
		return
	}
	if err := h.service.SaveModelState(r.Context(), blob); err != nil {
		writeMappedError(r.Context(), w, "save_model_state", err)
		return
	}
	writeMessage(w, http.StatusOK, "model state saved")
}
