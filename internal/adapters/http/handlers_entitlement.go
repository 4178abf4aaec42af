package http

import (
	"net/http"
	"strings"

	"github.com/threadlens/entitlement-service/internal/application"
)

// status returns the reconciled entitlement. Failures surface inside the
// status payload, never as HTTP errors; the UI renders whatever comes back.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	force := strings.EqualFold(r.URL.Query().Get("refresh"), "true")
	st := h.service.GetUnifiedStatus(r.Context(), force)
	writeResult(w, http.StatusOK, st)
}

// gate answers the allow/deny question for one billable action. Always 200;
// the decision is in the body.
func (h *Handler) gate(w http.ResponseWriter, r *http.Request) {
	decision := h.service.CanUse(r.Context())
	writeResult(w, http.StatusOK, decision)
}

func (h *Handler) device(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Device(r.Context())
	if err != nil {
		writeMappedError(r.Context(), w, "device", err)
		return
	}
	writeResult(w, http.StatusOK, info)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req application.CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "checkout", err)
		return
	}
	resp, err := h.service.CheckoutURL(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "checkout", err)
		return
	}
	writeResult(w, http.StatusOK, resp)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	var req application.RestoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "restore", err)
		return
	}
	result, err := h.service.RestorePurchase(r.Context(), req.Email)
	if err != nil {
		writeMappedError(r.Context(), w, "restore", err)
		return
	}
	writeResult(w, http.StatusOK, result)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetLocalData(r.Context()); err != nil {
		writeMappedError(r.Context(), w, "reset", err)
		return
	}
	writeMessage(w, http.StatusOK, "local data cleared")
}
