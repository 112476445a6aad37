package handler

import (
	"net/http"
)

// POST /catalog/changed
func (h *Handler) CatalogChanged(w http.ResponseWriter, r *http.Request) {
	var req CatalogChangedRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "reason must be at most 200 characters")
		return
	}
	if req.Reason == "" {
		req.Reason = "unspecified"
	}

	ev := h.service.NotifyCatalogChanged(r.Context(), req.Reason)
	writeJSON(w, http.StatusAccepted, CatalogChangedResponse{Accepted: true, Event: ev})
}
