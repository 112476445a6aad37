package handler

import (
	"net/http"
)

// PUT /viewers/{viewerID}/ratings/{movieID}
func (h *Handler) RateMovie(w http.ResponseWriter, r *http.Request) {
	viewerID, err := pathID(r, "viewerID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid viewer_id parameter")
		return
	}
	movieID, err := pathID(r, "movieID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid movie_id parameter")
		return
	}

	var req RateRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "score must be an integer between 1 and 10")
		return
	}

	avg, err := h.service.RateMovie(r.Context(), viewerID, movieID, *req.Score)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RateResponse{OK: true, Score: *req.Score, AvgRating: avg})
}
