package handler

import (
	"net/http"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
)

// POST /viewers/{viewerID}/activity/{movieID}
func (h *Handler) TrackActivity(w http.ResponseWriter, r *http.Request) {
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

	var req ActivityRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "seconds_watched must be a non-negative number")
		return
	}

	activity, err := h.service.TrackActivity(r.Context(), domain.ActivityEvent{
		ViewerID:       viewerID,
		MovieID:        movieID,
		SecondsWatched: req.SecondsWatched,
		TrailerWatched: req.WatchedTrailer,
		MovieWatched:   req.WatchedMovie,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ActivityResponse{OK: true, Activity: *activity})
}
