package handler

import (
	"net/http"
	"time"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
)

// GET /viewers/{viewerID}/recommendations
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	viewerID, err := pathID(r, "viewerID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid viewer_id parameter")
		return
	}

	limit, err := queryInt(r, "limit", 10, 1, 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid limit parameter")
		return
	}

	result, err := h.service.GetRecommendations(r.Context(), viewerID, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := RecommendationResponse{
		ViewerID:        viewerID,
		Recommendations: result.Recommendations,
		Metadata: domain.RecommendationMeta{
			CacheHit:    result.CacheHit,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			TotalCount:  len(result.Recommendations),
		},
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /viewers/{viewerID}/recommendations/titles
func (h *Handler) GetRecommendationTitles(w http.ResponseWriter, r *http.Request) {
	viewerID, err := pathID(r, "viewerID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid viewer_id parameter")
		return
	}

	limit, err := queryInt(r, "limit", 10, 1, 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid limit parameter")
		return
	}

	titles, err := h.service.RecommendTitles(r.Context(), viewerID, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if titles == nil {
		titles = []string{}
	}

	writeJSON(w, http.StatusOK, TitlesResponse{OK: true, Recommendations: titles})
}
