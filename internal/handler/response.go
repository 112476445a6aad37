package handler

import "github.com/actuallystonmai/cinema-recommendation/internal/domain"

type RecommendationResponse struct {
	ViewerID        int64                         `json:"viewer_id"`
	Recommendations []domain.ScoredRecommendation `json:"recommendations"`
	Metadata        domain.RecommendationMeta     `json:"metadata"`
}

type TitlesResponse struct {
	OK              bool     `json:"ok"`
	Recommendations []string `json:"recommendations"`
}

type RateRequest struct {
	Score *int `json:"score" validate:"required,min=1,max=10"`
}

type RateResponse struct {
	OK        bool    `json:"ok"`
	Score     int     `json:"score"`
	AvgRating float64 `json:"avg_rating"`
}

type ActivityRequest struct {
	SecondsWatched float64 `json:"seconds_watched" validate:"gte=0"`
	WatchedTrailer bool    `json:"watched_trailer"`
	WatchedMovie   bool    `json:"watched_movie"`
}

type ActivityResponse struct {
	OK       bool                 `json:"ok"`
	Activity domain.MovieActivity `json:"activity"`
}

type CatalogChangedRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

type CatalogChangedResponse struct {
	Accepted bool                `json:"accepted"`
	Event    domain.CatalogEvent `json:"event"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
