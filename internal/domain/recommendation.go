package domain

type ScoredRecommendation struct {
	MovieID     int64   `json:"movie_id"`
	Title       string  `json:"title"`
	GenreIDs    []int64 `json:"genre_ids"`
	ReleaseYear int     `json:"release_year"`
	Score       float64 `json:"score"`
}

type RecommendationMeta struct {
	CacheHit    bool   `json:"cache_hit"`
	GeneratedAt string `json:"generated_at"`
	TotalCount  int    `json:"total_count"`
}

type RecommendationResult struct {
	Recommendations []ScoredRecommendation
	CacheHit        bool
}

type BatchStatus string

const (
	StatusSuccess BatchStatus = "success"
	StatusFailed  BatchStatus = "failed"
)

type BatchViewerResult struct {
	ViewerID        int64                  `json:"viewer_id"`
	Recommendations []ScoredRecommendation `json:"recommendations,omitempty"`
	Status          BatchStatus            `json:"status"`
	Error           string                 `json:"error,omitempty"`
	Message         string                 `json:"message,omitempty"`
}

type BatchSummary struct {
	SuccessCount     int   `json:"success_count"`
	FailedCount      int   `json:"failed_count"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

type BatchMeta struct {
	GeneratedAt string `json:"generated_at"`
}

type BatchResponse struct {
	Page         int                 `json:"page"`
	Limit        int                 `json:"limit"`
	TotalViewers int                 `json:"total_viewers"`
	Results      []BatchViewerResult `json:"results"`
	Summary      BatchSummary        `json:"summary"`
	Metadata     BatchMeta           `json:"metadata"`
}

// CatalogEvent is broadcast when the movie catalogue changes.
type CatalogEvent struct {
	ID         string `json:"id"`
	Reason     string `json:"reason"`
	OccurredAt string `json:"occurred_at"`
}
