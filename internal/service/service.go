package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/actuallystonmai/cinema-recommendation/internal/cache"
	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
	"github.com/actuallystonmai/cinema-recommendation/internal/logging"
	"github.com/actuallystonmai/cinema-recommendation/internal/metrics"
	"github.com/actuallystonmai/cinema-recommendation/internal/model"
)

const (
	defaultLimit        = 10
	maxLimit            = 50
	batchConcurrency    = 10
	batchRecLimit       = 10
	defaultScoreTimeout = 5 * time.Second
)

// Store is the persistence the service reads viewers, catalogue and signals from.
type Store interface {
	GetViewerByID(ctx context.Context, viewerID int64) (*domain.Viewer, error)
	GetViewerIDsPaginated(ctx context.Context, page, limit int) ([]int64, error)
	CountViewers(ctx context.Context) (int, error)
	ListMovies(ctx context.Context) ([]domain.Movie, error)
	ListRatingsByViewer(ctx context.Context, viewerID int64) ([]domain.Rating, error)
	ListActivitiesByViewer(ctx context.Context, viewerID int64) ([]domain.MovieActivity, error)
	UpsertRating(ctx context.Context, viewerID, movieID int64, score int) error
	AverageRating(ctx context.Context, movieID int64) (*float64, error)
	RecordActivity(ctx context.Context, ev domain.ActivityEvent) (*domain.MovieActivity, error)
}

// Cache holds ranked lists and fans catalogue events out to other instances.
type Cache interface {
	Get(ctx context.Context, viewerID int64, limit int) ([]domain.ScoredRecommendation, bool, error)
	Epoch(ctx context.Context, viewerID int64) (cache.Epoch, error)
	Set(ctx context.Context, viewerID int64, limit int, epoch cache.Epoch, recs []domain.ScoredRecommendation) (bool, error)
	ClearViewerCache(ctx context.Context, viewerID int64) error
	ClearAll(ctx context.Context) error
	PublishCatalogChanged(ctx context.Context, ev domain.CatalogEvent) error
	SubscribeCatalog(ctx context.Context, handle func(domain.CatalogEvent)) error
}

type Service struct {
	store        Store
	cache        Cache
	modelClient  *model.Client
	scoreTimeout time.Duration
	logger       zerolog.Logger

	// ids of catalogue events this instance published and has not yet
	// seen come back on its own subscription
	published sync.Map
}

//nolint:gocritic // zerolog.Logger is passed by value
func NewService(store Store, c Cache, modelClient *model.Client, scoreTimeout time.Duration, logger zerolog.Logger) *Service {
	if scoreTimeout <= 0 {
		scoreTimeout = defaultScoreTimeout
	}
	return &Service{
		store:        store,
		cache:        c,
		modelClient:  modelClient,
		scoreTimeout: scoreTimeout,
		logger:       logging.Component(logger, "service"),
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func (s *Service) GetRecommendations(ctx context.Context, viewerID int64, limit int) (*domain.RecommendationResult, error) {
	start := time.Now()
	limit = clampLimit(limit)

	// Check Cache
	cached, found, err := s.cache.Get(ctx, viewerID, limit)
	if err != nil {
		s.logger.Warn().Err(err).Int64("viewer_id", viewerID).Msg("cache get failed")
	}

	if found {
		metrics.ResultCacheHits.Inc()
		metrics.RecommendationDuration.WithLabelValues("cache_hit").Observe(time.Since(start).Seconds())
		return &domain.RecommendationResult{
			Recommendations: cached,
			CacheHit:        true,
		}, nil
	}
	metrics.ResultCacheMisses.Inc()

	// read before any ranking input so a concurrent invalidation is detected
	epoch, epochErr := s.cache.Epoch(ctx, viewerID)
	if epochErr != nil {
		s.logger.Warn().Err(epochErr).Int64("viewer_id", viewerID).Msg("cache epoch read failed")
	}

	recs, err := s.generateRecommendations(ctx, viewerID, limit)
	if err != nil {
		metrics.RecommendationDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, err
	}

	if epochErr == nil {
		if _, cacheErr := s.cache.Set(ctx, viewerID, limit, epoch, recs); cacheErr != nil {
			s.logger.Warn().Err(cacheErr).Int64("viewer_id", viewerID).Msg("cache set failed")
		}
	}

	metrics.RecommendationDuration.WithLabelValues("scored").Observe(time.Since(start).Seconds())
	return &domain.RecommendationResult{
		Recommendations: recs,
		CacheHit:        false,
	}, nil
}

func (s *Service) generateRecommendations(ctx context.Context, viewerID int64, limit int) ([]domain.ScoredRecommendation, error) {
	viewer, err := s.store.GetViewerByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, domain.ErrViewerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("fetch viewer: %w", err)
	}

	catalog, err := s.store.ListMovies(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}

	ratings, err := s.store.ListRatingsByViewer(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("fetch ratings: %w", err)
	}

	activities, err := s.store.ListActivitiesByViewer(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("fetch activity: %w", err)
	}

	scoreCtx, cancel := context.WithTimeout(ctx, s.scoreTimeout)
	defer cancel()

	scored, err := s.modelClient.Score(scoreCtx, model.ScoreInput{
		Viewer:     viewer,
		Catalog:    catalog,
		Ratings:    ratings,
		Activities: activities,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("score viewer %d: %w", viewerID, err)
	}

	return scored, nil
}

// RecommendTitles returns only the titles of the viewer's ranked list.
func (s *Service) RecommendTitles(ctx context.Context, viewerID int64, limit int) ([]string, error) {
	result, err := s.GetRecommendations(ctx, viewerID, limit)
	if err != nil {
		return nil, err
	}
	titles := make([]string, len(result.Recommendations))
	for i, rec := range result.Recommendations {
		titles[i] = rec.Title
	}
	return titles, nil
}

func (s *Service) GetBatchRecommendations(ctx context.Context, page, limit int) (*domain.BatchResponse, error) {
	start := time.Now()

	viewerIDs, err := s.store.GetViewerIDsPaginated(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch viewer ids: %w", err)
	}

	totalViewers, err := s.store.CountViewers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count viewers: %w", err)
	}

	// Process viewers concurrently with bounded worker pool
	results := make([]domain.BatchViewerResult, len(viewerIDs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, batchConcurrency) // semaphore

	for i, viewerID := range viewerIDs {
		wg.Add(1)
		go func(idx int, vid int64) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			results[idx] = s.processViewerForBatch(ctx, vid)
		}(i, viewerID)
	}
	wg.Wait()

	successCount := 0
	failedCount := 0
	for _, r := range results {
		if r.Status == domain.StatusSuccess {
			successCount++
		} else {
			failedCount++
		}
	}

	return &domain.BatchResponse{
		Page:         page,
		Limit:        limit,
		TotalViewers: totalViewers,
		Results:      results,
		Summary: domain.BatchSummary{
			SuccessCount:     successCount,
			FailedCount:      failedCount,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
		Metadata: domain.BatchMeta{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// Generates recommendations for a single viewer, capturing errors.
func (s *Service) processViewerForBatch(ctx context.Context, viewerID int64) domain.BatchViewerResult {
	result, err := s.GetRecommendations(ctx, viewerID, batchRecLimit)
	if err != nil {
		s.logger.Error().Err(err).Int64("viewer_id", viewerID).Msg("batch recommendation failed")
		code, msg := categorizeError(err)
		return domain.BatchViewerResult{
			ViewerID: viewerID,
			Status:   domain.StatusFailed,
			Error:    code,
			Message:  msg,
		}
	}

	return domain.BatchViewerResult{
		ViewerID:        viewerID,
		Recommendations: result.Recommendations,
		Status:          domain.StatusSuccess,
	}
}

// RateMovie stores the viewer's score and returns the movie's new average.
func (s *Service) RateMovie(ctx context.Context, viewerID, movieID int64, score int) (float64, error) {
	if score < domain.MinScore || score > domain.MaxScore {
		return 0, domain.ErrInvalidScore
	}
	if _, err := s.store.GetViewerByID(ctx, viewerID); err != nil {
		return 0, err
	}

	if err := s.store.UpsertRating(ctx, viewerID, movieID, score); err != nil {
		return 0, err
	}
	s.clearViewer(ctx, viewerID)

	avg, err := s.store.AverageRating(ctx, movieID)
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return float64(score), nil
	}
	return *avg, nil
}

// TrackActivity folds a viewing event into the viewer's activity for the movie.
func (s *Service) TrackActivity(ctx context.Context, ev domain.ActivityEvent) (*domain.MovieActivity, error) {
	if ev.SecondsWatched < 0 {
		return nil, domain.ErrInvalidActivity
	}
	if _, err := s.store.GetViewerByID(ctx, ev.ViewerID); err != nil {
		return nil, err
	}

	activity, err := s.store.RecordActivity(ctx, ev)
	if err != nil {
		return nil, err
	}
	s.clearViewer(ctx, ev.ViewerID)
	return activity, nil
}

func (s *Service) clearViewer(ctx context.Context, viewerID int64) {
	if err := s.cache.ClearViewerCache(ctx, viewerID); err != nil {
		s.logger.Warn().Err(err).Int64("viewer_id", viewerID).Msg("cache invalidation failed")
	}
}

// NotifyCatalogChanged drops the local description index, tells the other
// instances to do the same and clears every cached list.
func (s *Service) NotifyCatalogChanged(ctx context.Context, reason string) domain.CatalogEvent {
	ev := cache.NewCatalogEvent(reason)
	s.modelClient.InvalidateIndex()

	s.published.Store(ev.ID, struct{}{})
	if err := s.cache.PublishCatalogChanged(ctx, ev); err != nil {
		s.published.Delete(ev.ID)
		s.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("catalog event not published")
	}
	if err := s.cache.ClearAll(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("clearing cached lists failed")
	}

	s.logger.Info().Str("event_id", ev.ID).Str("reason", reason).Msg("catalog changed")
	return ev
}

// WatchCatalog invalidates the local index for every catalogue event from
// another instance until ctx is done or the subscription fails.
func (s *Service) WatchCatalog(ctx context.Context) error {
	return s.cache.SubscribeCatalog(ctx, func(ev domain.CatalogEvent) {
		if _, own := s.published.LoadAndDelete(ev.ID); own {
			return
		}
		s.modelClient.InvalidateIndex()
		s.logger.Debug().Str("event_id", ev.ID).Str("reason", ev.Reason).Msg("text index invalidated by catalog event")
	})
}

// Handle response error
func categorizeError(err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrViewerNotFound):
		return "viewer_not_found", "viewer not found"
	case errors.Is(err, domain.ErrMovieNotFound):
		return "movie_not_found", "a rated movie is missing from the catalog"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "request_timeout", "recommendation scoring timed out"
	default:
		return "internal_error", "an unexpected error occurred"
	}
}
