package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/actuallystonmai/cinema-recommendation/internal/cache"
	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
	"github.com/actuallystonmai/cinema-recommendation/internal/metrics"
	"github.com/actuallystonmai/cinema-recommendation/internal/model"
)

type stubStore struct {
	mu         sync.Mutex
	viewers    map[int64]*domain.Viewer
	pageIDs    []int64
	movies     []domain.Movie
	ratings    map[int64][]domain.Rating
	activities map[int64][]domain.MovieActivity
	movieLoads int
}

func newStubStore() *stubStore {
	return &stubStore{
		viewers: map[int64]*domain.Viewer{
			1: {ID: 1, FirstName: "Ada"},
			2: {ID: 2, FirstName: "Alan"},
		},
		pageIDs: []int64{1, 2},
		movies: []domain.Movie{
			{ID: 1, Title: "Interstellar", FullDescription: "Astronauts travel through a wormhole", GenreIDs: []int64{1, 2}},
			{ID: 2, Title: "Wormhole Drift", FullDescription: "A crew drifts through a wormhole in space", GenreIDs: []int64{1, 2}},
			{ID: 3, Title: "Croissant", FullDescription: "A baker opens a Parisian bakery", GenreIDs: []int64{3}},
		},
		ratings: map[int64][]domain.Rating{
			1: {{ViewerID: 1, MovieID: 1, Score: 10}},
		},
		activities: map[int64][]domain.MovieActivity{
			2: {{ViewerID: 2, MovieID: 3, SecondsWatched: 300}},
		},
	}
}

func (s *stubStore) GetViewerByID(_ context.Context, id int64) (*domain.Viewer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.viewers[id]
	if !ok {
		return nil, domain.ErrViewerNotFound
	}
	return v, nil
}

func (s *stubStore) GetViewerIDsPaginated(_ context.Context, page, limit int) ([]int64, error) {
	start := (page - 1) * limit
	if start >= len(s.pageIDs) {
		return nil, nil
	}
	end := min(start+limit, len(s.pageIDs))
	return s.pageIDs[start:end], nil
}

func (s *stubStore) CountViewers(context.Context) (int, error) {
	return len(s.pageIDs), nil
}

func (s *stubStore) ListMovies(context.Context) ([]domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movieLoads++
	return append([]domain.Movie(nil), s.movies...), nil
}

func (s *stubStore) ListRatingsByViewer(_ context.Context, id int64) ([]domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratings[id], nil
}

func (s *stubStore) ListActivitiesByViewer(_ context.Context, id int64) ([]domain.MovieActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activities[id], nil
}

func (s *stubStore) UpsertRating(_ context.Context, viewerID, movieID int64, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if movieID > int64(len(s.movies)) {
		return fmt.Errorf("rate movie %d: %w", movieID, domain.ErrMovieNotFound)
	}
	s.ratings[viewerID] = append(s.ratings[viewerID], domain.Rating{ViewerID: viewerID, MovieID: movieID, Score: score})
	return nil
}

func (s *stubStore) AverageRating(_ context.Context, movieID int64) (*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum, n float64
	for _, rs := range s.ratings {
		for _, r := range rs {
			if r.MovieID == movieID {
				sum += float64(r.Score)
				n++
			}
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / n
	return &avg, nil
}

func (s *stubStore) RecordActivity(_ context.Context, ev domain.ActivityEvent) (*domain.MovieActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := domain.MovieActivity{ViewerID: ev.ViewerID, MovieID: ev.MovieID, SecondsWatched: ev.SecondsWatched,
		TrailerWatched: ev.TrailerWatched, MovieWatched: ev.MovieWatched}
	s.activities[ev.ViewerID] = append(s.activities[ev.ViewerID], a)
	return &a, nil
}

type cacheKey struct {
	viewerID int64
	limit    int
}

// stubCache mirrors the epoch check Redis does in its store script.
type stubCache struct {
	mu           sync.Mutex
	lists        map[cacheKey][]domain.ScoredRecommendation
	viewerEpochs map[int64]int64
	globalEpoch  int64
	getErr     error
	publishErr error
	cleared    []int64
	clearAlls  int
	published  []domain.CatalogEvent
	events     chan domain.CatalogEvent
}

func newStubCache() *stubCache {
	return &stubCache{
		lists:        make(map[cacheKey][]domain.ScoredRecommendation),
		viewerEpochs: make(map[int64]int64),
	}
}

func (c *stubCache) Epoch(_ context.Context, viewerID int64) (cache.Epoch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cache.Epoch{Viewer: c.viewerEpochs[viewerID], Global: c.globalEpoch}, nil
}

func (c *stubCache) Get(_ context.Context, viewerID int64, limit int) ([]domain.ScoredRecommendation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	recs, ok := c.lists[cacheKey{viewerID, limit}]
	return recs, ok, nil
}

func (c *stubCache) Set(_ context.Context, viewerID int64, limit int, epoch cache.Epoch, recs []domain.ScoredRecommendation) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch.Viewer != c.viewerEpochs[viewerID] || epoch.Global != c.globalEpoch {
		return false, nil
	}
	c.lists[cacheKey{viewerID, limit}] = recs
	return true, nil
}

func (c *stubCache) ClearViewerCache(_ context.Context, viewerID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = append(c.cleared, viewerID)
	c.viewerEpochs[viewerID]++
	for k := range c.lists {
		if k.viewerID == viewerID {
			delete(c.lists, k)
		}
	}
	return nil
}

func (c *stubCache) ClearAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearAlls++
	c.globalEpoch++
	c.lists = make(map[cacheKey][]domain.ScoredRecommendation)
	return nil
}

func (c *stubCache) PublishCatalogChanged(_ context.Context, ev domain.CatalogEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, ev)
	return nil
}

func (c *stubCache) SubscribeCatalog(ctx context.Context, handle func(domain.CatalogEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			handle(ev)
		}
	}
}

// gatedStore holds the first ratings read open until release is closed.
type gatedStore struct {
	*stubStore
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		stubStore: newStubStore(),
		reached:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (g *gatedStore) ListRatingsByViewer(ctx context.Context, id int64) ([]domain.Rating, error) {
	ratings, err := g.stubStore.ListRatingsByViewer(ctx, id)
	g.once.Do(func() {
		close(g.reached)
		<-g.release
	})
	return ratings, err
}

func newTestService(t *testing.T) (*Service, *stubStore, *stubCache) {
	t.Helper()
	store := newStubStore()
	c := newStubCache()
	index := model.NewTextIndex(store, 0, zerolog.Nop())
	svc := NewService(store, c, model.NewClient(index), time.Second, zerolog.Nop())
	return svc, store, c
}

func TestGetRecommendationsCacheAside(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()

	first, err := svc.GetRecommendations(ctx, 1, 5)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Len(t, first.Recommendations, 2)
	require.Equal(t, int64(2), first.Recommendations[0].MovieID, "the sibling of a 10/10 movie ranks first")
	require.Contains(t, c.lists, cacheKey{1, 5})

	hits := testutil.ToFloat64(metrics.ResultCacheHits)
	second, err := svc.GetRecommendations(ctx, 1, 5)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, hits+1, testutil.ToFloat64(metrics.ResultCacheHits))
	require.Equal(t, first.Recommendations, second.Recommendations)
}

func TestRatingDuringRankingIsNotCachedOver(t *testing.T) {
	store := newGatedStore()
	c := newStubCache()
	svc := NewService(store, c, model.NewClient(model.NewTextIndex(store, 0, zerolog.Nop())), time.Second, zerolog.Nop())
	ctx := context.Background()

	type outcome struct {
		result *domain.RecommendationResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := svc.GetRecommendations(ctx, 1, 5)
		done <- outcome{r, err}
	}()

	<-store.reached
	_, err := svc.RateMovie(ctx, 1, 2, 9)
	require.NoError(t, err)
	close(store.release)

	inFlight := <-done
	require.NoError(t, inFlight.err)
	require.Equal(t, []int64{2, 3}, movieIDs(inFlight.result.Recommendations), "ranked on the older ratings")
	require.NotContains(t, c.lists, cacheKey{1, 5}, "outdated list must not be cached")

	fresh, err := svc.GetRecommendations(ctx, 1, 5)
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.NotContains(t, movieIDs(fresh.Recommendations), int64(2))
	require.Equal(t, []int64{3}, movieIDs(fresh.Recommendations))
}

func TestCatalogChangeDuringRankingIsNotCachedOver(t *testing.T) {
	store := newGatedStore()
	c := newStubCache()
	svc := NewService(store, c, model.NewClient(model.NewTextIndex(store, 0, zerolog.Nop())), time.Second, zerolog.Nop())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetRecommendations(ctx, 1, 5)
		done <- err
	}()

	<-store.reached
	svc.NotifyCatalogChanged(ctx, "movie 3 retitled")
	close(store.release)

	require.NoError(t, <-done)
	require.Empty(t, c.lists)

	_, err := svc.GetRecommendations(ctx, 1, 5)
	require.NoError(t, err)
	require.Contains(t, c.lists, cacheKey{1, 5}, "rankings after the change are cached again")
}

func movieIDs(recs []domain.ScoredRecommendation) []int64 {
	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.MovieID
	}
	return ids
}

func TestGetRecommendationsClampsLimit(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetRecommendations(ctx, 2, 0)
	require.NoError(t, err)
	_, err = svc.GetRecommendations(ctx, 2, 500)
	require.NoError(t, err)

	require.Contains(t, c.lists, cacheKey{2, defaultLimit})
	require.Contains(t, c.lists, cacheKey{2, maxLimit})
}

func TestGetRecommendationsColdStartUsesActivity(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.GetRecommendations(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 3)
	require.Equal(t, int64(3), result.Recommendations[0].MovieID)
	require.InDelta(t, 0.6, result.Recommendations[0].Score, 1e-9)
}

func TestGetRecommendationsViewerNotFound(t *testing.T) {
	svc, _, c := newTestService(t)

	_, err := svc.GetRecommendations(context.Background(), 404, 10)
	require.ErrorIs(t, err, domain.ErrViewerNotFound)
	require.Empty(t, c.lists)
}

func TestGetRecommendationsIgnoresCacheErrors(t *testing.T) {
	svc, _, c := newTestService(t)
	c.getErr = errors.New("connection refused")

	result, err := svc.GetRecommendations(context.Background(), 1, 10)
	require.NoError(t, err)
	require.False(t, result.CacheHit)
	require.NotEmpty(t, result.Recommendations)
}

func TestRecommendTitles(t *testing.T) {
	svc, _, _ := newTestService(t)

	titles, err := svc.RecommendTitles(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"Wormhole Drift", "Croissant"}, titles)
}

func TestGetBatchRecommendations(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.pageIDs = []int64{1, 2, 99}

	resp, err := svc.GetBatchRecommendations(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, 3, resp.TotalViewers)
	require.Len(t, resp.Results, 3)
	require.Equal(t, 2, resp.Summary.SuccessCount)
	require.Equal(t, 1, resp.Summary.FailedCount)

	failed := resp.Results[2]
	require.Equal(t, int64(99), failed.ViewerID)
	require.Equal(t, domain.StatusFailed, failed.Status)
	require.Equal(t, "viewer_not_found", failed.Error)

	require.Equal(t, domain.StatusSuccess, resp.Results[0].Status)
	require.NotEmpty(t, resp.Results[0].Recommendations)
}

func TestRateMovie(t *testing.T) {
	svc, store, c := newTestService(t)
	ctx := context.Background()

	for _, score := range []int{0, 11, -3} {
		_, err := svc.RateMovie(ctx, 2, 1, score)
		require.ErrorIs(t, err, domain.ErrInvalidScore)
	}

	_, err := svc.RateMovie(ctx, 404, 1, 5)
	require.ErrorIs(t, err, domain.ErrViewerNotFound)

	_, err = svc.GetRecommendations(ctx, 2, 10)
	require.NoError(t, err)
	require.Contains(t, c.lists, cacheKey{2, 10})

	avg, err := svc.RateMovie(ctx, 2, 1, 7)
	require.NoError(t, err)
	require.InDelta(t, 8.5, avg, 1e-9)
	require.Equal(t, []int64{2}, c.cleared)
	require.NotContains(t, c.lists, cacheKey{2, 10})
	require.Len(t, store.ratings[2], 1)

	_, err = svc.RateMovie(ctx, 2, 42, 7)
	require.ErrorIs(t, err, domain.ErrMovieNotFound)
}

func TestTrackActivity(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()

	_, err := svc.TrackActivity(ctx, domain.ActivityEvent{ViewerID: 1, MovieID: 2, SecondsWatched: -1})
	require.ErrorIs(t, err, domain.ErrInvalidActivity)

	_, err = svc.TrackActivity(ctx, domain.ActivityEvent{ViewerID: 404, MovieID: 2})
	require.ErrorIs(t, err, domain.ErrViewerNotFound)

	a, err := svc.TrackActivity(ctx, domain.ActivityEvent{ViewerID: 1, MovieID: 2, SecondsWatched: 90, TrailerWatched: true})
	require.NoError(t, err)
	require.InDelta(t, 90, a.SecondsWatched, 1e-9)
	require.True(t, a.TrailerWatched)
	require.Equal(t, []int64{1}, c.cleared)
}

func TestNotifyCatalogChanged(t *testing.T) {
	svc, store, c := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetRecommendations(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 2, store.movieLoads, "one load for the ranking input, one for the index")

	ev := svc.NotifyCatalogChanged(ctx, "movie 2 edited")
	require.NotEmpty(t, ev.ID)
	require.Equal(t, "movie 2 edited", ev.Reason)
	require.Len(t, c.published, 1)
	require.Equal(t, 1, c.clearAlls)
	require.Empty(t, c.lists)

	_, err = svc.GetRecommendations(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 4, store.movieLoads, "index rebuilt after invalidation")
}

func TestNotifyCatalogChangedPublishFailure(t *testing.T) {
	svc, store, c := newTestService(t)
	c.publishErr = errors.New("redis down")
	ctx := context.Background()

	_, err := svc.GetRecommendations(ctx, 1, 10)
	require.NoError(t, err)
	loads := store.movieLoads

	svc.NotifyCatalogChanged(ctx, "import")
	require.Empty(t, c.published)

	_, err = svc.GetRecommendations(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, loads+2, store.movieLoads, "local index still invalidated")
}

func TestWatchCatalog(t *testing.T) {
	svc, store, c := newTestService(t)
	c.events = make(chan domain.CatalogEvent)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := svc.GetRecommendations(ctx, 1, 10)
	require.NoError(t, err)
	require.NoError(t, c.ClearAll(ctx))

	done := make(chan error, 1)
	go func() { done <- svc.WatchCatalog(ctx) }()

	c.events <- domain.CatalogEvent{ID: "e1", Reason: "remote edit"}
	c.events <- domain.CatalogEvent{ID: "e2", Reason: "barrier"}

	loads := store.movieLoads
	_, err = svc.GetRecommendations(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, loads+2, store.movieLoads)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchCatalogSkipsOwnEvents(t *testing.T) {
	svc, _, c := newTestService(t)
	c.events = make(chan domain.CatalogEvent)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.WatchCatalog(ctx) }()

	own := svc.NotifyCatalogChanged(ctx, "local edit")
	before := testutil.ToFloat64(metrics.TextIndexInvalidations)

	c.events <- own
	c.events <- domain.CatalogEvent{ID: "remote-1", Reason: "remote edit"}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	require.Equal(t, before+1, testutil.ToFloat64(metrics.TextIndexInvalidations), "only the remote event invalidates")
	_, pending := svc.published.Load(own.ID)
	require.False(t, pending)
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{domain.ErrViewerNotFound, "viewer_not_found"},
		{fmt.Errorf("score viewer 1: %w", domain.ErrMovieNotFound), "movie_not_found"},
		{fmt.Errorf("score viewer 1: %w", context.DeadlineExceeded), "request_timeout"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		code, msg := categorizeError(tt.err)
		require.Equal(t, tt.code, code)
		require.NotEmpty(t, msg)
	}
}
