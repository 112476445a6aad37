package model

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
	"github.com/actuallystonmai/cinema-recommendation/internal/logging"
	"github.com/actuallystonmai/cinema-recommendation/internal/metrics"
)

const rebuildTimeout = 30 * time.Second

// CatalogLoader supplies the full movie catalogue for indexing.
type CatalogLoader interface {
	ListMovies(ctx context.Context) ([]domain.Movie, error)
}

// TextIndex owns the process-wide description vector space. Reads share the
// current space; rebuilds swap in a complete new one under the write lock.
// Concurrent rebuild requests are coalesced into a single catalogue load.
type TextIndex struct {
	loader      CatalogLoader
	maxFeatures int
	logger      zerolog.Logger

	mu    sync.RWMutex
	space *Space
	gen   uint64

	group singleflight.Group
}

//nolint:gocritic // zerolog.Logger is passed by value
func NewTextIndex(loader CatalogLoader, maxFeatures int, logger zerolog.Logger) *TextIndex {
	return &TextIndex{
		loader:      loader,
		maxFeatures: maxFeatures,
		logger:      logging.Component(logger, "text_index"),
	}
}

func (x *TextIndex) current() (*Space, uint64) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.space, x.gen
}

// Invalidate drops the current vector space. The next lookup rebuilds it.
func (x *TextIndex) Invalidate() {
	x.mu.Lock()
	x.space = nil
	x.gen++
	x.mu.Unlock()
	metrics.TextIndexInvalidations.Inc()
	x.logger.Debug().Msg("text index invalidated")
}

// Snapshot returns a vector space containing every requested id. A space
// missing any of them is rebuilt once; ids still absent after the rebuild
// are reported as domain.ErrMovieNotFound.
func (x *TextIndex) Snapshot(ctx context.Context, ids ...int64) (*Space, error) {
	space, gen := x.current()
	if space != nil && space.Contains(ids...) {
		return space, nil
	}

	space, err := x.rebuild(ctx, gen)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if !space.Contains(id) {
			return nil, fmt.Errorf("description index lookup for movie %d: %w", id, domain.ErrMovieNotFound)
		}
	}
	return space, nil
}

// Similarity returns the description similarity of two movies.
func (x *TextIndex) Similarity(ctx context.Context, a, b int64) (float64, error) {
	space, err := x.Snapshot(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return space.Similarity(a, b)
}

// Rebuild forces a fresh vector space from the catalogue.
func (x *TextIndex) Rebuild(ctx context.Context) error {
	_, gen := x.current()
	_, err := x.rebuild(ctx, gen)
	return err
}

func (x *TextIndex) rebuild(ctx context.Context, gen uint64) (*Space, error) {
	// callers that observed the same generation share one load
	ch := x.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rebuildTimeout)
		defer cancel()
		return x.build(loadCtx, gen)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Space), nil
	}
}

func (x *TextIndex) build(ctx context.Context, gen uint64) (*Space, error) {
	start := time.Now()
	movies, err := x.loader.ListMovies(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalogue for text index: %w", err)
	}

	space := BuildSpace(movies, x.maxFeatures)

	x.mu.Lock()
	stale := x.gen != gen
	if !stale {
		x.space = space
		x.gen++
	}
	x.mu.Unlock()

	metrics.TextIndexRebuilds.Inc()
	if !stale {
		metrics.TextIndexTerms.Set(float64(space.Terms()))
	}
	x.logger.Info().
		Int("movies", space.Len()).
		Int("terms", space.Terms()).
		Bool("stale", stale).
		Dur("took", time.Since(start)).
		Msg("text index rebuilt")

	return space, nil
}
