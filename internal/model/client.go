package model

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
)

const (
	DefaultLimit = 10

	genreWeight       = 0.45
	descriptionWeight = 0.55
	preferenceWeight  = 0.7
	activityWeight    = 0.3
)

// Client ranks the catalogue for a viewer by blending similarity to the
// movies they rated with their viewing activity.
type Client struct {
	index *TextIndex
}

func NewClient(index *TextIndex) *Client {
	return &Client{index: index}
}

type ScoreInput struct {
	Viewer     *domain.Viewer
	Catalog    []domain.Movie
	Ratings    []domain.Rating
	Activities []domain.MovieActivity
	Limit      int
}

type reference struct {
	movie domain.Movie
	mood  float64
}

type scored struct {
	movie domain.Movie
	score float64
}

// InvalidateIndex drops the cached description vectors.
func (c *Client) InvalidateIndex() {
	c.index.Invalidate()
}

// DescriptionSimilarity returns the cosine similarity of two movie descriptions.
func (c *Client) DescriptionSimilarity(ctx context.Context, a, b domain.Movie) (float64, error) {
	return c.index.Similarity(ctx, a.ID, b.ID)
}

// Score returns up to input.Limit unrated movies, best first. Equal scores
// are ordered by movie id.
func (c *Client) Score(ctx context.Context, input ScoreInput) ([]domain.ScoredRecommendation, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	activity := make(map[int64]*domain.MovieActivity, len(input.Activities))
	for i := range input.Activities {
		activity[input.Activities[i].MovieID] = &input.Activities[i]
	}

	var results []scored
	if len(input.Ratings) == 0 {
		// Cold start: rank purely by engagement.
		results = make([]scored, 0, len(input.Catalog))
		for _, m := range input.Catalog {
			results = append(results, scored{movie: m, score: ActivityScore(activity[m.ID])})
		}
	} else {
		var err error
		results, err = c.scoreByPreference(ctx, input, activity)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].movie.ID < results[j].movie.ID
	})

	if len(results) > limit {
		results = results[:limit]
	}

	recs := make([]domain.ScoredRecommendation, 0, len(results))
	for _, r := range results {
		recs = append(recs, domain.ScoredRecommendation{
			MovieID:     r.movie.ID,
			Title:       r.movie.Title,
			GenreIDs:    r.movie.GenreIDs,
			ReleaseYear: r.movie.ReleaseYear,
			Score:       math.Round(r.score*10000) / 10000,
		})
	}
	return recs, nil
}

func (c *Client) scoreByPreference(ctx context.Context, input ScoreInput, activity map[int64]*domain.MovieActivity) ([]scored, error) {
	catalog := make(map[int64]domain.Movie, len(input.Catalog))
	ids := make([]int64, 0, len(input.Catalog))
	for _, m := range input.Catalog {
		catalog[m.ID] = m
		ids = append(ids, m.ID)
	}

	rated := make(map[int64]struct{}, len(input.Ratings))
	refs := make([]reference, 0, len(input.Ratings))
	for _, r := range input.Ratings {
		if _, dup := rated[r.MovieID]; dup {
			continue
		}
		rated[r.MovieID] = struct{}{}
		m, ok := catalog[r.MovieID]
		if !ok {
			return nil, fmt.Errorf("rated movie %d: %w", r.MovieID, domain.ErrMovieNotFound)
		}
		refs = append(refs, reference{movie: m, mood: r.Mood()})
	}

	space, err := c.index.Snapshot(ctx, ids...)
	if err != nil {
		return nil, err
	}

	results := make([]scored, 0, len(input.Catalog)-len(refs))
	for _, candidate := range input.Catalog {
		if _, ok := rated[candidate.ID]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var simSum, weightSum float64
		for _, ref := range refs {
			descSim, err := space.Similarity(ref.movie.ID, candidate.ID)
			if err != nil {
				return nil, err
			}
			genreSim := GenreSimilarity(ref.movie, candidate)
			simSum += (genreWeight*genreSim + descriptionWeight*descSim) * ref.mood
			weightSum += math.Abs(ref.mood)
		}

		preference := 0.0
		if weightSum > 0 {
			preference = simSum / weightSum
		}

		final := preferenceWeight*preference + activityWeight*ActivityScore(activity[candidate.ID])
		results = append(results, scored{movie: candidate, score: final})
	}

	return results, nil
}
