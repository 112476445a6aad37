package repository

import (
	"context"
	"fmt"
	"math"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
)

func (r *Repository) ListRatingsByViewer(ctx context.Context, viewerID int64) ([]domain.Rating, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT viewer_id, movie_id, score, created_at
		FROM ratings
		WHERE viewer_id = $1
		ORDER BY movie_id`,
		viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query ratings for viewer %d: %w", viewerID, err)
	}
	defer rows.Close()

	var ratings []domain.Rating
	for rows.Next() {
		var rt domain.Rating
		if err := rows.Scan(&rt.ViewerID, &rt.MovieID, &rt.Score, &rt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, rt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over ratings: %w", err)
	}
	return ratings, nil
}

// UpsertRating creates or replaces the viewer's score for a movie.
func (r *Repository) UpsertRating(ctx context.Context, viewerID, movieID int64, score int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ratings (viewer_id, movie_id, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (viewer_id, movie_id) DO UPDATE SET score = EXCLUDED.score`,
		viewerID, movieID, score,
	)
	if err != nil {
		if isForeignKeyViolation(err, "ratings_movie_id_fkey") {
			return fmt.Errorf("rate movie %d: %w", movieID, domain.ErrMovieNotFound)
		}
		if isForeignKeyViolation(err, "ratings_viewer_id_fkey") {
			return domain.ErrViewerNotFound
		}
		return fmt.Errorf("upsert rating viewer=%d movie=%d: %w", viewerID, movieID, err)
	}
	return nil
}

// AverageRating returns the movie's mean score rounded to one decimal,
// or nil when nobody rated it.
func (r *Repository) AverageRating(ctx context.Context, movieID int64) (*float64, error) {
	var avg *float64
	err := r.pool.QueryRow(ctx,
		`SELECT AVG(score)::float8 FROM ratings WHERE movie_id = $1`, movieID,
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("average rating for movie %d: %w", movieID, err)
	}
	if avg != nil {
		rounded := math.Round(*avg*10) / 10
		avg = &rounded
	}
	return avg, nil
}
