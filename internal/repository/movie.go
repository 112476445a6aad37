package repository

import (
	"context"
	"fmt"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
)

// ListMovies returns the whole catalogue with genre ids, ordered by id.
func (r *Repository) ListMovies(ctx context.Context) ([]domain.Movie, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.title,
		        COALESCE(m.short_description, ''), COALESCE(m.full_description, ''),
		        m.release_year,
		        COALESCE(array_agg(mg.genre_id ORDER BY mg.genre_id)
		                 FILTER (WHERE mg.genre_id IS NOT NULL), '{}')
		FROM movies m
		LEFT JOIN movie_genres mg ON mg.movie_id = m.id
		GROUP BY m.id
		ORDER BY m.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer rows.Close()

	var movies []domain.Movie
	for rows.Next() {
		var m domain.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.ShortDescription, &m.FullDescription,
			&m.ReleaseYear, &m.GenreIDs); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over movies: %w", err)
	}
	return movies, nil
}
