package repository

import (
	"context"
	"fmt"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
)

func (r *Repository) ListActivitiesByViewer(ctx context.Context, viewerID int64) ([]domain.MovieActivity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT viewer_id, movie_id, seconds_watched, watched_trailer, watched_movie, last_visit
		FROM movie_activity
		WHERE viewer_id = $1
		ORDER BY last_visit DESC`,
		viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("get activity for viewer %d: %w", viewerID, err)
	}
	defer rows.Close()

	var items []domain.MovieActivity
	for rows.Next() {
		var a domain.MovieActivity
		if err := rows.Scan(&a.ViewerID, &a.MovieID, &a.SecondsWatched,
			&a.TrailerWatched, &a.MovieWatched, &a.LastVisit); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over activity: %w", err)
	}
	return items, nil
}

// RecordActivity adds the event's watch time to the stored total and OR-s in
// the flags, creating the record on first sight.
func (r *Repository) RecordActivity(ctx context.Context, ev domain.ActivityEvent) (*domain.MovieActivity, error) {
	a := &domain.MovieActivity{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO movie_activity (viewer_id, movie_id, seconds_watched, watched_trailer, watched_movie, last_visit)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (viewer_id, movie_id) DO UPDATE SET
			seconds_watched = movie_activity.seconds_watched + EXCLUDED.seconds_watched,
			watched_trailer = movie_activity.watched_trailer OR EXCLUDED.watched_trailer,
			watched_movie   = movie_activity.watched_movie OR EXCLUDED.watched_movie,
			last_visit      = now()
		RETURNING viewer_id, movie_id, seconds_watched, watched_trailer, watched_movie, last_visit`,
		ev.ViewerID, ev.MovieID, ev.SecondsWatched, ev.TrailerWatched, ev.MovieWatched,
	).Scan(&a.ViewerID, &a.MovieID, &a.SecondsWatched, &a.TrailerWatched, &a.MovieWatched, &a.LastVisit)
	if err != nil {
		if isForeignKeyViolation(err, "movie_activity_movie_id_fkey") {
			return nil, fmt.Errorf("track movie %d: %w", ev.MovieID, domain.ErrMovieNotFound)
		}
		if isForeignKeyViolation(err, "movie_activity_viewer_id_fkey") {
			return nil, domain.ErrViewerNotFound
		}
		return nil, fmt.Errorf("record activity viewer=%d movie=%d: %w", ev.ViewerID, ev.MovieID, err)
	}
	return a, nil
}
