package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Get single viewer
func (r *Repository) GetViewerByID(ctx context.Context, viewerID int64) (*domain.Viewer, error) {
	viewer := &domain.Viewer{}

	err := r.pool.QueryRow(ctx,
		`SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(email, ''), created_at
		 FROM viewers WHERE id = $1`,
		viewerID,
	).Scan(&viewer.ID, &viewer.FirstName, &viewer.LastName, &viewer.Email, &viewer.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrViewerNotFound
		}
		return nil, fmt.Errorf("query viewer id=%d: %w", viewerID, err)
	}

	return viewer, nil
}

// Get viewer ids for page
func (r *Repository) GetViewerIDsPaginated(ctx context.Context, page, limit int) ([]int64, error) {
	offset := (page - 1) * limit
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM viewers ORDER BY id LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query viewer ids for page %d: %w", page, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan viewer id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate viewer ids: %w", err)
	}
	return ids, nil
}

// Count total viewers
func (r *Repository) CountViewers(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM viewers`,
	).Scan(&total)

	if err != nil {
		return 0, fmt.Errorf("count viewers: %w", err)
	}
	return total, nil
}
