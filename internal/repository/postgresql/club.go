package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type clubRepository struct {
	db *database.DB
}

func NewClubRepository(db *database.DB) attendance.ClubRepository {
	return &clubRepository{db: db}
}

// GetByID implements attendance.ClubRepository.
func (r *clubRepository) GetByID(ctx context.Context, clubID string) (attendance.Club, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, name, admin_id, boundary_lat, boundary_lng, boundary_radius, created_at, updated_at
		FROM clubs
		WHERE id = $1
	`

	var c attendance.Club
	err := q.QueryRow(ctx, query, clubID).Scan(
		&c.ID, &c.Name, &c.AdminID, &c.BoundaryLat, &c.BoundaryLng, &c.BoundaryRadius, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Club{}, attendance.ErrClubNotFound
		}
		return attendance.Club{}, fmt.Errorf("failed to get club by ID: %w", err)
	}

	return c, nil
}

// GetBoundary implements attendance.ClubRepository.
func (r *clubRepository) GetBoundary(ctx context.Context, clubID string) (*attendance.Boundary, error) {
	club, err := r.GetByID(ctx, clubID)
	if err != nil {
		return nil, err
	}
	return club.Boundary(), nil
}
