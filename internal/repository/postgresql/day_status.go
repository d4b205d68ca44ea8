package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type dayStatusRepository struct {
	db *database.DB
}

func NewDayStatusRepository(db *database.DB) attendance.DayStatusRepository {
	return &dayStatusRepository{db: db}
}

// GetDayStatus implements attendance.DayStatusRepository.
func (r *dayStatusRepository) GetDayStatus(ctx context.Context, clubID string, date time.Time) (*attendance.DayStatus, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, club_id, status_date, is_open, opened_by, created_at
		FROM day_status
		WHERE club_id = $1
		  AND status_date = $2
		LIMIT 1
	`

	var d attendance.DayStatus
	err := q.QueryRow(ctx, query, clubID, date.Format("2006-01-02")).Scan(
		&d.ID, &d.ClubID, &d.StatusDate, &d.IsOpen, &d.OpenedBy, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get day status: %w", err)
	}

	return &d, nil
}
