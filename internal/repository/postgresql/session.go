package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type sessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) attendance.SessionRepository {
	return &sessionRepository{db: db}
}

// Create implements attendance.SessionRepository.
func (r *sessionRepository) Create(ctx context.Context, session attendance.Session) (attendance.Session, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO attendance_sessions (member_id, club_id, session_date, start_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := q.QueryRow(ctx, query,
		session.MemberID,
		session.ClubID,
		session.SessionDate,
		session.StartTime,
	).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return attendance.Session{}, attendance.ErrOpenSessionExists
		}
		return attendance.Session{}, fmt.Errorf("failed to create attendance session: %w", err)
	}

	session.EndTime = nil
	return session, nil
}

// Close implements attendance.SessionRepository.
func (r *sessionRepository) Close(ctx context.Context, id string, endTime time.Time) error {
	return WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		var closedID string
		err := q.QueryRow(ctx, `
			UPDATE attendance_sessions
			SET end_time = $2
			WHERE id = $1 AND end_time IS NULL
			RETURNING id
		`, id, endTime).Scan(&closedID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to close attendance session: %w", err)
		}

		// nothing updated: either unknown or already closed
		var existing *time.Time
		err = q.QueryRow(ctx, `SELECT end_time FROM attendance_sessions WHERE id = $1`, id).Scan(&existing)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return attendance.ErrSessionNotFound
			}
			return fmt.Errorf("failed to get attendance session: %w", err)
		}
		if existing != nil && existing.Equal(endTime) {
			return nil
		}
		return attendance.ErrSessionAlreadyClosed
	})
}

// GetOpenByMember implements attendance.SessionRepository.
func (r *sessionRepository) GetOpenByMember(ctx context.Context, memberID string) (*attendance.Session, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, member_id, club_id, session_date, start_time, end_time, created_at
		FROM attendance_sessions
		WHERE member_id = $1
		  AND end_time IS NULL
		ORDER BY start_time DESC
		LIMIT 1
	`

	var s attendance.Session
	err := q.QueryRow(ctx, query, memberID).Scan(
		&s.ID, &s.MemberID, &s.ClubID, &s.SessionDate, &s.StartTime, &s.EndTime, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}

	return &s, nil
}

// ListByMember implements attendance.SessionRepository.
func (r *sessionRepository) ListByMember(ctx context.Context, memberID string, filter attendance.SessionFilter) ([]attendance.Session, error) {
	q := GetQuerier(ctx, r.db)

	where := "member_id = $1"
	args := []interface{}{memberID}
	argIdx := 2

	if filter.StartDate != nil && *filter.StartDate != "" {
		where += fmt.Sprintf(" AND session_date >= $%d", argIdx)
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil && *filter.EndDate != "" {
		where += fmt.Sprintf(" AND session_date <= $%d", argIdx)
		args = append(args, *filter.EndDate)
		argIdx++
	}

	query := fmt.Sprintf(`
		SELECT id, member_id, club_id, session_date, start_time, end_time, created_at
		FROM attendance_sessions
		WHERE %s
		ORDER BY session_date DESC, start_time ASC
	`, where)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]attendance.Session, 0)
	for rows.Next() {
		var s attendance.Session
		if err := rows.Scan(
			&s.ID, &s.MemberID, &s.ClubID, &s.SessionDate, &s.StartTime, &s.EndTime, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance sessions: %w", err)
	}

	return sessions, nil
}
