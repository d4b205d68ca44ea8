package attendance

import (
	"context"
	"time"
)

// SessionRepository persists attendance sessions.
type SessionRepository interface {
	// Create inserts an open session and returns it with its generated ID
	Create(ctx context.Context, session Session) (Session, error)

	// Close sets end_time on an open session
	Close(ctx context.Context, id string, endTime time.Time) error

	// GetOpenByMember returns the member's open session, or nil when there is none
	GetOpenByMember(ctx context.Context, memberID string) (*Session, error)

	// ListByMember returns sessions ordered by session_date desc, start_time asc
	ListByMember(ctx context.Context, memberID string, filter SessionFilter) ([]Session, error)
}

// ClubRepository exposes the club geofence, read-only.
type ClubRepository interface {
	GetByID(ctx context.Context, clubID string) (Club, error)

	// GetBoundary returns nil when the club has no boundary configured
	GetBoundary(ctx context.Context, clubID string) (*Boundary, error)
}

// DayStatusRepository exposes the per-day open flag, read-only.
type DayStatusRepository interface {
	// GetDayStatus returns nil when no record exists for the date, which means closed
	GetDayStatus(ctx context.Context, clubID string, date time.Time) (*DayStatus, error)
}
