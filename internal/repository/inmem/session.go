package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/google/uuid"
)

type sessionRepository struct {
	db *sessionTable
}

func NewSessionRepository(db *DB) attendance.SessionRepository {
	return &sessionRepository{db: db.sessions}
}

// Create implements attendance.SessionRepository.
func (r *sessionRepository) Create(ctx context.Context, session attendance.Session) (attendance.Session, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	for _, s := range r.db.t {
		if s.MemberID == session.MemberID && s.EndTime == nil {
			return attendance.Session{}, attendance.ErrOpenSessionExists
		}
	}

	session.ID = uuid.NewString()
	session.EndTime = nil
	session.CreatedAt = time.Now().UTC()
	r.db.t[session.ID] = &session
	return session, nil
}

// Close implements attendance.SessionRepository.
func (r *sessionRepository) Close(ctx context.Context, id string, endTime time.Time) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	s, ok := r.db.t[id]
	if !ok {
		return attendance.ErrSessionNotFound
	}
	if s.EndTime != nil {
		if s.EndTime.Equal(endTime) {
			return nil
		}
		return attendance.ErrSessionAlreadyClosed
	}
	end := endTime
	s.EndTime = &end
	return nil
}

// GetOpenByMember implements attendance.SessionRepository.
func (r *sessionRepository) GetOpenByMember(ctx context.Context, memberID string) (*attendance.Session, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	for _, s := range r.db.t {
		if s.MemberID == memberID && s.EndTime == nil {
			found := *s
			return &found, nil
		}
	}
	return nil, nil
}

// ListByMember implements attendance.SessionRepository.
func (r *sessionRepository) ListByMember(ctx context.Context, memberID string, filter attendance.SessionFilter) ([]attendance.Session, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	sessions := make([]attendance.Session, 0)
	for _, s := range r.db.t {
		if s.MemberID != memberID {
			continue
		}
		day := s.SessionDate.Format("2006-01-02")
		if filter.StartDate != nil && *filter.StartDate != "" && day < *filter.StartDate {
			continue
		}
		if filter.EndDate != nil && *filter.EndDate != "" && day > *filter.EndDate {
			continue
		}
		sessions = append(sessions, *s)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].SessionDate.Equal(sessions[j].SessionDate) {
			return sessions[i].SessionDate.After(sessions[j].SessionDate)
		}
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
	return sessions, nil
}
