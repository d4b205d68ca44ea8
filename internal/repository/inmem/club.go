package inmem

import (
	"context"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
)

type clubRepository struct {
	db *clubTable
}

func NewClubRepository(db *DB) attendance.ClubRepository {
	return &clubRepository{db: db.clubs}
}

// PutClub inserts or replaces a club.
func (db *DB) PutClub(club attendance.Club) {
	db.clubs.mutex.Lock()
	defer db.clubs.mutex.Unlock()
	db.clubs.t[club.ID] = &club
}

// GetByID implements attendance.ClubRepository.
func (r *clubRepository) GetByID(ctx context.Context, clubID string) (attendance.Club, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if c, ok := r.db.t[clubID]; ok {
		return *c, nil
	}
	return attendance.Club{}, attendance.ErrClubNotFound
}

// GetBoundary implements attendance.ClubRepository.
func (r *clubRepository) GetBoundary(ctx context.Context, clubID string) (*attendance.Boundary, error) {
	club, err := r.GetByID(ctx, clubID)
	if err != nil {
		return nil, err
	}
	return club.Boundary(), nil
}

type dayStatusRepository struct {
	db *dayTable
}

func NewDayStatusRepository(db *DB) attendance.DayStatusRepository {
	return &dayStatusRepository{db: db.days}
}

// SetDayOpen records the open flag of a club for a date.
func (db *DB) SetDayOpen(clubID string, date time.Time, open bool) {
	db.days.mutex.Lock()
	defer db.days.mutex.Unlock()

	if db.days.t[clubID] == nil {
		db.days.t[clubID] = make(map[string]*attendance.DayStatus)
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	db.days.t[clubID][day.Format("2006-01-02")] = &attendance.DayStatus{
		ClubID:     clubID,
		StatusDate: day,
		IsOpen:     open,
		CreatedAt:  time.Now().UTC(),
	}
}

// GetDayStatus implements attendance.DayStatusRepository.
func (r *dayStatusRepository) GetDayStatus(ctx context.Context, clubID string, date time.Time) (*attendance.DayStatus, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if status, ok := r.db.t[clubID][date.Format("2006-01-02")]; ok {
		found := *status
		return &found, nil
	}
	return nil, nil
}
