package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/cache"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/metrics"
)

type dayStatusEntry struct {
	Status *attendance.DayStatus `json:"status"`
}

type dayStatusRepository struct {
	next  attendance.DayStatusRepository
	store cache.Store
	ttl   time.Duration
}

func NewDayStatusRepository(next attendance.DayStatusRepository, store cache.Store, ttl time.Duration) attendance.DayStatusRepository {
	return &dayStatusRepository{next: next, store: store, ttl: ttl}
}

func dayStatusKey(clubID string, date time.Time) string {
	return "club:" + clubID + ":day:" + date.Format("2006-01-02")
}

// GetDayStatus implements attendance.DayStatusRepository.
func (r *dayStatusRepository) GetDayStatus(ctx context.Context, clubID string, date time.Time) (*attendance.DayStatus, error) {
	key := dayStatusKey(clubID, date)

	if data, err := r.store.Get(ctx, key); err == nil {
		var entry dayStatusEntry
		if err := json.Unmarshal(data, &entry); err == nil {
			metrics.CacheLookups.WithLabelValues("day_status", "hit").Inc()
			return entry.Status, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		slog.Warn("Day status cache read failed", "club_id", clubID, "error", err)
	}
	metrics.CacheLookups.WithLabelValues("day_status", "miss").Inc()

	status, err := r.next.GetDayStatus(ctx, clubID, date)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(dayStatusEntry{Status: status}); err == nil {
		if err := r.store.Set(ctx, key, data, r.ttl); err != nil {
			slog.Warn("Day status cache write failed", "club_id", clubID, "error", err)
		}
	}
	return status, nil
}

// Invalidator drops cached club inputs after the club changed elsewhere.
type Invalidator struct {
	store cache.Store
}

func NewInvalidator(store cache.Store) *Invalidator {
	return &Invalidator{store: store}
}

// InvalidateClub removes the cached boundary and the day status for date.
func (i *Invalidator) InvalidateClub(ctx context.Context, clubID string, date time.Time) error {
	if i == nil || i.store == nil {
		return nil
	}
	return i.store.Delete(ctx, boundaryKey(clubID), dayStatusKey(clubID, date))
}
