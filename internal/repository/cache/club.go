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

// boundaryEntry wraps the boundary so a club without one is cached too.
type boundaryEntry struct {
	Boundary *attendance.Boundary `json:"boundary"`
}

type clubRepository struct {
	attendance.ClubRepository
	store cache.Store
	ttl   time.Duration
}

// NewClubRepository serves GetBoundary through store, falling back to next on a miss.
// Other lookups go straight to next.
func NewClubRepository(next attendance.ClubRepository, store cache.Store, ttl time.Duration) attendance.ClubRepository {
	return &clubRepository{ClubRepository: next, store: store, ttl: ttl}
}

func boundaryKey(clubID string) string {
	return "club:" + clubID + ":boundary"
}

// GetBoundary implements attendance.ClubRepository.
func (r *clubRepository) GetBoundary(ctx context.Context, clubID string) (*attendance.Boundary, error) {
	key := boundaryKey(clubID)

	if data, err := r.store.Get(ctx, key); err == nil {
		var entry boundaryEntry
		if err := json.Unmarshal(data, &entry); err == nil {
			metrics.CacheLookups.WithLabelValues("boundary", "hit").Inc()
			return entry.Boundary, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		slog.Warn("Boundary cache read failed", "club_id", clubID, "error", err)
	}
	metrics.CacheLookups.WithLabelValues("boundary", "miss").Inc()

	boundary, err := r.ClubRepository.GetBoundary(ctx, clubID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(boundaryEntry{Boundary: boundary}); err == nil {
		if err := r.store.Set(ctx, key, data, r.ttl); err != nil {
			slog.Warn("Boundary cache write failed", "club_id", clubID, "error", err)
		}
	}
	return boundary, nil
}
