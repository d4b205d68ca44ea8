package tracking

import (
	"context"

	"github.com/clubtrack/attendance-backend-go/internal/domain/auth"
)

// TrackingService drives per-member geofence tracking.
type TrackingService interface {
	// Start registers the member context and begins tracking when the club has a
	// boundary and the day is open
	Start(ctx context.Context, identity auth.Identity) (StateResponse, error)

	// Stop tears tracking down, closing any open session, and forgets the member
	Stop(ctx context.Context, memberID string) error

	// PushPosition hands a device sample to the member's feed
	PushPosition(ctx context.Context, req PositionRequest) (StateResponse, error)

	// PushError hands a device error to the member's feed
	PushError(ctx context.Context, req FeedErrorRequest) (StateResponse, error)

	// GetState returns the member's current tracking state
	GetState(ctx context.Context, memberID string) (StateResponse, error)

	// Refresh reloads boundary and day status for every registered member and
	// re-arms trackers whose inputs changed
	Refresh(ctx context.Context) error

	// RefreshClub does the same for members of one club
	RefreshClub(ctx context.Context, clubID string) error

	// Shutdown stops all trackers, closing open sessions
	Shutdown(ctx context.Context) error
}
