package tracking

import (
	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/domain/tracking"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/utils"
)

// Classify reports whether pos is in the active zone: inside the boundary circle
// while the day is open. A nil boundary is never in zone.
func Classify(pos tracking.Position, boundary *attendance.Boundary, dayIsOpen bool) bool {
	if boundary == nil {
		return false
	}
	distance := utils.DistanceMeters(pos.Latitude, pos.Longitude, boundary.Latitude, boundary.Longitude)
	return distance <= boundary.RadiusMeters && dayIsOpen
}
