package attendance

import (
	"time"
)

// DefaultRadiusMeters applies when a club has a boundary center but no radius.
const DefaultRadiusMeters = 100

// Boundary is the circular geofence of one club.
type Boundary struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

type Club struct {
	ID             string
	Name           string
	AdminID        *string
	BoundaryLat    *float64
	BoundaryLng    *float64
	BoundaryRadius *float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Boundary returns nil when the club has no geofence configured.
func (c Club) Boundary() *Boundary {
	if c.BoundaryLat == nil || c.BoundaryLng == nil {
		return nil
	}
	radius := float64(DefaultRadiusMeters)
	if c.BoundaryRadius != nil && *c.BoundaryRadius > 0 {
		radius = *c.BoundaryRadius
	}
	return &Boundary{
		Latitude:     *c.BoundaryLat,
		Longitude:    *c.BoundaryLng,
		RadiusMeters: radius,
	}
}

type DayStatus struct {
	ID         string
	ClubID     string
	StatusDate time.Time
	IsOpen     bool
	OpenedBy   *string
	CreatedAt  time.Time
}

// Session is one contiguous interval a member spent inside the club zone
// while the day was open. EndTime is nil while the session is open.
type Session struct {
	ID          string
	MemberID    string
	ClubID      string
	SessionDate time.Time
	StartTime   time.Time
	EndTime     *time.Time
	CreatedAt   time.Time
}

func (s Session) IsOpen() bool {
	return s.EndTime == nil
}

// Minutes returns the session length in minutes. Open sessions are measured up to now.
func (s Session) Minutes(now time.Time) float64 {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	if end.Before(s.StartTime) {
		return 0
	}
	return end.Sub(s.StartTime).Minutes()
}

// WholeMinutes returns Minutes truncated to whole minutes.
func (s Session) WholeMinutes(now time.Time) int {
	return int(s.Minutes(now))
}
