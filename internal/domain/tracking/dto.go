package tracking

import (
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/pkg/validator"
)

// ========================================
// TRACKING DTOs
// ========================================

type PositionRequest struct {
	MemberID  string     `json:"-"`
	ClubID    string     `json:"-"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (r *PositionRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidLatitude(r.Latitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if !validator.IsValidLongitude(r.Longitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type FeedErrorRequest struct {
	MemberID string        `json:"-"`
	ClubID   string        `json:"-"`
	Code     FeedErrorCode `json:"code"`
	Message  string        `json:"message"`
}

func (r *FeedErrorRequest) Validate() error {
	switch r.Code {
	case FeedPermissionDenied, FeedPositionUnavailable, FeedTimeout:
		return nil
	}
	return validator.ValidationErrors{{
		Field:   "code",
		Message: "code must be one of permission_denied, position_unavailable, timeout",
	}}
}

type PositionResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

type StateResponse struct {
	MemberID        string            `json:"member_id"`
	ClubID          string            `json:"club_id"`
	Position        *PositionResponse `json:"position"`
	InZone          bool              `json:"in_zone"`
	Tracking        bool              `json:"tracking"`
	Error           *string           `json:"error"`
	ActiveSessionID *string           `json:"active_session_id"`
	UpdatedAt       string            `json:"updated_at"`
}

func NewStateResponse(s State) StateResponse {
	resp := StateResponse{
		MemberID: s.MemberID,
		ClubID:   s.ClubID,
		InZone:   s.InZone,
		Tracking: s.TrackingActive,
	}
	if s.LastKnownPosition != nil {
		resp.Position = &PositionResponse{
			Latitude:  s.LastKnownPosition.Latitude,
			Longitude: s.LastKnownPosition.Longitude,
			Timestamp: s.LastKnownPosition.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	if s.LastError != "" {
		msg := s.LastError
		resp.Error = &msg
	}
	if s.ActiveSessionID != "" {
		id := s.ActiveSessionID
		resp.ActiveSessionID = &id
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type SSETokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}
