package tracking

import (
	"time"
)

// Position is one device location sample.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscribeOptions mirror the device geolocation watch options.
type SubscribeOptions struct {
	HighAccuracy bool
	// Timeout emits a timeout FeedError when no sample arrives within it. Zero disables.
	Timeout time.Duration
	// MaxCacheAge is how far a sample may lag the newest sample already seen before
	// it is reported as a stale-position error. Zero disables.
	MaxCacheAge time.Duration
}

// FeedEvent carries exactly one of Position or Err.
type FeedEvent struct {
	Position *Position
	Err      *FeedError
}

func PositionEvent(p Position) FeedEvent {
	return FeedEvent{Position: &p}
}

func ErrorEvent(code FeedErrorCode, message string) FeedEvent {
	return FeedEvent{Err: &FeedError{Code: code, Message: message}}
}

// State is the observable tracking state of one member.
type State struct {
	MemberID          string
	ClubID            string
	LastKnownPosition *Position
	InZone            bool
	TrackingActive    bool
	LastError         string
	ActiveSessionID   string
	UpdatedAt         time.Time
}

// SessionEventType names a session lifecycle notification.
type SessionEventType string

const (
	SessionOpened SessionEventType = "opened"
	SessionClosed SessionEventType = "closed"
)

type SessionEvent struct {
	Type        SessionEventType `json:"type"`
	SessionID   string           `json:"session_id"`
	MemberID    string           `json:"member_id"`
	ClubID      string           `json:"club_id"`
	SessionDate string           `json:"session_date"`
	At          time.Time        `json:"at"`
}
