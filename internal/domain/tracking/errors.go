package tracking

import (
	"errors"
)

var (
	// ErrFeedUnavailable means no position source exists for the member.
	ErrFeedUnavailable = errors.New("geolocation not supported")
	ErrNotRegistered   = errors.New("member tracking has not been started")
	ErrSampleDropped   = errors.New("tracker is busy, position sample was not accepted")
)

type FeedErrorCode string

const (
	FeedPermissionDenied    FeedErrorCode = "permission_denied"
	FeedPositionUnavailable FeedErrorCode = "position_unavailable"
	FeedTimeout             FeedErrorCode = "timeout"
	FeedStalePosition       FeedErrorCode = "stale_position"
)

// FeedError is a per-event error reported by the position source.
type FeedError struct {
	Code    FeedErrorCode
	Message string
}

func (e *FeedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Code {
	case FeedPermissionDenied:
		return "User denied Geolocation"
	case FeedTimeout:
		return "Timeout expired"
	case FeedStalePosition:
		return "Position sample is older than the last one"
	default:
		return "Position unavailable"
	}
}
