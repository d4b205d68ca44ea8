package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/domain/auth"
	"github.com/clubtrack/attendance-backend-go/internal/domain/tracking"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, auth.ErrMissingIdentity):
		Unauthorized(w, "Unauthorized")
	case errors.Is(err, auth.ErrNotAMember):
		Forbidden(w, "Club membership required")

	// Attendance domain errors
	case errors.Is(err, attendance.ErrMemberIDRequired):
		BadRequest(w, "Member ID is required", nil)
	case errors.Is(err, attendance.ErrClubIDRequired):
		BadRequest(w, "Club ID is required", nil)
	case errors.Is(err, attendance.ErrClubNotFound):
		NotFound(w, "Club not found")
	case errors.Is(err, attendance.ErrSessionNotFound):
		NotFound(w, "Attendance session not found")
	case errors.Is(err, attendance.ErrOpenSessionExists):
		Conflict(w, "Member already has an open attendance session")

	// Tracking domain errors
	case errors.Is(err, tracking.ErrNotRegistered):
		NotFound(w, "Tracking has not been started")
	case errors.Is(err, tracking.ErrFeedUnavailable):
		ServiceUnavailable(w, "Geolocation is not supported")
	case errors.Is(err, tracking.ErrSampleDropped):
		ServiceUnavailable(w, "Position sample was not accepted, retry")

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
