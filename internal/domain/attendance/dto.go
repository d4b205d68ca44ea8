package attendance

import (
	"github.com/clubtrack/attendance-backend-go/internal/pkg/validator"
)

// ========================================
// SESSION DTOs
// ========================================

// SessionFilter narrows ListByMember. Dates are YYYY-MM-DD, inclusive.
type SessionFilter struct {
	StartDate *string
	EndDate   *string
}

type HistoryRequest struct {
	MemberID  string  `json:"member_id"`
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
}

func (r *HistoryRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.MemberID) {
		errs = append(errs, validator.ValidationError{
			Field:   "member_id",
			Message: "member_id is required",
		})
	}

	start, end := r.StartDate != nil && *r.StartDate != "", r.EndDate != nil && *r.EndDate != ""
	if start {
		if _, ok := validator.IsValidDate(*r.StartDate); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
	}
	if end {
		if _, ok := validator.IsValidDate(*r.EndDate); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
	}
	if start && end && len(errs) == 0 && *r.EndDate < *r.StartDate {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must not be before start_date",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SessionResponse struct {
	ID          string  `json:"id"`
	MemberID    string  `json:"member_id"`
	ClubID      string  `json:"club_id"`
	SessionDate string  `json:"session_date"`
	StartTime   string  `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Minutes     int     `json:"minutes"`
	Open        bool    `json:"open"`
}

type DayHistoryResponse struct {
	Date           string            `json:"date"`
	SessionCount   int               `json:"session_count"`
	TotalMinutes   int               `json:"total_minutes"`
	TotalFormatted string            `json:"total_formatted"`
	Sessions       []SessionResponse `json:"sessions"`
}

type HistoryResponse struct {
	Days []DayHistoryResponse `json:"days"`
}

type SummaryResponse struct {
	Date           string            `json:"date"`
	TodayMinutes   int               `json:"today_minutes"`
	TodayFormatted string            `json:"today_formatted"`
	TotalMinutes   int               `json:"total_minutes"`
	TotalFormatted string            `json:"total_formatted"`
	DaysAttended   int               `json:"days_attended"`
	TodaySessions  []SessionResponse `json:"today_sessions"`
}
