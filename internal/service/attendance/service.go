package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/utils"
)

const dateLayout = "2006-01-02"

type AttendanceServiceImpl struct {
	attendance.SessionRepository
	location *time.Location
	now      func() time.Time
}

func NewAttendanceService(sessions attendance.SessionRepository, location *time.Location, now func() time.Time) attendance.AttendanceService {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &AttendanceServiceImpl{
		SessionRepository: sessions,
		location:          location,
		now:               now,
	}
}

// GetHistory implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) GetHistory(ctx context.Context, req attendance.HistoryRequest) (attendance.HistoryResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.HistoryResponse{}, err
	}

	sessions, err := a.SessionRepository.ListByMember(ctx, req.MemberID, attendance.SessionFilter{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		return attendance.HistoryResponse{}, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := a.now()
	days := make([]attendance.DayHistoryResponse, 0)
	closedMinutes := make([]int, 0)
	index := make(map[string]int)

	// sessions arrive newest date first
	for _, s := range sessions {
		date := s.SessionDate.Format(dateLayout)
		i, ok := index[date]
		if !ok {
			i = len(days)
			index[date] = i
			days = append(days, attendance.DayHistoryResponse{Date: date, Sessions: make([]attendance.SessionResponse, 0)})
			closedMinutes = append(closedMinutes, 0)
		}

		days[i].Sessions = append(days[i].Sessions, toSessionResponse(s, now))
		days[i].SessionCount++
		if !s.IsOpen() {
			closedMinutes[i] += s.WholeMinutes(now)
		}
	}

	for i := range days {
		days[i].TotalMinutes = closedMinutes[i]
		days[i].TotalFormatted = utils.FormatMinutes(float64(closedMinutes[i]))
	}

	return attendance.HistoryResponse{Days: days}, nil
}

// GetSummary implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) GetSummary(ctx context.Context, memberID string) (attendance.SummaryResponse, error) {
	if memberID == "" {
		return attendance.SummaryResponse{}, attendance.ErrMemberIDRequired
	}

	sessions, err := a.SessionRepository.ListByMember(ctx, memberID, attendance.SessionFilter{})
	if err != nil {
		return attendance.SummaryResponse{}, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := a.now()
	today := now.In(a.location).Format(dateLayout)

	// each session is truncated to whole minutes before summing
	var todayMinutes, totalMinutes int
	todaySessions := make([]attendance.SessionResponse, 0)
	attended := make(map[string]struct{})
	for _, s := range sessions {
		date := s.SessionDate.Format(dateLayout)
		attended[date] = struct{}{}
		if !s.IsOpen() {
			totalMinutes += s.WholeMinutes(now)
		}
		if date == today {
			todayMinutes += s.WholeMinutes(now)
			todaySessions = append(todaySessions, toSessionResponse(s, now))
		}
	}

	return attendance.SummaryResponse{
		Date:           today,
		TodayMinutes:   todayMinutes,
		TodayFormatted: utils.FormatMinutes(float64(todayMinutes)),
		TotalMinutes:   totalMinutes,
		TotalFormatted: utils.FormatMinutes(float64(totalMinutes)),
		DaysAttended:   len(attended),
		TodaySessions:  todaySessions,
	}, nil
}

func toSessionResponse(s attendance.Session, now time.Time) attendance.SessionResponse {
	resp := attendance.SessionResponse{
		ID:          s.ID,
		MemberID:    s.MemberID,
		ClubID:      s.ClubID,
		SessionDate: s.SessionDate.Format(dateLayout),
		StartTime:   s.StartTime.UTC().Format(time.RFC3339),
		Minutes:     s.WholeMinutes(now),
		Open:        s.IsOpen(),
	}
	if s.EndTime != nil {
		end := s.EndTime.UTC().Format(time.RFC3339)
		resp.EndTime = &end
	}
	return resp
}
