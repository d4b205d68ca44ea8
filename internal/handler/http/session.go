package http

import (
	"net/http"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/domain/auth"
	"github.com/clubtrack/attendance-backend-go/internal/handler/http/response"
)

type SessionHandler interface {
	History(w http.ResponseWriter, r *http.Request)
	Summary(w http.ResponseWriter, r *http.Request)
}

type sessionHandlerImpl struct {
	attendanceService attendance.AttendanceService
}

func NewSessionHandler(attendanceService attendance.AttendanceService) SessionHandler {
	return &sessionHandlerImpl{attendanceService: attendanceService}
}

// History implements SessionHandler.
func (h *sessionHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := attendance.HistoryRequest{
		MemberID:  identity.MemberID,
		StartDate: queryPtr(r, "start_date"),
		EndDate:   queryPtr(r, "end_date"),
	}

	history, err := h.attendanceService.GetHistory(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, history)
}

// Summary implements SessionHandler.
func (h *sessionHandlerImpl) Summary(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	summary, err := h.attendanceService.GetSummary(r.Context(), identity.MemberID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, summary)
}

func queryPtr(r *http.Request, key string) *string {
	if v := r.URL.Query().Get(key); v != "" {
		return &v
	}
	return nil
}
