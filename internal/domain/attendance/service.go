package attendance

import (
	"context"
)

// AttendanceService exposes read-side attendance history for members.
type AttendanceService interface {
	// GetHistory returns the member's sessions grouped by session date
	GetHistory(ctx context.Context, req HistoryRequest) (HistoryResponse, error)

	// GetSummary returns today's and all-time attendance totals
	GetSummary(ctx context.Context, memberID string) (SummaryResponse, error)
}
