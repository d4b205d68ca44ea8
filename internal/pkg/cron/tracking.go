package cron

import (
	"context"
	"time"
)

// Refresher reloads club boundaries and day status for tracked members.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type TrackingJobs struct {
	refresher Refresher
	interval  time.Duration
}

func NewTrackingJobs(refresher Refresher, interval time.Duration) *TrackingJobs {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TrackingJobs{refresher: refresher, interval: interval}
}

func (j *TrackingJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("sync_day_status", j.interval, j.SyncDayStatus)
}

// SyncDayStatus picks up days opened or closed and boundaries edited since the
// last run. A new calendar day has no day status yet, so trackers left running
// past midnight are stopped here.
func (j *TrackingJobs) SyncDayStatus(ctx context.Context) error {
	return j.refresher.Refresh(ctx)
}
