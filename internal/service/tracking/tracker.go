package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/domain/tracking"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/metrics"
)

const (
	defaultActionTimeout = 10 * time.Second
	defaultRetryInterval = 200 * time.Millisecond
)

type errorKind int

const (
	errNone errorKind = iota
	errFeed
	errPersistence
)

// Observer receives a state snapshot after every processed event and after teardown.
type Observer func(state tracking.State)

type TrackerConfig struct {
	MemberID string
	ClubID   string
	Boundary *attendance.Boundary
	DayOpen  bool

	// Location decides the calendar date stamped on new sessions
	Location *time.Location

	// Retries is the number of extra attempts for a failed create/close. Zero means no retry.
	Retries       int
	RetryInterval time.Duration
	ActionTimeout time.Duration
}

// Tracker is the session lifecycle controller for one member. It consumes a
// position feed and opens or closes attendance sessions on zone transition edges.
type Tracker struct {
	cfg       TrackerConfig
	sessions  attendance.SessionRepository
	publisher tracking.EventPublisher
	observer  Observer
	now       func() time.Time
	logger    *slog.Logger

	// serial orders transition actions; one event is handled completely before the next
	serial sync.Mutex

	mu         sync.RWMutex
	state      tracking.State
	wasInZone  bool
	errKind    errorKind
	pendingEnd *time.Time
	sessionDay time.Time
}

type TrackerOption func(*Tracker)

func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func WithObserver(o Observer) TrackerOption {
	return func(t *Tracker) { t.observer = o }
}

func WithPublisher(p tracking.EventPublisher) TrackerOption {
	return func(t *Tracker) { t.publisher = p }
}

func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

func NewTracker(cfg TrackerConfig, sessions attendance.SessionRepository, opts ...TrackerOption) *Tracker {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = defaultActionTimeout
	}

	t := &Tracker{
		cfg:      cfg,
		sessions: sessions,
		now:      time.Now,
		logger:   slog.Default(),
		state: tracking.State{
			MemberID: cfg.MemberID,
			ClubID:   cfg.ClubID,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("member_id", cfg.MemberID, "club_id", cfg.ClubID)
	return t
}

// State returns a snapshot of the tracking state.
func (t *Tracker) State() tracking.State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.state
	if s.LastKnownPosition != nil {
		p := *s.LastKnownPosition
		s.LastKnownPosition = &p
	}
	return s
}

// Run subscribes to feed and processes its events until ctx is cancelled or the
// feed closes. An open session is always closed before Run returns.
func (t *Tracker) Run(ctx context.Context, feed tracking.Feed, opts tracking.SubscribeOptions) error {
	sub, err := t.Subscribe(ctx, feed, opts)
	if err != nil {
		return err
	}
	return t.Consume(ctx, sub)
}

// Subscribe opens the feed subscription. A failure is recorded in the state.
func (t *Tracker) Subscribe(ctx context.Context, feed tracking.Feed, opts tracking.SubscribeOptions) (tracking.Subscription, error) {
	if feed == nil {
		t.failFeed(tracking.ErrFeedUnavailable.Error())
		return nil, tracking.ErrFeedUnavailable
	}

	sub, err := feed.Subscribe(ctx, opts)
	if err != nil {
		t.failFeed(err.Error())
		return nil, fmt.Errorf("subscribe to position feed: %w", err)
	}
	return sub, nil
}

// Consume processes sub until ctx is cancelled or the subscription closes, then
// unsubscribes and tears down.
func (t *Tracker) Consume(ctx context.Context, sub tracking.Subscription) error {
	defer sub.Unsubscribe()
	defer t.Teardown(ctx)

	t.mu.Lock()
	t.state.TrackingActive = true
	t.state.UpdatedAt = t.now()
	t.mu.Unlock()
	t.notify()

	metrics.ActiveTrackers.Inc()
	defer metrics.ActiveTrackers.Dec()

	t.logger.Info("Tracking started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			t.Handle(ctx, ev)
		}
	}
}

// Handle processes one feed event: classification, state update and, on a zone
// edge, the matching session create or close.
func (t *Tracker) Handle(ctx context.Context, ev tracking.FeedEvent) {
	t.serial.Lock()
	defer t.serial.Unlock()

	if ev.Err != nil {
		t.mu.Lock()
		t.state.LastError = ev.Err.Error()
		t.state.TrackingActive = false
		t.state.UpdatedAt = t.now()
		t.errKind = errFeed
		t.mu.Unlock()

		metrics.SamplesProcessed.WithLabelValues("error").Inc()
		t.logger.Warn("Position feed error", "code", ev.Err.Code, "error", ev.Err.Error())
		t.notify()
		return
	}
	if ev.Position == nil {
		return
	}

	pos := *ev.Position
	inZone := Classify(pos, t.cfg.Boundary, t.cfg.DayOpen)
	now := t.now()

	t.mu.Lock()
	wasInZone := t.wasInZone
	t.wasInZone = inZone
	t.state.LastKnownPosition = &pos
	t.state.InZone = inZone
	t.state.TrackingActive = true
	t.state.UpdatedAt = now
	if t.errKind == errFeed {
		t.state.LastError = ""
		t.errKind = errNone
	}
	t.mu.Unlock()

	if inZone {
		metrics.SamplesProcessed.WithLabelValues("in_zone").Inc()
	} else {
		metrics.SamplesProcessed.WithLabelValues("out_of_zone").Inc()
	}

	switch {
	case inZone && !wasInZone:
		metrics.ZoneTransitions.WithLabelValues("enter").Inc()
		t.enter(ctx, now)
	case !inZone && wasInZone:
		metrics.ZoneTransitions.WithLabelValues("exit").Inc()
		t.exit(ctx, now)
	}

	t.notify()
}

// Teardown closes the open session, if any, stamped with the teardown time and
// marks tracking inactive. The close runs on a context detached from ctx's
// cancellation so it completes even when teardown was triggered by cancellation.
func (t *Tracker) Teardown(ctx context.Context) {
	t.serial.Lock()
	defer t.serial.Unlock()

	at := t.now()
	actionCtx, cancel := t.actionContext(ctx)
	defer cancel()

	t.mu.RLock()
	end := at
	if t.pendingEnd != nil {
		end = *t.pendingEnd
	}
	t.mu.RUnlock()

	t.closeActive(actionCtx, end, "teardown")

	t.mu.Lock()
	t.wasInZone = false
	t.state.InZone = false
	t.state.TrackingActive = false
	t.state.UpdatedAt = at
	t.mu.Unlock()

	t.logger.Info("Tracking stopped")
	t.notify()
}

func (t *Tracker) enter(ctx context.Context, at time.Time) {
	actionCtx, cancel := t.actionContext(ctx)
	defer cancel()

	// a close that failed on an earlier exit must land before a new session opens
	t.mu.RLock()
	pending := t.pendingEnd
	t.mu.RUnlock()
	if pending != nil && !t.closeActive(actionCtx, *pending, "exit") {
		return
	}

	local := at.In(t.cfg.Location)
	session := attendance.Session{
		MemberID:    t.cfg.MemberID,
		ClubID:      t.cfg.ClubID,
		SessionDate: time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
		StartTime:   at,
	}

	var created attendance.Session
	err := t.retry(actionCtx, func() error {
		var err error
		created, err = t.sessions.Create(actionCtx, session)
		return err
	})
	if err != nil {
		t.persistenceFailed("create_session", err)
		return
	}

	t.mu.Lock()
	t.state.ActiveSessionID = created.ID
	t.sessionDay = session.SessionDate
	t.clearPersistenceErrorLocked()
	t.mu.Unlock()

	metrics.SessionsOpened.Inc()
	t.logger.Info("Attendance session opened", "session_id", created.ID)
	t.publish(actionCtx, tracking.SessionOpened, created.ID, session.SessionDate, at)
}

func (t *Tracker) exit(ctx context.Context, at time.Time) {
	actionCtx, cancel := t.actionContext(ctx)
	defer cancel()

	t.mu.RLock()
	end := at
	if t.pendingEnd != nil {
		end = *t.pendingEnd
	}
	t.mu.RUnlock()

	t.closeActive(actionCtx, end, "exit")
}

// closeActive closes the active session, if any. It reports false when the close
// failed; the session stays active with its end time remembered for the next attempt.
func (t *Tracker) closeActive(ctx context.Context, end time.Time, reason string) bool {
	t.mu.RLock()
	id := t.state.ActiveSessionID
	day := t.sessionDay
	t.mu.RUnlock()

	if id == "" {
		return true
	}

	err := t.retry(ctx, func() error {
		return t.sessions.Close(ctx, id, end)
	})
	if err != nil && !errors.Is(err, attendance.ErrSessionAlreadyClosed) {
		t.mu.Lock()
		t.pendingEnd = &end
		t.mu.Unlock()
		t.persistenceFailed("close_session", err)
		return false
	}

	t.mu.Lock()
	t.state.ActiveSessionID = ""
	t.pendingEnd = nil
	t.clearPersistenceErrorLocked()
	t.mu.Unlock()

	metrics.SessionsClosed.WithLabelValues(reason).Inc()
	t.logger.Info("Attendance session closed", "session_id", id, "reason", reason)
	t.publish(ctx, tracking.SessionClosed, id, day, end)
	return true
}

func (t *Tracker) retry(ctx context.Context, op func() error) error {
	if t.cfg.Retries <= 0 {
		return op()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.RetryInterval
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := op()
		if errors.Is(err, attendance.ErrOpenSessionExists) ||
			errors.Is(err, attendance.ErrSessionNotFound) ||
			errors.Is(err, attendance.ErrSessionAlreadyClosed) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.cfg.Retries)), ctx))
}

func (t *Tracker) persistenceFailed(op string, err error) {
	perr := &attendance.PersistenceError{Op: op, Err: err}

	t.mu.Lock()
	t.state.LastError = perr.Error()
	t.errKind = errPersistence
	t.mu.Unlock()

	metrics.PersistenceFailures.WithLabelValues(op).Inc()
	t.logger.Error("Attendance session persistence failed", "op", op, "error", err)
}

func (t *Tracker) clearPersistenceErrorLocked() {
	if t.errKind == errPersistence {
		t.state.LastError = ""
		t.errKind = errNone
	}
}

func (t *Tracker) failFeed(msg string) {
	t.mu.Lock()
	t.state.LastError = msg
	t.state.TrackingActive = false
	t.state.UpdatedAt = t.now()
	t.errKind = errFeed
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) actionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), t.cfg.ActionTimeout)
}

func (t *Tracker) publish(ctx context.Context, typ tracking.SessionEventType, sessionID string, day time.Time, at time.Time) {
	if t.publisher == nil {
		return
	}
	event := tracking.SessionEvent{
		Type:        typ,
		SessionID:   sessionID,
		MemberID:    t.cfg.MemberID,
		ClubID:      t.cfg.ClubID,
		SessionDate: day.Format("2006-01-02"),
		At:          at.UTC(),
	}
	if err := t.publisher.PublishSessionEvent(ctx, event); err != nil {
		t.logger.Warn("Failed to publish session event", "type", typ, "session_id", sessionID, "error", err)
	}
}

func (t *Tracker) notify() {
	if t.observer != nil {
		t.observer(t.State())
	}
}
