package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/domain/auth"
	"github.com/clubtrack/attendance-backend-go/internal/domain/tracking"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/sse"
	"golang.org/x/sync/errgroup"
)

// EventTrackingState is the SSE event name carrying a StateResponse.
const EventTrackingState = "tracking_state"

type Config struct {
	Location      *time.Location
	Subscribe     tracking.SubscribeOptions
	Retries       int
	RetryInterval time.Duration
	ActionTimeout time.Duration
	Now           func() time.Time
}

// memberContext is one registered member. Its tracker runs only while the club
// has a boundary and the day is open.
type memberContext struct {
	mu       sync.Mutex
	identity auth.Identity
	boundary *attendance.Boundary
	dayOpen  bool
	tracker  *Tracker
	cancel   context.CancelFunc
	done     chan struct{}
	idle     tracking.State

	// initialized is set by the first Start to hold mu, before any tracker is armed
	initialized bool
}

type TrackingServiceImpl struct {
	sessions  attendance.SessionRepository
	clubs     attendance.ClubRepository
	days      attendance.DayStatusRepository
	feeds     tracking.PushFeed
	hub       *sse.Hub
	publisher tracking.EventPublisher
	cfg       Config

	// trackers outlive the request that started them
	base context.Context

	mu      sync.Mutex
	members map[string]*memberContext
}

func NewTrackingService(
	sessions attendance.SessionRepository,
	clubs attendance.ClubRepository,
	days attendance.DayStatusRepository,
	feeds tracking.PushFeed,
	hub *sse.Hub,
	publisher tracking.EventPublisher,
	cfg Config,
) *TrackingServiceImpl {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TrackingServiceImpl{
		sessions:  sessions,
		clubs:     clubs,
		days:      days,
		feeds:     feeds,
		hub:       hub,
		publisher: publisher,
		cfg:       cfg,
		base:      context.Background(),
		members:   make(map[string]*memberContext),
	}
}

// Start implements tracking.TrackingService.
func (s *TrackingServiceImpl) Start(ctx context.Context, identity auth.Identity) (tracking.StateResponse, error) {
	if identity.MemberID == "" {
		return tracking.StateResponse{}, attendance.ErrMemberIDRequired
	}
	if identity.ClubID == "" {
		return tracking.StateResponse{}, attendance.ErrClubIDRequired
	}

	mc, fresh := s.register(identity)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.identity.ClubID != identity.ClubID {
		// member moved clubs; inputs of the old club no longer apply
		s.disarm(mc)
		mc.identity = identity
		mc.boundary, mc.dayOpen = nil, false
	}

	boundary, dayOpen, err := s.loadInputs(ctx, identity.ClubID)
	if err != nil {
		if fresh {
			s.forget(identity.MemberID, mc)
		}
		return tracking.StateResponse{}, err
	}

	first := !mc.initialized
	if first {
		s.closeOrphan(ctx, identity)
		mc.initialized = true
	}

	s.apply(mc, boundary, dayOpen, first)
	return tracking.NewStateResponse(mc.currentState()), nil
}

// Stop implements tracking.TrackingService.
func (s *TrackingServiceImpl) Stop(ctx context.Context, memberID string) error {
	mc := s.lookup(memberID)
	if mc == nil {
		return tracking.ErrNotRegistered
	}

	mc.mu.Lock()
	s.disarm(mc)
	mc.mu.Unlock()

	s.forget(memberID, mc)
	if s.hub != nil {
		s.hub.Forget(memberID)
	}
	return nil
}

// PushPosition implements tracking.TrackingService.
func (s *TrackingServiceImpl) PushPosition(ctx context.Context, req tracking.PositionRequest) (tracking.StateResponse, error) {
	if err := req.Validate(); err != nil {
		return tracking.StateResponse{}, err
	}

	ts := s.cfg.Now()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		ts = *req.Timestamp
	}

	return s.push(ctx, req.MemberID, req.ClubID, tracking.PositionEvent(tracking.Position{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Timestamp: ts,
	}))
}

// PushError implements tracking.TrackingService.
func (s *TrackingServiceImpl) PushError(ctx context.Context, req tracking.FeedErrorRequest) (tracking.StateResponse, error) {
	if err := req.Validate(); err != nil {
		return tracking.StateResponse{}, err
	}
	return s.push(ctx, req.MemberID, req.ClubID, tracking.ErrorEvent(req.Code, req.Message))
}

// GetState implements tracking.TrackingService.
func (s *TrackingServiceImpl) GetState(ctx context.Context, memberID string) (tracking.StateResponse, error) {
	mc := s.lookup(memberID)
	if mc == nil {
		return tracking.StateResponse{}, tracking.ErrNotRegistered
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	return tracking.NewStateResponse(mc.currentState()), nil
}

// Refresh implements tracking.TrackingService.
func (s *TrackingServiceImpl) Refresh(ctx context.Context) error {
	return s.refresh(ctx, func(auth.Identity) bool { return true })
}

// RefreshClub implements tracking.TrackingService.
func (s *TrackingServiceImpl) RefreshClub(ctx context.Context, clubID string) error {
	return s.refresh(ctx, func(id auth.Identity) bool { return id.ClubID == clubID })
}

// Shutdown implements tracking.TrackingService.
func (s *TrackingServiceImpl) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	members := make([]*memberContext, 0, len(s.members))
	for _, mc := range s.members {
		members = append(members, mc)
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, mc := range members {
		g.Go(func() error {
			mc.mu.Lock()
			defer mc.mu.Unlock()
			s.disarm(mc)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Tracking service stopped", "members", len(members))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tracking shutdown: %w", ctx.Err())
	}
}

func (s *TrackingServiceImpl) push(ctx context.Context, memberID, clubID string, ev tracking.FeedEvent) (tracking.StateResponse, error) {
	if memberID == "" {
		return tracking.StateResponse{}, attendance.ErrMemberIDRequired
	}

	mc := s.lookup(memberID)
	if mc == nil {
		if _, err := s.Start(ctx, auth.Identity{MemberID: memberID, ClubID: clubID}); err != nil {
			return tracking.StateResponse{}, err
		}
		if mc = s.lookup(memberID); mc == nil {
			return tracking.StateResponse{}, tracking.ErrNotRegistered
		}
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.running() {
		if s.feeds.Publish(memberID, ev) == 0 {
			slog.Warn("Position feed event dropped", "member_id", memberID)
			return tracking.NewStateResponse(mc.currentState()), tracking.ErrSampleDropped
		}
	} else {
		slog.Debug("Position feed event ignored, tracking inactive", "member_id", memberID)
	}
	return tracking.NewStateResponse(mc.currentState()), nil
}

func (s *TrackingServiceImpl) refresh(ctx context.Context, match func(auth.Identity) bool) error {
	s.mu.Lock()
	members := make([]*memberContext, 0, len(s.members))
	for _, mc := range s.members {
		members = append(members, mc)
	}
	s.mu.Unlock()

	var errs []error
	for _, mc := range members {
		mc.mu.Lock()
		if !mc.initialized || !match(mc.identity) {
			mc.mu.Unlock()
			continue
		}
		boundary, dayOpen, err := s.loadInputs(ctx, mc.identity.ClubID)
		if err != nil {
			errs = append(errs, fmt.Errorf("member %s: %w", mc.identity.MemberID, err))
			mc.mu.Unlock()
			continue
		}
		s.apply(mc, boundary, dayOpen, false)
		mc.mu.Unlock()
	}
	return errors.Join(errs...)
}

// apply re-arms mc when its boundary or day-open input changed, or when its
// tracker is expected to run but has ended. Caller holds mc.mu.
func (s *TrackingServiceImpl) apply(mc *memberContext, boundary *attendance.Boundary, dayOpen bool, force bool) {
	changed := !sameBoundary(mc.boundary, boundary) || mc.dayOpen != dayOpen
	trackable := boundary != nil && dayOpen
	if !force && !changed && mc.running() == trackable {
		return
	}

	if changed {
		slog.Info("Tracking inputs changed",
			"member_id", mc.identity.MemberID,
			"club_id", mc.identity.ClubID,
			"has_boundary", boundary != nil,
			"day_open", dayOpen,
		)
	}

	s.disarm(mc)
	mc.boundary, mc.dayOpen = boundary, dayOpen
	s.arm(mc)
}

// arm starts a fresh tracker for mc when tracking is possible. Caller holds mc.mu.
func (s *TrackingServiceImpl) arm(mc *memberContext) {
	now := s.cfg.Now()
	mc.idle = tracking.State{
		MemberID:  mc.identity.MemberID,
		ClubID:    mc.identity.ClubID,
		UpdatedAt: now,
	}

	if mc.boundary == nil || !mc.dayOpen {
		s.broadcast(mc.idle)
		return
	}

	var feed tracking.Feed
	var err error
	if s.feeds != nil {
		feed, err = s.feeds.Feed(mc.identity.MemberID)
	}

	tr := NewTracker(TrackerConfig{
		MemberID:      mc.identity.MemberID,
		ClubID:        mc.identity.ClubID,
		Boundary:      mc.boundary,
		DayOpen:       mc.dayOpen,
		Location:      s.cfg.Location,
		Retries:       s.cfg.Retries,
		RetryInterval: s.cfg.RetryInterval,
		ActionTimeout: s.cfg.ActionTimeout,
	}, s.sessions,
		WithClock(s.cfg.Now),
		WithObserver(s.broadcast),
		WithPublisher(s.publisher),
	)

	ctx, cancel := context.WithCancel(s.base)
	if err == nil {
		var sub tracking.Subscription
		sub, err = tr.Subscribe(ctx, feed, s.cfg.Subscribe)
		if err == nil {
			done := make(chan struct{})
			go func() {
				defer close(done)
				if err := tr.Consume(ctx, sub); err != nil {
					slog.Error("Tracker stopped with error", "member_id", mc.identity.MemberID, "error", err)
				}
			}()
			mc.tracker, mc.cancel, mc.done = tr, cancel, done
			return
		}
	}
	cancel()

	if errors.Is(err, tracking.ErrFeedUnavailable) || feed == nil {
		err = tracking.ErrFeedUnavailable
	}
	slog.Warn("Tracking cannot start", "member_id", mc.identity.MemberID, "error", err)
	mc.idle.LastError = err.Error()
	s.broadcast(mc.idle)
}

// disarm stops mc's tracker and waits for its teardown. Caller holds mc.mu.
func (s *TrackingServiceImpl) disarm(mc *memberContext) {
	if mc.tracker == nil {
		return
	}
	mc.cancel()
	<-mc.done

	mc.idle = mc.tracker.State()
	mc.tracker, mc.cancel, mc.done = nil, nil, nil
}

// closeOrphan closes a session left open by a tracker that did not shut down
// cleanly, so the member can open a new one.
func (s *TrackingServiceImpl) closeOrphan(ctx context.Context, identity auth.Identity) {
	open, err := s.sessions.GetOpenByMember(ctx, identity.MemberID)
	if err != nil {
		slog.Error("Failed to look up open session", "member_id", identity.MemberID, "error", err)
		return
	}
	if open == nil {
		return
	}
	if err := s.sessions.Close(ctx, open.ID, s.cfg.Now()); err != nil {
		slog.Error("Failed to close orphaned session", "member_id", identity.MemberID, "session_id", open.ID, "error", err)
		return
	}
	slog.Warn("Closed orphaned attendance session", "member_id", identity.MemberID, "session_id", open.ID)
}

func (s *TrackingServiceImpl) loadInputs(ctx context.Context, clubID string) (*attendance.Boundary, bool, error) {
	boundary, err := s.clubs.GetBoundary(ctx, clubID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get club boundary: %w", err)
	}

	local := s.cfg.Now().In(s.cfg.Location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	status, err := s.days.GetDayStatus(ctx, clubID, today)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get day status: %w", err)
	}
	return boundary, status != nil && status.IsOpen, nil
}

func (s *TrackingServiceImpl) broadcast(state tracking.State) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(state.MemberID, sse.Event{
		Event: EventTrackingState,
		Data:  tracking.NewStateResponse(state),
	})
}

func (s *TrackingServiceImpl) register(identity auth.Identity) (*memberContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mc, ok := s.members[identity.MemberID]; ok {
		return mc, false
	}
	mc := &memberContext{identity: identity}
	s.members[identity.MemberID] = mc
	return mc, true
}

func (s *TrackingServiceImpl) lookup(memberID string) *memberContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[memberID]
}

func (s *TrackingServiceImpl) forget(memberID string, mc *memberContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[memberID] == mc {
		delete(s.members, memberID)
	}
}

func (mc *memberContext) running() bool {
	if mc.tracker == nil {
		return false
	}
	select {
	case <-mc.done:
		return false
	default:
		return true
	}
}

func (mc *memberContext) currentState() tracking.State {
	if mc.tracker != nil {
		return mc.tracker.State()
	}
	return mc.idle
}

func sameBoundary(a, b *attendance.Boundary) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
