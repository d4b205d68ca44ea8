package tracking

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/domain/tracking"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/utils"
)

var clubCenter = attendance.Boundary{Latitude: 10, Longitude: 10, RadiusMeters: 50}

// north returns a sample the given distance due north of the club center.
func north(meters float64) tracking.Position {
	deg := meters / utils.EarthRadiusMeters * 180 / math.Pi
	return tracking.Position{Latitude: clubCenter.Latitude + deg, Longitude: clubCenter.Longitude}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type closeCall struct {
	ID  string
	End time.Time
}

// recordingSessions wraps a session repository, records calls and can fail the next N of them.
type recordingSessions struct {
	attendance.SessionRepository

	mu          sync.Mutex
	creates     []attendance.Session
	closes      []closeCall
	failCreates int
	failCloses  int
	failWith    error

	// createGate, when set, holds every Create until it is closed
	createGate  chan struct{}
	inFlight    int
	maxInFlight int
}

func newRecordingSessions(inner attendance.SessionRepository) *recordingSessions {
	return &recordingSessions{SessionRepository: inner, failWith: context.DeadlineExceeded}
}

func (r *recordingSessions) begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
}

func (r *recordingSessions) end() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--
}

// MaxInFlight is the highest number of Create/Close calls seen running at once.
func (r *recordingSessions) MaxInFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxInFlight
}

func (r *recordingSessions) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

func (r *recordingSessions) Create(ctx context.Context, s attendance.Session) (attendance.Session, error) {
	r.begin()
	defer r.end()

	r.mu.Lock()
	gate := r.createGate
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return attendance.Session{}, ctx.Err()
		}
	}

	r.mu.Lock()
	r.creates = append(r.creates, s)
	if r.failCreates > 0 {
		r.failCreates--
		r.mu.Unlock()
		return attendance.Session{}, r.failWith
	}
	r.mu.Unlock()
	return r.SessionRepository.Create(ctx, s)
}

func (r *recordingSessions) Close(ctx context.Context, id string, end time.Time) error {
	r.begin()
	defer r.end()

	r.mu.Lock()
	r.closes = append(r.closes, closeCall{ID: id, End: end})
	if r.failCloses > 0 {
		r.failCloses--
		r.mu.Unlock()
		return r.failWith
	}
	r.mu.Unlock()
	return r.SessionRepository.Close(ctx, id, end)
}

func (r *recordingSessions) CreateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.creates)
}

func (r *recordingSessions) CloseCalls() []closeCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]closeCall(nil), r.closes...)
}

type chanFeed struct {
	sub *chanSubscription
	err error
}

func newChanFeed() *chanFeed {
	return &chanFeed{sub: &chanSubscription{ch: make(chan tracking.FeedEvent, 8)}}
}

func (f *chanFeed) Subscribe(ctx context.Context, opts tracking.SubscribeOptions) (tracking.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

type chanSubscription struct {
	ch   chan tracking.FeedEvent
	once sync.Once
	mu   sync.Mutex
	done bool
}

func (s *chanSubscription) Events() <-chan tracking.FeedEvent { return s.ch }

func (s *chanSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()
	})
}

func (s *chanSubscription) Unsubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []tracking.SessionEvent
}

func (p *recordingPublisher) PublishSessionEvent(ctx context.Context, event tracking.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []tracking.SessionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tracking.SessionEvent(nil), p.events...)
}
