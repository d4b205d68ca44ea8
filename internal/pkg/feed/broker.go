package feed

import (
	"context"
	"sync"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/tracking"
)

const defaultBuffer = 16

// Broker is an in-process position feed. Devices push samples through the HTTP
// API and the broker fans them out to the member's subscribed tracker.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscription]struct{}
	buffer      int
}

// NewBroker creates a broker whose subscriptions buffer up to buffer events.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{
		subscribers: make(map[string]map[*subscription]struct{}),
		buffer:      buffer,
	}
}

// Feed implements tracking.FeedSource.
func (b *Broker) Feed(memberID string) (tracking.Feed, error) {
	if b == nil {
		return nil, tracking.ErrFeedUnavailable
	}
	return &memberFeed{broker: b, memberID: memberID}, nil
}

// Publish delivers ev to every subscription of memberID and returns how many
// accepted it. A sample that lags the previous one by more than MaxCacheAge
// reaches the subscriber as a stale-position error instead. Events for
// subscriptions whose buffer is full are dropped.
func (b *Broker) Publish(memberID string, ev tracking.FeedEvent) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for sub := range b.subscribers[memberID] {
		out := ev
		if ev.Position != nil && sub.stale(*ev.Position) {
			out = tracking.ErrorEvent(tracking.FeedStalePosition, "")
		}
		select {
		case sub.ch <- out:
			delivered++
			sub.touch()
		default:
		}
	}
	return delivered
}

// SubscriberCount returns the number of live subscriptions for a member.
func (b *Broker) SubscriberCount(memberID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[memberID])
}

func (b *Broker) add(memberID string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[memberID] == nil {
		b.subscribers[memberID] = make(map[*subscription]struct{})
	}
	b.subscribers[memberID][sub] = struct{}{}
}

func (b *Broker) remove(memberID string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[memberID][sub]; !ok {
		return
	}
	delete(b.subscribers[memberID], sub)
	if len(b.subscribers[memberID]) == 0 {
		delete(b.subscribers, memberID)
	}
	close(sub.ch)
}

// timeout emits a timeout error to sub if it is still registered.
func (b *Broker) timeout(memberID string, sub *subscription) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.subscribers[memberID][sub]; !ok {
		return
	}
	select {
	case sub.ch <- tracking.ErrorEvent(tracking.FeedTimeout, ""):
	default:
	}
}

type memberFeed struct {
	broker   *Broker
	memberID string
}

func (f *memberFeed) Subscribe(ctx context.Context, opts tracking.SubscribeOptions) (tracking.Subscription, error) {
	sub := &subscription{
		ch:       make(chan tracking.FeedEvent, f.broker.buffer),
		activity: make(chan struct{}, 1),
		done:     make(chan struct{}),
		opts:     opts,
	}
	sub.unsubscribe = func() { f.broker.remove(f.memberID, sub) }

	f.broker.add(f.memberID, sub)
	go sub.watch(ctx, func() { f.broker.timeout(f.memberID, sub) })

	return sub, nil
}

type subscription struct {
	ch          chan tracking.FeedEvent
	activity    chan struct{}
	done        chan struct{}
	once        sync.Once
	mu          sync.Mutex
	latest      time.Time
	opts        tracking.SubscribeOptions
	unsubscribe func()
}

func (s *subscription) Events() <-chan tracking.FeedEvent {
	return s.ch
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.unsubscribe()
		close(s.done)
	})
}

// stale compares p with the newest sample seen so far. Device clocks are never
// compared with the server clock.
func (s *subscription) stale(p tracking.Position) bool {
	if p.Timestamp.IsZero() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.MaxCacheAge > 0 && !s.latest.IsZero() && s.latest.Sub(p.Timestamp) > s.opts.MaxCacheAge {
		return true
	}
	if p.Timestamp.After(s.latest) {
		s.latest = p.Timestamp
	}
	return false
}

func (s *subscription) touch() {
	select {
	case s.activity <- struct{}{}:
	default:
	}
}

// watch unsubscribes when ctx ends and raises a timeout whenever no event
// arrives within opts.Timeout.
func (s *subscription) watch(ctx context.Context, onTimeout func()) {
	var expired <-chan time.Time
	var timer *time.Timer
	if s.opts.Timeout > 0 {
		timer = time.NewTimer(s.opts.Timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			s.Unsubscribe()
			return
		case <-s.done:
			return
		case <-s.activity:
			if timer != nil {
				timer.Reset(s.opts.Timeout)
			}
		case <-expired:
			onTimeout()
			timer.Reset(s.opts.Timeout)
		}
	}
}
