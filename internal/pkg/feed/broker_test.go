package feed

import (
	"context"
	"testing"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscribe(t *testing.T, b *Broker, memberID string, opts tracking.SubscribeOptions) tracking.Subscription {
	t.Helper()
	f, err := b.Feed(memberID)
	require.NoError(t, err)
	sub, err := f.Subscribe(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(sub.Unsubscribe)
	return sub
}

func receive(t *testing.T, sub tracking.Subscription) tracking.FeedEvent {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return tracking.FeedEvent{}
	}
}

func TestBroker_DeliversToMemberOnly(t *testing.T) {
	b := NewBroker(4)
	m1 := subscribe(t, b, "m1", tracking.SubscribeOptions{})
	m2 := subscribe(t, b, "m2", tracking.SubscribeOptions{})

	n := b.Publish("m1", tracking.PositionEvent(tracking.Position{Latitude: 1, Longitude: 2}))
	assert.Equal(t, 1, n)

	ev := receive(t, m1)
	require.NotNil(t, ev.Position)
	assert.Equal(t, 1.0, ev.Position.Latitude)

	select {
	case <-m2.Events():
		t.Fatal("m2 received another member's event")
	default:
	}
}

func TestBroker_PublishWithoutSubscriber(t *testing.T) {
	b := NewBroker(0)
	assert.Equal(t, 0, b.Publish("m1", tracking.PositionEvent(tracking.Position{})))
}

func TestBroker_UnsubscribeClosesEvents(t *testing.T) {
	b := NewBroker(1)
	f, err := b.Feed("m1")
	require.NoError(t, err)
	sub, err := f.Subscribe(context.Background(), tracking.SubscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, b.SubscriberCount("m1"))

	sub.Unsubscribe()
	sub.Unsubscribe()

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount("m1"))
	assert.Equal(t, 0, b.Publish("m1", tracking.PositionEvent(tracking.Position{})))
}

func TestBroker_ContextCancellationUnsubscribes(t *testing.T) {
	b := NewBroker(1)
	f, err := b.Feed("m1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = f.Subscribe(ctx, tracking.SubscribeOptions{})
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool { return b.SubscriberCount("m1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestBroker_FullBufferDropsEvents(t *testing.T) {
	b := NewBroker(1)
	subscribe(t, b, "m1", tracking.SubscribeOptions{})

	assert.Equal(t, 1, b.Publish("m1", tracking.PositionEvent(tracking.Position{})))
	assert.Equal(t, 0, b.Publish("m1", tracking.PositionEvent(tracking.Position{})))
}

func TestBroker_OldTimestampsAreNotCheckedAgainstServerClock(t *testing.T) {
	b := NewBroker(4)
	sub := subscribe(t, b, "m1", tracking.SubscribeOptions{MaxCacheAge: 5 * time.Second})

	old := time.Now().Add(-time.Hour)
	assert.Equal(t, 1, b.Publish("m1", tracking.PositionEvent(tracking.Position{Latitude: 1, Timestamp: old})))

	ev := receive(t, sub)
	require.NotNil(t, ev.Position)
	assert.Equal(t, 1.0, ev.Position.Latitude)
}

func TestBroker_LaggingSampleBecomesError(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	b := NewBroker(4)
	sub := subscribe(t, b, "m1", tracking.SubscribeOptions{MaxCacheAge: 5 * time.Second})

	assert.Equal(t, 1, b.Publish("m1", tracking.PositionEvent(tracking.Position{Latitude: 1, Timestamp: base})))
	// within MaxCacheAge of the newest sample
	assert.Equal(t, 1, b.Publish("m1", tracking.PositionEvent(tracking.Position{Latitude: 2, Timestamp: base.Add(-3 * time.Second)})))
	assert.Equal(t, 1, b.Publish("m1", tracking.PositionEvent(tracking.Position{Latitude: 3, Timestamp: base.Add(-time.Minute)})))

	assert.Equal(t, 1.0, receive(t, sub).Position.Latitude)
	assert.Equal(t, 2.0, receive(t, sub).Position.Latitude)

	ev := receive(t, sub)
	assert.Nil(t, ev.Position)
	require.NotNil(t, ev.Err)
	assert.Equal(t, tracking.FeedStalePosition, ev.Err.Code)
}

func TestBroker_TimeoutEmitsError(t *testing.T) {
	b := NewBroker(4)
	sub := subscribe(t, b, "m1", tracking.SubscribeOptions{Timeout: 20 * time.Millisecond})

	ev := receive(t, sub)
	require.NotNil(t, ev.Err)
	assert.Equal(t, tracking.FeedTimeout, ev.Err.Code)
}

func TestNilBrokerHasNoFeed(t *testing.T) {
	var b *Broker
	_, err := b.Feed("m1")
	assert.ErrorIs(t, err, tracking.ErrFeedUnavailable)
}
