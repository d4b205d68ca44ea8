package tracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/attendance"
	"github.com/clubtrack/attendance-backend-go/internal/domain/auth"
	"github.com/clubtrack/attendance-backend-go/internal/domain/tracking"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/feed"
	"github.com/clubtrack/attendance-backend-go/internal/pkg/sse"
	"github.com/clubtrack/attendance-backend-go/internal/repository/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc      *TrackingServiceImpl
	db       *inmem.DB
	sessions *recordingSessions
	hub      *sse.Hub
	clock    *fakeClock
}

func newServiceFixture(t *testing.T, dayOpen bool) *serviceFixture {
	t.Helper()
	return newServiceFixtureWithConfig(t, dayOpen, Config{})
}

func newServiceFixtureWithConfig(t *testing.T, dayOpen bool, cfg Config) *serviceFixture {
	t.Helper()

	db := inmem.Open()
	lat, lng, radius := clubCenter.Latitude, clubCenter.Longitude, clubCenter.RadiusMeters
	db.PutClub(attendance.Club{ID: "club-1", Name: "Harbour Rowing", BoundaryLat: &lat, BoundaryLng: &lng, BoundaryRadius: &radius})
	db.PutClub(attendance.Club{ID: "club-2", Name: "No Boundary"})

	clock := newFakeClock(trackerStart)
	db.SetDayOpen("club-1", clock.Now(), dayOpen)

	sessions := newRecordingSessions(inmem.NewSessionRepository(db))
	hub := sse.NewHub()
	cfg.Location = time.UTC
	cfg.Now = clock.Now
	svc := NewTrackingService(
		sessions,
		inmem.NewClubRepository(db),
		inmem.NewDayStatusRepository(db),
		feed.NewBroker(0),
		hub,
		nil,
		cfg,
	)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	return &serviceFixture{svc: svc, db: db, sessions: sessions, hub: hub, clock: clock}
}

func member(id string) auth.Identity {
	return auth.Identity{UserID: "user-" + id, MemberID: id, ClubID: "club-1", Role: auth.RoleMember}
}

func (f *serviceFixture) push(t *testing.T, memberID string, pos tracking.Position) {
	t.Helper()
	_, err := f.svc.PushPosition(context.Background(), tracking.PositionRequest{
		MemberID:  memberID,
		ClubID:    "club-1",
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
	})
	require.NoError(t, err)
}

func (f *serviceFixture) waitForSession(t *testing.T, memberID string) string {
	t.Helper()
	var id string
	require.Eventually(t, func() bool {
		state, err := f.svc.GetState(context.Background(), memberID)
		if err != nil || state.ActiveSessionID == nil {
			return false
		}
		id = *state.ActiveSessionID
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return id
}

func TestTrackingService_OpensSessionFromPushedPositions(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)

	f.push(t, "m1", north(100))
	f.push(t, "m1", north(20))

	id := f.waitForSession(t, "m1")
	assert.Equal(t, 1, f.sessions.CreateCount())

	f.clock.Advance(time.Hour)
	f.push(t, "m1", north(300))

	require.Eventually(t, func() bool { return len(f.sessions.CloseCalls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	closes := f.sessions.CloseCalls()
	assert.Equal(t, id, closes[0].ID)
	assert.Equal(t, f.clock.Now(), closes[0].End)
}

func TestTrackingService_PushRegistersMember(t *testing.T) {
	f := newServiceFixture(t, true)

	f.push(t, "m1", north(10))

	f.waitForSession(t, "m1")
}

func TestTrackingService_ClosedDayIgnoresPositions(t *testing.T) {
	f := newServiceFixture(t, false)
	ctx := context.Background()

	state, err := f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)
	assert.False(t, state.Tracking)

	f.push(t, "m1", north(10))

	assert.Equal(t, 0, f.sessions.CreateCount())
	state, err = f.svc.GetState(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, state.InZone)
}

func TestTrackingService_NoBoundaryIsIdle(t *testing.T) {
	f := newServiceFixture(t, true)
	f.db.SetDayOpen("club-2", f.clock.Now(), true)

	id := member("m1")
	id.ClubID = "club-2"
	state, err := f.svc.Start(context.Background(), id)
	require.NoError(t, err)

	assert.False(t, state.Tracking)
	assert.Nil(t, state.ActiveSessionID)
}

func TestTrackingService_StartUnknownClub(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	id := member("m1")
	id.ClubID = "missing"
	_, err := f.svc.Start(ctx, id)
	assert.ErrorIs(t, err, attendance.ErrClubNotFound)

	_, err = f.svc.GetState(ctx, "m1")
	assert.ErrorIs(t, err, tracking.ErrNotRegistered)
}

func TestTrackingService_StartRequiresIdentity(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, auth.Identity{ClubID: "club-1"})
	assert.ErrorIs(t, err, attendance.ErrMemberIDRequired)

	_, err = f.svc.Start(ctx, auth.Identity{MemberID: "m1"})
	assert.ErrorIs(t, err, attendance.ErrClubIDRequired)
}

func TestTrackingService_RefreshClosesSessionWhenDayCloses(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)
	f.push(t, "m1", north(10))
	id := f.waitForSession(t, "m1")

	f.clock.Advance(2 * time.Hour)
	f.db.SetDayOpen("club-1", f.clock.Now(), false)
	require.NoError(t, f.svc.Refresh(ctx))

	closes := f.sessions.CloseCalls()
	require.Len(t, closes, 1)
	assert.Equal(t, id, closes[0].ID)
	assert.Equal(t, f.clock.Now(), closes[0].End)

	state, err := f.svc.GetState(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, state.Tracking)
	assert.False(t, state.InZone)
	assert.Nil(t, state.ActiveSessionID)
}

func TestTrackingService_RefreshArmsWhenDayOpens(t *testing.T) {
	f := newServiceFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)

	f.db.SetDayOpen("club-1", f.clock.Now(), true)
	require.NoError(t, f.svc.RefreshClub(ctx, "club-1"))

	f.push(t, "m1", north(10))
	f.waitForSession(t, "m1")
}

func TestTrackingService_RefreshWithoutChangeKeepsSession(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)
	f.push(t, "m1", north(10))
	f.waitForSession(t, "m1")

	require.NoError(t, f.svc.Refresh(ctx))

	assert.Empty(t, f.sessions.CloseCalls())
	state, err := f.svc.GetState(ctx, "m1")
	require.NoError(t, err)
	assert.NotNil(t, state.ActiveSessionID)
}

func TestTrackingService_StopClosesSession(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)
	f.push(t, "m1", north(10))
	f.waitForSession(t, "m1")

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.svc.Stop(ctx, "m1"))

	closes := f.sessions.CloseCalls()
	require.Len(t, closes, 1)
	assert.Equal(t, f.clock.Now(), closes[0].End)

	_, err = f.svc.GetState(ctx, "m1")
	assert.ErrorIs(t, err, tracking.ErrNotRegistered)
	assert.ErrorIs(t, f.svc.Stop(ctx, "m1"), tracking.ErrNotRegistered)
}

func TestTrackingService_ShutdownClosesAllSessions(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	for _, id := range []string{"m1", "m2"} {
		_, err := f.svc.Start(ctx, member(id))
		require.NoError(t, err)
		f.push(t, id, north(10))
		f.waitForSession(t, id)
	}

	require.NoError(t, f.svc.Shutdown(ctx))

	assert.Len(t, f.sessions.CloseCalls(), 2)
	for _, id := range []string{"m1", "m2"} {
		open, err := f.sessions.GetOpenByMember(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, open)
	}
}

func TestTrackingService_ClosesOrphanedSessionOnStart(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	orphan, err := f.sessions.SessionRepository.Create(ctx, attendance.Session{
		MemberID:    "m1",
		ClubID:      "club-1",
		SessionDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		StartTime:   trackerStart.Add(-20 * time.Hour),
	})
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)

	closes := f.sessions.CloseCalls()
	require.Len(t, closes, 1)
	assert.Equal(t, orphan.ID, closes[0].ID)

	f.push(t, "m1", north(10))
	id := f.waitForSession(t, "m1")
	assert.NotEqual(t, orphan.ID, id)
}

func TestTrackingService_LateStartDoesNotCloseLiveSession(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	orphan, err := f.sessions.SessionRepository.Create(ctx, attendance.Session{
		MemberID:    "m1",
		ClubID:      "club-1",
		SessionDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		StartTime:   trackerStart.Add(-20 * time.Hour),
	})
	require.NoError(t, err)

	// another request registered the member first but has not started it yet
	_, fresh := f.svc.register(member("m1"))
	require.True(t, fresh)

	_, err = f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)
	f.push(t, "m1", north(10))
	live := f.waitForSession(t, "m1")

	_, err = f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)

	closes := f.sessions.CloseCalls()
	require.Len(t, closes, 1)
	assert.Equal(t, orphan.ID, closes[0].ID)

	open, err := f.sessions.GetOpenByMember(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, live, open.ID)
}

func TestTrackingService_ConcurrentStartsCloseOrphanOnce(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	orphan, err := f.sessions.SessionRepository.Create(ctx, attendance.Session{
		MemberID:    "m1",
		ClubID:      "club-1",
		SessionDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		StartTime:   trackerStart.Add(-20 * time.Hour),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Start(ctx, member("m1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	closes := f.sessions.CloseCalls()
	require.Len(t, closes, 1)
	assert.Equal(t, orphan.ID, closes[0].ID)

	f.push(t, "m1", north(10))
	f.waitForSession(t, "m1")
	assert.Len(t, f.sessions.CloseCalls(), 1)
}

func TestTrackingService_PushErrorSurfacesInState(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)

	_, err = f.svc.PushError(ctx, tracking.FeedErrorRequest{MemberID: "m1", ClubID: "club-1", Code: tracking.FeedPermissionDenied})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, err := f.svc.GetState(ctx, "m1")
		return err == nil && state.Error != nil && *state.Error == "User denied Geolocation"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTrackingService_RejectsInvalidInput(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.PushPosition(ctx, tracking.PositionRequest{MemberID: "m1", ClubID: "club-1", Latitude: 91})
	assert.Error(t, err)

	_, err = f.svc.PushError(ctx, tracking.FeedErrorRequest{MemberID: "m1", ClubID: "club-1", Code: "unknown"})
	assert.Error(t, err)

	assert.Equal(t, 0, f.sessions.CreateCount())
}

func TestTrackingService_BroadcastsStateToHub(t *testing.T) {
	f := newServiceFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)

	events, cleanup := f.hub.Subscribe("m1")
	defer cleanup()

	f.push(t, "m1", north(10))

	require.Eventually(t, func() bool {
		for {
			select {
			case ev := <-events:
				state, ok := ev.Data.(tracking.StateResponse)
				if ok && ev.Event == EventTrackingState && state.ActiveSessionID != nil {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTrackingService_DeviceTimestampBehindServerClockIsTracked(t *testing.T) {
	f := newServiceFixtureWithConfig(t, true, Config{
		Subscribe: tracking.SubscribeOptions{MaxCacheAge: 5 * time.Second},
	})
	ctx := context.Background()

	_, err := f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ts := f.clock.Now().Add(-6 * time.Second)
		pos := north(10)
		_, err := f.svc.PushPosition(ctx, tracking.PositionRequest{
			MemberID:  "m1",
			ClubID:    "club-1",
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Timestamp: &ts,
		})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	f.waitForSession(t, "m1")
	assert.Equal(t, 1, f.sessions.CreateCount())

	state, err := f.svc.GetState(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, state.InZone)
	assert.NotNil(t, state.Position)
	assert.Nil(t, state.Error)
}

func TestTrackingService_LaggingSampleSurfacesError(t *testing.T) {
	f := newServiceFixtureWithConfig(t, true, Config{
		Subscribe: tracking.SubscribeOptions{MaxCacheAge: 5 * time.Second},
	})
	ctx := context.Background()

	_, err := f.svc.Start(ctx, member("m1"))
	require.NoError(t, err)

	pushAt := func(ts time.Time) {
		pos := north(100)
		_, err := f.svc.PushPosition(ctx, tracking.PositionRequest{
			MemberID:  "m1",
			ClubID:    "club-1",
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Timestamp: &ts,
		})
		require.NoError(t, err)
	}

	now := f.clock.Now()
	pushAt(now)
	pushAt(now.Add(-time.Minute))

	require.Eventually(t, func() bool {
		state, err := f.svc.GetState(ctx, "m1")
		return err == nil && state.Error != nil && *state.Error == "Position sample is older than the last one"
	}, 2*time.Second, 5*time.Millisecond)

	pushAt(now.Add(time.Second))
	require.Eventually(t, func() bool {
		state, err := f.svc.GetState(ctx, "m1")
		return err == nil && state.Error == nil && state.Tracking
	}, 2*time.Second, 5*time.Millisecond)
}

// saturatedFeed subscribes trackers normally but never accepts a pushed event.
type saturatedFeed struct {
	*feed.Broker
}

func (saturatedFeed) Publish(memberID string, ev tracking.FeedEvent) int { return 0 }

func TestTrackingService_UnacceptedSampleIsRejected(t *testing.T) {
	db := inmem.Open()
	lat, lng, radius := clubCenter.Latitude, clubCenter.Longitude, clubCenter.RadiusMeters
	db.PutClub(attendance.Club{ID: "club-1", BoundaryLat: &lat, BoundaryLng: &lng, BoundaryRadius: &radius})
	clock := newFakeClock(trackerStart)
	db.SetDayOpen("club-1", clock.Now(), true)

	svc := NewTrackingService(
		inmem.NewSessionRepository(db),
		inmem.NewClubRepository(db),
		inmem.NewDayStatusRepository(db),
		saturatedFeed{feed.NewBroker(0)},
		nil,
		nil,
		Config{Location: time.UTC, Now: clock.Now},
	)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	ctx := context.Background()
	_, err := svc.Start(ctx, member("m1"))
	require.NoError(t, err)

	pos := north(10)
	_, err = svc.PushPosition(ctx, tracking.PositionRequest{MemberID: "m1", ClubID: "club-1", Latitude: pos.Latitude, Longitude: pos.Longitude})
	assert.ErrorIs(t, err, tracking.ErrSampleDropped)
}
