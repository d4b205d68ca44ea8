package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// ClubUpdatedSubject matches notifications sent when a club's boundary or day status changes.
const ClubUpdatedSubject = "club.*.updated"

var ErrMalformedSubject = errors.New("malformed club update subject")

// ClubUpdate is the optional payload of a club update notification.
type ClubUpdate struct {
	ClubID string `json:"club_id"`
	Reason string `json:"reason,omitempty"`
}

// ClubUpdateHandler reacts to a changed club.
type ClubUpdateHandler func(ctx context.Context, update ClubUpdate) error

// Listener subscribes to club update notifications.
type Listener struct {
	conn    *nats.Conn
	handler ClubUpdateHandler
	subs    []*nats.Subscription
}

func NewListener(conn *nats.Conn, handler ClubUpdateHandler) *Listener {
	return &Listener{conn: conn, handler: handler}
}

// Run subscribes and blocks until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	sub, err := l.conn.Subscribe(ClubUpdatedSubject, func(msg *nats.Msg) {
		l.handle(ctx, msg)
	})
	if err != nil {
		return err
	}
	l.subs = append(l.subs, sub)
	slog.Info("Listening for club updates", "subject", ClubUpdatedSubject)

	<-ctx.Done()
	l.Close()
	return nil
}

func (l *Listener) handle(ctx context.Context, msg *nats.Msg) {
	update, err := parseClubUpdate(msg)
	if err != nil {
		slog.Warn("Ignoring club update", "subject", msg.Subject, "error", err)
		return
	}
	if err := l.handler(ctx, update); err != nil {
		slog.Error("Club update handling failed", "club_id", update.ClubID, "error", err)
	}
}

// parseClubUpdate reads the club id from the subject; a JSON body may add a reason.
func parseClubUpdate(msg *nats.Msg) (ClubUpdate, error) {
	parts := strings.Split(msg.Subject, ".")
	if len(parts) != 3 || parts[0] != "club" || parts[2] != "updated" || parts[1] == "" {
		return ClubUpdate{}, ErrMalformedSubject
	}

	var update ClubUpdate
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			slog.Debug("Club update body is not JSON", "subject", msg.Subject)
		}
	}
	update.ClubID = parts[1]
	return update, nil
}

// Close unsubscribes.
func (l *Listener) Close() {
	for _, sub := range l.subs {
		_ = sub.Unsubscribe()
	}
	l.subs = nil
}
