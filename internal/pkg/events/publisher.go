package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/tracking"
	"github.com/nats-io/nats.go"
)

const sessionSubjectPrefix = "attendance.session."

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("clubtrack-attendance"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// Publisher implements tracking.EventPublisher on NATS.
type Publisher struct {
	conn *nats.Conn
}

func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// SessionSubject returns the subject a session event is published on.
func SessionSubject(typ tracking.SessionEventType) string {
	return sessionSubjectPrefix + string(typ)
}

func (p *Publisher) PublishSessionEvent(ctx context.Context, event tracking.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(SessionSubject(event.Type), data)
}
