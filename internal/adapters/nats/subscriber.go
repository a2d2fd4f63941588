package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/osmdash/internal/core/domain"
)

// Subscriber receives snapshots published by a Publisher.
type Subscriber struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS.
func NewSubscriber(url string) (*Subscriber, error) {
	c, err := Connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: c}, nil
}

// SubscribeSnapshots calls handler for each snapshot of sessionID, or of every
// session when sessionID is empty. Undecodable messages are logged and skipped.
func (s *Subscriber) SubscribeSnapshots(ctx context.Context, sessionID string, handler func(ctx context.Context, snap *domain.Snapshot) error) error {
	subject := SubjectPrefix + ".*"
	if sessionID != "" {
		subject = SnapshotSubject(sessionID)
	}
	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		handleSnapshot(ctx, msg.Subject, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

func handleSnapshot(ctx context.Context, subject string, data []byte, handler func(ctx context.Context, snap *domain.Snapshot) error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("bad snapshot message", "subject", subject, "error", err)
		return
	}
	if err := handler(ctx, &snap); err != nil {
		slog.Warn("snapshot handler failed", "subject", subject, "seq", snap.Seq, "error", err)
	}
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
