package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/osmdash/internal/core/domain"
)

// SubjectPrefix roots every subject this package publishes on.
const SubjectPrefix = "osmdash.snapshot"

// SnapshotSubject returns the subject snapshots of sessionID are published on.
func SnapshotSubject(sessionID string) string {
	return SubjectPrefix + "." + sessionID
}

type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// Publisher implements ports.SnapshotPublisher over core NATS. Snapshots are
// fire-and-forget: a consumer that is not listening simply misses them.
type Publisher struct {
	conn conn
}

// NewPublisher connects to NATS.
func NewPublisher(url string) (*Publisher, error) {
	c, err := Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: c}, nil
}

func (p *Publisher) PublishSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := p.conn.Publish(SnapshotSubject(snap.SessionID), data); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// NewPublisherConn publishes on an existing connection. Close drains it.
func NewPublisherConn(nc *nats.Conn) *Publisher {
	return &Publisher{conn: nc}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(url string) (*nats.Conn, error) {
	c, err := nats.Connect(url,
		nats.Name("osmdash"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return c, nil
}
