package ports

import (
	"context"

	"github.com/samirrijal/osmdash/internal/core/domain"
)

// SnapshotPublisher fans view snapshots out to out-of-process consumers.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap *domain.Snapshot) error
}
