// Command watch follows the snapshots an osmdash API process publishes on
// NATS and logs a one-line summary of each: status, visible count, top
// category and the distance histogram.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	natsadapter "github.com/samirrijal/osmdash/internal/adapters/nats"
	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/pkg/config"
	"github.com/samirrijal/osmdash/internal/pkg/logging"
)

func main() {
	session := flag.String("session", "", "session id to follow (default: every session)")
	flag.Parse()

	cfg, err := config.Load("osmdash-watch")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	if err := sub.SubscribeSnapshots(ctx, *session, logSnapshot); err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("watching snapshots", "url", cfg.NATS.URL, "session_id", *session)
	<-ctx.Done()
	slog.Info("received signal, shutting down watcher")
}

func logSnapshot(_ context.Context, snap *domain.Snapshot) error {
	attrs := []any{
		"session_id", snap.SessionID,
		"seq", snap.Seq,
		"status", snap.Status,
		"radius", snap.State.Radius,
		"categories", len(snap.State.SelectedCategories),
		"visible", len(snap.Visible),
	}
	if snap.Error != "" {
		slog.Warn("snapshot", append(attrs, "error", snap.Error)...)
		return nil
	}
	if snap.Stats.TotalCount > 0 {
		attrs = append(attrs,
			"top_category", snap.Stats.TopCategory,
			"avg_distance_m", fmt.Sprintf("%.0f", snap.Stats.AverageDistance),
			"histogram", histogram(snap.Stats.DistanceHistogram),
		)
	}
	slog.Info("snapshot", attrs...)
	return nil
}

// histogram renders buckets as "0-100m:3 100-200m:1 ...", skipping empty ones.
func histogram(buckets []domain.HistogramBucket) string {
	var parts []string
	for _, b := range buckets {
		if b.Count > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", b.Label, b.Count))
		}
	}
	return strings.Join(parts, " ")
}
