package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/osmdash/internal/adapters/http"
	natsadapter "github.com/samirrijal/osmdash/internal/adapters/nats"
	"github.com/samirrijal/osmdash/internal/adapters/overpass"
	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/core/ports"
	"github.com/samirrijal/osmdash/internal/core/usecases"
	"github.com/samirrijal/osmdash/internal/pkg/config"
	"github.com/samirrijal/osmdash/internal/pkg/logging"
	"github.com/samirrijal/osmdash/internal/pkg/telemetry"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.Load("osmdash-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	taxonomy, err := cfg.Taxonomy.Build()
	if err != nil {
		log.Fatalf("taxonomy: %v", err)
	}

	// Overpass
	builder := overpass.NewBuilder(taxonomy.TagKey(), cfg.Overpass.ServerTimeout())
	client := overpass.NewClient(overpass.ClientConfig{
		URL:               cfg.Overpass.URL,
		Timeout:           cfg.Overpass.Timeout(),
		UserAgent:         cfg.Overpass.UserAgent,
		RequestsPerMinute: cfg.Overpass.RequestsPerMinute,
	})

	// NATS (optional snapshot fan-out)
	var (
		natsConn  *nats.Conn
		publisher ports.SnapshotPublisher
	)
	if cfg.NATS.Enabled {
		natsConn, err = natsadapter.Connect(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, snapshots stay in-process", "error", err)
		} else {
			pub := natsadapter.NewPublisherConn(natsConn)
			defer pub.Close()
			publisher = pub
		}
	}

	place, _ := domain.FindPlace(cfg.Query.DefaultPlace)
	scheduler, err := usecases.NewQueryScheduler(builder, client, taxonomy, publisher, usecases.SchedulerConfig{
		InputDebounce:    cfg.Scheduler.InputDebounce(),
		CategoryDebounce: cfg.Scheduler.CategoryDebounce(),
		Initial: domain.QueryState{
			Origin:             place.Location,
			Radius:             cfg.Query.DefaultRadius,
			SelectedCategories: taxonomy.Labels(),
		},
	})
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	deps := &http.Dependencies{
		Scheduler: scheduler,
		Taxonomy:  taxonomy,
		Query:     cfg.Query,
		NATS:      natsConn,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "osmdash API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	// Initial fetch for the default place once the loop is up.
	g.Go(func() error {
		if err := scheduler.Refresh(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("initial refresh: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "session_id", scheduler.SessionID())
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		// Give in-flight requests up to 10s to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
