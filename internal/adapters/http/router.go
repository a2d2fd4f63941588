package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/osmdash/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware(deps.Scheduler.SessionID()))

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware(deps))

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1. Mutations wait on the scheduler loop, never on Overpass.
	const reqTimeout = 15 * time.Second
	v1 := app.Group("/v1")
	v1.Get("/taxonomy", TaxonomyHandler(deps))
	v1.Get("/places", PlacesHandler(deps))
	v1.Get("/state", GetStateHandler(deps))
	v1.Put("/state/origin", timeout.NewWithContext(SetOriginHandler(deps), reqTimeout))
	v1.Put("/state/radius", timeout.NewWithContext(SetRadiusHandler(deps), reqTimeout))
	v1.Put("/state/categories", timeout.NewWithContext(SetCategoriesHandler(deps), reqTimeout))
	v1.Post("/state/categories/all", timeout.NewWithContext(SelectAllHandler(deps), reqTimeout))
	v1.Post("/state/categories/clear", timeout.NewWithContext(ClearCategoriesHandler(deps), reqTimeout))
	v1.Post("/state/place", timeout.NewWithContext(SelectPlaceHandler(deps), reqTimeout))
	v1.Post("/state/refresh", timeout.NewWithContext(RefreshHandler(deps), reqTimeout))

	// Results of the last applied fetch
	v1.Get("/pois", ListPOIsHandler(deps))
	v1.Get("/pois/grouped", GroupedPOIsHandler(deps))
	v1.Get("/stats", StatsHandler(deps))
	v1.Get("/bounds", BoundsHandler(deps))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.SpecPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
