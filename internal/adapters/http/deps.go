package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/core/usecases"
	"github.com/samirrijal/osmdash/internal/pkg/config"
)

// Dependencies holds everything the HTTP handlers need. Handlers read
// snapshots and post mutations to the scheduler; they never hold state.
type Dependencies struct {
	Scheduler *usecases.QueryScheduler
	Taxonomy  *domain.Taxonomy
	Query     config.QueryConfig
	NATS      *nats.Conn // optional, readiness only
	SpecPath  string     // OpenAPI document served at /docs; DefaultSpecPath when empty
}
