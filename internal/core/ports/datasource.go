package ports

import (
	"context"

	"github.com/samirrijal/osmdash/internal/core/domain"
)

// QueryBuilder turns a domain query into the data source's query language.
// It performs no I/O.
type QueryBuilder interface {
	Build(q domain.Query) (string, error)
}

// POISource executes a built payload against the upstream data source.
// Each call issues exactly one network request and returns a *domain.FetchError
// on failure. An empty result is not an error.
type POISource interface {
	Fetch(ctx context.Context, payload string) ([]domain.RawPOI, error)
}
