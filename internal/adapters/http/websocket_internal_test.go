package http

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/core/usecases"
	"github.com/samirrijal/osmdash/internal/pkg/config"
)

type stubBuilder struct{}

func (stubBuilder) Build(domain.Query) (string, error) { return "payload", nil }

type stubSource struct{}

func (stubSource) Fetch(context.Context, string) ([]domain.RawPOI, error) { return nil, nil }

func wsDeps(t *testing.T) *Dependencies {
	t.Helper()
	tax := domain.DefaultTaxonomy()
	s, err := usecases.NewQueryScheduler(stubBuilder{}, stubSource{}, tax, nil, usecases.SchedulerConfig{
		CategoryDebounce: time.Hour,
		InputDebounce:    time.Hour,
		Initial: domain.QueryState{
			Origin:             domain.Coordinate{Lat: 40.7075, Lon: -74.0113},
			Radius:             500,
			SelectedCategories: tax.Labels(),
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	return &Dependencies{
		Scheduler: s,
		Taxonomy:  tax,
		Query:     config.QueryConfig{DefaultRadius: 500, MinRadius: 50, MaxRadius: 1500, RadiusStep: 50},
	}
}

func ptr[T any](v T) *T { return &v }

func TestApplyWSCommand(t *testing.T) {
	deps := wsDeps(t)
	ctx := context.Background()
	state := func() domain.QueryState { return deps.Scheduler.Snapshot().State }

	require.NoError(t, applyWSCommand(ctx, deps, wsCommand{Action: "set_radius", Radius: ptr(9000)}))
	assert.Equal(t, 1500, state().Radius)

	require.NoError(t, applyWSCommand(ctx, deps, wsCommand{Action: "set_radius", Step: -3}))
	assert.Equal(t, 1350, state().Radius)

	require.NoError(t, applyWSCommand(ctx, deps, wsCommand{Action: "set_categories", Labels: []string{"Food", "Transport"}}))
	assert.Equal(t, []string{"Transport", "Food"}, state().SelectedCategories)

	require.NoError(t, applyWSCommand(ctx, deps, wsCommand{Action: "clear"}))
	assert.Empty(t, state().SelectedCategories)

	require.NoError(t, applyWSCommand(ctx, deps, wsCommand{Action: "select_all"}))
	assert.Len(t, state().SelectedCategories, 9)

	require.NoError(t, applyWSCommand(ctx, deps, wsCommand{Action: "set_origin", Lat: ptr(1.5), Lon: ptr(2.5), Trigger: "input"}))
	assert.Equal(t, domain.Coordinate{Lat: 1.5, Lon: 2.5}, state().Origin)
	assert.Equal(t, domain.StatusDebouncing, deps.Scheduler.Snapshot().Status)

	require.NoError(t, applyWSCommand(ctx, deps, wsCommand{Action: "place", Name: "Rome - Colosseum"}))
	assert.Equal(t, 41.8902, state().Origin.Lat)

	require.NoError(t, applyWSCommand(ctx, deps, wsCommand{Action: "refresh"}))
}

func TestApplyWSCommand_Rejected(t *testing.T) {
	deps := wsDeps(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  wsCommand
	}{
		{"unknown action", wsCommand{Action: "dance"}},
		{"origin without lon", wsCommand{Action: "set_origin", Lat: ptr(1.0)}},
		{"origin out of range", wsCommand{Action: "set_origin", Lat: ptr(95.0), Lon: ptr(0.0)}},
		{"radius missing", wsCommand{Action: "set_radius"}},
		{"unknown category", wsCommand{Action: "set_categories", Labels: []string{"Nightlife"}}},
		{"unknown place", wsCommand{Action: "place", Name: "Atlantis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, applyWSCommand(ctx, deps, tt.cmd))
		})
	}
}

func TestToGQLStats(t *testing.T) {
	stats := domain.Statistics{
		TotalCount:           3,
		CategoryOrder:        []domain.LabelCount{{Label: "Food", Count: 2}, {Label: "Education", Count: 1}},
		CountsByTag:          map[string]int{"school": 1, "restaurant": 1, "cafe": 1},
		PercentageByCategory: map[string]float64{"Food": 66.67, "Education": 33.33},
	}

	out := toGQLStats(stats)
	assert.Equal(t, []gqlPercentage{{"Food", 66.67}, {"Education", 33.33}}, out.PercentageByCategory)
	assert.Equal(t, []domain.LabelCount{{Label: "cafe", Count: 1}, {Label: "restaurant", Count: 1}, {Label: "school", Count: 1}}, out.CountsByTag)
}
