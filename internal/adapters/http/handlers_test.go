package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	handler "github.com/samirrijal/osmdash/internal/adapters/http"
	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/core/usecases"
	"github.com/samirrijal/osmdash/internal/pkg/config"
	"github.com/samirrijal/osmdash/internal/pkg/geospatial"
)

// ---- Mock pipeline ports ----

type mockBuilder struct{}

func (mockBuilder) Build(q domain.Query) (string, error) { return "payload", nil }

type mockSource struct {
	calls atomic.Int32
	pois  []domain.RawPOI
}

func (m *mockSource) Fetch(ctx context.Context, payload string) ([]domain.RawPOI, error) {
	m.calls.Add(1)
	return m.pois, nil
}

// ---- Test helpers ----

var origin = domain.Coordinate{Lat: 40.7075, Lon: -74.0113}

func rawPOI(id, amenity string, distance float64) domain.RawPOI {
	lat, lon := geospatial.Offset(origin.Lat, origin.Lon, 45, distance)
	return domain.RawPOI{
		ID:       id,
		Location: domain.Coordinate{Lat: lat, Lon: lon},
		Tags:     map[string]string{"amenity": amenity, "name": id},
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

type fixture struct {
	deps   *handler.Dependencies
	source *mockSource
	stop   func()
}

// makeDeps starts a scheduler over three classified POIs and one
// unclassified one, and waits for the first fetch to be applied.
func makeDeps(t *testing.T, opts ...func(*usecases.SchedulerConfig)) *fixture {
	t.Helper()
	tax := domain.DefaultTaxonomy()
	source := &mockSource{pois: []domain.RawPOI{
		rawPOI("r1", "restaurant", 120),
		rawPOI("c1", "cafe", 80),
		rawPOI("s1", "school", 450),
		rawPOI("v1", "vending_machine", 30),
	}}

	cfg := usecases.SchedulerConfig{
		SessionID: "test-session",
		Initial:   domain.QueryState{Origin: origin, Radius: 500, SelectedCategories: tax.Labels()},
	}
	for _, o := range opts {
		o(&cfg)
	}
	s, err := usecases.NewQueryScheduler(mockBuilder{}, source, tax, nil, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = s.Run(ctx)
	}()
	stop := func() {
		cancel()
		<-stopped
	}
	t.Cleanup(stop)

	require.Eventually(t, s.Running, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Refresh(context.Background()))
	waitIdle(t, s, 1)

	return &fixture{
		deps: &handler.Dependencies{
			Scheduler: s,
			Taxonomy:  tax,
			Query: config.QueryConfig{
				DefaultRadius: 500,
				MinRadius:     50,
				MaxRadius:     1500,
				RadiusStep:    50,
				DefaultPlace:  domain.DefaultPlaceName,
			},
		},
		source: source,
		stop:   stop,
	}
}

func waitIdle(t *testing.T, s *usecases.QueryScheduler, seq uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Seq >= seq && snap.Status == domain.StatusIdle
	}, 2*time.Second, 5*time.Millisecond)
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, b
}

type stateResp struct {
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
	State     struct {
		Origin             domain.Coordinate `json:"origin"`
		Radius             int               `json:"radius"`
		SelectedCategories []string          `json:"selected_categories"`
	} `json:"state"`
	Status  string `json:"status"`
	Visible int    `json:"visible"`
	Empty   string `json:"empty"`
}

func decodeState(t *testing.T, b []byte) stateResp {
	t.Helper()
	var st stateResp
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatalf("decode state: %v (%s)", err, b)
	}
	return st
}

func errorCode(t *testing.T, b []byte) string {
	t.Helper()
	var apiErr struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(b, &apiErr); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return apiErr.Code
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, _ := doJSON(t, app, "GET", "/v1/health", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestReady_SchedulerRunning(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "GET", "/v1/ready", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
}

func TestReady_SchedulerStopped(t *testing.T) {
	f := makeDeps(t)
	f.stop()
	app := setupApp(f.deps)

	code, _ := doJSON(t, app, "GET", "/v1/ready", "")
	if code != 503 {
		t.Fatalf("expected 503, got %d", code)
	}
}

// ---- Reference data ----

func TestTaxonomy(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	req := httptest.NewRequest("GET", "/v1/taxonomy", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("expected long-lived Cache-Control, got %q", cc)
	}

	var result struct {
		TagKey     string            `json:"tag_key"`
		Categories []domain.Category `json:"categories"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.TagKey != "amenity" {
		t.Errorf("expected tag key amenity, got %q", result.TagKey)
	}
	if len(result.Categories) != 9 || result.Categories[0].Label != "Transport" {
		t.Errorf("unexpected categories: %+v", result.Categories)
	}
}

func TestPlaces(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "GET", "/v1/places", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	var result struct {
		Default string              `json:"default"`
		Places  []domain.SavedPlace `json:"places"`
	}
	json.Unmarshal(body, &result)
	if result.Default != domain.DefaultPlaceName {
		t.Errorf("expected default %q, got %q", domain.DefaultPlaceName, result.Default)
	}
	if len(result.Places) != len(domain.SavedPlaces()) {
		t.Errorf("expected %d places, got %d", len(domain.SavedPlaces()), len(result.Places))
	}
}

// ---- State ----

func TestGetState(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "GET", "/v1/state", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	st := decodeState(t, body)
	if st.SessionID != "test-session" {
		t.Errorf("expected session test-session, got %q", st.SessionID)
	}
	if st.Status != "idle" {
		t.Errorf("expected idle, got %q", st.Status)
	}
	if st.Visible != 3 {
		t.Errorf("expected 3 visible POIs, got %d", st.Visible)
	}
}

func TestSetOrigin_Success(t *testing.T) {
	f := makeDeps(t)
	app := setupApp(f.deps)

	code, body := doJSON(t, app, "PUT", "/v1/state/origin", `{"lat":48.8584,"lon":2.2945,"trigger":"map_click"}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	st := decodeState(t, body)
	if st.State.Origin.Lat != 48.8584 || st.State.Origin.Lon != 2.2945 {
		t.Errorf("origin not updated: %+v", st.State.Origin)
	}
	waitIdle(t, f.deps.Scheduler, 2)
	if n := f.source.calls.Load(); n != 2 {
		t.Errorf("expected 2 fetches, got %d", n)
	}
}

func TestSetOrigin_InvalidLatitude(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "PUT", "/v1/state/origin", `{"lat":91,"lon":0}`)
	if code != 400 {
		t.Fatalf("expected 400, got %d", code)
	}
	if c := errorCode(t, body); c != "bad_request" {
		t.Errorf("expected bad_request, got %s", c)
	}
}

func TestSetOrigin_MissingFields(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, _ := doJSON(t, app, "PUT", "/v1/state/origin", `{"lat":40.7}`)
	if code != 400 {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestSetOrigin_UnknownTrigger(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, _ := doJSON(t, app, "PUT", "/v1/state/origin", `{"lat":40.7,"lon":-74,"trigger":"hover"}`)
	if code != 400 {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestSetRadius_Clamped(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "PUT", "/v1/state/radius", `{"radius":5000}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	if st := decodeState(t, body); st.State.Radius != 1500 {
		t.Errorf("expected radius clamped to 1500, got %d", st.State.Radius)
	}

	code, body = doJSON(t, app, "PUT", "/v1/state/radius", `{"radius":10}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if st := decodeState(t, body); st.State.Radius != 50 {
		t.Errorf("expected radius clamped to 50, got %d", st.State.Radius)
	}
}

func TestSetRadius_Step(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "PUT", "/v1/state/radius", `{"step":2}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	if st := decodeState(t, body); st.State.Radius != 600 {
		t.Errorf("expected radius 600, got %d", st.State.Radius)
	}
}

func TestSetRadius_BadRequest(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	for _, body := range []string{`{}`, `{"radius":500,"step":1}`, `not json`} {
		code, _ := doJSON(t, app, "PUT", "/v1/state/radius", body)
		if code != 400 {
			t.Errorf("%s: expected 400, got %d", body, code)
		}
	}
}

func TestSetCategories_RefiltersLocally(t *testing.T) {
	f := makeDeps(t, func(c *usecases.SchedulerConfig) { c.CategoryDebounce = time.Hour })
	app := setupApp(f.deps)

	code, body := doJSON(t, app, "PUT", "/v1/state/categories", `{"labels":["Food"]}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	st := decodeState(t, body)
	if st.Visible != 1 {
		t.Errorf("expected 1 visible POI, got %d", st.Visible)
	}
	if st.Status != "debouncing" {
		t.Errorf("expected debouncing, got %q", st.Status)
	}
	if n := f.source.calls.Load(); n != 1 {
		t.Errorf("expected no refetch yet, got %d fetches", n)
	}
}

func TestSetCategories_UnknownLabel(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, _ := doJSON(t, app, "PUT", "/v1/state/categories", `{"labels":["Nightlife"]}`)
	if code != 400 {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestClearAndSelectAll(t *testing.T) {
	f := makeDeps(t, func(c *usecases.SchedulerConfig) { c.CategoryDebounce = time.Hour })
	app := setupApp(f.deps)

	code, body := doJSON(t, app, "POST", "/v1/state/categories/clear", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	st := decodeState(t, body)
	if st.Visible != 0 || len(st.State.SelectedCategories) != 0 {
		t.Errorf("expected empty selection, got %+v", st)
	}

	code, body = doJSON(t, app, "POST", "/v1/state/categories/all", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	st = decodeState(t, body)
	if st.Visible != 3 || len(st.State.SelectedCategories) != 9 {
		t.Errorf("expected full selection, got %+v", st)
	}
}

func TestSelectPlace(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "POST", "/v1/state/place", `{"name":"Tokyo - Tokyo Tower"}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	if st := decodeState(t, body); st.State.Origin.Lat != 35.6586 {
		t.Errorf("expected Tokyo origin, got %+v", st.State.Origin)
	}
}

func TestSelectPlace_NotFound(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "POST", "/v1/state/place", `{"name":"Atlantis"}`)
	if code != 404 {
		t.Fatalf("expected 404, got %d", code)
	}
	if c := errorCode(t, body); c != "not_found" {
		t.Errorf("expected not_found, got %s", c)
	}
}

func TestRefresh(t *testing.T) {
	f := makeDeps(t)
	app := setupApp(f.deps)

	code, _ := doJSON(t, app, "POST", "/v1/state/refresh", "")
	if code != 202 {
		t.Fatalf("expected 202, got %d", code)
	}
	waitIdle(t, f.deps.Scheduler, 2)
	if n := f.source.calls.Load(); n != 2 {
		t.Errorf("expected 2 fetches, got %d", n)
	}
}

func TestMutation_SchedulerStopped(t *testing.T) {
	f := makeDeps(t)
	f.stop()
	app := setupApp(f.deps)

	code, body := doJSON(t, app, "POST", "/v1/state/refresh", "")
	if code != 503 {
		t.Fatalf("expected 503, got %d", code)
	}
	if c := errorCode(t, body); c != "unavailable" {
		t.Errorf("expected unavailable, got %s", c)
	}
}

// ---- Results ----

func TestListPOIs_Pagination(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	req := httptest.NewRequest("GET", "/v1/pois?offset=0&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, `rel="next"`) {
		t.Errorf("expected next link, got %q", link)
	}

	var result struct {
		Data       []handler.POIView `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 3 {
		t.Errorf("expected total 3, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 POIs in page, got %d", len(result.Data))
	}
}

func TestListPOIs_CategoryAndSort(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "GET", "/v1/pois?category=Food", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	var result struct {
		Data []handler.POIView `json:"data"`
	}
	json.Unmarshal(body, &result)
	if len(result.Data) != 1 || result.Data[0].ID != "r1" {
		t.Fatalf("expected only r1, got %+v", result.Data)
	}
	if result.Data[0].Color != "#d62728" {
		t.Errorf("expected Food color, got %q", result.Data[0].Color)
	}

	_, body = doJSON(t, app, "GET", "/v1/pois?sort=distance", "")
	json.Unmarshal(body, &result)
	if len(result.Data) != 3 || result.Data[0].ID != "c1" || result.Data[2].ID != "s1" {
		t.Errorf("expected distance order c1,r1,s1, got %+v", result.Data)
	}
}

func TestListPOIs_UnknownCategory(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, _ := doJSON(t, app, "GET", "/v1/pois?category=Nightlife", "")
	if code != 400 {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestGroupedPOIs(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "GET", "/v1/pois/grouped", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	var result struct {
		Groups []handler.GroupView `json:"groups"`
	}
	json.Unmarshal(body, &result)

	var labels []string
	for _, g := range result.Groups {
		labels = append(labels, g.Label)
	}
	want := []string{"Food", "Café / Bars", "Education"}
	if strings.Join(labels, "|") != strings.Join(want, "|") {
		t.Errorf("expected groups %v, got %v", want, labels)
	}
}

func TestStats(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "GET", "/v1/stats", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	var result struct {
		Seq   uint64            `json:"seq"`
		Stats domain.Statistics `json:"stats"`
	}
	json.Unmarshal(body, &result)
	if result.Stats.TotalCount != 3 {
		t.Errorf("expected 3 POIs, got %d", result.Stats.TotalCount)
	}
	if result.Stats.CountsByCategory["Food"] != 1 {
		t.Errorf("expected 1 Food POI, got %v", result.Stats.CountsByCategory)
	}
	if len(result.Stats.DistanceHistogram) != 7 {
		t.Errorf("expected 7 histogram buckets, got %d", len(result.Stats.DistanceHistogram))
	}
}

func TestBounds(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "GET", "/v1/bounds", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	var result handler.BoundsView
	json.Unmarshal(body, &result)
	b := result.Bounds
	if result.Radius != 500 {
		t.Errorf("expected radius 500, got %d", result.Radius)
	}
	if !(b.MinLat < origin.Lat && origin.Lat < b.MaxLat && b.MinLon < origin.Lon && origin.Lon < b.MaxLon) {
		t.Errorf("origin outside bounds: %+v", b)
	}
}

// ---- GraphQL ----

func TestGraphQL_Query(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "POST", "/graphql",
		`{"query":"{ state { radius visible selected_categories } stats { total_count counts_by_category { label count } } }"}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	var result struct {
		Data struct {
			State struct {
				Radius  int `json:"radius"`
				Visible int `json:"visible"`
			} `json:"state"`
			Stats struct {
				TotalCount       int                 `json:"total_count"`
				CountsByCategory []domain.LabelCount `json:"counts_by_category"`
			} `json:"stats"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	json.Unmarshal(body, &result)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Data.State.Radius != 500 || result.Data.State.Visible != 3 {
		t.Errorf("unexpected state: %+v", result.Data.State)
	}
	if result.Data.Stats.TotalCount != 3 || len(result.Data.Stats.CountsByCategory) != 3 {
		t.Errorf("unexpected stats: %+v", result.Data.Stats)
	}
}

func TestGraphQL_Mutation(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	code, body := doJSON(t, app, "POST", "/graphql",
		`{"query":"mutation { setRadius(radius: 5000) { radius } }"}`)
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	var result struct {
		Data struct {
			SetRadius struct {
				Radius int `json:"radius"`
			} `json:"setRadius"`
		} `json:"data"`
	}
	json.Unmarshal(body, &result)
	if result.Data.SetRadius.Radius != 1500 {
		t.Errorf("expected clamped radius 1500, got %d (%s)", result.Data.SetRadius.Radius, body)
	}
}

func TestGraphQL_MutationError(t *testing.T) {
	app := setupApp(makeDeps(t).deps)

	_, body := doJSON(t, app, "POST", "/graphql",
		`{"query":"mutation { selectPlace(name: \"Atlantis\") { radius } }"}`)
	var result struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	json.Unmarshal(body, &result)
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0].Message, "Atlantis") {
		t.Errorf("expected unknown place error, got %s", body)
	}
}
