package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/core/ports"
	"github.com/samirrijal/osmdash/internal/pkg/metrics"
	"github.com/samirrijal/osmdash/internal/pkg/telemetry"
)

// ErrSchedulerStopped is returned by mutations once Run has exited.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// Trigger names the interaction behind an origin change. It decides the
// debounce window.
type Trigger string

const (
	TriggerUpdate   Trigger = "update"    // explicit update action, always refetches
	TriggerDragEnd  Trigger = "drag_end"  // marker drag finished
	TriggerMapClick Trigger = "map_click" // click on the map surface
	TriggerPlace    Trigger = "place"     // saved place picked
	TriggerInput    Trigger = "input"     // typed coordinates
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerUpdate, TriggerDragEnd, TriggerMapClick, TriggerPlace, TriggerInput:
		return true
	}
	return false
}

// SchedulerConfig tunes a QueryScheduler.
type SchedulerConfig struct {
	SessionID        string // generated when empty
	InputDebounce    time.Duration
	CategoryDebounce time.Duration
	Initial          domain.QueryState
}

// QueryScheduler owns the query state and decides when the pipeline runs.
//
// All state is owned by the goroutine executing Run. Mutations are posted as
// events and acknowledged once applied; fetch completions and timer expiries
// come back through the same channel, so results are applied strictly in
// the order their fetches were started. Every fetch gets a monotonic sequence
// number and a cancel func. Starting a new fetch cancels the previous one and
// completions that are not the latest are dropped.
type QueryScheduler struct {
	builder   ports.QueryBuilder
	source    ports.POISource
	taxonomy  *domain.Taxonomy
	publisher ports.SnapshotPublisher
	cfg       SchedulerConfig
	logger    *slog.Logger

	events  chan event
	done    chan struct{}
	running atomic.Bool
	wg      sync.WaitGroup

	current atomic.Pointer[domain.Snapshot]

	subMu   sync.Mutex
	subs    map[int]chan *domain.Snapshot
	nextSub int

	// Owned by the Run goroutine.
	runCtx     context.Context
	state      domain.QueryState
	all        []domain.EnrichedPOI
	applied    *domain.QueryState
	appliedSeq uint64
	errMsg     string
	seq        uint64
	inflight   *fetchHandle
	timer      *time.Timer
	timerGen   uint64
	timerArmed bool
}

type fetchHandle struct {
	seq    uint64
	cancel context.CancelFunc
}

type event interface{ isEvent() }

type mutateEvent struct {
	mutate func(*domain.QueryState)
	delay  time.Duration
	force  bool // schedule even when the state did not change
	ack    chan struct{}
}

type timerEvent struct{ gen uint64 }

type fetchDoneEvent struct {
	seq   uint64
	state domain.QueryState
	pois  []domain.RawPOI
	err   error
}

func (mutateEvent) isEvent()    {}
func (timerEvent) isEvent()     {}
func (fetchDoneEvent) isEvent() {}

// NewQueryScheduler validates the initial state and publishes an empty idle
// snapshot. publisher may be nil.
func NewQueryScheduler(
	builder ports.QueryBuilder,
	source ports.POISource,
	taxonomy *domain.Taxonomy,
	publisher ports.SnapshotPublisher,
	cfg SchedulerConfig,
) (*QueryScheduler, error) {
	if err := cfg.Initial.Origin.Validate(); err != nil {
		return nil, fmt.Errorf("initial origin: %w", err)
	}
	if err := validateRadius(cfg.Initial.Radius); err != nil {
		return nil, fmt.Errorf("initial radius: %w", err)
	}
	selected, err := normalizeLabels(cfg.Initial.SelectedCategories, taxonomy)
	if err != nil {
		return nil, fmt.Errorf("initial categories: %w", err)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	s := &QueryScheduler{
		builder:   builder,
		source:    source,
		taxonomy:  taxonomy,
		publisher: publisher,
		cfg:       cfg,
		logger:    slog.Default().With("component", "scheduler", "session", cfg.SessionID),
		events:    make(chan event, 64),
		done:      make(chan struct{}),
		subs:      make(map[int]chan *domain.Snapshot),
		runCtx:    context.Background(),
		state: domain.QueryState{
			Origin:             cfg.Initial.Origin,
			Radius:             cfg.Initial.Radius,
			SelectedCategories: selected,
		},
	}
	s.current.Store(s.buildSnapshot())
	return s, nil
}

// SessionID identifies this scheduler in published snapshots.
func (s *QueryScheduler) SessionID() string { return s.cfg.SessionID }

// Taxonomy returns the taxonomy the scheduler classifies with.
func (s *QueryScheduler) Taxonomy() *domain.Taxonomy { return s.taxonomy }

// Snapshot returns the most recently published view state.
func (s *QueryScheduler) Snapshot() *domain.Snapshot { return s.current.Load() }

// Running reports whether Run is processing events.
func (s *QueryScheduler) Running() bool {
	select {
	case <-s.done:
		return false
	default:
		return s.running.Load()
	}
}

// Subscribe returns a channel receiving every published snapshot. A slow
// reader loses intermediate snapshots, never the latest one. The returned
// func unsubscribes and closes the channel.
func (s *QueryScheduler) Subscribe(buffer int) (<-chan *domain.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *domain.Snapshot, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subMu.Unlock()
		})
	}
}

// Run processes events until ctx is cancelled. Timers are stopped and the
// in-flight fetch is cancelled before it returns.
func (s *QueryScheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scheduler already running")
	}
	s.runCtx = ctx
	s.logger.Info("scheduler started")

	defer func() {
		s.stopTimer()
		if s.inflight != nil {
			s.inflight.cancel()
			s.inflight = nil
		}
		close(s.done)
		s.wg.Wait()
		s.logger.Info("scheduler stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

// SetOrigin moves the query origin. TriggerInput is debounced, every other
// trigger fetches immediately. TriggerUpdate refetches even when the origin
// is unchanged.
func (s *QueryScheduler) SetOrigin(ctx context.Context, origin domain.Coordinate, trigger Trigger) error {
	if err := origin.Validate(); err != nil {
		return err
	}
	if !trigger.Valid() {
		return &domain.BuildError{Field: "trigger", Reason: fmt.Sprintf("unknown trigger %q", trigger)}
	}
	var delay time.Duration
	if trigger == TriggerInput {
		delay = s.cfg.InputDebounce
	}
	return s.post(ctx, mutateEvent{
		mutate: func(st *domain.QueryState) { st.Origin = origin },
		delay:  delay,
		force:  trigger == TriggerUpdate,
	})
}

// SelectPlace moves the origin to a saved place.
func (s *QueryScheduler) SelectPlace(ctx context.Context, name string) (domain.SavedPlace, error) {
	place, ok := domain.FindPlace(name)
	if !ok {
		return domain.SavedPlace{}, &domain.BuildError{Field: "place", Reason: fmt.Sprintf("unknown place %q", name)}
	}
	return place, s.SetOrigin(ctx, place.Location, TriggerPlace)
}

// SetRadius changes the search radius. Clamping is the caller's job; any
// positive value is accepted.
func (s *QueryScheduler) SetRadius(ctx context.Context, radius int) error {
	if err := validateRadius(radius); err != nil {
		return err
	}
	return s.post(ctx, mutateEvent{
		mutate: func(st *domain.QueryState) { st.Radius = radius },
		delay:  s.cfg.InputDebounce,
	})
}

// SetCategories replaces the category selection. The visible set is
// re-filtered right away and a refetch is debounced.
func (s *QueryScheduler) SetCategories(ctx context.Context, labels []string) error {
	selected, err := normalizeLabels(labels, s.taxonomy)
	if err != nil {
		return err
	}
	return s.post(ctx, mutateEvent{
		mutate: func(st *domain.QueryState) { st.SelectedCategories = selected },
		delay:  s.cfg.CategoryDebounce,
	})
}

// SelectAll selects every taxonomy category.
func (s *QueryScheduler) SelectAll(ctx context.Context) error {
	return s.SetCategories(ctx, s.taxonomy.Labels())
}

// ClearCategories deselects every category.
func (s *QueryScheduler) ClearCategories(ctx context.Context) error {
	return s.SetCategories(ctx, nil)
}

// Refresh refetches the current state immediately.
func (s *QueryScheduler) Refresh(ctx context.Context) error {
	return s.post(ctx, mutateEvent{force: true})
}

func (s *QueryScheduler) post(ctx context.Context, ev mutateEvent) error {
	ev.ack = make(chan struct{})
	select {
	case s.events <- ev:
	case <-s.done:
		return ErrSchedulerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ev.ack:
		return nil
	case <-s.done:
		return ErrSchedulerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emit is used by timer and fetch goroutines.
func (s *QueryScheduler) emit(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *QueryScheduler) handle(ev event) {
	switch ev := ev.(type) {
	case mutateEvent:
		s.handleMutation(ev)
		close(ev.ack)
	case timerEvent:
		if ev.gen != s.timerGen || !s.timerArmed {
			return
		}
		s.timerArmed = false
		s.timer = nil
		s.startFetch()
		s.publish()
	case fetchDoneEvent:
		s.handleFetchDone(ev)
	}
}

func (s *QueryScheduler) handleMutation(ev mutateEvent) {
	next := s.state.Clone()
	if ev.mutate != nil {
		ev.mutate(&next)
	}
	if next.Equal(s.state) && !ev.force {
		return
	}
	s.state = next
	s.logger.Debug("state changed",
		"lat", next.Origin.Lat, "lon", next.Origin.Lon,
		"radius", next.Radius, "categories", next.SelectedCategories,
		"delay", ev.delay)

	if ev.delay <= 0 {
		s.startFetch()
	} else {
		s.armTimer(ev.delay)
	}
	s.publish()
}

func (s *QueryScheduler) armTimer(delay time.Duration) {
	s.stopTimer()
	s.timerGen++
	gen := s.timerGen
	s.timerArmed = true
	s.timer = time.AfterFunc(delay, func() { s.emit(timerEvent{gen: gen}) })
}

func (s *QueryScheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerArmed = false
}

func (s *QueryScheduler) startFetch() {
	s.stopTimer()
	if s.inflight != nil {
		s.logger.Debug("superseding fetch", "seq", s.inflight.seq)
		s.inflight.cancel()
		s.inflight = nil
		metrics.FetchesSuperseded.Inc()
	}

	q := domain.Query{
		Origin:    s.state.Origin,
		Radius:    s.state.Radius,
		TagValues: s.taxonomy.TagValues(s.state.SelectedCategories),
	}
	payload, err := s.builder.Build(q)
	if err != nil {
		s.logger.Warn("query rejected", "error", err)
		s.errMsg = domain.UserMessage(err)
		return
	}

	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(s.runCtx)
	s.inflight = &fetchHandle{seq: seq, cancel: cancel}
	state := s.state.Clone()
	metrics.FetchesStarted.Inc()
	s.logger.Debug("fetch started", "seq", seq, "radius", state.Radius)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanSchedulerFetch, trace.WithAttributes(
			attribute.Int64(telemetry.AttrFetchSeq, int64(seq)),
			attribute.Int(telemetry.AttrRadius, q.Radius),
			attribute.Float64(telemetry.AttrOriginLat, q.Origin.Lat),
			attribute.Float64(telemetry.AttrOriginLon, q.Origin.Lon),
			attribute.StringSlice(telemetry.AttrTagValues, q.TagValues),
		))
		pois, err := s.source.Fetch(ctx, payload)
		span.End()
		s.emit(fetchDoneEvent{seq: seq, state: state, pois: pois, err: err})
	}()
}

func (s *QueryScheduler) handleFetchDone(ev fetchDoneEvent) {
	if s.inflight == nil || ev.seq != s.inflight.seq {
		s.logger.Debug("discarding stale result", "seq", ev.seq)
		return
	}
	s.inflight.cancel()
	s.inflight = nil

	switch {
	case ev.err == nil:
		s.all = Process(ev.pois, ev.state.Origin, s.taxonomy)
		applied := ev.state
		s.applied = &applied
		s.appliedSeq = ev.seq
		s.errMsg = ""
		s.logger.Debug("fetch applied", "seq", ev.seq, "pois", len(s.all))
	case domain.IsCancelled(ev.err):
		s.logger.Debug("fetch cancelled", "seq", ev.seq)
	default:
		s.errMsg = domain.UserMessage(ev.err)
		var fe *domain.FetchError
		kind := "unknown"
		if errors.As(ev.err, &fe) {
			kind = fe.Kind.String()
		}
		metrics.FetchErrors.WithLabelValues(kind).Inc()
		s.logger.Warn("fetch failed", "seq", ev.seq, "kind", kind, "error", ev.err)
	}
	s.publish()
}

func (s *QueryScheduler) status() domain.SchedulerStatus {
	switch {
	case s.timerArmed:
		return domain.StatusDebouncing
	case s.inflight != nil:
		return domain.StatusLoading
	default:
		return domain.StatusIdle
	}
}

func (s *QueryScheduler) buildSnapshot() *domain.Snapshot {
	visible := Filter(s.all, s.state.SelectedCategories)
	snap := &domain.Snapshot{
		SessionID: s.cfg.SessionID,
		Seq:       s.appliedSeq,
		State:     s.state.Clone(),
		Status:    s.status(),
		Error:     s.errMsg,
		All:       s.all,
		Visible:   visible,
		Stats:     Aggregate(visible, s.taxonomy.TagKey()),
		UpdatedAt: time.Now().UTC(),
	}
	if s.applied != nil {
		applied := s.applied.Clone()
		snap.Applied = &applied
	}
	return snap
}

func (s *QueryScheduler) publish() {
	snap := s.buildSnapshot()
	s.current.Store(snap)
	metrics.SnapshotsPublished.Inc()
	metrics.VisiblePOIs.Set(float64(len(snap.Visible)))

	s.subMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest queued snapshot so the latest always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	s.subMu.Unlock()

	if s.publisher != nil {
		ctx, cancel := context.WithTimeout(s.runCtx, 2*time.Second)
		if err := s.publisher.PublishSnapshot(ctx, snap); err != nil {
			s.logger.Warn("snapshot publish failed", "error", err)
		}
		cancel()
	}
}

func validateRadius(radius int) error {
	if radius <= 0 {
		return &domain.BuildError{Field: "radius", Reason: fmt.Sprintf("%d must be positive", radius)}
	}
	return nil
}

// normalizeLabels rejects unknown labels and drops duplicates, keeping the
// taxonomy's order.
func normalizeLabels(labels []string, taxonomy *domain.Taxonomy) ([]string, error) {
	for _, l := range labels {
		if !taxonomy.Has(l) {
			return nil, &domain.BuildError{Field: "categories", Reason: fmt.Sprintf("unknown category %q", l)}
		}
	}
	out := []string{}
	for _, l := range taxonomy.Labels() {
		if slices.Contains(labels, l) {
			out = append(out, l)
		}
	}
	return out, nil
}
