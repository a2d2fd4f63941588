package http

import (
	"time"

	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/core/usecases"
	"github.com/samirrijal/osmdash/internal/pkg/geospatial"
)

// POIView is a visible POI as rendered by map and list surfaces.
type POIView struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Lat      float64           `json:"lat"`
	Lon      float64           `json:"lon"`
	Distance float64           `json:"distance"`
	Category string            `json:"category"`
	Color    string            `json:"color"`
	Icon     string            `json:"icon,omitempty"`
	Tag      string            `json:"tag,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// GroupView is one list section.
type GroupView struct {
	Label string    `json:"label"`
	Color string    `json:"color"`
	Count int       `json:"count"`
	POIs  []POIView `json:"pois"`
}

// RadiusLimits tells clients how to clamp and step the radius control.
type RadiusLimits struct {
	Min  int `json:"min"`
	Max  int `json:"max"`
	Step int `json:"step"`
}

// StateView is the status line plus the current and applied parameters.
type StateView struct {
	SessionID string                 `json:"session_id"`
	Seq       uint64                 `json:"seq"`
	State     domain.QueryState      `json:"state"`
	Applied   *domain.QueryState     `json:"applied,omitempty"`
	Status    domain.SchedulerStatus `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Empty     string                 `json:"empty,omitempty"`
	Visible   int                    `json:"visible"`
	Radius    RadiusLimits           `json:"radius_limits"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// SnapshotView is what the WebSocket pushes after every change.
type SnapshotView struct {
	StateView
	POIs  []POIView         `json:"pois"`
	Stats domain.Statistics `json:"stats"`
}

// BoundsView is the map-fit box around the origin for the radius.
type BoundsView struct {
	Origin domain.Coordinate `json:"origin"`
	Radius int               `json:"radius"`
	Bounds domain.Bounds     `json:"bounds"`
}

type iconIndex map[string]string

func icons(tax *domain.Taxonomy) iconIndex {
	idx := make(iconIndex)
	for c := range tax.All() {
		idx[c.Label] = c.Icon
	}
	return idx
}

func poiView(p domain.EnrichedPOI, tax *domain.Taxonomy, idx iconIndex) POIView {
	label := p.CategoryOrOther()
	return POIView{
		ID:       p.ID,
		Name:     p.Name(),
		Lat:      p.Location.Lat,
		Lon:      p.Location.Lon,
		Distance: p.Distance,
		Category: label,
		Color:    tax.Color(label),
		Icon:     idx[label],
		Tag:      p.Tag(tax.TagKey()),
		Tags:     p.Tags,
	}
}

func poiViews(pois []domain.EnrichedPOI, tax *domain.Taxonomy) []POIView {
	idx := icons(tax)
	out := make([]POIView, len(pois))
	for i, p := range pois {
		out[i] = poiView(p, tax, idx)
	}
	return out
}

func groupViews(pois []domain.EnrichedPOI, tax *domain.Taxonomy) []GroupView {
	groups := usecases.GroupByCategory(pois, tax)
	out := make([]GroupView, len(groups))
	for i, g := range groups {
		out[i] = GroupView{
			Label: g.Label,
			Color: g.Color,
			Count: len(g.POIs),
			POIs:  poiViews(g.POIs, tax),
		}
	}
	return out
}

func stateView(snap *domain.Snapshot, deps *Dependencies) StateView {
	return StateView{
		SessionID: snap.SessionID,
		Seq:       snap.Seq,
		State:     snap.State,
		Applied:   snap.Applied,
		Status:    snap.Status,
		Error:     snap.Error,
		Empty:     snap.EmptyHint(),
		Visible:   len(snap.Visible),
		Radius: RadiusLimits{
			Min:  deps.Query.MinRadius,
			Max:  deps.Query.MaxRadius,
			Step: deps.Query.RadiusStep,
		},
		UpdatedAt: snap.UpdatedAt,
	}
}

func snapshotView(snap *domain.Snapshot, deps *Dependencies) SnapshotView {
	return SnapshotView{
		StateView: stateView(snap, deps),
		POIs:      poiViews(snap.Visible, deps.Taxonomy),
		Stats:     snap.Stats,
	}
}

// boundsView fits the map to the origin the visible POIs were measured from.
func boundsView(snap *domain.Snapshot) BoundsView {
	st := snap.State
	if snap.Applied != nil {
		st = *snap.Applied
	}
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(st.Origin.Lat, st.Origin.Lon, float64(st.Radius))
	return BoundsView{
		Origin: st.Origin,
		Radius: st.Radius,
		Bounds: domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon},
	}
}
