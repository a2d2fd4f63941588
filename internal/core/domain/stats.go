package domain

import "time"

// HistogramBucket counts POIs whose distance falls in [Min, Max).
// A nil Max marks the open-ended last bucket.
type HistogramBucket struct {
	Label string   `json:"label"`
	Min   float64  `json:"min"`
	Max   *float64 `json:"max,omitempty"`
	Count int      `json:"count"`
}

// Contains reports whether distance falls inside the bucket.
func (b HistogramBucket) Contains(distance float64) bool {
	if distance < b.Min {
		return false
	}
	return b.Max == nil || distance < *b.Max
}

// LabelCount is one entry of an ordered count mapping.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Statistics summarises a POI set. It is recomputed from scratch on every change.
type Statistics struct {
	TotalCount           int                `json:"total_count"`
	AverageDistance      float64            `json:"average_distance"`
	CountsByCategory     map[string]int     `json:"counts_by_category"`
	CountsByTag          map[string]int     `json:"counts_by_tag"`
	CategoryOrder        []LabelCount       `json:"category_order"`
	TopCategory          string             `json:"top_category,omitempty"`
	UniqueTagCount       int                `json:"unique_tag_count"`
	PercentageByCategory map[string]float64 `json:"percentage_by_category"`
	DistanceHistogram    []HistogramBucket  `json:"distance_histogram"`
}

// SchedulerStatus is the scheduler's externally visible state.
type SchedulerStatus string

const (
	StatusIdle       SchedulerStatus = "idle"
	StatusDebouncing SchedulerStatus = "debouncing"
	StatusLoading    SchedulerStatus = "loading"
)

// Snapshot is the view state handed to presentation consumers after every
// change. Snapshots are immutable once published.
type Snapshot struct {
	SessionID string          `json:"session_id"`
	Seq       uint64          `json:"seq"` // sequence of the fetch that produced All
	State     QueryState      `json:"state"`
	Applied   *QueryState     `json:"applied,omitempty"` // state of the last applied fetch
	Status    SchedulerStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	All       []EnrichedPOI   `json:"-"`
	Visible   []EnrichedPOI   `json:"visible"`
	Stats     Statistics      `json:"stats"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// EmptyHint returns the "nothing found" line shown when a selection exists
// but no POI is visible.
func (s Snapshot) EmptyHint() string {
	if s.Status == StatusIdle && s.Error == "" && len(s.Visible) == 0 && len(s.State.SelectedCategories) > 0 && s.Applied != nil {
		return "No POIs found."
	}
	return ""
}
