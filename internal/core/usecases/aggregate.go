package usecases

import (
	"fmt"
	"math"

	"github.com/samirrijal/osmdash/internal/core/domain"
)

// DistanceBucketBounds are the lower bounds of the distance histogram buckets.
// The last bucket is open-ended.
var DistanceBucketBounds = []float64{0, 100, 200, 300, 500, 1000, 1500}

// Aggregate computes summary statistics over pois. tagKey selects the raw tag
// counted in CountsByTag. Nothing is cached between calls.
func Aggregate(pois []domain.EnrichedPOI, tagKey string) domain.Statistics {
	stats := domain.Statistics{
		TotalCount:           len(pois),
		CountsByCategory:     make(map[string]int),
		CountsByTag:          make(map[string]int),
		CategoryOrder:        []domain.LabelCount{},
		PercentageByCategory: make(map[string]float64),
		DistanceHistogram:    newHistogram(),
	}

	var sum float64
	order := make(map[string]int) // label -> index in CategoryOrder
	for _, p := range pois {
		sum += p.Distance

		label := p.CategoryOrOther()
		stats.CountsByCategory[label]++
		if i, ok := order[label]; ok {
			stats.CategoryOrder[i].Count++
		} else {
			order[label] = len(stats.CategoryOrder)
			stats.CategoryOrder = append(stats.CategoryOrder, domain.LabelCount{Label: label, Count: 1})
		}

		if tag := p.Tag(tagKey); tag != "" {
			stats.CountsByTag[tag]++
		}

		for i := range stats.DistanceHistogram {
			if stats.DistanceHistogram[i].Contains(p.Distance) {
				stats.DistanceHistogram[i].Count++
				break
			}
		}
	}
	stats.UniqueTagCount = len(stats.CountsByTag)

	if stats.TotalCount == 0 {
		return stats
	}
	stats.AverageDistance = sum / float64(stats.TotalCount)

	// Strict comparison keeps the first-encountered label on ties.
	best := 0
	for _, lc := range stats.CategoryOrder {
		if lc.Count > best {
			best = lc.Count
			stats.TopCategory = lc.Label
		}
	}

	for label, n := range stats.CountsByCategory {
		stats.PercentageByCategory[label] = round2(float64(n) / float64(stats.TotalCount) * 100)
	}
	return stats
}

func newHistogram() []domain.HistogramBucket {
	buckets := make([]domain.HistogramBucket, len(DistanceBucketBounds))
	for i, lo := range DistanceBucketBounds {
		b := domain.HistogramBucket{Min: lo}
		if i+1 < len(DistanceBucketBounds) {
			hi := DistanceBucketBounds[i+1]
			b.Max = &hi
			b.Label = fmt.Sprintf("%.0f-%.0fm", lo, hi)
		} else {
			b.Label = fmt.Sprintf("%.0fm+", lo)
		}
		buckets[i] = b
	}
	return buckets
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
