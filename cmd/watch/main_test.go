package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/samirrijal/osmdash/internal/core/domain"
)

func TestHistogram(t *testing.T) {
	buckets := []domain.HistogramBucket{
		{Label: "0-100m", Count: 2},
		{Label: "100-200m"},
		{Label: "1500m+", Count: 1},
	}
	assert.Equal(t, "0-100m:2 1500m+:1", histogram(buckets))
	assert.Equal(t, "", histogram(nil))
}

func TestLogSnapshot(t *testing.T) {
	snap := &domain.Snapshot{SessionID: "s", Status: domain.StatusIdle, Error: "Request timed out"}
	assert.NoError(t, logSnapshot(context.Background(), snap))
}
