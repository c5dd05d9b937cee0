package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTransitions(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		allowed  bool
	}{
		{JobPending, JobProcessing, true},
		{JobRetry, JobProcessing, true},
		{JobProcessing, JobDone, true},
		{JobProcessing, JobFailed, true},
		{JobProcessing, JobRetry, true},
		{JobProcessing, JobProcessing, true},
		{JobPending, JobDone, false},
		{JobDone, JobProcessing, false},
		{JobFailed, JobProcessing, false},
		{JobFailed, JobRetry, false},
		{JobRetry, JobDone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
			err := ValidateTransition(tt.from, tt.to)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestJobStatusPredicates(t *testing.T) {
	assert.True(t, JobPending.Claimable())
	assert.True(t, JobRetry.Claimable())
	assert.False(t, JobProcessing.Claimable())
	assert.False(t, JobDone.Claimable())

	assert.True(t, JobDone.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.False(t, JobRetry.Terminal())
}

func TestJobClaimableAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-15 * time.Minute)
	stale := now.Add(-time.Hour)
	fresh := now.Add(-time.Minute)

	tests := []struct {
		name   string
		status JobStatus
		locked *time.Time
		want   bool
	}{
		{"pending unlocked", JobPending, nil, true},
		{"retry stale lock", JobRetry, &stale, true},
		{"retry fresh lock", JobRetry, &fresh, false},
		{"processing stale lock", JobProcessing, &stale, true},
		{"processing fresh lock", JobProcessing, &fresh, false},
		{"processing without lock", JobProcessing, nil, false},
		{"done", JobDone, nil, false},
		{"failed stale", JobFailed, &stale, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := IngestionJob{Status: tt.status, LockedAt: tt.locked}
			assert.Equal(t, tt.want, j.ClaimableAt(cutoff))
		})
	}
}

func TestMaterialMetadataRoundTrip(t *testing.T) {
	meta := MaterialMetadata{
		Warnings:   []string{"a", "b"},
		Extraction: &ExtractionStats{Pages: 3, Characters: 120, Segments: 2},
	}
	v, err := meta.Value()
	require.NoError(t, err)

	var got MaterialMetadata
	require.NoError(t, got.Scan([]byte(v.(string))))
	assert.Equal(t, meta, got)

	require.NoError(t, got.Scan(nil))
	assert.Empty(t, got.Warnings)
	assert.Error(t, got.Scan(42))
}

func TestAddWarningsDedupes(t *testing.T) {
	var meta MaterialMetadata
	meta.AddWarnings("ocr limited", "", "ocr limited")
	meta.AddWarnings("vision unavailable", "ocr limited")
	assert.Equal(t, []string{"ocr limited", "vision unavailable"}, meta.Warnings)
}
