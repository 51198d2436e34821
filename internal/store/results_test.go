package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/waitboard/internal/model"
)

func record(id string, patients int, breakdown bool, at time.Time) model.WaitTimeRecord {
	return model.WaitTimeRecord{
		FacilityID:        id,
		WaitMinutes:       patients * 10,
		PatientsInLine:    patients,
		HasQueueBreakdown: breakdown,
		Status:            model.StatusOpen,
		Provenance:        model.ProvenanceObserved,
		UpdatedAt:         at,
	}
}

func TestResultStore_PutAndGet(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	st := NewResultStore(WithNow(func() time.Time { return now }))

	st.Put(record("uc-1", 3, true, now))

	got, ok := st.Get("uc-1")
	require.True(t, ok)
	assert.Equal(t, 3, got.PatientsInLine)
	assert.False(t, got.Stale)

	_, ok = st.Get("uc-missing")
	assert.False(t, ok)
}

func TestResultStore_StaleFlag(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	current := now
	st := NewResultStore(WithNow(func() time.Time { return current }))

	st.Put(record("uc-1", 3, true, now))

	current = now.Add(14 * time.Minute)
	got, _ := st.Get("uc-1")
	assert.False(t, got.Stale)

	current = now.Add(16 * time.Minute)
	got, _ = st.Get("uc-1")
	assert.True(t, got.Stale)
}

func TestResultStore_StaleAfterOverride(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	current := now.Add(2 * time.Minute)
	st := NewResultStore(
		WithStaleAfter(time.Minute),
		WithNow(func() time.Time { return current }),
	)

	st.Put(record("uc-1", 3, true, now))
	got, _ := st.Get("uc-1")
	assert.True(t, got.Stale)
}

func TestResultStore_SnapshotSorted(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	st := NewResultStore(WithNow(func() time.Time { return now }))

	st.PutAll([]model.WaitTimeRecord{
		record("uc-z", 1, false, now),
		record("uc-a", 2, false, now),
		record("uc-m", 3, false, now),
	})

	snap := st.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "uc-a", snap[0].FacilityID)
	assert.Equal(t, "uc-m", snap[1].FacilityID)
	assert.Equal(t, "uc-z", snap[2].FacilityID)
}

func TestResultStore_SnapshotIsCopy(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	st := NewResultStore(WithNow(func() time.Time { return now }))
	st.Put(record("uc-1", 3, false, now))

	snap := st.Snapshot()
	snap[0].PatientsInLine = 99

	got, _ := st.Get("uc-1")
	assert.Equal(t, 3, got.PatientsInLine)
}

func TestResultStore_ApplyScrape_FillsEmptyQueue(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	st := NewResultStore(WithNow(func() time.Time { return now }))

	st.Put(record("uc-1", 0, false, now))

	scraped := record("uc-1", 4, false, now.Add(time.Second))
	scraped.Provenance = model.ProvenanceScraped
	require.True(t, st.ApplyScrape(scraped))

	got, _ := st.Get("uc-1")
	assert.Equal(t, 4, got.PatientsInLine)
	assert.Equal(t, model.ProvenanceScraped, got.Provenance)
}

func TestResultStore_ApplyScrape_NeverOverridesBreakdown(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	st := NewResultStore(WithNow(func() time.Time { return now }))

	// Zero patients but the count came from a real sub-queue breakdown.
	st.Put(record("uc-1", 0, true, now))

	scraped := record("uc-1", 7, false, now.Add(time.Second))
	scraped.Provenance = model.ProvenanceScraped
	assert.False(t, st.ApplyScrape(scraped))

	got, _ := st.Get("uc-1")
	assert.Equal(t, 0, got.PatientsInLine)
	assert.Equal(t, model.ProvenanceObserved, got.Provenance)
}

func TestResultStore_ApplyScrape_NeverOverridesNonZeroCount(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	st := NewResultStore(WithNow(func() time.Time { return now }))

	st.Put(record("uc-1", 5, false, now))

	scraped := record("uc-1", 2, false, now.Add(time.Second))
	assert.False(t, st.ApplyScrape(scraped))

	got, _ := st.Get("uc-1")
	assert.Equal(t, 5, got.PatientsInLine)
}

func TestResultStore_ApplyScrape_NoExistingRecord(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	st := NewResultStore(WithNow(func() time.Time { return now }))

	scraped := record("uc-1", 4, false, now)
	scraped.Provenance = model.ProvenanceScraped
	require.True(t, st.ApplyScrape(scraped))

	got, ok := st.Get("uc-1")
	require.True(t, ok)
	assert.Equal(t, 4, got.PatientsInLine)
}
