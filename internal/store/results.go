package store

import (
	"sort"
	"sync"
	"time"

	"github.com/carelane/waitboard/internal/model"
)

// DefaultStaleAfter is how old a record may be before reads mark it stale.
const DefaultStaleAfter = 15 * time.Minute

// ResultStore holds the most recent wait-time record per facility. Writes
// replace whole records; partial updates go through ApplyScrape so a
// heuristic count can never clobber a structured queue breakdown.
type ResultStore struct {
	mu         sync.RWMutex
	records    map[string]model.WaitTimeRecord
	staleAfter time.Duration
	nowFunc    func() time.Time
}

// ResultStoreOption configures a ResultStore.
type ResultStoreOption func(*ResultStore)

// WithStaleAfter overrides the staleness threshold applied on reads.
func WithStaleAfter(d time.Duration) ResultStoreOption {
	return func(s *ResultStore) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithNow injects a clock for tests.
func WithNow(now func() time.Time) ResultStoreOption {
	return func(s *ResultStore) { s.nowFunc = now }
}

// NewResultStore creates an empty in-memory result store.
func NewResultStore(opts ...ResultStoreOption) *ResultStore {
	s := &ResultStore{
		records:    make(map[string]model.WaitTimeRecord),
		staleAfter: DefaultStaleAfter,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put replaces the stored record for its facility.
func (s *ResultStore) Put(rec model.WaitTimeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.FacilityID] = rec
}

// PutAll replaces records for every facility in the slice under a single
// lock acquisition, so a fetch cycle lands atomically with respect to
// concurrent Snapshot calls.
func (s *ResultStore) PutAll(recs []model.WaitTimeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.records[rec.FacilityID] = rec
	}
}

// Get returns the stored record for a facility with its Stale flag computed
// against the store clock. The second return is false when nothing has been
// stored for the id.
func (s *ResultStore) Get(facilityID string) (model.WaitTimeRecord, bool) {
	s.mu.RLock()
	rec, ok := s.records[facilityID]
	s.mu.RUnlock()
	if !ok {
		return model.WaitTimeRecord{}, false
	}
	rec.Stale = s.isStale(rec)
	return rec, true
}

// Snapshot returns a copy of every stored record sorted by facility id,
// with Stale flags computed.
func (s *ResultStore) Snapshot() []model.WaitTimeRecord {
	s.mu.RLock()
	out := make([]model.WaitTimeRecord, 0, len(s.records))
	for _, rec := range s.records {
		rec.Stale = s.isStale(rec)
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FacilityID < out[j].FacilityID })
	return out
}

// ApplyScrape merges a secondary scrape result into the stored record for
// the same facility. The scrape only lands when the stored record still has
// no sub-queue breakdown and reports zero patients; anything else means a
// structured count arrived in the meantime and wins.
func (s *ResultStore) ApplyScrape(scraped model.WaitTimeRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[scraped.FacilityID]
	if !ok {
		s.records[scraped.FacilityID] = scraped
		return true
	}
	if current.HasQueueBreakdown || current.PatientsInLine > 0 {
		return false
	}
	s.records[scraped.FacilityID] = scraped
	return true
}

// Len reports how many facilities have a stored record.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *ResultStore) isStale(rec model.WaitTimeRecord) bool {
	return s.nowFunc().Sub(rec.UpdatedAt) > s.staleAfter
}
