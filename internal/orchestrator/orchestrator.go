// Package orchestrator drives fetch cycles across the facility roster:
// batched fan-out, fallback chains, and single-facility refreshes.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/carelane/waitboard/internal/catalog"
	"github.com/carelane/waitboard/internal/model"
	"github.com/carelane/waitboard/internal/provider"
	"github.com/carelane/waitboard/internal/resilience"
	"github.com/carelane/waitboard/internal/store"
)

// ErrRefreshInFlight is returned by FetchOne when a refresh for the same
// facility has not finished yet.
var ErrRefreshInFlight = eris.New("orchestrator: refresh already in flight")

// ErrUnknownFacility is returned by FetchOne for ids not in the catalog.
var ErrUnknownFacility = eris.New("orchestrator: unknown facility")

// Config tunes cycle behavior.
type Config struct {
	BatchSize    int
	BatchStagger time.Duration
}

// DefaultConfig returns the default cycle tuning.
func DefaultConfig() Config {
	return Config{
		BatchSize:    10,
		BatchStagger: 2 * time.Second,
	}
}

// CycleResult summarizes one fetch cycle.
type CycleResult struct {
	CycleID   string        `json:"cycle_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Orchestrator owns the provider clients and fetch state for the roster.
type Orchestrator struct {
	catalog   *catalog.Catalog
	clients   map[provider.Kind]provider.Client
	synthetic *provider.SyntheticClient
	results   *store.ResultStore
	history   store.History
	registry  *resilience.Registry
	cfg       Config

	mu       sync.Mutex
	inflight map[string]struct{}

	scrapeWG sync.WaitGroup

	nowFunc func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// New wires an orchestrator from its collaborators. history may be nil to
// disable persistence.
func New(
	cat *catalog.Catalog,
	transport *provider.Transport,
	policy provider.HostPolicy,
	results *store.ResultStore,
	history store.History,
	registry *resilience.Registry,
	cfg Config,
) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.BatchStagger < 0 {
		cfg.BatchStagger = 0
	}

	synthetic := provider.NewSyntheticClient()
	clients := map[provider.Kind]provider.Client{
		provider.KindStructuredQueue:  provider.NewStructuredQueueClient(transport, policy),
		provider.KindSlotAvailability: provider.NewSlotAvailabilityClient(transport, policy),
		provider.KindHealthRecords:    provider.NewHealthRecordsClient(transport, policy),
		provider.KindHTMLScrape:       provider.NewScrapeClient(transport, policy),
		provider.KindSynthetic:        synthetic,
	}

	return &Orchestrator{
		catalog:   cat,
		clients:   clients,
		synthetic: synthetic,
		results:   results,
		history:   history,
		registry:  registry,
		cfg:       cfg,
		inflight:  make(map[string]struct{}),
		nowFunc:   time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FetchAll runs one full cycle over the roster. Facilities are fetched in
// batches; each batch fans out concurrently and its results land in the
// store as one atomic merge before the next batch starts. Individual
// facility failures are logged and counted, never aborting the cycle.
func (o *Orchestrator) FetchAll(ctx context.Context) (*CycleResult, error) {
	facilities := o.catalog.Facilities()
	if len(facilities) == 0 {
		return nil, eris.New("orchestrator: no facilities to fetch")
	}

	cycleID := uuid.New().String()
	start := o.nowFunc()
	log := zap.L().With(zap.String("cycle_id", cycleID))
	log.Info("fetch cycle starting",
		zap.Int("facilities", len(facilities)),
		zap.Int("batch_size", o.cfg.BatchSize),
	)

	result := &CycleResult{CycleID: cycleID, Total: len(facilities)}

	for i := 0; i < len(facilities); i += o.cfg.BatchSize {
		if i > 0 {
			if err := o.sleep(ctx, o.cfg.BatchStagger); err != nil {
				return result, eris.Wrap(err, "orchestrator: cycle interrupted")
			}
		}

		end := i + o.cfg.BatchSize
		if end > len(facilities) {
			end = len(facilities)
		}
		recs, scrapes := o.fetchBatch(ctx, facilities[i:end], log)

		// Batch-atomic merge: concurrent readers see the whole batch or
		// none of it.
		o.results.PutAll(recs)
		result.Succeeded += len(recs)

		if o.history != nil && len(recs) > 0 {
			if err := o.history.Append(ctx, cycleID, recs); err != nil {
				log.Warn("history append failed", zap.Error(err))
			}
		}

		// Secondary scrapes start only after the batch merge, so a scrape
		// result can never be overwritten by its own batch landing later.
		o.scrapeSecondary(ctx, scrapes)
	}

	result.Failed = result.Total - result.Succeeded
	result.Elapsed = o.nowFunc().Sub(start)
	log.Info("fetch cycle finished",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// fetchBatch fans one batch out concurrently and collects the records that
// succeeded, plus the facilities that qualify for a secondary scrape.
func (o *Orchestrator) fetchBatch(ctx context.Context, batch []model.Facility, log *zap.Logger) ([]model.WaitTimeRecord, []model.Facility) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(batch))

	var (
		mu      sync.Mutex
		recs    []model.WaitTimeRecord
		scrapes []model.Facility
	)
	for _, f := range batch {
		g.Go(func() error {
			rec, scrape, err := o.fetchFacility(gctx, f)
			if err != nil {
				log.Warn("facility fetch failed",
					zap.String("facility_id", f.ID),
					zap.Error(err),
				)
				return nil // individual failures never abort the batch
			}
			mu.Lock()
			recs = append(recs, *rec)
			if scrape {
				scrapes = append(scrapes, f)
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return recs, scrapes
}

// fetchFacility resolves the provider for a facility and runs the fallback
// chain: primary source, then scrape when a website is known, then nothing.
// The bool reports whether the record qualifies for a secondary scrape;
// the caller fires it after the record has been merged into the store.
func (o *Orchestrator) fetchFacility(ctx context.Context, f model.Facility) (*model.WaitTimeRecord, bool, error) {
	kind := provider.Route(f)
	client, ok := o.clients[kind]
	if !ok {
		return nil, false, eris.Errorf("orchestrator: no client for provider %s", kind)
	}

	rec, err := client.Fetch(ctx, f)
	if err == nil {
		return rec, o.scrapeCandidate(f, kind, rec), nil
	}

	// Primary failed. Fall back to scraping when the facility has a
	// website and the primary was not already the scraper.
	if kind != provider.KindHTMLScrape && f.Website != "" {
		zap.L().Debug("primary fetch failed, trying scrape fallback",
			zap.String("facility_id", f.ID),
			zap.String("provider", string(kind)),
			zap.Error(err),
		)
		scraped, scrapeErr := o.clients[provider.KindHTMLScrape].Fetch(ctx, f)
		if scrapeErr == nil {
			return scraped, false, nil
		}
		return nil, false, eris.Wrapf(err, "orchestrator: primary and scrape fallback failed for %s", f.ID)
	}

	return nil, false, eris.Wrapf(err, "orchestrator: fetch %s", f.ID)
}

// scrapeCandidate reports whether a successful primary record warrants a
// secondary scrape: a structured source claiming zero patients without a
// sub-queue breakdown. A zero from a real breakdown is trusted; a bare
// zero is often a placeholder, and the site sometimes knows better.
func (o *Orchestrator) scrapeCandidate(f model.Facility, kind provider.Kind, rec *model.WaitTimeRecord) bool {
	if kind == provider.KindHTMLScrape || kind == provider.KindSynthetic {
		return false
	}
	return f.Website != "" && rec.PatientsInLine == 0 && !rec.HasQueueBreakdown
}

// scrapeSecondary starts a background scrape per candidate facility. It
// must be called only after the candidates' primary records are in the
// store; ApplyScrape then decides whether the scrape result still applies.
func (o *Orchestrator) scrapeSecondary(ctx context.Context, facilities []model.Facility) {
	for _, f := range facilities {
		o.scrapeWG.Add(1)
		go func() {
			defer o.scrapeWG.Done()
			scraped, err := o.clients[provider.KindHTMLScrape].Fetch(ctx, f)
			if err != nil {
				zap.L().Debug("secondary scrape failed",
					zap.String("facility_id", f.ID),
					zap.Error(err),
				)
				return
			}
			if o.results.ApplyScrape(*scraped) {
				zap.L().Info("secondary scrape filled empty queue",
					zap.String("facility_id", f.ID),
					zap.Int("patients", scraped.PatientsInLine),
				)
			}
		}()
	}
}

// FetchOne refreshes a single facility on demand. Concurrent refreshes of
// the same facility are rejected with ErrRefreshInFlight; other facilities
// are unaffected.
func (o *Orchestrator) FetchOne(ctx context.Context, facilityID string) (*model.WaitTimeRecord, error) {
	f, ok := o.catalog.Get(facilityID)
	if !ok {
		return nil, eris.Wrapf(ErrUnknownFacility, "%s", facilityID)
	}

	o.mu.Lock()
	if _, busy := o.inflight[facilityID]; busy {
		o.mu.Unlock()
		return nil, eris.Wrapf(ErrRefreshInFlight, "%s", facilityID)
	}
	o.inflight[facilityID] = struct{}{}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inflight, facilityID)
		o.mu.Unlock()
	}()

	rec, scrape, err := o.fetchFacility(ctx, f)
	if err != nil {
		return nil, err
	}

	o.results.Put(*rec)
	if scrape {
		o.scrapeSecondary(ctx, []model.Facility{f})
	}
	if o.history != nil {
		refreshID := uuid.New().String()
		if hErr := o.history.Append(ctx, refreshID, []model.WaitTimeRecord{*rec}); hErr != nil {
			zap.L().Warn("history append failed",
				zap.String("facility_id", facilityID),
				zap.Error(hErr),
			)
		}
	}
	return rec, nil
}

// InFlight returns the ids of facilities with a refresh currently running,
// sorted for stable output.
func (o *Orchestrator) InFlight() []string {
	o.mu.Lock()
	ids := make([]string, 0, len(o.inflight))
	for id := range o.inflight {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// BestRecord returns the most useful record available for a facility right
// now. A fresh cached record always wins. After that: synthetic-only
// facilities get a fresh estimate, emergency departments with a configured
// average get a static estimate, and a stale cached record beats nothing
// at all (the Stale flag tells the caller).
func (o *Orchestrator) BestRecord(facilityID string) (model.WaitTimeRecord, bool) {
	cached, haveCached := o.results.Get(facilityID)
	if haveCached && !cached.Stale {
		return cached, true
	}

	f, ok := o.catalog.Get(facilityID)
	if !ok {
		return model.WaitTimeRecord{}, false
	}

	if f.SyntheticOnly {
		return o.synthetic.Estimate(f), true
	}
	if f.Category == model.CategoryEmergency && f.AvgWaitMinutes > 0 {
		return model.WaitTimeRecord{
			FacilityID:  f.ID,
			WaitMinutes: f.AvgWaitMinutes,
			Status:      model.StatusOpen,
			Provenance:  model.ProvenanceEstimated,
			UpdatedAt:   o.nowFunc(),
		}, true
	}
	if haveCached {
		return cached, true
	}
	return model.WaitTimeRecord{}, false
}

// BreakerStates exposes the per-endpoint circuit state for health output.
func (o *Orchestrator) BreakerStates() map[string]resilience.EndpointState {
	return o.registry.States()
}

// WaitScrapes blocks until outstanding secondary scrapes finish.
func (o *Orchestrator) WaitScrapes() {
	o.scrapeWG.Wait()
}
