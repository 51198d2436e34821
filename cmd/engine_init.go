package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/carelane/waitboard/internal/catalog"
	"github.com/carelane/waitboard/internal/orchestrator"
	"github.com/carelane/waitboard/internal/provider"
	"github.com/carelane/waitboard/internal/resilience"
	"github.com/carelane/waitboard/internal/store"
)

// engineEnv bundles the wired collaborators the commands share.
type engineEnv struct {
	Catalog      *catalog.Catalog
	Orchestrator *orchestrator.Orchestrator
	Results      *store.ResultStore
	History      store.History
	Registry     *resilience.Registry
}

func (e *engineEnv) Close() {
	if e.History != nil {
		if err := e.History.Close(); err != nil {
			zap.L().Warn("close history", zap.Error(err))
		}
	}
}

// initEngine builds the fetch engine from configuration.
func initEngine(ctx context.Context) (*engineEnv, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	zap.L().Info("catalog loaded",
		zap.String("path", cfg.CatalogPath),
		zap.Int("facilities", cat.Len()),
	)

	registry := resilience.NewRegistry(resilience.RegistryConfig{
		FailureThreshold: cfg.Resilience.FailureThreshold,
		OpenDuration:     time.Duration(cfg.Resilience.OpenDurationSecs) * time.Second,
		MinCallInterval:  time.Duration(cfg.Resilience.MinCallInterval) * time.Second,
	})

	transport := provider.NewTransport(registry, provider.TransportConfig{
		RequestTimeout: time.Duration(cfg.Fetch.RequestTimeoutSecs) * time.Second,
		FetchBudget:    time.Duration(cfg.Fetch.FetchBudgetSecs) * time.Second,
		HostRate:       rate.Limit(cfg.Fetch.HostRate),
		HostBurst:      cfg.Fetch.HostBurst,
	})

	policy := provider.HostPolicy{
		APIHosts:     cfg.Hosts.APIHosts,
		WebsiteHosts: cfg.Hosts.WebsiteHosts,
	}

	results := store.NewResultStore(
		store.WithStaleAfter(time.Duration(cfg.Fetch.StaleAfterMins) * time.Minute),
	)

	history, err := store.OpenHistory(ctx, cfg.History.Driver, cfg.History.DSN)
	if err != nil {
		return nil, err
	}
	if history != nil {
		if err := history.Migrate(ctx); err != nil {
			_ = history.Close()
			return nil, eris.Wrap(err, "migrate history")
		}
	}

	orch := orchestrator.New(cat, transport, policy, results, history, registry, orchestrator.Config{
		BatchSize:    cfg.Fetch.BatchSize,
		BatchStagger: time.Duration(cfg.Fetch.BatchStaggerSecs) * time.Second,
	})

	return &engineEnv{
		Catalog:      cat,
		Orchestrator: orch,
		Results:      results,
		History:      history,
		Registry:     registry,
	}, nil
}
