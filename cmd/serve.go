package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carelane/waitboard/internal/orchestrator"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve wait times over HTTP with periodic background refresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Periodic background refresh
		go refreshLoop(ctx, env, time.Duration(cfg.Fetch.RefreshIntervalSecs)*time.Second)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newMux(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background()) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// refreshLoop runs a fetch cycle immediately and then on every tick until
// the context is canceled.
func refreshLoop(ctx context.Context, env *engineEnv, interval time.Duration) {
	if interval <= 0 {
		interval = 300 * time.Second
	}

	runCycle := func() {
		if _, err := env.Orchestrator.FetchAll(ctx); err != nil {
			zap.L().Error("background fetch cycle failed", zap.Error(err))
		}
	}

	runCycle()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCycle()
		}
	}
}

// newMux builds the HTTP API routes.
func newMux(env *engineEnv) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"facilities": env.Catalog.Len(),
			"cached":     env.Results.Len(),
			"endpoints":  env.Orchestrator.BreakerStates(),
		})
	})

	mux.HandleFunc("GET /waits", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, env.Results.Snapshot())
	})

	mux.HandleFunc("GET /waits/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, ok := env.Catalog.Get(id); !ok {
			writeError(w, http.StatusNotFound, "unknown facility")
			return
		}
		rec, ok := env.Orchestrator.BestRecord(id)
		if !ok {
			writeError(w, http.StatusNotFound, "no data available")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	mux.HandleFunc("POST /waits/{id}/refresh", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		rec, err := env.Orchestrator.FetchOne(r.Context(), id)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, rec)
		case errors.Is(err, orchestrator.ErrUnknownFacility):
			writeError(w, http.StatusNotFound, "unknown facility")
		case errors.Is(err, orchestrator.ErrRefreshInFlight):
			writeError(w, http.StatusConflict, "refresh already in flight")
		default:
			zap.L().Error("refresh failed", zap.String("facility_id", id), zap.Error(err))
			writeError(w, http.StatusBadGateway, "fetch failed")
		}
	})

	mux.HandleFunc("GET /inflight", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"inflight": env.Orchestrator.InFlight(),
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
