package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/carelane/waitboard/internal/store"
)

var (
	historyFacility  string
	historySinceMins int
	historyLimit     int
	historyJSON      bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List persisted wait-time observations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		hist, err := store.OpenHistory(ctx, cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			return err
		}
		if hist == nil {
			return eris.New("history is disabled in config")
		}
		defer hist.Close() //nolint:errcheck

		if err := hist.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate history")
		}

		filter := store.HistoryFilter{
			FacilityID: historyFacility,
			Limit:      historyLimit,
		}
		if historySinceMins > 0 {
			filter.Since = time.Now().Add(-time.Duration(historySinceMins) * time.Minute)
		}

		obs, err := hist.ListObservations(ctx, filter)
		if err != nil {
			return err
		}

		if historyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(obs), "encode observations")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OBSERVED\tFACILITY\tSTATUS\tWAIT\tIN LINE\tSOURCE")
		for _, o := range obs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%dm\t%d\t%s\n",
				o.ObservedAt.Format(time.RFC3339), o.FacilityID, o.Status,
				o.WaitMinutes, o.PatientsInLine, o.Provenance)
		}
		return eris.Wrap(w.Flush(), "flush output")
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyFacility, "facility", "", "filter by facility id")
	historyCmd.Flags().IntVar(&historySinceMins, "since-mins", 0, "only observations newer than this many minutes")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum rows to return")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(historyCmd)
}
