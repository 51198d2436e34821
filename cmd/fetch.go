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

	"github.com/carelane/waitboard/internal/model"
)

var fetchJSON bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one fetch cycle over the facility catalog and print results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.FetchAll(ctx)
		if err != nil {
			return err
		}
		env.Orchestrator.WaitScrapes()

		snapshot := env.Results.Snapshot()
		if fetchJSON {
			out := struct {
				Cycle   any                    `json:"cycle"`
				Records []model.WaitTimeRecord `json:"records"`
			}{Cycle: result, Records: snapshot}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(out), "encode results")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FACILITY\tSTATUS\tWAIT\tIN LINE\tSOURCE")
		for _, rec := range snapshot {
			fmt.Fprintf(w, "%s\t%s\t%dm\t%d\t%s\n",
				rec.FacilityID, rec.Status, rec.WaitMinutes, rec.PatientsInLine, rec.Provenance)
		}
		if err := w.Flush(); err != nil {
			return eris.Wrap(err, "flush output")
		}
		fmt.Printf("\ncycle %s: %d/%d fetched in %s\n",
			result.CycleID, result.Succeeded, result.Total, result.Elapsed.Round(time.Millisecond))
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(fetchCmd)
}
