package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devblac/dex-catalog/internal/storage"
)

var (
	stateLimit int
	stateRun   string
)

func init() {
	stateCmd.Flags().IntVar(&stateLimit, "limit", 10, "Number of runs to show")
	stateCmd.Flags().StringVar(&stateRun, "run", "", "Show adapter outcomes of one run")
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show recent runs from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer tw.Flush()

		if stateRun != "" {
			runs, err := store.AdapterRuns(ctx, stateRun)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "ADAPTER\tSTATUS\tATTEMPTS\tRECORDS\tERROR")
			for _, a := range runs {
				detail := a.Error
				if a.ErrorKind != "" {
					detail = a.ErrorKind + ": " + a.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", a.AdapterID, a.Status, a.Attempts, a.Records, detail)
			}
			return nil
		}

		runs, err := store.LatestRuns(ctx, stateLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(tw, "no runs recorded")
			return nil
		}
		fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tRECORDS\tCONFLICTS\tWRITTEN\tREMOVED\tFAILED")
		for _, r := range runs {
			status := r.Status
			if r.DryRun {
				status += " (dry)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%d\t%d\n",
				r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), status,
				r.Normalized, r.Fetched, r.Conflicts, r.Written, r.Removed, r.Failed)
		}
		return nil
	},
}
