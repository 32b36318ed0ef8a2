package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"autogippity/pkg/eventlog"
	"autogippity/pkg/persistence"
)

func historyCmd(global *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List previous runs, or show one run in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			store, err := persistence.Open(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				transitions, err := store.Transitions(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Run:         %s\n", run.ID)
				fmt.Fprintf(out, "Description: %s\n", run.Description)
				fmt.Fprintf(out, "Model:       %s\n", run.Model)
				fmt.Fprintf(out, "Status:      %s (%s)\n", run.Status, run.FinalState)
				if run.Error != "" {
					fmt.Fprintf(out, "Error:       %s\n", run.Error)
				}
				if s := run.FactSheet.ProjectScope; s != nil {
					fmt.Fprintf(out, "Scope:       crud=%t login=%t external=%t\n",
						s.IsCRUDRequired, s.IsUserLoginAndLogout, s.IsExternalURLsRequired)
				}
				for _, u := range run.FactSheet.ExternalURLs {
					fmt.Fprintf(out, "URL:         %s\n", u)
				}
				for _, t := range transitions {
					fmt.Fprintf(out, "  %s  %s → %s\n", t.Timestamp.Format(time.RFC3339), t.FromState, t.ToState)
				}
				events, err := eventlog.ReadRun(cfg.Paths.EventLogDir, run.ID)
				if err != nil {
					return err
				}
				for _, ev := range events {
					fmt.Fprintf(out, "  %s  [%s] %s: %s\n", ev.Timestamp.Format(time.RFC3339), ev.Kind, ev.Position, ev.Statement)
				}
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSTATE\tDURATION\tDESCRIPTION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID[:8], r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, r.FinalState,
					r.Duration().Round(time.Millisecond), truncate(r.Description, 50))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list (0 for all)")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
