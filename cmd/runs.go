package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/pipeline"
	"github.com/sells-group/etp-tracker/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect run history",
	Long:  "Commands for listing and viewing recorded pipeline runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		failed, _ := cmd.Flags().GetBool("failed")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{FailedOnly: failed, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs last --

var runsLastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the most recent run summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.LastRun(ctx)
		if err != nil {
			return eris.Wrap(err, "runs last")
		}
		if run == nil {
			// No history database entries; use the output root's summary file.
			if run, err = pipeline.LoadSummary(cfg.Pipeline.OutputRoot); err != nil {
				return err
			}
		}
		if run == nil {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		return printJSON(os.Stdout, run)
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		return printJSON(os.Stdout, run)
	},
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatRunsList(out io.Writer, runs []model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTARTED\tTRUSTS\tNEW\tSKIPPED\tERRORS\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t---\t-------\t------\t--------")

	for _, r := range runs {
		trusts := fmt.Sprintf("%d", r.TrustsProcessed)
		if r.TrustsFailed > 0 {
			trusts += fmt.Sprintf(" (%d failed)", r.TrustsFailed)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%gs\n",
			truncateID(r.RunID),
			r.StartedAt.Format("2006-01-02 15:04"),
			trusts,
			r.NewFilings,
			r.SkippedFilings,
			r.Errors+r.WorkerErrors,
			r.DurationSeconds,
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsListCmd.Flags().Bool("failed", false, "only runs with filing, registrant, or worker errors")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsLastCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
