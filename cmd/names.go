package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/namehistory"
	"github.com/sells-group/etp-tracker/internal/tables"
)

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "Look up fund name history across all trusts",
}

var namesSeriesCmd = &cobra.Command{
	Use:   "series <series-id>",
	Short: "Show every name a series has been registered under",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		entries, err := loadNameHistory(cfg.Pipeline.OutputRoot)
		if err != nil {
			return err
		}
		rows := namehistory.ForSeries(entries, args[0])
		if len(rows) == 0 {
			fmt.Fprintf(os.Stderr, "No names recorded for series %s.\n", args[0])
			return nil
		}
		formatNameHistory(os.Stdout, rows)
		return nil
	},
}

var namesFindCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find series whose current or former name contains the query",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		entries, err := loadNameHistory(cfg.Pipeline.OutputRoot)
		if err != nil {
			return err
		}
		matches := namehistory.FindByName(entries, args[0])
		if len(matches) == 0 {
			fmt.Fprintf(os.Stderr, "No series match %q.\n", args[0])
			return nil
		}
		return printJSON(os.Stdout, matches)
	},
}

// loadNameHistory concatenates the name history tables of every trust
// folder under root.
func loadNameHistory(root string) ([]model.NameHistoryEntry, error) {
	dirs, err := tables.Folders(root)
	if err != nil {
		return nil, err
	}
	var all []model.NameHistoryEntry
	for _, dir := range dirs {
		rows, err := tables.ReadNameHistory(dir)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

func formatNameHistory(out io.Writer, rows []model.NameHistoryEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SERIES\tNAME\tFIRST SEEN\tLAST SEEN\tCURRENT\tFORM")
	for _, r := range rows {
		current := ""
		if r.Current {
			current = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.SeriesID, r.Name, model.DateString(r.FirstSeen), model.DateString(r.LastSeen), current, r.SourceForm)
	}
	_ = w.Flush()
}

func init() {
	namesCmd.AddCommand(namesSeriesCmd)
	namesCmd.AddCommand(namesFindCmd)
	rootCmd.AddCommand(namesCmd)
}
