package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/pipeline"
	"github.com/sells-group/etp-tracker/internal/tables"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Backfill the reporting database from existing output folders",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("publish"); err != nil {
			return err
		}
		sink, err := initSink(ctx)
		if err != nil {
			return err
		}
		defer sink.Close()

		n, err := publishFolders(ctx, cfg.Pipeline.OutputRoot, sink.Sink)
		fmt.Fprintf(os.Stdout, "Published %d trusts\n", n)
		return err
	},
}

// publishFolders pushes every trust folder's status and name history to p.
// It keeps going after a failure and returns the first error.
func publishFolders(ctx context.Context, root string, p pipeline.Publisher) (int, error) {
	dirs, err := tables.Folders(root)
	if err != nil {
		return 0, err
	}
	var (
		published int
		firstErr  error
	)
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		statuses, err := tables.ReadStatus(dir)
		if err != nil {
			return published, err
		}
		names, err := tables.ReadNameHistory(dir)
		if err != nil {
			return published, err
		}
		trust := trustOf(dir, statuses)
		if err := p.Publish(ctx, trust, statuses, names); err != nil {
			zap.L().Error("publish failed", zap.String("trust", trust), zap.Error(err))
			if firstErr == nil {
				firstErr = eris.Wrapf(err, "publish %s", trust)
			}
			continue
		}
		published++
	}
	return published, firstErr
}

// trustOf recovers the display name of a trust folder. Folders without a
// status table fall back to the folder name.
func trustOf(dir string, statuses []model.FundStatus) string {
	for _, s := range statuses {
		if s.Trust != "" {
			return s.Trust
		}
	}
	return filepath.Base(dir)
}

func init() {
	rootCmd.AddCommand(publishCmd)
}
