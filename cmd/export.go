package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the combined fund status and name history workbook",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := cfg.Validate("local"); err != nil {
			return err
		}
		res, err := export.Workbook(cfg.Pipeline.OutputRoot)
		if err != nil {
			return err
		}
		zap.L().Info("workbook written",
			zap.String("path", res.Path),
			zap.Int("trusts", res.Trusts),
			zap.Int("funds", res.Funds),
			zap.Int("names", res.Names),
		)
		fmt.Fprintln(os.Stdout, res.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
