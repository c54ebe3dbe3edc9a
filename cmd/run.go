package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/ingest"
	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/ocr"
	"github.com/sells-group/etp-tracker/internal/pipeline"
	"github.com/sells-group/etp-tracker/internal/registry"
)

var (
	runSince   string
	runUntil   string
	runForce   bool
	runWorkers int
	runCIKs    []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all four stages for the active registrants",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runSince != "" {
			cfg.Pipeline.Since = runSince
		}
		if runUntil != "" {
			cfg.Pipeline.Until = runUntil
		}
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		reg, err := registry.Load(cfg.Registry.Path)
		if err != nil {
			return eris.Wrap(err, "load registry")
		}
		registrants, err := selectRegistrants(reg, runCIKs)
		if err != nil {
			return err
		}

		window, err := runWindow(cfg.Pipeline.Since, cfg.Pipeline.Until)
		if err != nil {
			return err
		}

		extractor, err := ocr.NewExtractor(cfg.OCR)
		if err != nil {
			return eris.Wrap(err, "init ocr")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deps := pipeline.Deps{
			Clients:  clientFactory(cfg.Edgar, cfg.Pipeline),
			OCR:      extractor,
			Recorder: st,
			Metrics:  pipeline.NewMetrics(),
		}
		sink, err := initSink(ctx)
		if err != nil {
			zap.L().Warn("publish sink unavailable, continuing without it", zap.Error(err))
		} else if sink != nil {
			defer sink.Close()
			deps.Publisher = sink.Sink
		}

		p, err := pipeline.New(cfg, deps)
		if err != nil {
			return err
		}

		summary, err := p.Run(ctx, pipeline.Options{
			Registrants:    registrants,
			Window:         window,
			ForceReprocess: runForce,
			Workers:        runWorkers,
		})
		if summary != nil {
			fmt.Fprintln(os.Stdout, summary.Line())
		}
		return err
	},
}

// selectRegistrants returns the active registrants, or, when ciks is set,
// exactly those registry entries regardless of their active flag.
func selectRegistrants(reg *registry.Registry, ciks []string) ([]model.Registrant, error) {
	if len(ciks) == 0 {
		active := reg.Active()
		if len(active) == 0 {
			return nil, eris.New("registry has no active trusts")
		}
		return active, nil
	}
	out := make([]model.Registrant, 0, len(ciks))
	for _, cik := range ciks {
		norm, err := model.NormalizeCIK(cik)
		if err != nil {
			return nil, err
		}
		r, ok := reg.Get(norm)
		if !ok {
			return nil, eris.Errorf("cik %s is not in the registry", norm)
		}
		out = append(out, r)
	}
	return out, nil
}

func runWindow(since, until string) (ingest.Window, error) {
	s, err := model.ParseDate(since)
	if err != nil {
		return ingest.Window{}, eris.Wrap(err, "since")
	}
	u, err := model.ParseDate(until)
	if err != nil {
		return ingest.Window{}, eris.Wrap(err, "until")
	}
	return ingest.Window{Since: s, Until: u}, nil
}

func init() {
	runCmd.Flags().StringVar(&runSince, "since", "", "only filings on or after this date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runUntil, "until", "", "only filings on or before this date (YYYY-MM-DD)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "clear processing ledgers and reprocess every filing")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "extraction workers (default from config, or derived from the rate limit)")
	runCmd.Flags().StringSliceVar(&runCIKs, "cik", nil, "restrict the run to these registry CIKs")
	rootCmd.AddCommand(runCmd)
}
