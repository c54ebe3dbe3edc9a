package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/monitoring"
	"github.com/sells-group/etp-tracker/internal/pipeline"
	"github.com/sells-group/etp-tracker/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run history, trust tables, and metrics over HTTP",
	Long:  "Starts the read-only ops API and a background checker that alerts on failing or missed runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Seed the gauges from the last recorded run.
		metrics := pipeline.NewMetrics()
		if last, err := st.LastRun(ctx); err != nil {
			zap.L().Warn("load last run for metrics", zap.Error(err))
		} else if last != nil {
			metrics.Observe(last)
		}

		checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
		checkerDone := make(chan struct{})
		go func() {
			defer close(checkerDone)
			checker.Run(ctx)
		}()
		// The checker reads the store, so it must stop before the deferred Close.
		defer func() {
			stop()
			<-checkerDone
		}()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.New(cfg.Pipeline.OutputRoot, st, metrics.Registry()).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
