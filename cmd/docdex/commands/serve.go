package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/halcyon-data/docdex/internal/metrics"
	"github.com/halcyon-data/docdex/internal/repository/queue"
	"github.com/halcyon-data/docdex/internal/repository/status"
	"github.com/halcyon-data/docdex/internal/transport/ops"
	healthuc "github.com/halcyon-data/docdex/internal/usecase/health"
	"github.com/halcyon-data/docdex/internal/usecase/ingest"
	"github.com/halcyon-data/docdex/internal/version"
)

// NewServeCmd constructs the `docdex serve` command, which runs the
// ingestion workers and the operational HTTP server.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion workers and the ops HTTP server",
		Long: `Start the docdex ingestion service.

Workers block on the job queue and run the document pipeline, one
document per run. The HTTP server exposes /healthz, /readyz, /metrics,
/runs/{id}, and /usage for operations.

Examples:
  docdex serve
  ENV=prod docdex serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			log.Info("starting docdex",
				zap.String("version", version.Version),
				zap.String("commit", version.Commit),
				zap.Int("http_port", cfg.HTTP.Port),
				zap.Strings("db_addrs", cfg.Database.Addrs),
				zap.Int("workers", cfg.Ingest.Workers),
			)

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			log.Info("connected to database")

			blobStore, err := openBlob(ctx, cfg)
			if err != nil {
				return err
			}

			metrics.RegisterEmbeddingMetrics()
			metrics.RegisterPipelineMetrics()

			runs := status.New(store, 0)
			pipeline, baseEmbedder, budget, err := buildPipeline(ctx, cfg, store, blobStore, runs, log)
			if err != nil {
				return err
			}

			jobs := queue.New(store, cfg.Ingest.QueueKey)
			worker := ingest.NewWorker(jobs, runs, blobStore, pipeline, log)

			healthSvc := healthuc.New(store, baseEmbedder, blobStore)
			usageSvc := newUsageService(cfg, budget)
			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
				Handler:      ops.NewServer(healthSvc, runs, usageSvc, log).Handler(),
				ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
				WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			for i := 0; i < cfg.Ingest.Workers; i++ {
				g.Go(func() error { return worker.Run(gctx) })
			}
			g.Go(func() error {
				log.Info("ops server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("ops server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			log.Info("docdex stopped")
			return err
		},
	}
}
