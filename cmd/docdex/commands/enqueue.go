package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyon-data/docdex/internal/domain/chunk"
	"github.com/halcyon-data/docdex/internal/domain/job"
	"github.com/halcyon-data/docdex/internal/metrics"
	"github.com/halcyon-data/docdex/internal/repository/queue"
	"github.com/halcyon-data/docdex/internal/repository/status"
	"github.com/halcyon-data/docdex/internal/usecase/ingest"
)

// NewEnqueueCmd constructs the `docdex enqueue` command, which uploads local
// PDF files and queues them for the worker fleet.
func NewEnqueueCmd() *cobra.Command {
	var index string
	var strategy string
	var maxTokens int
	var overlap int
	var title string
	var published string
	var docType string

	cmd := &cobra.Command{
		Use:   "enqueue [files...]",
		Short: "Upload PDF files and queue them for ingestion",
		Long: `Upload local PDF files to blob storage and push one ingestion job
per file onto the queue. A running 'docdex serve' picks the jobs up;
the queue itself carries blob paths, never file bytes.

Each enqueued file prints its run ID; progress is available at
/runs/{id} on the serve instance.

Examples:
  docdex enqueue --index reports q3-2024.pdf
  docdex enqueue --index reports --strategy custom --max-tokens 400 *.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			blobStore, err := openBlob(ctx, cfg)
			if err != nil {
				return err
			}

			runs := status.New(store, 0)
			jobs := queue.New(store, cfg.Ingest.QueueKey)

			for _, path := range args {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				fileName := filepath.Base(path)
				if err := ingest.ValidatePDF(fileName, content); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				runID := uuid.NewString()
				blobPath := ingest.SourcePath(index, runID, fileName)
				if err := blobStore.Upload(ctx, blobPath, content, "application/pdf"); err != nil {
					return fmt.Errorf("upload %s: %w", path, err)
				}

				if err := runs.Create(ctx, runID, index, fileName); err != nil {
					log.Warn("run status create failed", zap.String("run_id", runID), zap.Error(err))
				}

				j := job.Job{
					RunID:         runID,
					Index:         index,
					FileName:      fileName,
					BlobPath:      blobPath,
					Strategy:      chunk.Strategy(strategy),
					MaxTokens:     maxTokens,
					Overlap:       overlap,
					Title:         title,
					PublishedDate: published,
					DocumentType:  docType,
				}
				if err := jobs.Enqueue(ctx, j); err != nil {
					return fmt.Errorf("enqueue %s: %w", path, err)
				}
				metrics.QueueJobsTotal.WithLabelValues("enqueued").Inc()

				log.Info("job enqueued",
					zap.String("run_id", runID),
					zap.String("index", index),
					zap.String("file", fileName),
					zap.String("blob_path", blobPath),
				)
				fmt.Printf("%s\t%s\n", runID, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&index, "index", "i", "", "Target index name (required)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Chunking strategy: document_layout (default) or custom")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Token window size for the custom strategy")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "Token overlap for the custom strategy")
	cmd.Flags().StringVar(&title, "title", "", "Document title (default: file name)")
	cmd.Flags().StringVar(&published, "published-date", "", "Publication date, e.g. 2024-05-10")
	cmd.Flags().StringVar(&docType, "doc-type", "", "Document type label, e.g. quarterly_report")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}
