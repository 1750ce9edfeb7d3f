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
	"github.com/halcyon-data/docdex/internal/repository/status"
	"github.com/halcyon-data/docdex/internal/usecase/ingest"
)

// NewIngestCmd constructs the `docdex ingest` command, which runs local PDF
// files through the full pipeline without going through the job queue.
func NewIngestCmd() *cobra.Command {
	var index string
	var strategy string
	var maxTokens int
	var overlap int
	var title string
	var published string
	var docType string

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest local PDF files through the full pipeline",
		Long: `Run the ingestion pipeline on local PDF files, one run per file.

Each source document is archived to blob storage, analyzed for layout,
chunked, embedded, and indexed together with its figures. Run progress
is persisted; a running 'docdex serve' exposes it at /runs/{id}.

Metadata flags apply to every file in the invocation. An omitted title
falls back to the file name; omitted dates and types are left unset.

Examples:
  docdex ingest --index reports q3-2024.pdf
  docdex ingest --index reports --strategy custom --max-tokens 400 *.pdf
  docdex ingest --index reports --title "Q3 Report" --published-date 2024-05-10 q3.pdf`,
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
			pipeline, _, _, err := buildPipeline(ctx, cfg, store, blobStore, runs, log)
			if err != nil {
				return err
			}

			var failed int
			for _, path := range args {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}

				runID := uuid.NewString()
				fileName := filepath.Base(path)
				if err := runs.Create(ctx, runID, index, fileName); err != nil {
					log.Warn("run status create failed", zap.String("run_id", runID), zap.Error(err))
				}

				req := ingest.Request{
					RunID:         runID,
					Index:         index,
					FileName:      fileName,
					Content:       content,
					Strategy:      chunk.Strategy(strategy),
					TokenOptions:  chunk.TokenOptions{MaxTokens: maxTokens, Overlap: overlap},
					Title:         title,
					PublishedDate: published,
					DocumentType:  docType,
				}
				if err := pipeline.Run(ctx, req); err != nil {
					failed++
					log.Error("ingestion failed",
						zap.String("run_id", runID),
						zap.String("file", path),
						zap.Error(err),
					)
					if err := runs.MarkFailed(ctx, runID, err); err != nil {
						log.Warn("run status update failed", zap.String("run_id", runID), zap.Error(err))
					}
					continue
				}
				if err := runs.MarkCompleted(ctx, runID); err != nil {
					log.Warn("run status update failed", zap.String("run_id", runID), zap.Error(err))
				}

				fmt.Printf("%s\t%s\n", runID, path)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
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
