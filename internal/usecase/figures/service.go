// Package figures extracts figure crops from an analyzed document and
// persists them to blob storage.
package figures

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/halcyon-data/docdex/internal/domain/assoc"
	"github.com/halcyon-data/docdex/internal/domain/layout"
	"github.com/halcyon-data/docdex/internal/metrics"
)

// fetchConcurrency bounds parallel crop fetches against the analyzer.
const fetchConcurrency = 4

// Service fetches figure crops and persists them.
type Service struct {
	analyzer    CropFetcher
	blob        Uploader
	concurrency int
	logger      *zap.Logger
}

// New creates a figure extraction service.
func New(analyzer CropFetcher, blob Uploader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		analyzer:    analyzer,
		blob:        blob,
		concurrency: fetchConcurrency,
		logger:      logger,
	}
}

// WithConcurrency overrides how many crop fetches run in parallel.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Extract fetches and persists every figure the analyzer detected.
// A failure on one figure skips that figure only; the returned slice
// keeps analyzer order for the figures that persisted.
func (s *Service) Extract(ctx context.Context, index, runID string, res layout.Result) []assoc.Figure {
	if len(res.Figures) == 0 {
		return nil
	}

	out := make([]assoc.Figure, len(res.Figures))
	persisted := make([]bool, len(res.Figures))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, fig := range res.Figures {
		g.Go(func() error {
			path, err := s.persist(ctx, index, runID, res.ResultID, fig)
			if err != nil {
				metrics.PipelineFiguresTotal.WithLabelValues("skipped").Inc()
				s.logger.Warn("figure skipped",
					zap.String("figure_id", fig.ID),
					zap.Int("page", fig.Page),
					zap.Error(err),
				)
				return nil
			}
			out[i] = assoc.Figure{
				ID:       fig.ID,
				Page:     fig.Page,
				Polygon:  fig.Polygon,
				BlobPath: path,
			}
			persisted[i] = true
			metrics.PipelineFiguresTotal.WithLabelValues("persisted").Inc()
			return nil
		})
	}
	_ = g.Wait() // per-figure failures are contained above

	var kept []assoc.Figure
	for i, ok := range persisted {
		if ok {
			kept = append(kept, out[i])
		}
	}
	return kept
}

func (s *Service) persist(ctx context.Context, index, runID, resultID string, fig layout.Figure) (string, error) {
	crop, err := s.analyzer.FigureCrop(ctx, resultID, fig.ID)
	if err != nil {
		return "", fmt.Errorf("fetch crop: %w", err)
	}

	path := CropPath(index, runID, fig.ID)
	if err := s.blob.Upload(ctx, path, crop, "image/png"); err != nil {
		return "", fmt.Errorf("upload crop: %w", err)
	}
	return path, nil
}

// CropPath returns the blob key for a persisted figure crop.
func CropPath(index, runID, figureID string) string {
	return fmt.Sprintf("%s/figures/%s/%s.png", index, runID, figureID)
}
