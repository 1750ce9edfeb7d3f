// Package verbalize turns figure crops into searchable text descriptions,
// substituting a deterministic fallback when the vision model fails.
package verbalize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/halcyon-data/docdex/internal/metrics"
)

// Describer generates a natural-language description of an image.
type Describer interface {
	Describe(ctx context.Context, image []byte, contextText string) (string, error)
}

// Service orchestrates figure verbalization.
type Service struct {
	describer Describer
	logger    *zap.Logger
}

// New creates a verbalization service. describer can be nil, in which
// case every figure gets the fallback description.
func New(describer Describer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{describer: describer, logger: logger}
}

// Describe returns a description for a figure image. The second return
// reports whether the model produced it (false means fallback). A failed
// description never fails the pipeline; the figure is indexed either way.
func (s *Service) Describe(
	ctx context.Context, image []byte, contextText string, page int, fileName string,
) (string, bool) {
	if s.describer == nil {
		metrics.PipelineVerbalizationsTotal.WithLabelValues("fallback").Inc()
		return Fallback(page, fileName), false
	}

	desc, err := s.describer.Describe(ctx, image, contextText)
	if err != nil || strings.TrimSpace(desc) == "" {
		metrics.PipelineVerbalizationsTotal.WithLabelValues("fallback").Inc()
		s.logger.Warn("figure description failed, using fallback",
			zap.Int("page", page),
			zap.String("file", fileName),
			zap.Error(err),
		)
		return Fallback(page, fileName), false
	}

	metrics.PipelineVerbalizationsTotal.WithLabelValues("ok").Inc()
	return desc, true
}

// Fallback is the deterministic description used when verbalization fails.
func Fallback(page int, fileName string) string {
	return fmt.Sprintf("Image from page %d of %s (description unavailable)", page, fileName)
}
