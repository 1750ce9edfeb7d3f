package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/metrics"
)

// RateLimitedEmbedder spaces provider calls with a token bucket so bulk
// ingestion stays under the provider's request-per-second limit.
// One bucket token is one API request, regardless of batch size.
type RateLimitedEmbedder struct {
	inner    domain.Embedder
	limiter  *rate.Limiter
	provider string
	logger   *zap.Logger
}

// NewRateLimitedEmbedder wraps an embedder with a request rate limiter.
// rps <= 0 disables limiting (pass-through).
func NewRateLimitedEmbedder(
	inner domain.Embedder, rps float64, burst int, provider string, logger *zap.Logger,
) *RateLimitedEmbedder {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitedEmbedder{
		inner:    inner,
		limiter:  limiter,
		provider: provider,
		logger:   logger,
	}
}

// Embed waits for a limiter slot, then delegates.
func (p *RateLimitedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if err := p.wait(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}
	return p.inner.Embed(ctx, text)
}

// BatchEmbed waits for one limiter slot per API request, then delegates.
// An inner without BatchEmbed falls back through p.Embed so every
// per-text request is limited too.
func (p *RateLimitedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	if be, ok := p.inner.(domain.BatchEmbedder); ok {
		if err := p.wait(ctx); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, p, texts)
}

func (p *RateLimitedEmbedder) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}

	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("embedding rate limiter: %w", err)
	}
	waited := time.Since(start)

	metrics.EmbeddingRateLimitWaitSeconds.WithLabelValues(p.provider).Observe(waited.Seconds())
	if waited > time.Second {
		p.logger.Debug("embedding call delayed by rate limiter",
			zap.String("provider", p.provider),
			zap.Duration("waited", waited),
		)
	}
	return nil
}
