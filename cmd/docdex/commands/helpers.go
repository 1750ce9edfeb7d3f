package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/halcyon-data/docdex/internal/config"
	"github.com/halcyon-data/docdex/internal/db"
	dbRedis "github.com/halcyon-data/docdex/internal/db/redis"
	"github.com/halcyon-data/docdex/internal/domain"
	logpkg "github.com/halcyon-data/docdex/internal/logger"
	"github.com/halcyon-data/docdex/internal/metrics"
	"github.com/halcyon-data/docdex/internal/repository/blob"
	budgetrepo "github.com/halcyon-data/docdex/internal/repository/budget"
	"github.com/halcyon-data/docdex/internal/repository/embcache"
	indexrepo "github.com/halcyon-data/docdex/internal/repository/index"
	"github.com/halcyon-data/docdex/internal/repository/status"
	"github.com/halcyon-data/docdex/internal/transport/analyzer"
	openaiEmb "github.com/halcyon-data/docdex/internal/transport/openai"
	"github.com/halcyon-data/docdex/internal/usecase/embedding"
	"github.com/halcyon-data/docdex/internal/usecase/figures"
	"github.com/halcyon-data/docdex/internal/usecase/indexer"
	"github.com/halcyon-data/docdex/internal/usecase/ingest"
	usageuc "github.com/halcyon-data/docdex/internal/usecase/usage"
	"github.com/halcyon-data/docdex/internal/usecase/verbalize"
)

// bootstrap loads the configuration and builds the process logger.
func bootstrap() (config.Config, *zap.Logger, error) {
	env := envName
	if env == "" {
		env = config.GetEnv()
	}

	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}

// openStore connects to Redis and waits until it accepts commands.
func openStore(ctx context.Context, cfg config.Config) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}

	timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return store, nil
}

// openBlob builds the S3 blob store and makes sure the bucket exists.
func openBlob(ctx context.Context, cfg config.Config) (*blob.Store, error) {
	client, err := blob.NewClient(ctx, blob.Config{
		Endpoint:     cfg.Blob.Endpoint,
		Region:       cfg.Blob.Region,
		Bucket:       cfg.Blob.Bucket,
		AccessKey:    cfg.Blob.AccessKey,
		SecretKey:    cfg.Blob.SecretKey,
		UsePathStyle: cfg.Blob.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	store := blob.New(client, cfg.Blob.Bucket, cfg.Blob.Region)
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("blob bucket %s: %w", cfg.Blob.Bucket, err)
	}
	return store, nil
}

// resolveVectorizer picks the configured default vectorizer, falling back to
// the lexically first one so the choice is deterministic.
func resolveVectorizer(cfg config.Config) (config.VectorizerConfig, config.ProviderConfig, error) {
	if len(cfg.Embedding.Vectorizers) == 0 {
		return config.VectorizerConfig{}, config.ProviderConfig{}, errors.New("embedding.vectorizers is empty")
	}

	name := cfg.Embedding.DefaultVectorizer
	if name == "" {
		names := make([]string, 0, len(cfg.Embedding.Vectorizers))
		for n := range cfg.Embedding.Vectorizers {
			names = append(names, n)
		}
		sort.Strings(names)
		name = names[0]
	}

	vc := cfg.Embedding.Vectorizers[name]
	return vc, cfg.Embedding.Providers[vc.Provider], nil
}

// buildBudget creates the provider token budget tracker, or nil when no
// limits are configured. With a store attached the counters survive restarts.
func buildBudget(
	ctx context.Context,
	provider string,
	pc config.ProviderConfig,
	store db.Store,
	log *zap.Logger,
) *embedding.BudgetTracker {
	bc := pc.Budget
	if bc.DailyTokenLimit <= 0 && bc.MonthlyTokenLimit <= 0 {
		return nil
	}

	action := embedding.BudgetActionWarn
	if bc.Action == "reject" {
		action = embedding.BudgetActionReject
	}
	tracker := embedding.NewBudgetTracker(provider, bc.DailyTokenLimit, bc.MonthlyTokenLimit, action, log)
	if store != nil {
		tracker.WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
	}
	return tracker
}

// buildEmbedder assembles the embedding decorator chain:
//
//	OpenAI -> RateLimited -> Cached -> Instrumented -> Instruction
//
// The rate limiter sits inside the cache so cache hits never wait on it.
// The base provider client is returned alongside the chain; it carries the
// HealthCheck endpoint the decorators do not forward.
func buildEmbedder(
	vc config.VectorizerConfig,
	pc config.ProviderConfig,
	store db.Store,
	budget embedding.BudgetChecker,
	log *zap.Logger,
) (ingest.Embedder, *openaiEmb.Embedder) {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     pc.APIKey,
		BaseURL:    pc.BaseURL,
		Model:      vc.Model,
		Dimensions: vc.Dimensions,
		Provider:   vc.Provider,
		Logger:     log,
	})

	var embedder ingest.Embedder = base
	if pc.RateLimit.RequestsPerMinute > 0 {
		rps := float64(pc.RateLimit.RequestsPerMinute) / 60
		embedder = embedding.NewRateLimitedEmbedder(embedder, rps, pc.RateLimit.Burst, vc.Provider, log)
	}
	if store != nil {
		embedder = embcache.New(embedder, store, vc.Model, embcache.DefaultTTL, metrics.EmbeddingCacheTotal, log)
	}
	embedder = embedding.NewInstrumentedEmbedder(embedder, vc.Provider, vc.Model, budget, log)

	if vc.DocumentInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, vc.DocumentInstruction), base
	}
	return embedder, base
}

// newUsageService builds the spend report service over the shared budget
// tracker. A nil tracker means unlimited mode.
func newUsageService(cfg config.Config, budget *embedding.BudgetTracker) *usageuc.Service {
	var reader usageuc.BudgetReader
	if budget != nil {
		reader = budget
	}
	svc := usageuc.New(reader)
	if _, pc, err := resolveVectorizer(cfg); err == nil {
		svc = svc.WithCostRate(pc.Budget.CostPerMillionTokens)
	}
	return svc
}

// newVerbalizer builds the vision describer, or nil when no provider is
// configured. A nil describer makes every figure use the fallback text.
func newVerbalizer(cfg config.Config, log *zap.Logger) verbalize.Describer {
	if cfg.Verbalize.Provider == "" {
		return nil
	}

	creds := cfg.Embedding.Providers[cfg.Verbalize.Provider]
	return openaiEmb.NewVerbalizer(&openaiEmb.VerbalizerConfig{
		APIKey:    creds.APIKey,
		BaseURL:   creds.BaseURL,
		Model:     cfg.Verbalize.Model,
		MaxTokens: cfg.Verbalize.MaxTokens,
		Logger:    log,
	})
}

// buildPipeline assembles the ingestion pipeline service. The returned base
// embedder is the undecorated provider client for readiness checks; the
// returned budget tracker (nil when unconfigured) is shared with the usage
// service.
func buildPipeline(
	ctx context.Context,
	cfg config.Config,
	store db.Store,
	blobStore *blob.Store,
	runs *status.Store,
	log *zap.Logger,
) (*ingest.Service, *openaiEmb.Embedder, *embedding.BudgetTracker, error) {
	vc, pc, err := resolveVectorizer(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	budget := buildBudget(ctx, vc.Provider, pc, store, log)

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embedding.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	embedder, baseEmbedder := buildEmbedder(vc, pc, store, budgetChecker, log)
	log.Info("embedder created",
		zap.String("provider", vc.Provider),
		zap.String("model", vc.Model),
		zap.Int("dimensions", vc.Dimensions),
	)

	vectorDim := vc.Dimensions
	if vectorDim == 0 {
		vectorDim = domain.DefaultVectorConfig().Dimensions
	}

	indexRepo := indexrepo.New(store).WithHNSW(indexrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	indexers := ingest.IndexerFunc(func(index string) ingest.UnitIndexer {
		return indexer.New(indexRepo, index, vectorDim, log)
	})

	analyzerClient := analyzer.New(analyzer.Config{
		BaseURL: cfg.Analyzer.BaseURL,
		APIKey:  cfg.Analyzer.APIKey,
		Timeout: time.Duration(cfg.Analyzer.TimeoutSec) * time.Second,
		Logger:  log,
	})

	pipeline := ingest.New(ingest.Deps{
		Analyzer:   analyzerClient,
		Figures:    figures.New(analyzerClient, blobStore, log).WithConcurrency(cfg.Ingest.FigureConcurrency),
		Verbalizer: verbalize.New(newVerbalizer(cfg, log), log),
		Embedder:   embedder,
		Blob:       blobStore,
		Indexers:   indexers,
		Status:     runs,
		Logger:     log,
	})
	return pipeline, baseEmbedder, budget, nil
}
