package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/config"
	dbredis "github.com/kailas-cloud/mongomap/internal/db/redis"
	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/metrics"
	budgetrepo "github.com/kailas-cloud/mongomap/internal/repository/budget"
	"github.com/kailas-cloud/mongomap/internal/repository/embcache"
	openaiEmb "github.com/kailas-cloud/mongomap/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/mongomap/internal/usecase/embedding"
	usageuc "github.com/kailas-cloud/mongomap/internal/usecase/usage"
)

// embeddingChain is the query embedder with its budget and health probe.
// Every field is nil when no provider is configured.
type embeddingChain struct {
	query  domain.Embedder
	budget *embeddinguc.BudgetTracker
	health *openaiEmb.Embedder
}

// budgetReader returns a nil interface, not a typed nil pointer, when no budget is set.
func (c *embeddingChain) budgetReader() usageuc.BudgetReader {
	if c.budget == nil {
		return nil
	}
	return c.budget
}

// buildEmbedding assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedding(
	ctx context.Context, cfg *config.Config, cache *dbredis.Store, logger *zap.Logger,
) (*embeddingChain, error) {
	ec := cfg.Embedding
	if !ec.Enabled() {
		logger.Info("No embedding provider configured, text queries need a vector")
		return &embeddingChain{}, nil
	}
	provCfg := ec.Providers[ec.Provider]

	var budget *embeddinguc.BudgetTracker
	if b := provCfg.Budget; b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0 {
		var opts []embeddinguc.BudgetOption
		if cache != nil {
			opts = append(opts, embeddinguc.WithBudgetStore(budgetrepo.New(cache)))
		}
		budget = embeddinguc.NewBudgetTracker(ctx, ec.Provider, embeddinguc.BudgetLimits{
			Daily:   b.DailyTokenLimit,
			Monthly: b.MonthlyTokenLimit,
			Action:  embeddinguc.BudgetAction(b.Action),
		}, logger, opts...)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budgetIface embeddinguc.Budget
	if budget != nil {
		budgetIface = budget
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, embcache.Options{
			Model:   ec.Model,
			TTL:     ec.CacheTTL,
			Lookups: metrics.EmbeddingCacheTotal,
			Logger:  logger,
		})
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, budgetIface, embeddinguc.InstrumentOptions{
		Provider: ec.Provider,
		Model:    ec.Model,
		Logger:   logger,
	})
	embedder = domain.NewInstructionEmbedder(embedder, ec.QueryInstruction)

	logger.Info("Embedder created",
		zap.String("provider", ec.Provider),
		zap.String("model", ec.Model),
		zap.Int("dimensions", ec.Dimensions),
	)
	return &embeddingChain{query: embedder, budget: budget, health: base}, nil
}
