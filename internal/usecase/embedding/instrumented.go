package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/domain"
	domusage "github.com/kailas-cloud/mongomap/internal/domain/usage"
	"github.com/kailas-cloud/mongomap/internal/metrics"
)

// DefaultSlowThreshold is the embedding latency above which a call is logged as slow.
const DefaultSlowThreshold = 2 * time.Second

// Budget is the token budget seen by the embedder.
type Budget interface {
	Allow(ctx context.Context) error
	Record(ctx context.Context, tokens int64)
	Window(period domusage.Period) domusage.Window
}

// InstrumentOptions describe the wrapped provider.
type InstrumentOptions struct {
	Provider      string
	Model         string
	SlowThreshold time.Duration // default DefaultSlowThreshold
	Logger        *zap.Logger
}

// InstrumentedEmbedder enforces the token budget around query embedding and publishes the
// remaining budget. Request counters and latencies are recorded by the transport.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	budget Budget
	model  string
	slow   time.Duration
	gauge  func(period string, remaining int64)
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. budget may be nil for unlimited providers.
func NewInstrumentedEmbedder(inner domain.Embedder, budget Budget, opts InstrumentOptions) *InstrumentedEmbedder {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	slow := opts.SlowThreshold
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	provider := opts.Provider
	return &InstrumentedEmbedder{
		inner:  inner,
		budget: budget,
		model:  opts.Model,
		slow:   slow,
		gauge: func(period string, remaining int64) {
			metrics.EmbeddingBudgetTokensRemaining.WithLabelValues(provider, period).Set(float64(remaining))
		},
		logger: logger.With(zap.String("provider", provider), zap.String("model", opts.Model)),
	}
}

// Embed checks the budget, delegates, and records the charged tokens.
func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if e.budget != nil {
		if err := e.budget.Allow(ctx); err != nil {
			e.logger.Warn("Query embedding rejected by budget", zap.Error(err))
			return domain.EmbeddingResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()
	result, err := e.inner.Embed(ctx, text)
	duration := time.Since(start)
	if err != nil {
		e.logger.Error("Query embedding failed", zap.Duration("duration", duration), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	if e.budget != nil && result.TotalTokens > 0 {
		e.budget.Record(ctx, int64(result.TotalTokens))
		e.publish()
	}

	fields := []zap.Field{
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
		zap.Int("query_len", len(text)),
	}
	if duration >= e.slow {
		e.logger.Warn("Slow query embedding", fields...)
	} else {
		e.logger.Debug("Query embedded", fields...)
	}
	return result, nil
}

// Model returns the wrapped model name, used to key cached embeddings.
func (e *InstrumentedEmbedder) Model() string { return e.model }

func (e *InstrumentedEmbedder) publish() {
	for _, p := range []domusage.Period{domusage.PeriodDay, domusage.PeriodMonth} {
		w := e.budget.Window(p)
		if w.Limit > 0 {
			e.gauge(string(p), w.Remaining())
		}
	}
}
