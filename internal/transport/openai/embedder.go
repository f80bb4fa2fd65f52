// Package openai embeds query text through an OpenAI-compatible embeddings API
// (OpenAI, Azure-style gateways, Nebius, Ollama).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/metrics"
)

// Config selects the provider endpoint and model.
type Config struct {
	APIKey  string
	BaseURL string // empty uses api.openai.com
	Model   string
	// Dimensions is requested from models that support shortening and checked on every
	// response. Zero accepts whatever the model returns.
	Dimensions int
	User       string
	Provider   string // metrics label
	Logger     *zap.Logger
}

// Embedder turns query text into a vector with one embeddings call per query.
type Embedder struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewEmbedder builds an embedder for cfg.
func NewEmbedder(cfg *Config) *Embedder {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		client: openai.NewClientWithConfig(cc),
		cfg:    *cfg,
		logger: logger.With(zap.String("provider", cfg.Provider), zap.String("model", cfg.Model)),
	}
}

// Model returns the configured model name.
func (e *Embedder) Model() string { return e.cfg.Model }

// Embed implements domain.Embedder. Blank text is rejected before any call is made, and a
// vector of the wrong length fails with domain.ErrVectorDimMismatch.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("blank query text: %w", domain.ErrInvalidSearch)
	}

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.cfg.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.cfg.User,
		Dimensions:     e.cfg.Dimensions,
	}
	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		kind := errorKind(err)
		e.fail(kind)
		e.logger.Debug("Embeddings call failed",
			zap.String("kind", kind), zap.Duration("elapsed", elapsed), zap.Error(err))
		return domain.EmbeddingResult{}, providerError(err)
	}
	if len(resp.Data) == 0 {
		e.fail("empty_response")
		return domain.EmbeddingResult{}, fmt.Errorf("no embedding in response: %w", domain.ErrEmbeddingProviderError)
	}

	vec := resp.Data[0].Embedding
	if err := domain.CheckDimensions(vec, e.cfg.Dimensions); err != nil {
		e.fail("dimension_mismatch")
		return domain.EmbeddingResult{}, fmt.Errorf("model %s: %w", e.cfg.Model, err)
	}
	e.succeed(elapsed, resp.Usage)
	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

func (e *Embedder) succeed(elapsed time.Duration, u openai.Usage) {
	p, m := e.cfg.Provider, e.cfg.Model
	metrics.EmbeddingRequestsTotal.WithLabelValues(p, m, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(p, m).Observe(elapsed.Seconds())
	if u.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(p, m, "prompt").Add(float64(u.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(p, m, "total").Add(float64(u.TotalTokens))
	}
}

func (e *Embedder) fail(kind string) {
	p, m := e.cfg.Provider, e.cfg.Model
	metrics.EmbeddingRequestsTotal.WithLabelValues(p, m, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(p, m, kind).Inc()
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// statusOf returns the HTTP status carried by a go-openai error, or 0.
func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// errorKind labels a failed call for the errors metric.
func errorKind(err error) string {
	switch status := statusOf(err); {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "auth"
	case status >= 500:
		return "server"
	case status >= 400:
		return "rejected"
	default:
		return "transport"
	}
}

// providerError wraps err in domain.ErrEmbeddingProviderError with a readable message.
// Cancellation keeps its context error so callers can tell it apart.
func providerError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("embedding request: %w", err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrEmbeddingProviderError)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, bodyMessage(reqErr.Body), domain.ErrEmbeddingProviderError)
	}
	return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingProviderError)
}

// bodyMessage pulls a message out of a non-standard error body: {"detail": ...},
// {"message": ...} or {"error": "..."}. Anything else is returned verbatim.
func bodyMessage(body []byte) string {
	var b struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if json.Unmarshal(body, &b) == nil {
		switch {
		case b.Detail != "":
			return b.Detail
		case b.Message != "":
			return b.Message
		}
		if s, ok := b.Error.(string); ok && s != "" {
			return s
		}
	}
	return strings.TrimSpace(string(body))
}
