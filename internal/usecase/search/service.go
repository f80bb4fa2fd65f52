// Package search runs vector, text and hybrid searches over a collection.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/domain/search/mode"
	"github.com/kailas-cloud/mongomap/internal/domain/search/request"
	"github.com/kailas-cloud/mongomap/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/mongomap/internal/logger"
)

// Service handles document search across vector, text and hybrid modes.
type Service struct {
	repo   Repository
	embed  Embedder
	logger *zap.Logger
}

// New creates a search service. embed can be nil when every request carries its vector.
func New(repo Repository, embed Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, embed: embed, logger: logger}
}

// Search executes req against collection.
func (s *Service) Search(ctx context.Context, collection string, req *request.Request) ([]result.Result, error) {
	var (
		results []result.Result
		err     error
	)
	switch req.Mode() {
	case mode.Vector:
		results, err = s.searchVector(ctx, collection, req)
	case mode.Text:
		results, err = s.searchText(ctx, collection, req)
	case mode.Hybrid:
		results, err = s.searchHybrid(ctx, collection, req)
	default:
		return nil, fmt.Errorf("%w: unsupported search mode %q", domain.ErrInvalidSearch, req.Mode())
	}
	if err != nil {
		return nil, err
	}

	if len(results) > req.Limit() {
		results = results[:req.Limit()]
	}
	return results, nil
}

func (s *Service) searchVector(ctx context.Context, collection string, req *request.Request) ([]result.Result, error) {
	vec, err := s.vectorFor(ctx, req)
	if err != nil {
		return nil, err
	}
	results, err := s.repo.Vector(ctx, collection, req, vec)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return minScore(results, req.MinScore()), nil
}

func (s *Service) searchText(ctx context.Context, collection string, req *request.Request) ([]result.Result, error) {
	results, err := s.repo.Text(ctx, collection, req)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	return results, nil
}

// searchHybrid runs the vector and text searches in parallel, then fuses them via RRF.
// The minimum score applies to the vector ranking before fusion.
func (s *Service) searchHybrid(ctx context.Context, collection string, req *request.Request) ([]result.Result, error) {
	vec, err := s.vectorFor(ctx, req)
	if err != nil {
		return nil, err
	}

	var vectorResults, textResults []result.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.repo.Vector(gctx, collection, req, vec)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		vectorResults = minScore(res, req.MinScore())
		return nil
	})
	g.Go(func() error {
		res, err := s.repo.Text(gctx, collection, req)
		if err != nil {
			return fmt.Errorf("text search: %w", err)
		}
		textResults = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("Hybrid search fused",
		zap.String("collection", collection),
		zap.Int("vector_hits", len(vectorResults)),
		zap.Int("text_hits", len(textResults)))
	return fuseRRF(vectorResults, textResults, req.Limit()), nil
}

// vectorFor returns the request vector, embedding the query text when none was given.
func (s *Service) vectorFor(ctx context.Context, req *request.Request) ([]float32, error) {
	if len(req.Vector()) > 0 {
		return req.Vector(), nil
	}
	if s.embed == nil {
		return nil, domain.ErrEmbedderNotConfigured
	}
	emb, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	domain.SearchUsageFrom(ctx).Record(emb.TotalTokens)
	logpkg.FromContext(ctx).Debug("Query embedded",
		zap.Int("tokens", emb.TotalTokens), zap.Int("dims", len(emb.Embedding)))
	return emb.Embedding, nil
}

func minScore(results []result.Result, threshold float64) []result.Result {
	if threshold <= 0 {
		return results
	}
	filtered := results[:0]
	for _, r := range results {
		if r.Score() >= threshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
