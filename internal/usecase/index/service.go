package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/mongomap/internal/domain"
	domidx "github.com/kailas-cloud/mongomap/internal/index"
	"github.com/kailas-cloud/mongomap/internal/mapping"
	"github.com/kailas-cloud/mongomap/internal/metrics"
	repoidx "github.com/kailas-cloud/mongomap/internal/repository/index"
)

const defaultConcurrency = 4

// Options tune startup index creation.
type Options struct {
	// Concurrency bounds the number of entities processed in parallel.
	Concurrency int
	// FailFast aborts on the first error instead of logging and continuing.
	FailFast bool
	// SkipSearch disables search and vector index creation.
	SkipSearch bool
}

// Result summarizes index creation for one entity.
type Result struct {
	Collection    string
	Created       []string
	Conflicts     []string
	SearchCreated []string
	SearchUpdated []string
	Errors        []error
}

// Service ensures indexes derived from mapping metadata and exposes index administration.
type Service struct {
	repo     Repository
	search   SearchRepository
	resolver *domidx.Resolver
	logger   *zap.Logger
	opts     Options
}

// New creates an index service. search can be nil.
func New(repo Repository, search SearchRepository, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Service{
		repo:     repo,
		search:   search,
		resolver: domidx.NewResolver(logger),
		logger:   logger,
		opts:     opts,
	}
}

// EnsureAll ensures indexes for every entity, at most Concurrency at a time.
// Results keep the order of entities and carry every failure in Errors. With FailFast the first
// error cancels the rest.
func (s *Service) EnsureAll(ctx context.Context, entities []*mapping.Entity) ([]Result, error) {
	results := make([]Result, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, e := range entities {
		g.Go(func() error {
			res, err := s.EnsureEntity(gctx, e)
			results[i] = res
			if err != nil && s.opts.FailFast {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("ensure indexes: %w", err)
	}
	return results, nil
}

// EnsureEntity resolves and creates the indexes of one document entity.
func (s *Service) EnsureEntity(ctx context.Context, e *mapping.Entity) (Result, error) {
	start := time.Now()
	res := Result{Collection: e.Collection}
	log := s.logger.With(zap.String("collection", e.Collection), zap.String("entity", e.Name))
	defer func() {
		metrics.IndexEnsureDuration.WithLabelValues(e.Collection).Observe(time.Since(start).Seconds())
	}()

	holders, err := s.resolver.ResolveIndexFor(e)
	if err != nil {
		err = fmt.Errorf("resolve indexes for %s: %w", e.Name, err)
		res.Errors = append(res.Errors, err)
		metrics.IndexEnsureTotal.WithLabelValues(e.Collection, "index", "error").Inc()
		log.Error("failed to resolve indexes", zap.Error(err))
		return res, err
	}

	for _, h := range holders {
		name, err := s.repo.Ensure(ctx, h.Collection, h.Definition)
		switch {
		case err == nil:
			res.Created = append(res.Created, name)
			metrics.IndexEnsureTotal.WithLabelValues(h.Collection, "index", "created").Inc()
			log.Debug("index ensured", zap.String("index", name), zap.String("path", h.Path))
		case errors.Is(err, domain.ErrIndexConflict):
			res.Conflicts = append(res.Conflicts, h.Name())
			res.Errors = append(res.Errors, err)
			metrics.IndexEnsureTotal.WithLabelValues(h.Collection, "index", "conflict").Inc()
			log.Warn("index conflicts with existing index", zap.String("index", h.Name()), zap.Error(err))
			if s.opts.FailFast {
				return res, err
			}
		default:
			res.Errors = append(res.Errors, err)
			metrics.IndexEnsureTotal.WithLabelValues(h.Collection, "index", "error").Inc()
			log.Error("failed to ensure index", zap.String("index", h.Name()), zap.Error(err))
			if s.opts.FailFast {
				return res, err
			}
		}
	}

	if s.search == nil || s.opts.SkipSearch {
		return res, nil
	}
	if err := s.ensureSearch(ctx, e, &res, log); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Service) ensureSearch(ctx context.Context, e *mapping.Entity, res *Result, log *zap.Logger) error {
	defs, err := domidx.ResolveSearchIndexes(e)
	if err != nil {
		err = fmt.Errorf("resolve search indexes for %s: %w", e.Name, err)
		res.Errors = append(res.Errors, err)
		metrics.IndexEnsureTotal.WithLabelValues(e.Collection, "search", "error").Inc()
		log.Error("failed to resolve search indexes", zap.Error(err))
		return err
	}
	for _, def := range defs {
		err := s.ensureSearchIndex(ctx, e.Collection, def, res)
		switch {
		case err == nil:
			metrics.IndexEnsureTotal.WithLabelValues(e.Collection, "search", "created").Inc()
		case errors.Is(err, domain.ErrSearchNotSupported):
			log.Info("search indexes not supported by deployment, skipping", zap.String("index", def.Name()))
			return nil
		default:
			res.Errors = append(res.Errors, err)
			metrics.IndexEnsureTotal.WithLabelValues(e.Collection, "search", "error").Inc()
			log.Error("failed to ensure search index", zap.String("index", def.Name()), zap.Error(err))
			if s.opts.FailFast {
				return err
			}
		}
	}
	return nil
}

func (s *Service) ensureSearchIndex(ctx context.Context, collection string, def domidx.SearchIndexDefinition, res *Result) error {
	exists, err := s.search.Exists(ctx, collection, def.Name())
	if err != nil {
		return err
	}
	if exists {
		if err := s.search.Update(ctx, collection, def); err != nil {
			return err
		}
		res.SearchUpdated = append(res.SearchUpdated, def.Name())
		return nil
	}
	name, err := s.search.Create(ctx, collection, def)
	if err != nil {
		return err
	}
	res.SearchCreated = append(res.SearchCreated, name)
	return nil
}

// List returns the indexes of collection.
func (s *Service) List(ctx context.Context, collection string) ([]domidx.Info, error) {
	infos, err := s.repo.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	return infos, nil
}

// Drop removes an index. The _id index cannot be dropped.
func (s *Service) Drop(ctx context.Context, collection, name string) error {
	if name == "_id_" {
		return fmt.Errorf("drop index: %w: the _id index cannot be dropped", domain.ErrInvalidSchema)
	}
	if err := s.repo.Drop(ctx, collection, name); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	return nil
}

// DropAll removes every index but _id.
func (s *Service) DropAll(ctx context.Context, collection string) error {
	if err := s.repo.DropAll(ctx, collection); err != nil {
		return fmt.Errorf("drop indexes: %w", err)
	}
	return nil
}

// SetHidden hides or unhides an index from the query planner.
func (s *Service) SetHidden(ctx context.Context, collection, name string, hidden bool) error {
	if err := s.repo.Alter(ctx, collection, name, repoidx.AlterOptions{Hidden: &hidden}); err != nil {
		return fmt.Errorf("alter index: %w", err)
	}
	return nil
}

// ListSearch returns the search indexes of collection.
func (s *Service) ListSearch(ctx context.Context, collection string) ([]domidx.SearchIndexInfo, error) {
	if s.search == nil {
		return nil, domain.ErrSearchNotSupported
	}
	infos, err := s.search.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list search indexes: %w", err)
	}
	return infos, nil
}

// DropSearch removes a search index.
func (s *Service) DropSearch(ctx context.Context, collection, name string) error {
	if s.search == nil {
		return domain.ErrSearchNotSupported
	}
	if err := s.search.Drop(ctx, collection, name); err != nil {
		return fmt.Errorf("drop search index: %w", err)
	}
	return nil
}
