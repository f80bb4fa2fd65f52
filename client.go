package mongomap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/convert"
	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/db/mongodb"
	dbredis "github.com/kailas-cloud/mongomap/internal/db/redis"
	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/mapping"
	"github.com/kailas-cloud/mongomap/internal/reference"
	documentrepo "github.com/kailas-cloud/mongomap/internal/repository/document"
	"github.com/kailas-cloud/mongomap/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/mongomap/internal/repository/index"
	searchrepo "github.com/kailas-cloud/mongomap/internal/repository/search"
	collectionuc "github.com/kailas-cloud/mongomap/internal/usecase/collection"
	documentuc "github.com/kailas-cloud/mongomap/internal/usecase/document"
	"github.com/kailas-cloud/mongomap/internal/usecase/health"
	indexuc "github.com/kailas-cloud/mongomap/internal/usecase/index"
	searchuc "github.com/kailas-cloud/mongomap/internal/usecase/search"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultEmbedCacheTTL  = 24 * time.Hour
	cacheKeyPrefix        = "mongomap:"
)

// cacheStore is what the client needs from the Redis cache.
type cacheStore interface {
	reference.Cache
	Ping(ctx context.Context) error
}

// Client is the mongomap entry point. It owns the connection, the mapping metadata and the
// services repositories run on. Safe for concurrent use.
type Client struct {
	store      db.Store
	cache      cacheStore
	closeCache func()

	mc        *mapping.Context
	conv      *convert.Converter
	refs      *reference.Reader
	indexSvc  *indexuc.Service
	collSvc   *collectionuc.Service
	docSvc    *documentuc.Service
	searchSvc *searchuc.Service
	healthSvc *health.Service

	autoIndex bool
	obs       *observer
	logger    *zap.Logger
}

// New connects to MongoDB (and Redis when WithRedisCache is set) and wires the client.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		connectTimeout: defaultConnectTimeout,
		embedCacheTTL:  defaultEmbedCacheTTL,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.uri == "" {
		return nil, errors.New("mongomap: connection string required (use WithURI)")
	}
	if cfg.database == "" {
		return nil, errors.New("mongomap: database required (use WithDatabase)")
	}

	store, err := mongodb.NewStore(mongodb.Config{
		URI:            cfg.uri,
		Database:       cfg.database,
		AppName:        cfg.appName,
		ConnectTimeout: cfg.connectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("mongomap: create mongodb store: %w", err)
	}
	if err := store.WaitForReady(ctx, cfg.connectTimeout); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("mongomap: database not ready: %w", err)
	}

	var (
		cache      cacheStore
		closeCache func()
	)
	if len(cfg.redisAddrs) > 0 {
		rs, err := dbredis.NewStore(dbredis.Config{
			Addrs:    cfg.redisAddrs,
			Password: cfg.redisPassword,
			Prefix:   cacheKeyPrefix,
		})
		if err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("mongomap: create redis cache: %w", err)
		}
		if err := rs.WaitForReady(ctx, cfg.connectTimeout); err != nil {
			rs.Close()
			_ = store.Close(ctx)
			return nil, fmt.Errorf("mongomap: cache not ready: %w", err)
		}
		cache, closeCache = rs, rs.Close
	}

	c, err := wireClient(store, cache, cfg)
	if err != nil {
		if closeCache != nil {
			closeCache()
		}
		_ = store.Close(ctx)
		return nil, err
	}
	c.closeCache = closeCache
	return c, nil
}

func wireClient(store db.Store, cache cacheStore, cfg *clientConfig) (*Client, error) {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	mc := mapping.NewContext(mapping.WithLogger(logger))

	readerOpts := []reference.Option{reference.WithLogger(logger)}
	if cache != nil {
		readerOpts = append(readerOpts, reference.WithCache(cache, cfg.cacheTTL))
	}
	refs := reference.NewReader(store, readerOpts...)
	conv := convert.New(mc, convert.WithResolver(refs), convert.WithLogger(logger))

	var searchIdx indexuc.SearchRepository
	if !cfg.indexOpts.SkipSearch {
		searchIdx = indexrepo.NewSearch(store)
	}
	indexSvc := indexuc.New(indexrepo.New(store), searchIdx, logger, cfg.indexOpts)

	docSvc := documentuc.New(documentrepo.New(store), refs, logger)
	if cfg.maxBatchSize > 0 {
		docSvc = docSvc.WithMaxBatchSize(cfg.maxBatchSize)
	}

	// Search without an embedder still serves text queries and explicit vectors.
	var embed searchuc.Embedder
	if cfg.embedder != nil {
		var de domain.Embedder = &embedderAdapter{inner: cfg.embedder}
		if cache != nil {
			de = embcache.New(de, cache, embcache.Options{
				Model:  modelOf(cfg.embedder),
				TTL:    cfg.embedCacheTTL,
				Logger: logger,
			})
		}
		embed = de
	}
	searchSvc := searchuc.New(searchrepo.New(store), embed, logger)

	var healthOpts []health.Option
	if cache != nil {
		healthOpts = append(healthOpts, health.WithCache(cache))
	}
	if hc, ok := cfg.embedder.(health.EmbeddingChecker); ok {
		healthOpts = append(healthOpts, health.WithEmbedding(hc))
	}

	return &Client{
		store:     store,
		cache:     cache,
		mc:        mc,
		conv:      conv,
		refs:      refs,
		indexSvc:  indexSvc,
		collSvc:   collectionuc.New(store, logger),
		docSvc:    docSvc,
		searchSvc: searchSvc,
		healthSvc: health.New(store, healthOpts...),
		autoIndex: cfg.autoIndex,
		obs:       obs,
		logger:    logger,
	}, nil
}

// Close releases the database connection and the cache.
func (c *Client) Close(ctx context.Context) error {
	if c.closeCache != nil {
		c.closeCache()
	}
	if c.store != nil {
		if err := c.store.Close(ctx); err != nil {
			return fmt.Errorf("close: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// HealthStatus is the overall health of the client's dependencies.
type HealthStatus = health.Status

// Health status values.
const (
	Healthy   = health.Healthy
	Degraded  = health.Degraded
	Unhealthy = health.Unhealthy
)

// Health checks the database, the cache and the embedding provider concurrently.
// It returns the overall status and the result of each check by name.
func (c *Client) Health(ctx context.Context) (HealthStatus, map[string]string) {
	r := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(r.Checks))
	for name, res := range r.Checks {
		checks[name] = string(res)
	}
	return r.Status, checks
}

// EnsureIndexes creates the indexes of every document type the client has mapped so far,
// typically after all repositories were created with auto index creation disabled.
func (c *Client) EnsureIndexes(ctx context.Context) ([]IndexResult, error) {
	start := time.Now()
	res, err := c.indexSvc.EnsureAll(ctx, c.mc.Documents())
	c.obs.observe("ensure_indexes", "", start, err)
	if err != nil {
		return res, fmt.Errorf("ensure indexes: %w", err)
	}
	return res, nil
}

// IndexResult summarizes index creation for one collection.
type IndexResult = indexuc.Result
