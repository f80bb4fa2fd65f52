package mongomap

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	indexuc "github.com/kailas-cloud/mongomap/internal/usecase/index"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// IndexOptions tune automatic index creation.
type IndexOptions = indexuc.Options

type clientConfig struct {
	uri            string
	database       string
	appName        string
	connectTimeout time.Duration

	autoIndex bool
	indexOpts IndexOptions

	redisAddrs    []string
	redisPassword string
	cacheTTL      time.Duration

	embedder      Embedder
	embedCacheTTL time.Duration

	maxBatchSize int

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithURI sets the MongoDB connection string.
func WithURI(uri string) Option {
	return optionFunc(func(c *clientConfig) {
		c.uri = uri
	})
}

// WithDatabase sets the database all repositories operate on.
func WithDatabase(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.database = name
	})
}

// WithAppName sets the application name reported to the server.
func WithAppName(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.appName = name
	})
}

// WithConnectTimeout bounds the initial connection and readiness wait.
// Default: 10s.
func WithConnectTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.connectTimeout = d
	})
}

// WithAutoIndexCreation creates the indexes derived from an entity's mapping when its
// repository is created.
func WithAutoIndexCreation(enabled bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.autoIndex = enabled
	})
}

// WithIndexOptions tunes index creation concurrency and error handling.
func WithIndexOptions(o IndexOptions) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexOpts = o
	})
}

// WithRedisCache caches reference lookups and query embeddings in Redis.
// Entries expire after ttl; zero keeps them until a write invalidates them.
func WithRedisCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.redisAddrs = []string{addr}
		c.redisPassword = password
		c.cacheTTL = ttl
	})
}

// WithEmbedder sets the provider that turns query text into vectors for VectorSearch.
// Without it, searches must pass a vector.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithEmbeddingCacheTTL sets how long cached query embeddings live when WithRedisCache is set.
// Default: 24h.
func WithEmbeddingCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedCacheTTL = ttl
	})
}

// WithMaxBatchSize sets the number of documents per bulk write in SaveAll.
// Default: 500.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
