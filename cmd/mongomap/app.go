package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/config"
	"github.com/kailas-cloud/mongomap/internal/db/mongodb"
	dbredis "github.com/kailas-cloud/mongomap/internal/db/redis"
	logpkg "github.com/kailas-cloud/mongomap/internal/logger"
	indexrepo "github.com/kailas-cloud/mongomap/internal/repository/index"
	collectionuc "github.com/kailas-cloud/mongomap/internal/usecase/collection"
	indexuc "github.com/kailas-cloud/mongomap/internal/usecase/index"
)

// app holds the connections and services shared by serve and the admin commands.
type app struct {
	env         string
	cfg         config.Config
	logger      *zap.Logger
	store       *mongodb.Store
	cache       *dbredis.Store // nil without cache.addrs
	indexes     *indexuc.Service
	collections *collectionuc.Service
}

func openApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := flags.load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(flags.env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := mongodb.NewStore(mongodb.Config{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Name,
		AppName:        cfg.Database.AppName,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, cfg.Database.ReadinessTimeout); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Debug("Connected to database", zap.String("database", cfg.Database.Name))

	a := &app{env: flags.env, cfg: cfg, logger: logger, store: store}

	if cfg.Cache.Enabled() {
		cache, err := dbredis.NewStore(dbredis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
			Prefix:   cfg.Cache.KeyPrefix,
		})
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		if err := cache.WaitForReady(ctx, cfg.Database.ReadinessTimeout); err != nil {
			cache.Close()
			a.Close(ctx)
			return nil, fmt.Errorf("cache not ready: %w", err)
		}
		a.cache = cache
		logger.Debug("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// A nil interface, not a typed nil pointer, tells the index service search is unavailable.
	var search indexuc.SearchRepository
	if !cfg.Index.SkipSearch {
		search = indexrepo.NewSearch(store)
	}
	a.indexes = indexuc.New(indexrepo.New(store), search, logpkg.Component(logger, "index"), indexuc.Options{
		Concurrency: cfg.Index.Concurrency,
		FailFast:    cfg.Index.FailFast,
		SkipSearch:  cfg.Index.SkipSearch,
	})
	a.collections = collectionuc.New(store, logpkg.Component(logger, "collection"))

	return a, nil
}

// Close releases the connections. Safe to call on a partially opened app.
func (a *app) Close(ctx context.Context) {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
