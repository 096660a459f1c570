package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/criteria-atlas/server/internal/api"
	"github.com/criteria-atlas/server/internal/cache"
	"github.com/criteria-atlas/server/internal/config"
	"github.com/criteria-atlas/server/internal/data/csvstore"
	"github.com/criteria-atlas/server/internal/data/sqlstore"
	"github.com/criteria-atlas/server/internal/logging"
	"github.com/criteria-atlas/server/internal/metrics"
	"github.com/criteria-atlas/server/internal/plot"
	"github.com/criteria-atlas/server/internal/render"
	"github.com/criteria-atlas/server/internal/service"
	"github.com/criteria-atlas/server/pkg/colormap"
)

// app holds the components shared by every plot.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cache    *cache.Manager
	renderer *render.SnapshotRenderer
	registry *api.PlotRegistry
	stores   map[string]*sqlstore.Store
}

func loadConfig(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	cacheManager, err := cache.NewManager(cache.Config{
		SnapshotCacheSizeMB: cfg.Cache.SnapshotSizeMB,
		SnapshotTTL:         time.Duration(cfg.Cache.SnapshotTTLMinutes) * time.Minute,
		QueryCacheSize:      cfg.Cache.QueryCacheSize,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		cache:   cacheManager,
		renderer: render.NewSnapshotRenderer(render.Config{
			Width:      cfg.Render.Width,
			Height:     cfg.Render.Height,
			PointSize:  cfg.Render.PointSize,
			Background: cfg.Render.Background,
			Margin:     cfg.View.MarginFactor,
		}),
		registry: api.NewPlotRegistry(cfg.Data.DefaultPlot, cfg.Data.PlotNames(), cfg.Server.Title),
		stores:   make(map[string]*sqlstore.Store),
	}

	options := plot.Options{
		Palette: colormap.Named(cfg.Render.Palette),
		Bands:   cfg.View.Bands,
		Decades: cfg.View.Decades,
	}
	for _, name := range cfg.Data.PlotNames() {
		pc := cfg.Data.Plots[name]
		src, err := a.source(name, pc)
		if err != nil {
			a.Close()
			return nil, err
		}
		svc := service.NewPlotService(service.PlotServiceConfig{
			Name:     name,
			Source:   src,
			Cache:    cacheManager,
			Renderer: a.renderer,
			Metrics:  m,
			Logger:   logger,
			Options:  options,
			BinWidth: cfg.View.BinWidth,
			Padding:  cfg.View.Padding,
			Margin:   cfg.View.MarginFactor,
		})
		a.registry.Register(name, svc)
		logger.Info("plot configured", zap.String("plot", name), zap.Strings("paths", src.Paths()))
	}
	return a, nil
}

// source opens the plot's backing store. SQLite databases are shared
// between plots that name the same file.
func (a *app) source(name string, pc config.PlotConfig) (service.Source, error) {
	if pc.SQLite == "" {
		return csvstore.NewReader(name, pc.Points, pc.Labels, pc.Ranks), nil
	}
	store, ok := a.stores[pc.SQLite]
	if !ok {
		var err error
		store, err = sqlstore.Open(pc.SQLite)
		if err != nil {
			return nil, fmt.Errorf("plot %q: %w", name, err)
		}
		a.stores[pc.SQLite] = store
	}
	return store.Source(name, pc.Key), nil
}

func (a *app) Close() {
	for path, s := range a.stores {
		if err := s.Close(); err != nil {
			a.logger.Warn("close sqlite store", zap.String("path", path), zap.Error(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("close cache", zap.Error(err))
	}
	_ = a.logger.Sync()
}
