package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/criteria-atlas/server/internal/api"
	"github.com/criteria-atlas/server/internal/cache"
	"github.com/criteria-atlas/server/internal/service"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		port    int
		preload bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve plot data and derived views over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if port != 0 {
				a.cfg.Server.Port = port
			}
			return serve(a, preload)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override server.port")
	cmd.Flags().BoolVar(&preload, "preload", true, "Load every plot before accepting requests")
	return cmd
}

func serve(a *app, preload bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := a.logger
	if preload {
		for _, svc := range a.registry.Services() {
			if _, err := svc.Reload(ctx); err != nil {
				logger.Warn("plot failed to load", zap.String("plot", svc.Name()), zap.Error(err))
			}
		}
	}

	if a.cfg.Data.Watch {
		var reloaders []service.Reloader
		for _, svc := range a.registry.Services() {
			reloaders = append(reloaders, svc)
		}
		watcher, err := service.NewWatcher(reloaders, logger)
		if err != nil {
			return fmt.Errorf("init watcher: %w", err)
		}
		defer watcher.Close()
		watcher.OnReload = purgeOnReload(a.cache, logger)
		go watcher.Run(ctx)
		logger.Info("watching data files for changes")
	}

	router := api.NewRouter(api.RouterConfig{
		Registry:    a.registry,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		Metrics:     a.metrics,
		Cache:       a.cache,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.Int("port", a.cfg.Server.Port),
			zap.Strings("plots", a.registry.PlotIDs()),
			zap.String("default_plot", a.registry.DefaultPlotID()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

// purgeOnReload drops cached results once a plot has reloaded.
func purgeOnReload(cm *cache.Manager, logger *zap.Logger) func(string, error) {
	return func(name string, err error) {
		if err != nil {
			return
		}
		cm.Purge()
		logger.Debug("caches purged", zap.String("plot", name))
	}
}
