package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/server"
	"github.com/hyperjump/tsrag/internal/watcher"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP server",
	Long: `Start the HTTP API. Directories listed under watch.directories are indexed
on startup and kept in sync while the server runs. With an in-memory store and
a configured snapshot, documents are restored on startup and saved on shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("config loaded", zap.String("config_path", resolvedConfig), zap.Bool("debug", cfg.Debug))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		idx := components.Indexer
		watchOpts := []watcher.Option{
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS) * time.Millisecond),
		}
		if cfg.Debug {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(
			cfg.Watch.Directories,
			cfg.Watch.Patterns,
			cfg.Watch.Exclude,
			func(path string) {
				if _, err := idx.IndexFile(context.Background(), path); err != nil {
					logger.Warn("watch index file failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				if _, err := idx.RemoveFile(context.Background(), path); err != nil {
					logger.Warn("watch remove file failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(ctx); err != nil {
			return err
		}
		defer watchSvc.Stop()
		watchSvc.SyncExistingFiles()
	}

	opts := []server.Option{}
	if components.Snapshots != nil {
		opts = append(opts, server.WithSnapshots(components.Snapshots))
	}
	srv := server.NewServer(components.Engine, cfg, logger, opts...)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
	if components.Snapshots != nil {
		if _, err := components.Snapshots.Save(shutdownCtx); err != nil {
			logger.Error("snapshot on shutdown failed", zap.Error(err))
		}
	}
	return nil
}
