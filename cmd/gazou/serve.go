package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/gazou/internal/models"
	"github.com/hyperjump/gazou/internal/server"
	"github.com/hyperjump/gazou/internal/watcher"
)

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the HTTP API and watch configured directories",
		Long: `Load the saved index (or start an empty one), serve the HTTP API, and append new or
changed files under watch.directories to the index. The index is saved after every change.`,
		Args: cobra.NoArgs,
		RunE: runServer,
	}

	cmd.Flags().String("index-dir", "", "index directory (default: storage.index_dir)")
	cmd.Flags().String("host", "", "listen host (default: server.host)")
	cmd.Flags().Int("port", 0, "listen port (default: server.port)")
	cmd.Flags().Bool("no-watch", false, "do not watch directories")

	return cmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	if dir := mustString(cmd, "index-dir"); dir != "" {
		cfg.Storage.IndexDir = dir
	}
	if host := mustString(cmd, "host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if err := a.loadOrEmpty(cfg.Storage.IndexDir); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var watchSvc server.WatchService
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); !noWatch {
		w := watcher.NewWatcher(
			cfg.Watch.Directories,
			cfg.Indexing.ImageExtensions,
			cfg.Indexing.TextExtensions,
			cfg.Watch.RecursiveOrDefault(),
			a.appendAndSave,
			watcher.WithLogger(logger),
		)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
		w.SyncExistingFiles()
		watchSvc = w
	}

	srv := server.NewServer(a.engine, a.catalog, cfg, logger, watchSvc, a.configPath)
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
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
	if err := a.engine.SaveIndex(cfg.Storage.IndexDir); err != nil {
		logger.Warn("index save failed", zap.String("dir", cfg.Storage.IndexDir), zap.Error(err))
	}
	return nil
}

// appendAndSave adds a watcher batch to the bound index and saves it.
func (a *app) appendAndSave(ctx context.Context, items []models.SourceItem) {
	report, err := a.engine.Append(ctx, items)
	if err != nil {
		a.logger.Warn("watch append failed", zap.Int("items", len(items)), zap.Error(err))
		return
	}
	if report.Indexed == 0 {
		return
	}
	if err := a.engine.SaveIndex(a.cfg.Storage.IndexDir); err != nil {
		a.logger.Warn("watch save failed", zap.String("dir", a.cfg.Storage.IndexDir), zap.Error(err))
	}
}
