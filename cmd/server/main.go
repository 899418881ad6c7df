package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medley/internal/server/api"
	"medley/internal/server/config"
	"medley/internal/server/database"
	"medley/internal/server/notify"
	"medley/internal/server/preview"
	"medley/internal/server/scan"
	"medley/internal/server/service"
	"medley/internal/server/storage"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"upload_root", cfg.UploadRoot,
		"preview_root", cfg.PreviewRoot,
		"max_file_size", cfg.MaxFileSize,
		"scan_command", cfg.ScanCommand,
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations complete")

	// Initialize storage roots
	store := storage.NewFileSystemStore(cfg.UploadRoot)
	if err := store.EnsureDir(); err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	previews := preview.NewFileGenerator(cfg.PreviewRoot, cfg.PreviewMaxDim, cfg.PreviewQuality, cfg.FFmpegCommand, cfg.PreviewTimeout)
	if err := os.MkdirAll(cfg.PreviewRoot, 0755); err != nil {
		slog.Error("failed to initialize preview root", "error", err)
		os.Exit(1)
	}
	slog.Info("file storage initialized", "uploads", cfg.UploadRoot, "previews", cfg.PreviewRoot)

	// Wire the ingestion pipeline
	repo := database.NewRepository(db)
	scanner := scan.NewClamAV(cfg.ScanCommand, cfg.ScanTimeout)
	hub := notify.NewHub()
	svc := service.NewIngestService(repo, store, scanner, previews, hub)

	// Start orphan sweeper
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	cleanup := storage.NewCleanupService(repo, cfg.UploadRoot, cfg.PreviewRoot, cfg.OrphanAge, cfg.CleanupInterval)
	cleanup.Start(cleanupCtx)

	// Setup HTTP router
	handler := api.NewHandler(svc, hub, db, cfg)
	e := api.SetupRouter(handler, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop orphan sweeper
	cleanupCancel()
	cleanup.Wait()

	slog.Info("server exited cleanly")
}
