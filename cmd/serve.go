package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/photobooth/internal/compose"
	"github.com/lehigh-university-libraries/photobooth/internal/config"
	"github.com/lehigh-university-libraries/photobooth/internal/export"
	"github.com/lehigh-university-libraries/photobooth/internal/frames"
	"github.com/lehigh-university-libraries/photobooth/internal/handlers"
	"github.com/lehigh-university-libraries/photobooth/internal/ledger"
	"github.com/lehigh-university-libraries/photobooth/internal/storage"
	"github.com/lehigh-university-libraries/photobooth/internal/upload"
)

func newServeCmd() *cobra.Command {
	var (
		port      string
		framesArg string
		camera    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the photo booth web server",
		Long: `Starts the photo booth interface and its JSON/websocket API.

Visitors open /?frame=<id>, shoot one photo per frame slot, and export the
composed strip. Idle sessions are pruned after PHOTOBOOTH_SESSION_TTL.`,
		Example: `  # Start server on default port 8888
  photobooth serve

  # Serve a custom frame catalog and watch it for edits
  photobooth serve --frames ./frames.yaml

  # Take photos from a tethered camera's output directory
  PHOTOBOOTH_HOT_FOLDER=/srv/dslr photobooth serve --camera hotfolder`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if cmd.Flags().Changed("port") {
				cfg.Addr = ":" + port
			}
			if framesArg != "" {
				cfg.FramesPath = framesArg
			}
			if camera != "" {
				cfg.Camera = camera
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVar(&framesArg, "frames", "", "Frame catalog YAML file or directory (default: built-in)")
	cmd.Flags().StringVar(&camera, "camera", "", "Camera source: browser or hotfolder")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	catalog, err := loadCatalog(cfg.FramesPath)
	if err != nil {
		return err
	}
	if cfg.FramesPath != "" {
		go func() {
			if err := catalog.Watch(ctx, cfg.FramesPath); err != nil {
				slog.Error("Frame catalog watch stopped", "err", err)
			}
		}()
	}

	uploader, err := upload.New(ctx, upload.Config{
		Provider:       cfg.UploadProvider,
		LocalDir:       cfg.UploadDir,
		PublicURL:      cfg.PublicURL,
		GCSBucket:      cfg.GCSBucket,
		GCSCredentials: cfg.GCSCredentials,
		MediaCloud:     cfg.MediaCloud,
		MediaPreset:    cfg.MediaPreset,
	})
	if err != nil {
		return fmt.Errorf("failed to configure uploads: %w", err)
	}

	exports := ledger.New(cfg.LedgerDir, 100)
	store := storage.New()
	handler := handlers.New(handlers.Options{
		Catalog:        catalog,
		Store:          store,
		Exporter:       export.New(cfg.AppName, compose.New(cfg.AssetsDir, cfg.RenderWidth), uploader, exports),
		CameraMode:     cfg.Camera,
		HotFolder:      cfg.HotFolder,
		ShutterTimeout: cfg.ShutterTimeout,
		StaticDir:      cfg.StaticDir,
		UploadDir:      cfg.UploadDir,
		BaseContext:    ctx,
	})

	go pruneSessions(ctx, store, handler, cfg.SessionTTL)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler.Router(),
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Photo booth available",
			"addr", cfg.Addr,
			"url", "http://localhost"+cfg.Addr,
			"camera", cfg.Camera,
			"uploads", uploader.Name(),
			"frames", len(catalog.List()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for context cancellation (Ctrl+C) or server error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
		handler.Shutdown()
		flushLedger(exports)

		// Give server 5 seconds to shut down gracefully
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "err", err)
			return err
		}
		slog.Info("Server stopped")
		return nil
	case err := <-serverErr:
		handler.Shutdown()
		flushLedger(exports)
		return err
	}
}

func loadCatalog(path string) (*frames.Catalog, error) {
	if path == "" {
		return frames.Default(), nil
	}
	catalog, err := frames.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load frame catalog: %w", err)
	}
	return catalog, nil
}

// pruneSessions drops sessions idle longer than ttl, checking at a quarter
// of the ttl.
func pruneSessions(ctx context.Context, store *storage.SessionStore, h *handlers.Handler, ttl time.Duration) {
	ticker := time.NewTicker(max(ttl/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := store.Prune(ttl); len(ids) > 0 {
				h.Forget(ids...)
				slog.Info("Pruned idle sessions", "count", len(ids))
			}
		}
	}
}

func flushLedger(l *ledger.Ledger) {
	path, err := l.Flush()
	if err != nil {
		slog.Error("Unable to flush export ledger", "err", err)
		return
	}
	if path != "" {
		slog.Info("Export ledger written", "path", path)
	}
}
