package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/photobooth/internal/compose"
	"github.com/lehigh-university-libraries/photobooth/internal/config"
	"github.com/lehigh-university-libraries/photobooth/internal/export"
	"github.com/lehigh-university-libraries/photobooth/internal/filters"
	"github.com/lehigh-university-libraries/photobooth/internal/models"
	"github.com/lehigh-university-libraries/photobooth/internal/upload"
)

func newComposeCmd() *cobra.Command {
	var (
		catalogPath string
		frameID     string
		filterName  string
		outPath     string
		share       bool
	)

	cmd := &cobra.Command{
		Use:   "compose <image>...",
		Short: "Compose image files into a frame strip without the web UI",
		Long: `Composes the given images into a frame strip and writes it as PNG.

Images fill the frame's slots in order; slots beyond the last image reuse the
first one. With --share the strip is also uploaded and a QR code for its URL
is written next to the output.`,
		Example: `  # Four photos into the default frame with the Film Noir filter
  photobooth compose a.jpg b.jpg c.jpg d.jpg --filter "Film Noir" --out strip.png

  # Upload through the configured provider
  PHOTOBOOTH_UPLOAD_PROVIDER=gcs photobooth compose *.jpg --frame 3 --share`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			ctx := cmd.Context()

			catalog, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			t := catalog.Lookup(frameID)
			if len(args) > t.MaxPhotos {
				slog.Warn("Ignoring extra images", "frame", t.Name, "max_photos", t.MaxPhotos, "images", len(args))
				args = args[:t.MaxPhotos]
			}

			session := &models.BoothSession{ID: "cli", FrameID: t.ID, Finalized: true, CreatedAt: time.Now()}
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				photo, err := models.DecodePhoto(data, models.SourceUpload)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				session.Photos = append(session.Photos, photo)
			}

			var uploader upload.Provider
			if share {
				uploader, err = upload.New(ctx, upload.Config{
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
			}

			svc := export.New(cfg.AppName, compose.New(cfg.AssetsDir, cfg.RenderWidth), uploader, nil)
			preset := filters.Lookup(filterName)

			artifact, err := svc.Download(ctx, session, t, preset)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = artifact.Filename
			}
			if err := os.WriteFile(outPath, artifact.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write strip: %w", err)
			}
			fmt.Printf("Wrote %s (frame %d %q, filter %s)\n", outPath, t.ID, t.Name, preset.Name)

			if !share {
				return nil
			}
			result, err := svc.Share(ctx, session, t, preset)
			if err != nil {
				return err
			}
			qrPath := filepath.Join(filepath.Dir(outPath), "qr-"+result.Filename)
			if err := os.WriteFile(qrPath, result.QRCode, 0o644); err != nil {
				return fmt.Errorf("failed to write qr code: %w", err)
			}
			fmt.Printf("Shared %s\nQR code: %s\n", result.URL, qrPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "frames", "", "Frame catalog YAML file or directory (default: built-in)")
	cmd.Flags().StringVar(&frameID, "frame", "", "Frame id (default: first frame)")
	cmd.Flags().StringVar(&filterName, "filter", filters.Original.Name, "Filter preset name")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output PNG path (default: <app>-<timestamp>.png)")
	cmd.Flags().BoolVar(&share, "share", false, "Upload the strip and write a QR code for its URL")

	return cmd
}
