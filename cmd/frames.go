package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/photobooth/internal/frames"
	"github.com/lehigh-university-libraries/photobooth/internal/layout"
)

func newFramesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Inspect and validate frame catalogs",
	}

	cmd.AddCommand(newFramesListCmd())
	cmd.AddCommand(newFramesValidateCmd())

	return cmd
}

func newFramesListCmd() *cobra.Command {
	var (
		catalogPath string
		width       int
		asYAML      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List frames with their slot geometry",
		Example: `  # List the built-in frames
  photobooth frames list

  # Dump a custom catalog as YAML
  photobooth frames list --frames ./frames --yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			templates := catalog.List()

			if asYAML {
				out, err := yaml.Marshal(map[string]any{"frames": templates})
				if err != nil {
					return fmt.Errorf("failed to marshal YAML: %w", err)
				}
				_, err = os.Stdout.Write(out)
				return err
			}

			for _, t := range templates {
				fmt.Printf("Frame %d: %s (%s, %d photos)\n", t.ID, t.Name, t.Category, t.MaxPhotos)
				fmt.Printf("  Canvas:  %dx%.0f\n", width, layout.RenderHeight(float64(width)))
				if t.Artwork != "" {
					fmt.Printf("  Artwork: %s\n", t.Artwork)
				}
				for _, p := range layout.Place(t, float64(width)) {
					fmt.Printf("  Slot %d: %v rotate %.0f°\n", p.Index+1, p.Rect(), p.Rotate)
				}
				fmt.Println(strings.Repeat("-", 60))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "frames", "", "Frame catalog YAML file or directory (default: built-in)")
	cmd.Flags().IntVar(&width, "width", 1020, "Render width used to scale slot geometry")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the catalog as YAML")

	return cmd
}

func newFramesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate frame catalog files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				catalog, err := frames.Load(path)
				if err != nil {
					fmt.Printf("✗ %s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Printf("✓ %s: %d frames\n", path, len(catalog.List()))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d catalogs are invalid", failed, len(args))
			}
			return nil
		},
	}
}
