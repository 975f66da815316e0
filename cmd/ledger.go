package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/photobooth/internal/ledger"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Export ledger tools",
	}

	cmd.AddCommand(newLedgerInspectCmd())

	return cmd
}

func newLedgerInspectCmd() *cobra.Command {
	var (
		limit    int
		yamlPath string
	)

	cmd := &cobra.Command{
		Use:   "inspect <file.parquet>...",
		Short: "Inspect export ledger files",
		Long: `Reads the parquet files the server writes to PHOTOBOOTH_LEDGER_DIR and
prints the exports they record, followed by a summary.`,
		Example: `  # Show the last 20 exports and a summary
  photobooth ledger inspect ./ledger/*.parquet --limit 20

  # Save the summary for reporting
  photobooth ledger inspect ./ledger/*.parquet --limit 0 --yaml summary.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []ledger.Record
			for _, path := range args {
				rs, err := ledger.Read(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				records = append(records, rs...)
			}
			sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt < records[j].CreatedAt })

			shown := records
			if limit > 0 && len(shown) > limit {
				shown = shown[len(shown)-limit:]
			}
			for _, r := range shown {
				fmt.Printf("%s  %-8s frame %-3d %-12s %8d bytes  %s\n",
					time.UnixMilli(r.CreatedAt).Format(time.RFC3339), r.Kind, r.FrameID, r.Filter, r.Bytes, r.URL)
			}

			s := ledger.Summarize(records)
			fmt.Println(strings.Repeat("=", 80))
			fmt.Printf("Exports: %d (shared %d), %d bytes\n", s.Total, s.Shared, s.Bytes)
			for _, kind := range sortedKeys(s.ByKind) {
				fmt.Printf("  %-10s %d\n", kind, s.ByKind[kind])
			}

			if yamlPath != "" {
				if err := ledger.SaveSummaryYAML(yamlPath, s); err != nil {
					return err
				}
				fmt.Printf("Summary saved to %s\n", yamlPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Number of most recent exports to print (0 for all)")
	cmd.Flags().StringVar(&yamlPath, "yaml", "", "Write the summary to this YAML file")

	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
