package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Summary aggregates exports across one or more ledger files.
type Summary struct {
	Total    int            `yaml:"total"`
	Shared   int            `yaml:"shared"`
	Bytes    int64          `yaml:"bytes"`
	ByKind   map[string]int `yaml:"by_kind"`
	ByFrame  map[string]int `yaml:"by_frame"`
	ByFilter map[string]int `yaml:"by_filter"`
	First    string         `yaml:"first,omitempty"`
	Last     string         `yaml:"last,omitempty"`
}

func Summarize(records []Record) Summary {
	s := Summary{
		ByKind:   make(map[string]int),
		ByFrame:  make(map[string]int),
		ByFilter: make(map[string]int),
	}

	var first, last int64
	for _, r := range records {
		s.Total++
		s.Bytes += r.Bytes
		s.ByKind[r.Kind]++
		s.ByFrame[strconv.FormatInt(r.FrameID, 10)]++
		s.ByFilter[r.Filter]++
		if r.URL != "" {
			s.Shared++
		}
		if first == 0 || r.CreatedAt < first {
			first = r.CreatedAt
		}
		if r.CreatedAt > last {
			last = r.CreatedAt
		}
	}

	if s.Total > 0 {
		s.First = time.UnixMilli(first).UTC().Format(time.RFC3339)
		s.Last = time.UnixMilli(last).UTC().Format(time.RFC3339)
	}
	return s
}

// SaveSummaryYAML writes s to path, creating parent directories.
func SaveSummaryYAML(path string, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}
