// Package ledger keeps an append-only record of every export and persists it
// as Parquet files for later analysis.
package ledger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
)

// DefaultFlushAt is the buffer size that triggers a write.
const DefaultFlushAt = 256

// Record is one successful export.
type Record struct {
	SessionID string `parquet:"session_id" yaml:"session_id"`
	FrameID   int64  `parquet:"frame_id" yaml:"frame_id"`
	Filter    string `parquet:"filter" yaml:"filter"`
	Kind      string `parquet:"kind" yaml:"kind"`
	URL       string `parquet:"url" yaml:"url,omitempty"`
	Bytes     int64  `parquet:"bytes" yaml:"bytes"`
	CreatedAt int64  `parquet:"created_at" yaml:"created_at"`
}

// Ledger buffers records in memory. A nil *Ledger discards everything.
type Ledger struct {
	dir     string
	flushAt int
	now     func() time.Time

	mu  sync.Mutex
	buf []Record
}

// New returns nil when dir is empty, which disables the ledger.
func New(dir string, flushAt int) *Ledger {
	if dir == "" {
		return nil
	}
	if flushAt <= 0 {
		flushAt = DefaultFlushAt
	}
	return &Ledger{dir: dir, flushAt: flushAt, now: time.Now}
}

// Append buffers r and writes the buffer once it is full.
func (l *Ledger) Append(r Record) {
	if l == nil {
		return
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = l.now().UnixMilli()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, r)
	if len(l.buf) < l.flushAt {
		return
	}
	if _, err := l.flushLocked(); err != nil {
		slog.Error("Failed to flush export ledger", "dir", l.dir, "records", len(l.buf), "error", err)
	}
}

// Pending returns the number of buffered records.
func (l *Ledger) Pending() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}

// Flush writes all buffered records to a new file and returns its path.
// An empty buffer writes nothing.
func (l *Ledger) Flush() (string, error) {
	if l == nil {
		return "", nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *Ledger) flushLocked() (string, error) {
	if len(l.buf) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create ledger dir: %w", err)
	}

	path := filepath.Join(l.dir, fmt.Sprintf("exports-%d.parquet", l.now().UnixNano()))
	if err := parquet.WriteFile(path, l.buf); err != nil {
		return "", fmt.Errorf("failed to write parquet: %w", err)
	}

	slog.Info("Export ledger flushed", "path", path, "records", len(l.buf))
	l.buf = nil
	return path, nil
}

// Read loads every record from a ledger file.
func Read(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Record](pf)
	defer reader.Close()

	var records []Record
	rows := make([]Record, 128)
	for {
		n, err := reader.Read(rows)
		records = append(records, rows[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
	}

	slog.Debug("Read export ledger", "path", path, "records", len(records))
	return records, nil
}
