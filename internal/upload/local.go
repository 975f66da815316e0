package upload

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Local writes uploads into a directory the server exposes under
// /static/uploads/.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, baseURL string) *Local {
	if dir == "" {
		dir = "static/uploads"
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Upload(ctx context.Context, name, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid object name %q", name)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	return l.baseURL + "/static/uploads/" + url.PathEscape(name), nil
}
