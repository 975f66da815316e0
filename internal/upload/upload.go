// Package upload publishes rendered strips to a public URL so visitors can
// fetch them from a phone.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrUnknownProvider = errors.New("unknown upload provider")
	ErrNoURL           = errors.New("upload response carried no url")
)

// Provider uploads one object and returns its public URL.
type Provider interface {
	Name() string
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string

	LocalDir  string
	PublicURL string

	GCSBucket      string
	GCSCredentials string
	GCSEndpoint    string

	MediaEndpoint string
	MediaCloud    string
	MediaPreset   string

	HTTPClient *http.Client
}

// New builds the provider named by cfg.Provider; empty means local.
func New(ctx context.Context, cfg Config) (Provider, error) {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	switch cfg.Provider {
	case "", "local":
		return NewLocal(cfg.LocalDir, cfg.PublicURL), nil
	case "gcs":
		return NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentials, cfg.GCSEndpoint, client)
	case "media":
		return NewMedia(cfg.MediaEndpoint, cfg.MediaCloud, cfg.MediaPreset, client)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
