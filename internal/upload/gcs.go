package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// GCS stores uploads as publicly readable Cloud Storage objects.
type GCS struct {
	bucket string
	svc    *storage.Service
}

// NewGCS connects with the given credentials file, or application default
// credentials when it is empty. A non-empty endpoint disables auth and is
// meant for emulators.
func NewGCS(ctx context.Context, bucket, credentialsFile, endpoint string, client *http.Client) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("gcs upload requires a bucket")
	}

	var opts []option.ClientOption
	switch {
	case endpoint != "":
		opts = append(opts, option.WithEndpoint(endpoint), option.WithHTTPClient(client))
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{bucket: bucket, svc: svc}, nil
}

func (g *GCS) Name() string { return "gcs" }

func (g *GCS) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	obj := &storage.Object{
		Bucket:       g.bucket,
		Name:         name,
		ContentType:  contentType,
		CacheControl: "public, max-age=86400",
	}

	_, err := g.svc.Objects.Insert(g.bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		PredefinedAcl("publicRead").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert object %s: %w", name, err)
	}

	return PublicURL(g.bucket, name), nil
}

// PublicURL is the anonymous download URL of a public object.
func PublicURL(bucket, name string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + url.PathEscape(name)
}
