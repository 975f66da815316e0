package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const defaultMediaEndpoint = "https://api.cloudinary.com/v1_1"

// Media posts unsigned uploads to a media hosting service and returns a
// link that forces a download instead of an inline view.
type Media struct {
	endpoint string
	cloud    string
	preset   string
	client   *http.Client
}

func NewMedia(endpoint, cloud, preset string, client *http.Client) (*Media, error) {
	if cloud == "" || preset == "" {
		return nil, errors.New("media upload requires a cloud name and an upload preset")
	}
	if endpoint == "" {
		endpoint = defaultMediaEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Media{endpoint: strings.TrimRight(endpoint, "/"), cloud: cloud, preset: preset, client: client}, nil
}

func (m *Media) Name() string { return "media" }

func (m *Media) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.WriteField("upload_preset", m.preset); err != nil {
		return "", fmt.Errorf("failed to write preset: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	url := fmt.Sprintf("%s/%s/image/upload", m.endpoint, m.cloud)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call media host: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("media host returned status %d: %s", resp.StatusCode, string(msg))
	}

	var result struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.SecureURL == "" {
		return "", ErrNoURL
	}

	return ForceDownload(result.SecureURL), nil
}

// ForceDownload adds the attachment flag to a delivery URL so browsers
// save the file.
func ForceDownload(u string) string {
	if strings.Contains(u, "/upload/fl_attachment/") {
		return u
	}
	return strings.Replace(u, "/upload/", "/upload/fl_attachment/", 1)
}
