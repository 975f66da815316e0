package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected string
		wantErr  error
	}{
		{name: "default", cfg: Config{}, expected: "local"},
		{name: "local", cfg: Config{Provider: "local"}, expected: "local"},
		{name: "media", cfg: Config{Provider: "media", MediaCloud: "booth", MediaPreset: "unsigned"}, expected: "media"},
		{name: "unknown", cfg: Config{Provider: "ftp"}, wantErr: ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(context.Background(), tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if p.Name() != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, p.Name())
			}
		})
	}
}

func TestLocalUpload(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir, "http://booth.local:8888/")

	url, err := l.Upload(context.Background(), "photobox-1.png", "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if url != "http://booth.local:8888/static/uploads/photobox-1.png" {
		t.Errorf("Unexpected url %s", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "photobox-1.png"))
	if err != nil || string(data) != "png" {
		t.Errorf("Expected file on disk, got %q, %v", data, err)
	}
}

func TestLocalRejectsPaths(t *testing.T) {
	l := NewLocal(t.TempDir(), "")

	for _, name := range []string{"", "../x.png", "a/b.png", ".env"} {
		if _, err := l.Upload(context.Background(), name, "image/png", nil); err == nil {
			t.Errorf("Expected %q to be rejected", name)
		}
	}
}

func TestMediaUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/booth/image/upload" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.FormValue("upload_preset"); got != "unsigned" {
			t.Errorf("Expected preset unsigned, got %s", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected file part: %v", err)
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		if hdr.Filename != "photobox-1.png" || string(body) != "png" {
			t.Errorf("Unexpected file %s %q", hdr.Filename, body)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"secure_url": "https://res.example.com/booth/image/upload/v1/photobox-1.png",
		})
	}))
	defer srv.Close()

	m, err := NewMedia(srv.URL, "booth", "unsigned", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	url, err := m.Upload(context.Background(), "photobox-1.png", "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if url != "https://res.example.com/booth/image/upload/fl_attachment/v1/photobox-1.png" {
		t.Errorf("Unexpected url %s", url)
	}
}

func TestMediaUploadFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"Upload failed"}`},
		{name: "bad json", status: http.StatusOK, body: `not json`},
		{name: "missing url", status: http.StatusOK, body: `{}`, wantErr: ErrNoURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			m, _ := NewMedia(srv.URL, "booth", "unsigned", srv.Client())
			_, err := m.Upload(context.Background(), "x.png", "image/png", []byte("png"))
			if err == nil {
				t.Fatal("Expected upload to fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestForceDownload(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "https://x/image/upload/v1/a.png", expected: "https://x/image/upload/fl_attachment/v1/a.png"},
		{input: "https://x/image/upload/fl_attachment/v1/a.png", expected: "https://x/image/upload/fl_attachment/v1/a.png"},
		{input: "https://x/other/a.png", expected: "https://x/other/a.png"},
	}

	for _, tt := range tests {
		if got := ForceDownload(tt.input); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}

func TestGCSUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, "/b/booth/o") {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("predefinedAcl"); got != "publicRead" {
			t.Errorf("Expected publicRead acl, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"bucket": "booth", "name": "photobox-1.png"})
	}))
	defer srv.Close()

	g, err := NewGCS(context.Background(), "booth", "", srv.URL+"/storage/v1/", srv.Client())
	if err != nil {
		t.Fatalf("NewGCS failed: %v", err)
	}
	url, err := g.Upload(context.Background(), "photobox-1.png", "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if url != "https://storage.googleapis.com/booth/photobox-1.png" {
		t.Errorf("Unexpected url %s", url)
	}
}

func TestGCSRequiresBucket(t *testing.T) {
	if _, err := NewGCS(context.Background(), "", "", "", nil); err == nil {
		t.Error("Expected missing bucket to fail")
	}
}
