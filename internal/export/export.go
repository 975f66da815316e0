// Package export turns a finalized session into downloadable, printable and
// shareable artifacts.
package export

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/lehigh-university-libraries/photobooth/internal/compose"
	"github.com/lehigh-university-libraries/photobooth/internal/filters"
	"github.com/lehigh-university-libraries/photobooth/internal/frames"
	"github.com/lehigh-university-libraries/photobooth/internal/ledger"
	"github.com/lehigh-university-libraries/photobooth/internal/models"
	"github.com/lehigh-university-libraries/photobooth/internal/upload"
)

const (
	KindDownload = "download"
	KindPrint    = "print"
	KindShare    = "share"
)

const qrSize = 256

var (
	ErrNoPhotos     = errors.New("session has no photos")
	ErrRenderFailed = errors.New("failed to render strip")
	ErrUploadFailed = errors.New("upload failed")
)

//go:embed print.html
var templateFS embed.FS

var printTemplate = template.Must(template.ParseFS(templateFS, "print.html"))

// Artifact is a rendered file ready to hand to the visitor.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Share is the result of publishing a strip. ShowQR is false whenever the
// upload failed.
type Share struct {
	URL           string `json:"url,omitempty"`
	Filename      string `json:"filename,omitempty"`
	QRCode        []byte `json:"-"`
	QRCodeDataURL string `json:"qr_code,omitempty"`
	ShowQR        bool   `json:"show_qr"`
}

type Service struct {
	appName    string
	compositor *compose.Compositor
	uploader   upload.Provider
	ledger     *ledger.Ledger
	now        func() time.Time
}

// New wires the export flow. uploader and l may be nil; sharing then
// always fails and nothing is recorded.
func New(appName string, c *compose.Compositor, uploader upload.Provider, l *ledger.Ledger) *Service {
	if appName == "" {
		appName = "photobooth"
	}
	return &Service{appName: appName, compositor: c, uploader: uploader, ledger: l, now: time.Now}
}

// Filename is the artifact name for an export made at t.
func (s *Service) Filename(t time.Time) string {
	return fmt.Sprintf("%s-%d.png", s.appName, t.UnixMilli())
}

// Render composes the session and encodes it as PNG.
func (s *Service) Render(ctx context.Context, session *models.BoothSession, t frames.FrameTemplate, preset filters.Preset) ([]byte, error) {
	if session == nil || len(session.Photos) == 0 {
		return nil, ErrNoPhotos
	}

	img, err := s.compositor.Render(ctx, t, session.Photos, preset)
	if err != nil {
		slog.Error("Failed to render strip", "session_id", session.ID, "frame_id", t.ID, "filter", preset.Name, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	data, err := compose.EncodePNG(img)
	if err != nil {
		slog.Error("Failed to encode strip", "session_id", session.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return data, nil
}

// Download renders the strip as a named PNG file.
func (s *Service) Download(ctx context.Context, session *models.BoothSession, t frames.FrameTemplate, preset filters.Preset) (Artifact, error) {
	data, err := s.Render(ctx, session, t, preset)
	if err != nil {
		return Artifact{}, err
	}

	s.record(session, t, preset, KindDownload, "", len(data))
	return Artifact{Filename: s.Filename(s.now()), ContentType: "image/png", Data: data}, nil
}

type printPage struct {
	Title    string
	Filename string
	Image    template.URL
}

// Print returns an HTML sheet that shows only the strip when printed and
// opens the print dialog on load.
func (s *Service) Print(ctx context.Context, session *models.BoothSession, t frames.FrameTemplate, preset filters.Preset) (Artifact, error) {
	data, err := s.Render(ctx, session, t, preset)
	if err != nil {
		return Artifact{}, err
	}

	page := printPage{
		Title:    s.appName,
		Filename: s.Filename(s.now()),
		Image:    template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(data)),
	}
	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, page); err != nil {
		return Artifact{}, fmt.Errorf("failed to render print sheet: %w", err)
	}

	s.record(session, t, preset, KindPrint, "", len(data))
	return Artifact{Filename: "print.html", ContentType: "text/html; charset=utf-8", Data: buf.Bytes()}, nil
}

// Share uploads the strip and encodes its URL as a QR code. It can be
// called again after a failure.
func (s *Service) Share(ctx context.Context, session *models.BoothSession, t frames.FrameTemplate, preset filters.Preset) (Share, error) {
	data, err := s.Render(ctx, session, t, preset)
	if err != nil {
		return Share{}, err
	}
	if s.uploader == nil {
		return Share{}, fmt.Errorf("%w: no upload provider configured", ErrUploadFailed)
	}

	name := s.Filename(s.now())
	url, err := s.uploader.Upload(ctx, name, "image/png", data)
	if err != nil {
		slog.Error("Upload failed", "session_id", session.ID, "provider", s.uploader.Name(), "error", err)
		return Share{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if url == "" {
		return Share{}, fmt.Errorf("%w: %v", ErrUploadFailed, upload.ErrNoURL)
	}

	qr, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		return Share{}, fmt.Errorf("failed to encode qr code: %w", err)
	}

	s.record(session, t, preset, KindShare, url, len(data))
	slog.Info("Strip shared", "session_id", session.ID, "provider", s.uploader.Name(), "url", url)
	return Share{
		URL:           url,
		Filename:      name,
		QRCode:        qr,
		QRCodeDataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(qr),
		ShowQR:        true,
	}, nil
}

func (s *Service) record(session *models.BoothSession, t frames.FrameTemplate, preset filters.Preset, kind, url string, size int) {
	s.ledger.Append(ledger.Record{
		SessionID: session.ID,
		FrameID:   int64(t.ID),
		Filter:    preset.Name,
		Kind:      kind,
		URL:       url,
		Bytes:     int64(size),
		CreatedAt: s.now().UnixMilli(),
	})
}
