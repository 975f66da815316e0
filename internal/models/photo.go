package models

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	_ "golang.org/x/image/webp"
)

const (
	// MaxPhotoBytes caps a single captured or uploaded image.
	MaxPhotoBytes = 10 * 1024 * 1024
	// MaxPhotoPixels caps the decoded size of an image. Compressed formats
	// can declare far more pixels than their byte size suggests.
	MaxPhotoPixels = 50_000_000
)

var (
	// ErrEmptyImage is returned when an acquisition produced no bytes.
	ErrEmptyImage = errors.New("no image data")
	// ErrUnsupportedImage is returned when the bytes are not a decodable image.
	ErrUnsupportedImage = errors.New("unsupported image")
	// ErrImageTooLarge is returned when the image exceeds MaxPhotoBytes or
	// MaxPhotoPixels.
	ErrImageTooLarge = errors.New("image too large")
)

// DecodePhoto validates raw image bytes and records their dimensions.
func DecodePhoto(data []byte, source string) (Photo, error) {
	if len(data) == 0 {
		return Photo{}, ErrEmptyImage
	}
	if len(data) > MaxPhotoBytes {
		return Photo{}, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Photo{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return Photo{}, fmt.Errorf("%w: %s image has no pixels", ErrUnsupportedImage, format)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPhotoPixels {
		return Photo{}, fmt.Errorf("%w: %dx%d pixels", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	return Photo{
		Data:        data,
		ContentType: http.DetectContentType(data),
		Source:      source,
		Width:       cfg.Width,
		Height:      cfg.Height,
		CapturedAt:  time.Now(),
	}, nil
}

// Image decodes the photo's pixels.
func (p Photo) Image() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}
