// Package camera acquires still images for the capture flow.
package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/photobooth/internal/models"
)

// Facing selects the front (user) or back (environment) device.
type Facing string

const (
	FacingFront Facing = "front"
	FacingBack  Facing = "back"
)

var (
	// ErrNoImage is returned when the device produced nothing usable.
	ErrNoImage = errors.New("camera produced no image")
	// ErrNoShutterRequest is returned when a frame arrives nobody asked for.
	ErrNoShutterRequest = errors.New("no shutter request pending")
	ErrInvalidFacing    = errors.New("invalid facing mode")
)

// ParseFacing accepts front/back plus the browser's user/environment names.
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front", "user":
		return FacingFront, nil
	case "back", "environment":
		return FacingBack, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFacing, s)
	}
}

// Camera takes a single still.
type Camera interface {
	Snapshot(ctx context.Context, facing Facing) (models.Photo, error)
}
