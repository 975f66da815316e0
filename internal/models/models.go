package models

import (
	"slices"
	"time"
)

// Photo sources
const (
	SourceCamera    = "camera"
	SourceUpload    = "upload"
	SourceURL       = "url"
	SourceHotFolder = "hotfolder"
)

// BoothSession represents one visitor's capture session
type BoothSession struct {
	ID        string    `json:"id"`
	FrameID   int       `json:"frame_id"`
	Photos    []Photo   `json:"photos"`
	Finalized bool      `json:"finalized"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Photo is one encoded still image
type Photo struct {
	Data        []byte    `json:"-"`
	ContentType string    `json:"content_type"`
	Source      string    `json:"source"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Clone returns a copy that shares no slices with s
func (s *BoothSession) Clone() *BoothSession {
	c := *s
	c.Photos = slices.Clone(s.Photos)
	return &c
}
