package dto

import "time"

// StoredImage describes a raw upload persisted on disk.
type StoredImage struct {
	Filename     string
	OriginalName string
	Path         string
	Size         int64
	StoredAt     time.Time
}
