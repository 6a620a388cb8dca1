package models

import "time"

// Screenshot is a catalog entry for an image written to disk
type Screenshot struct {
	ID         int64     `json:"id"`
	FilePath   string    `json:"file_path"`
	Monitor    int       `json:"monitor"`
	Format     string    `json:"format"`
	SizeBytes  int64     `json:"size_bytes"`
	CapturedAt time.Time `json:"captured_at"`
}
