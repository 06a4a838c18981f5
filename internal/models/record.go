// Package models defines the core data structures for Artbox.
package models

import (
	"time"
)

// ImageRecord represents one archived generated image.
//
// The binary payload is owned by the image_blobs table and referenced by the
// same UUID; it is never embedded in the record at rest. A record whose blob
// is missing is a dangling record: read paths surface it as unavailable
// rather than failing the whole query.
type ImageRecord struct {
	UUID string `gorm:"primaryKey;size:36" json:"uuid"`

	// Generation metadata
	Prompt         string   `gorm:"type:text" json:"prompt"`
	PromptSummary  string   `gorm:"size:500" json:"promptSummary"`
	NegativePrompt string   `gorm:"type:text" json:"negativePrompt"`
	Model          string   `gorm:"size:255" json:"model"`
	Seed           int64    `gorm:"default:0" json:"seed"`
	CFG            float64  `gorm:"default:0" json:"cfg"`
	Width          int      `gorm:"default:0" json:"width"`
	Height         int      `gorm:"default:0" json:"height"`
	AspectRatio    string   `gorm:"size:20" json:"aspectRatio"`
	Loras          LoraList `gorm:"type:text" json:"loras"`
	Regional       Regional `gorm:"type:text" json:"regionalPrompting"`

	// User state
	Favorite bool  `gorm:"default:false;index" json:"favorite"`
	Tags     []Tag `gorm:"many2many:record_tags" json:"tags"`

	// Timestamp is the creation time and is immutable after insert.
	Timestamp    time.Time `gorm:"index" json:"timestamp"`
	LastModified time.Time `json:"lastModified"`

	// SyncPriority is derived at sync time. The stored value is a hint only
	// and is never trusted as truth across devices.
	SyncPriority int `gorm:"default:0" json:"syncPriority"`
}

// TableName specifies the table name for GORM.
func (ImageRecord) TableName() string {
	return "image_records"
}

// TagIDs returns the ids of all tags attached to the record.
func (r *ImageRecord) TagIDs() []string {
	ids := make([]string, len(r.Tags))
	for i, t := range r.Tags {
		ids[i] = t.ID
	}
	return ids
}

// HasTag reports whether the record references the given tag id.
func (r *ImageRecord) HasTag(tagID string) bool {
	for _, t := range r.Tags {
		if t.ID == tagID {
			return true
		}
	}
	return false
}

// ArchiveStats provides aggregate statistics about the local archive.
type ArchiveStats struct {
	TotalRecords   int64     `json:"total_records"`
	TotalBlobs     int64     `json:"total_blobs"`
	TotalTags      int64     `json:"total_tags"`
	FavoriteCount  int64     `json:"favorite_count"`
	LastUpdated    time.Time `json:"last_updated"`
	StoreSizeBytes int64     `json:"store_size_bytes"`
}
