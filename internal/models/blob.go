package models

import "time"

// ImageBlob is the binary payload of a record, kept in its own table so
// metadata queries never drag image bytes through the page cache.
type ImageBlob struct {
	UUID        string    `gorm:"primaryKey;size:36" json:"uuid"`
	Data        []byte    `gorm:"type:blob" json:"-"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (ImageBlob) TableName() string {
	return "image_blobs"
}

// LegacyImage is a row of the deprecated inline-payload table, where image
// bytes were base64-embedded in the metadata record. The migration job moves
// these into image_blobs and deletes the source row.
type LegacyImage struct {
	UUID      string    `gorm:"primaryKey;size:36" json:"uuid"`
	Payload   string    `gorm:"type:text" json:"payload"` // data URL or raw base64
	Prompt    string    `gorm:"type:text" json:"prompt"`
	Favorite  bool      `gorm:"default:false" json:"favorite"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (LegacyImage) TableName() string {
	return "legacy_images"
}
