package models

import (
	"strings"
	"time"
)

// Tag represents a user-defined label on archived images. IDs are generated
// client-side and stay stable across devices; names are unique after
// normalization (case and whitespace insensitive).
type Tag struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:100" json:"name"`
	Slug      string    `gorm:"size:100;uniqueIndex" json:"slug"` // normalized name
	Color     string    `gorm:"size:20" json:"color"`
	CreatedAt time.Time `json:"createdAt"`

	// ImageCount is a projection recomputed from favorite records carrying
	// the tag. It is never authoritative state.
	ImageCount int `gorm:"default:0" json:"imageCount"`

	Records []ImageRecord `gorm:"many2many:record_tags" json:"-"`
}

// TableName specifies the table name for GORM.
func (Tag) TableName() string {
	return "tags"
}

// NormalizeTagName lowercases a tag name and collapses internal whitespace.
// Two tags whose normalized names match are considered the same tag for
// reconciliation purposes.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// SameName reports whether two tag names collide after normalization.
func SameName(a, b string) bool {
	return NormalizeTagName(a) == NormalizeTagName(b)
}

// TagTombstone marks a tag id as irreversibly deleted locally. A tombstoned
// id is excluded from every reconciliation step until the remote archive
// confirms the deletion, which prevents a stale cloud read from resurrecting
// a tag the user just removed.
type TagTombstone struct {
	TagID     string    `gorm:"primaryKey;size:36" json:"tag_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// TableName specifies the table name for GORM.
func (TagTombstone) TableName() string {
	return "tag_tombstones"
}

// DefaultTagColor is assigned when neither replica carries a color.
const DefaultTagColor = "#8B5CF6"
