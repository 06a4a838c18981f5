package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artbox-app/artbox/internal/models"
)

// PutBlob inserts or replaces a payload.
func (s *Store) PutBlob(blob *models.ImageBlob) error {
	if blob.CreatedAt.IsZero() {
		blob.CreatedAt = time.Now()
	}
	return s.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "content_type"}),
	}).Create(blob).Error
}

// GetBlob retrieves a payload. A record with no blob entry is a dangling
// record: absence surfaces as ErrItemUnavailable, never a crash.
func (s *Store) GetBlob(uuid string) (*models.ImageBlob, error) {
	var blob models.ImageBlob
	err := s.First(&blob, "uuid = ?", uuid).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: blob %s", ErrItemUnavailable, uuid)
		}
		return nil, err
	}
	return &blob, nil
}

// HasBlob reports whether a payload exists for the uuid.
func (s *Store) HasBlob(uuid string) (bool, error) {
	var count int64
	err := s.Model(&models.ImageBlob{}).Where("uuid = ?", uuid).Count(&count).Error
	return count > 0, err
}

// DeleteBlob removes a payload.
func (s *Store) DeleteBlob(uuid string) error {
	return s.Delete(&models.ImageBlob{}, "uuid = ?", uuid).Error
}
