package store

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artbox-app/artbox/internal/models"
)

// GetSyncMeta retrieves a sync metadata value. Missing keys read as "".
func (s *Store) GetSyncMeta(key string) (string, error) {
	var meta models.SyncMeta
	err := s.First(&meta, "key = ?", key).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetSyncMeta sets a sync metadata value.
func (s *Store) SetSyncMeta(key, value string) error {
	meta := models.SyncMeta{Key: key, Value: value}
	return s.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&meta).Error
}

// GetSyncMetaTime reads a key holding an RFC3339 timestamp. Missing or
// unparsable values read as the zero time.
func (s *Store) GetSyncMetaTime(key string) (time.Time, error) {
	value, err := s.GetSyncMeta(key)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

// SetSyncMetaTime stores a timestamp under the key in RFC3339.
func (s *Store) SetSyncMetaTime(key string, t time.Time) error {
	return s.SetSyncMeta(key, t.Format(time.RFC3339))
}
