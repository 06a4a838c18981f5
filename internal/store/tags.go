package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artbox-app/artbox/internal/models"
)

// CreateTag creates a new tag, deriving the normalized slug from the name.
func (s *Store) CreateTag(tag *models.Tag) error {
	tag.Slug = models.NormalizeTagName(tag.Name)
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = time.Now()
	}
	return s.Create(tag).Error
}

// UpsertTag creates or updates a tag by id.
func (s *Store) UpsertTag(tag *models.Tag) error {
	tag.Slug = models.NormalizeTagName(tag.Name)
	return s.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "slug", "color"}),
	}).Create(tag).Error
}

// GetTag retrieves a tag by id. Returns nil when absent.
func (s *Store) GetTag(id string) (*models.Tag, error) {
	var tag models.Tag
	err := s.First(&tag, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tag, nil
}

// GetTagByName retrieves a tag by normalized name. Returns nil when absent.
func (s *Store) GetTagByName(name string) (*models.Tag, error) {
	var tag models.Tag
	err := s.First(&tag, "slug = ?", models.NormalizeTagName(name)).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tag, nil
}

// ListTags returns all tags ordered by creation time.
func (s *Store) ListTags() ([]models.Tag, error) {
	var tags []models.Tag
	err := s.Order("created_at ASC, id ASC").Find(&tags).Error
	return tags, err
}

// DeleteTag strips the tag from every record referencing it and removes the
// tag row, in one transaction. Tombstoning is the caller's responsibility
// and must happen before any remote deletion is attempted.
func (s *Store) DeleteTag(id string) error {
	return s.Transaction(func(tx *Store) error {
		if err := tx.StripTag(id); err != nil {
			return err
		}
		return tx.Delete(&models.Tag{}, "id = ?", id).Error
	})
}

// StripTag removes the tag association from every record and bumps their
// last-modified time.
func (s *Store) StripTag(tagID string) error {
	if err := s.Exec(`
		UPDATE image_records SET last_modified = ?
		WHERE uuid IN (SELECT image_record_uuid FROM record_tags WHERE tag_id = ?)
	`, time.Now(), tagID).Error; err != nil {
		return fmt.Errorf("touch records: %w", err)
	}
	if err := s.Exec("DELETE FROM record_tags WHERE tag_id = ?", tagID).Error; err != nil {
		return fmt.Errorf("strip tag %s: %w", tagID, err)
	}
	return nil
}

// MergeTags folds the losing tag into the winner: every record referencing
// loserID is rewritten to reference the winner, the winner row is upserted,
// and the loser row is dropped. Records already carrying both tags end up
// with just the winner. One transaction; safe when both tags share a
// normalized name.
func (s *Store) MergeTags(loserID string, winner *models.Tag) error {
	if loserID == winner.ID {
		return nil
	}
	return s.Transaction(func(tx *Store) error {
		// Free the normalized-name slot held by the loser so the winner
		// upsert cannot trip the unique index.
		if err := tx.Model(&models.Tag{}).
			Where("id = ?", loserID).
			Update("slug", loserID+"~merged").Error; err != nil {
			return fmt.Errorf("retire loser slug: %w", err)
		}
		if err := tx.UpsertTag(winner); err != nil {
			return fmt.Errorf("upsert winner: %w", err)
		}
		if err := tx.Exec(`
			INSERT OR IGNORE INTO record_tags (image_record_uuid, tag_id)
			SELECT image_record_uuid, ? FROM record_tags WHERE tag_id = ?
		`, winner.ID, loserID).Error; err != nil {
			return fmt.Errorf("remap associations: %w", err)
		}
		if err := tx.Exec(`
			UPDATE image_records SET last_modified = ?
			WHERE uuid IN (SELECT image_record_uuid FROM record_tags WHERE tag_id = ?)
		`, time.Now(), loserID).Error; err != nil {
			return fmt.Errorf("touch records: %w", err)
		}
		if err := tx.Exec("DELETE FROM record_tags WHERE tag_id = ?", loserID).Error; err != nil {
			return fmt.Errorf("drop old associations: %w", err)
		}
		return tx.Delete(&models.Tag{}, "id = ?", loserID).Error
	})
}

// RecordUUIDsWithTag returns the uuids of all records carrying the tag.
func (s *Store) RecordUUIDsWithTag(tagID string) ([]string, error) {
	var uuids []string
	err := s.Raw("SELECT image_record_uuid FROM record_tags WHERE tag_id = ?", tagID).Scan(&uuids).Error
	return uuids, err
}

// UpdateTagCounts recomputes every tag's image count from favorite records
// carrying the tag. The count is a projection, never authoritative.
func (s *Store) UpdateTagCounts() error {
	return s.Exec(`
		UPDATE tags SET image_count = (
			SELECT COUNT(*)
			FROM record_tags rt
			JOIN image_records r ON r.uuid = rt.image_record_uuid
			WHERE rt.tag_id = tags.id AND r.favorite = 1
		)
	`).Error
}

// --- Tombstones ---

// AddTombstone marks a tag id as locally deleted. Idempotent.
func (s *Store) AddTombstone(tagID string) error {
	return s.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.TagTombstone{TagID: tagID, DeletedAt: time.Now()}).Error
}

// ClearTombstone removes the marker once the remote confirms the deletion.
func (s *Store) ClearTombstone(tagID string) error {
	return s.Delete(&models.TagTombstone{}, "tag_id = ?", tagID).Error
}

// IsTombstoned reports whether the tag id is marked deleted.
func (s *Store) IsTombstoned(tagID string) (bool, error) {
	var count int64
	err := s.Model(&models.TagTombstone{}).Where("tag_id = ?", tagID).Count(&count).Error
	return count > 0, err
}

// ListTombstones returns all tombstoned tag ids.
func (s *Store) ListTombstones() (map[string]bool, error) {
	var stones []models.TagTombstone
	if err := s.Find(&stones).Error; err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(stones))
	for _, ts := range stones {
		set[ts.TagID] = true
	}
	return set, nil
}
