package store

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artbox-app/artbox/internal/models"
)

// PutRecord inserts or updates a record's metadata. The creation timestamp
// is preserved on update; LastModified always advances.
func (s *Store) PutRecord(rec *models.ImageRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.LastModified = time.Now()
	return s.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"prompt", "prompt_summary", "negative_prompt",
			"model", "seed", "cfg", "width", "height", "aspect_ratio",
			"loras", "regional",
			"favorite", "sync_priority", "last_modified",
			// NOT updated: timestamp (immutable after insert)
		}),
	}).Create(rec).Error
}

// PutRecordWithBlob writes metadata and payload as one atomic unit so a
// crash cannot leave a record without its blob or vice versa.
func (s *Store) PutRecordWithBlob(rec *models.ImageRecord, blob *models.ImageBlob) error {
	if blob.UUID == "" {
		blob.UUID = rec.UUID
	}
	if blob.UUID != rec.UUID {
		return fmt.Errorf("record %s and blob %s disagree on uuid", rec.UUID, blob.UUID)
	}
	return s.Transaction(func(tx *Store) error {
		if err := tx.PutRecord(rec); err != nil {
			return fmt.Errorf("put record: %w", err)
		}
		if err := tx.PutBlob(blob); err != nil {
			return fmt.Errorf("put blob: %w", err)
		}
		return nil
	})
}

// GetRecord retrieves a record with its tags. Returns nil when absent.
func (s *Store) GetRecord(uuid string) (*models.ImageRecord, error) {
	var rec models.ImageRecord
	err := s.Preload("Tags").First(&rec, "uuid = ?", uuid).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// DeleteRecord removes a record, its tag associations, and its blob in one
// transaction.
func (s *Store) DeleteRecord(uuid string) error {
	return s.Transaction(func(tx *Store) error {
		if err := tx.Exec("DELETE FROM record_tags WHERE image_record_uuid = ?", uuid).Error; err != nil {
			return fmt.Errorf("delete tag associations: %w", err)
		}
		if err := tx.Delete(&models.ImageRecord{}, "uuid = ?", uuid).Error; err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		if err := tx.Delete(&models.ImageBlob{}, "uuid = ?", uuid).Error; err != nil {
			return fmt.Errorf("delete blob: %w", err)
		}
		return nil
	})
}

// ListRecords returns all records with tags, newest first. The timestamp
// index keeps this better than linear for realistic collection sizes.
func (s *Store) ListRecords() ([]models.ImageRecord, error) {
	var recs []models.ImageRecord
	err := s.Preload("Tags").Order("timestamp DESC").Find(&recs).Error
	return recs, err
}

// ListFavorites returns favorite records, newest first.
func (s *Store) ListFavorites() ([]models.ImageRecord, error) {
	var recs []models.ImageRecord
	err := s.Preload("Tags").
		Where("favorite = ?", true).
		Order("timestamp DESC").
		Find(&recs).Error
	return recs, err
}

// ListRecordsByTag returns records carrying the given tag, newest first.
func (s *Store) ListRecordsByTag(tagID string) ([]models.ImageRecord, error) {
	var recs []models.ImageRecord
	err := s.Preload("Tags").
		Joins("JOIN record_tags rt ON image_records.uuid = rt.image_record_uuid").
		Where("rt.tag_id = ?", tagID).
		Order("image_records.timestamp DESC").
		Find(&recs).Error
	return recs, err
}

// SetFavorite toggles the favorite flag.
func (s *Store) SetFavorite(uuid string, favorite bool) error {
	return s.Model(&models.ImageRecord{}).
		Where("uuid = ?", uuid).
		Updates(map[string]interface{}{
			"favorite":      favorite,
			"last_modified": time.Now(),
		}).Error
}

// SetRecordTags replaces the tag set of a record.
func (s *Store) SetRecordTags(uuid string, tags []models.Tag) error {
	rec := models.ImageRecord{UUID: uuid}
	if err := s.Model(&rec).Association("Tags").Replace(tags); err != nil {
		return fmt.Errorf("replace tags: %w", err)
	}
	return s.Model(&models.ImageRecord{}).
		Where("uuid = ?", uuid).
		Update("last_modified", time.Now()).Error
}

// SearchPrompts performs FTS5 search over prompt and prompt summary.
func (s *Store) SearchPrompts(query string, limit int) ([]models.ImageRecord, error) {
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	var recs []models.ImageRecord
	err := s.Raw(`
		SELECT r.*
		FROM image_records r
		JOIN records_fts fts ON r.rowid = fts.rowid
		WHERE records_fts MATCH ?
		ORDER BY r.timestamp DESC
		LIMIT ?
	`, ftsQuery, limit).Scan(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	return recs, nil
}

// prepareFTSQuery prepares a query string for FTS5.
func prepareFTSQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}

	var escaped []string
	for _, term := range terms {
		term = strings.ReplaceAll(term, "\"", "")
		term = strings.ReplaceAll(term, "'", "")
		term = strings.ReplaceAll(term, "(", "")
		term = strings.ReplaceAll(term, ")", "")
		term = strings.ReplaceAll(term, "*", "")
		term = strings.ReplaceAll(term, ":", "")
		term = strings.ReplaceAll(term, "-", " ")

		if term != "" {
			escaped = append(escaped, term+"*")
		}
	}

	return strings.Join(escaped, " ")
}

// CountRecords returns the number of records in the archive.
func (s *Store) CountRecords() (int64, error) {
	var count int64
	err := s.Model(&models.ImageRecord{}).Count(&count).Error
	return count, err
}
