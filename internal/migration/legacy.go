// Package migration moves inline-encoded payloads out of the deprecated
// legacy_images table into the blob namespace, transcoding to the storage
// codec on the way. The job runs once at startup, before any query or sync
// logic, and is idempotent and resumable at batch boundaries.
package migration

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/artbox-app/artbox/internal/codec"
	"github.com/artbox-app/artbox/internal/log"
	"github.com/artbox-app/artbox/internal/models"
	"github.com/artbox-app/artbox/internal/store"
)

// DefaultBatchSize is the unit of resumable work.
const DefaultBatchSize = 25

// Result tracks what was done during migration.
type Result struct {
	Migrated int
	Skipped  int
	Errors   []string
}

// MigrateLegacyPayloads drains legacy_images in fixed-size batches, cursor
// advancing in uuid order. Each item is decoded, transcoded, written to
// image_blobs and deleted from the source inside one transaction, so a
// crash mid-batch loses nothing and a restart replays safely.
//
// The job is a no-op when the deprecated table does not exist or a previous
// run already drained it.
func MigrateLegacyPayloads(s *store.Store, batchSize int) (*Result, error) {
	result := &Result{}

	if !s.Migrator().HasTable(&models.LegacyImage{}) {
		return result, nil
	}
	done, err := s.GetSyncMeta(models.SyncMetaMigrationDone)
	if err != nil {
		return result, fmt.Errorf("read migration state: %w", err)
	}
	if done == "1" {
		return result, nil
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	cursor, err := s.GetSyncMeta(models.SyncMetaMigrationCursor)
	if err != nil {
		return result, fmt.Errorf("read migration cursor: %w", err)
	}

	for {
		var batch []models.LegacyImage
		err := s.Where("uuid > ?", cursor).
			Order("uuid ASC").
			Limit(batchSize).
			Find(&batch).Error
		if err != nil {
			return result, fmt.Errorf("read legacy batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, legacy := range batch {
			if err := migrateOne(s, legacy); err != nil {
				// Item stays in legacy_images for the next run.
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", legacy.UUID, err))
				result.Skipped++
				continue
			}
			result.Migrated++
		}

		cursor = batch[len(batch)-1].UUID
		if err := s.SetSyncMeta(models.SyncMetaMigrationCursor, cursor); err != nil {
			return result, fmt.Errorf("advance cursor: %w", err)
		}
	}

	// Reset the cursor so failed items are retried on the next startup.
	if err := s.SetSyncMeta(models.SyncMetaMigrationCursor, ""); err != nil {
		return result, fmt.Errorf("reset cursor: %w", err)
	}
	if len(result.Errors) == 0 {
		if err := s.SetSyncMeta(models.SyncMetaMigrationDone, "1"); err != nil {
			return result, fmt.Errorf("mark done: %w", err)
		}
	}

	if result.Migrated > 0 || len(result.Errors) > 0 {
		log.Printf("migration: %d payloads moved, %d skipped\n", result.Migrated, result.Skipped)
	}

	return result, nil
}

// migrateOne performs the four-step unit for a single legacy row: decode
// inline payload, transcode to the storage codec, write the blob (and a
// metadata record if none exists), delete the source. All inside one
// transaction.
func migrateOne(s *store.Store, legacy models.LegacyImage) error {
	payload, contentType, err := decodeInline(legacy.Payload)
	if err != nil {
		return fmt.Errorf("decode inline payload: %w", err)
	}

	blob := codec.ToStorage(models.ImageBlob{
		UUID:        legacy.UUID,
		Data:        payload,
		ContentType: contentType,
	})

	return s.Transaction(func(tx *store.Store) error {
		existing, err := tx.GetRecord(legacy.UUID)
		if err != nil {
			return fmt.Errorf("look up record: %w", err)
		}
		if existing == nil {
			rec := &models.ImageRecord{
				UUID:      legacy.UUID,
				Prompt:    legacy.Prompt,
				Favorite:  legacy.Favorite,
				Timestamp: legacy.CreatedAt,
			}
			if err := tx.PutRecord(rec); err != nil {
				return fmt.Errorf("create record: %w", err)
			}
		}
		if err := tx.PutBlob(&blob); err != nil {
			return fmt.Errorf("write blob: %w", err)
		}
		if err := tx.Delete(&models.LegacyImage{}, "uuid = ?", legacy.UUID).Error; err != nil {
			return fmt.Errorf("delete legacy row: %w", err)
		}
		return nil
	})
}

// decodeInline turns the legacy inline encoding (data URL or bare base64)
// into raw payload bytes plus a content type.
func decodeInline(inline string) ([]byte, string, error) {
	if strings.HasPrefix(inline, "data:") {
		payload, contentType := codec.Encode([]byte(inline))
		return payload, contentType, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(inline)
	if err != nil {
		return nil, "", err
	}
	return decoded, codec.Sniff(decoded), nil
}
