// Package store provides the durable local archive: record metadata, binary
// payloads, and tags live in separate namespaces of one SQLite database.
// It uses the pure-Go SQLite driver with FTS5 support.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/artbox-app/artbox/internal/models"
)

// Store wraps the GORM database connection with archive-specific operations.
type Store struct {
	*gorm.DB
	path string
}

// Config holds database configuration options.
type Config struct {
	Path        string
	Debug       bool
	MaxIdleConn int
	MaxOpenConn int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		Debug:       false,
		MaxIdleConn: 1,
		MaxOpenConn: 1,
	}
}

// Open creates the database connection, runs schema migrations and the
// backfill pass. Failure here is fatal to every dependent component; callers
// surface it once and stop, they do not retry.
func Open(cfg Config) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %v", ErrStorageUnavailable, err)
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	// DELETE journal mode for simpler transaction handling
	// (WAL mode has visibility issues with the pure-Go SQLite driver)
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", cfg.Path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrStorageUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: get sql.DB: %v", ErrStorageUnavailable, err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Hour)

	wrapped := &Store{DB: db, path: cfg.Path}

	if err := wrapped.migrate(); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", ErrStorageUnavailable, err)
	}

	if err := wrapped.setupFTS(); err != nil {
		return nil, fmt.Errorf("%w: setup FTS: %v", ErrStorageUnavailable, err)
	}

	if err := wrapped.backfill(); err != nil {
		return nil, fmt.Errorf("%w: backfill: %v", ErrStorageUnavailable, err)
	}

	return wrapped, nil
}

// migrate runs GORM auto-migrations for all models. Missing tables and
// indices are created; existing rows are untouched (backfill handles those).
func (s *Store) migrate() error {
	return s.AutoMigrate(
		&models.ImageRecord{},
		&models.ImageBlob{},
		&models.Tag{},
		&models.TagTombstone{},
		&models.SyncMeta{},
	)
}

// setupFTS creates the FTS5 virtual table and triggers for prompt search.
func (s *Store) setupFTS() error {
	ftsSQL := `
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			prompt,
			prompt_summary,
			content='image_records',
			content_rowid='rowid',
			tokenize='porter unicode61'
		);
	`
	if err := s.Exec(ftsSQL).Error; err != nil {
		return fmt.Errorf("create FTS table: %w", err)
	}

	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS records_ai AFTER INSERT ON image_records BEGIN
			INSERT INTO records_fts(rowid, prompt, prompt_summary)
			VALUES (NEW.rowid, NEW.prompt, NEW.prompt_summary);
		END;`,

		`CREATE TRIGGER IF NOT EXISTS records_ad AFTER DELETE ON image_records BEGIN
			INSERT INTO records_fts(records_fts, rowid, prompt, prompt_summary)
			VALUES ('delete', OLD.rowid, OLD.prompt, OLD.prompt_summary);
		END;`,

		`CREATE TRIGGER IF NOT EXISTS records_au AFTER UPDATE ON image_records BEGIN
			INSERT INTO records_fts(records_fts, rowid, prompt, prompt_summary)
			VALUES ('delete', OLD.rowid, OLD.prompt, OLD.prompt_summary);
			INSERT INTO records_fts(rowid, prompt, prompt_summary)
			VALUES (NEW.rowid, NEW.prompt, NEW.prompt_summary);
		END;`,
	}

	for _, trigger := range triggers {
		if err := s.Exec(trigger).Error; err != nil {
			return fmt.Errorf("create trigger: %w", err)
		}
	}

	return nil
}

// backfill upgrades rows written by older schema versions: NULL favorite
// flags become false and missing sync priorities are derived from the
// favorite flag. Rows that already carry values are not rewritten, so a
// partially-upgraded store stays readable throughout.
func (s *Store) backfill() error {
	stored, err := s.GetSyncMeta(models.SyncMetaSchemaVersion)
	if err != nil {
		return err
	}
	version, _ := strconv.Atoi(stored)
	if version >= models.SchemaVersion {
		return nil
	}

	if err := s.Exec(`UPDATE image_records SET favorite = 0 WHERE favorite IS NULL`).Error; err != nil {
		return fmt.Errorf("backfill favorite: %w", err)
	}
	if err := s.Exec(`
		UPDATE image_records
		SET sync_priority = CASE WHEN favorite THEN 1000 ELSE 0 END
		WHERE sync_priority IS NULL
	`).Error; err != nil {
		return fmt.Errorf("backfill sync priority: %w", err)
	}

	return s.SetSyncMeta(models.SyncMetaSchemaVersion, strconv.Itoa(models.SchemaVersion))
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction executes a function within a database transaction. The
// callback receives a *Store wrapper that uses the transaction.
func (s *Store) Transaction(fc func(tx *Store) error) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		wrappedTx := &Store{DB: tx, path: s.path}
		return fc(wrappedTx)
	})
}

// Stats returns aggregate statistics about the archive.
func (s *Store) Stats() (*models.ArchiveStats, error) {
	var stats models.ArchiveStats

	if err := s.Model(&models.ImageRecord{}).Count(&stats.TotalRecords).Error; err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	if err := s.Model(&models.ImageBlob{}).Count(&stats.TotalBlobs).Error; err != nil {
		return nil, fmt.Errorf("count blobs: %w", err)
	}
	if err := s.Model(&models.Tag{}).Count(&stats.TotalTags).Error; err != nil {
		return nil, fmt.Errorf("count tags: %w", err)
	}
	if err := s.Model(&models.ImageRecord{}).Where("favorite = ?", true).Count(&stats.FavoriteCount).Error; err != nil {
		return nil, fmt.Errorf("count favorites: %w", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.StoreSizeBytes = info.Size()
	}
	stats.LastUpdated = time.Now()

	return &stats, nil
}
