package models

import "time"

// SyncMeta stores key-value synchronization metadata.
type SyncMeta struct {
	Key       string    `gorm:"primaryKey;size:50" json:"key"`
	Value     string    `gorm:"size:255" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (SyncMeta) TableName() string {
	return "sync_meta"
}

// Sync metadata keys.
const (
	SyncMetaLastTagSync     = "last_tag_sync"     // RFC3339 time of last successful tag reconciliation
	SyncMetaLastImageSync   = "last_image_sync"   // RFC3339 time of last successful image sync batch
	SyncMetaSchemaVersion   = "schema_version"    // local store schema version
	SyncMetaMigrationCursor = "migration_cursor"  // last migrated legacy uuid, for resume
	SyncMetaMigrationDone   = "migration_done"    // "1" once the legacy table has been drained
)

// SchemaVersion is the current local store schema version. Opening an older
// store triggers the backfill pass in store.Open.
const SchemaVersion = 2

// SyncStatus is the transient view of cloud sync state, rebuilt from server
// responses. It is never persisted or itself synced.
type SyncStatus struct {
	Enabled      bool      `json:"syncEnabled"`
	QuotaUsed    int       `json:"imagesInCloud"`
	QuotaLimit   int       `json:"imageLimit"`
	LastSyncTime time.Time `json:"lastSyncTime"`
	InProgress   bool      `json:"-"`
	SyncedIDs    []string  `json:"syncedIds"`
}
