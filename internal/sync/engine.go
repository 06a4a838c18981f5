package sync

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	stdsync "sync"
	"time"

	"github.com/artbox-app/artbox/internal/bus"
	"github.com/artbox-app/artbox/internal/log"
	"github.com/artbox-app/artbox/internal/models"
	"github.com/artbox-app/artbox/internal/store"
)

// Recency bonus thresholds for upload priority.
const (
	recentWindow   = 7 * 24 * time.Hour
	midtermWindow  = 30 * 24 * time.Hour
	favoriteWeight = 1000
	taggedWeight   = 50
	recentBonus    = 30
	midtermBonus   = 15
)

// Priority computes the upload priority of a record. Deterministic and pure:
// favorites dominate, tagged records beat untagged ones, and recent work
// beats the backlog. Ties preserve input order (callers stable-sort).
func Priority(rec *models.ImageRecord, now time.Time) int {
	p := 0
	if rec.Favorite {
		p += favoriteWeight
	}
	if len(rec.Tags) > 0 {
		p += taggedWeight
	}
	age := now.Sub(rec.Timestamp)
	switch {
	case age < recentWindow:
		p += recentBonus
	case age < midtermWindow:
		p += midtermBonus
	}
	return p
}

// BlobResolver loads the payload for a record about to be uploaded. Page
// and batch code resolve blobs lazily through this instead of preloading.
type BlobResolver func(uuid string) (*models.ImageBlob, error)

// ProgressFunc receives (current, total) after each upload attempt.
type ProgressFunc func(current, total int)

// BatchResult accumulates the outcome of one sync batch. Partial success is
// a normal outcome, not a failure of the whole batch.
type BatchResult struct {
	Uploaded int
	Skipped  int // already synced
	Errors   []error
}

// Summary renders counts plus per-item messages for user display.
func (r *BatchResult) Summary() string {
	s := fmt.Sprintf("%d uploaded, %d already synced, %d failed; local data is unaffected",
		r.Uploaded, r.Skipped, len(r.Errors))
	for _, err := range r.Errors {
		s += "\n  " + err.Error()
	}
	return s
}

// Engine tracks which records exist in the remote archive and pushes local
// records under the cloud quota. The synced-id set and quota counters are
// derived, rebuildable caches owned exclusively by the engine; the store
// remains the single source of truth for record data.
type Engine struct {
	store  *store.Store
	client *Client
	events *bus.Bus

	mu         stdsync.Mutex
	syncedIDs  map[string]bool
	quotaUsed  int
	quotaLimit int
	enabled    bool
	lastSync   time.Time
	inProgress bool
}

// NewEngine creates a sync engine. Call Refresh before the first batch to
// rebuild the synced-id cache from the server.
func NewEngine(s *store.Store, c *Client, events *bus.Bus) *Engine {
	return &Engine{
		store:     s,
		client:    c,
		events:    events,
		syncedIDs: make(map[string]bool),
	}
}

// Refresh rebuilds the synced-id set and quota counters from the remote
// status endpoint. Anonymous users degrade to local-only silently.
func (e *Engine) Refresh(ctx context.Context) error {
	if !e.client.Authenticated() {
		e.mu.Lock()
		e.enabled = false
		e.mu.Unlock()
		return nil
	}

	status, err := e.client.Status(ctx)
	if err != nil {
		return fmt.Errorf("refresh sync status: %w", err)
	}

	ids := make(map[string]bool, len(status.SyncedIDs))
	for _, id := range status.SyncedIDs {
		ids[id] = true
	}

	e.mu.Lock()
	e.enabled = status.Enabled
	e.quotaUsed = status.QuotaUsed
	e.quotaLimit = status.QuotaLimit
	e.lastSync = status.LastSyncTime
	e.syncedIDs = ids
	e.mu.Unlock()

	return nil
}

// Status returns a snapshot of the transient sync state.
func (e *Engine) Status() models.SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.syncedIDs))
	for id := range e.syncedIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return models.SyncStatus{
		Enabled:      e.enabled,
		QuotaUsed:    e.quotaUsed,
		QuotaLimit:   e.quotaLimit,
		LastSyncTime: e.lastSync,
		InProgress:   e.inProgress,
		SyncedIDs:    ids,
	}
}

// IsSynced reports whether the uuid is known to exist in the remote archive.
func (e *Engine) IsSynced(uuid string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncedIDs[uuid]
}

// quotaAvailable reports whether a first-time upload fits under the quota.
// A non-positive limit means unlimited.
func (e *Engine) quotaAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quotaLimit <= 0 || e.quotaUsed < e.quotaLimit
}

// SyncOne uploads one record and its payload as a single unit. First-time
// uploads consume quota; already-synced records may always be overwritten.
func (e *Engine) SyncOne(ctx context.Context, rec *models.ImageRecord, blob *models.ImageBlob) error {
	if !e.client.Authenticated() {
		return ErrNotAuthenticated
	}

	already := e.IsSynced(rec.UUID)
	if !already && !e.quotaAvailable() {
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, rec.UUID)
	}

	priority := Priority(rec, time.Now())
	if err := e.client.UploadImage(ctx, toRemote(rec, blob, priority)); err != nil {
		return err
	}

	e.mu.Lock()
	if !e.syncedIDs[rec.UUID] {
		e.syncedIDs[rec.UUID] = true
		e.quotaUsed++
	}
	e.mu.Unlock()

	// Persist the derived priority as a hint; it is recomputed at every
	// sync and never trusted across devices.
	if err := e.store.Model(&models.ImageRecord{}).
		Where("uuid = ?", rec.UUID).
		Update("sync_priority", priority).Error; err != nil {
		log.Errorf("sync: persist priority for %s: %v", rec.UUID, err)
	}

	return nil
}

// SyncBatch uploads candidates in strictly non-increasing priority order,
// capped by the quota. Already-synced records are skipped; items past the
// quota fail with ErrQuotaExceeded; per-item errors accumulate without
// aborting the batch. Uploads run sequentially so the quota check observes
// each increment before the next attempt.
func (e *Engine) SyncBatch(ctx context.Context, records []models.ImageRecord, resolve BlobResolver, progress ProgressFunc) *BatchResult {
	result := &BatchResult{}

	if !e.client.Authenticated() {
		result.Errors = append(result.Errors, ErrNotAuthenticated)
		return result
	}

	e.mu.Lock()
	e.inProgress = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inProgress = false
		e.mu.Unlock()
	}()

	now := time.Now()
	candidates := make([]models.ImageRecord, 0, len(records))
	for _, rec := range records {
		if e.IsSynced(rec.UUID) {
			result.Skipped++
			continue
		}
		candidates = append(candidates, rec)
	}

	// Stable sort: favorites first regardless of backlog size, ties keep
	// their original relative order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return Priority(&candidates[i], now) > Priority(&candidates[j], now)
	})

	total := len(candidates)
	for i := range candidates {
		rec := &candidates[i]

		// Interruptible at item boundaries only.
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err)
			break
		}

		err := e.syncCandidate(ctx, rec, resolve)
		if err != nil {
			result.Errors = append(result.Errors, err)
		} else {
			result.Uploaded++
		}
		if progress != nil {
			progress(i+1, total)
		}
	}

	if result.Uploaded > 0 {
		_ = e.store.SetSyncMetaTime(models.SyncMetaLastImageSync, time.Now())
		if e.events != nil {
			e.events.Publish(bus.TopicSyncCompleted)
		}
	}

	return result
}

// syncCandidate uploads one batch item, checking quota before paying for
// blob resolution.
func (e *Engine) syncCandidate(ctx context.Context, rec *models.ImageRecord, resolve BlobResolver) error {
	if !e.quotaAvailable() {
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, rec.UUID)
	}
	blob, err := resolve(rec.UUID)
	if err != nil {
		return fmt.Errorf("resolve payload %s: %w", rec.UUID, err)
	}
	return e.SyncOne(ctx, rec, blob)
}

// DownloadAll fetches every remote record (optionally with payloads) and
// merges additively: nothing local is deleted or overwritten, local data
// always wins for an existing uuid. Returned uuids are marked synced.
func (e *Engine) DownloadAll(ctx context.Context, includeBlobs bool) (int, error) {
	if !e.client.Authenticated() {
		return 0, nil
	}

	remotes, err := e.client.ListImages(ctx, includeBlobs)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, rr := range remotes {
		existing, err := e.store.GetRecord(rr.UUID)
		if err != nil {
			log.Errorf("sync: read local %s: %v", rr.UUID, err)
			continue
		}

		if existing == nil {
			rec := e.fromRemote(rr)
			blob, err := e.remoteBlob(rr)
			if err != nil {
				log.Errorf("sync: payload of %s: %v", rr.UUID, err)
			}
			if blob != nil {
				err = e.store.PutRecordWithBlob(rec, blob)
			} else {
				err = e.store.PutRecord(rec)
			}
			if err != nil {
				log.Errorf("sync: merge %s: %v", rr.UUID, err)
				continue
			}
			if len(rec.Tags) > 0 {
				if err := e.store.SetRecordTags(rec.UUID, rec.Tags); err != nil {
					log.Errorf("sync: tags of %s: %v", rr.UUID, err)
				}
			}
			added++
		} else if includeBlobs {
			// Backfill a missing payload but never replace local bytes.
			if has, err := e.store.HasBlob(rr.UUID); err == nil && !has {
				if blob, err := e.remoteBlob(rr); err == nil && blob != nil {
					if err := e.store.PutBlob(blob); err != nil {
						log.Errorf("sync: restore blob %s: %v", rr.UUID, err)
					}
				}
			}
		}

		e.mu.Lock()
		e.syncedIDs[rr.UUID] = true
		e.mu.Unlock()
	}

	if added > 0 && e.events != nil {
		e.events.Publish(bus.TopicRecordsChanged)
	}

	return added, nil
}

// UpdateMetadata issues a cheap metadata-only patch for a synced record.
// Returns false without error when the uuid was never synced; callers fall
// back to a full SyncOne in that case.
func (e *Engine) UpdateMetadata(ctx context.Context, uuid string, patch MetadataPatch) (bool, error) {
	if !e.client.Authenticated() {
		return false, nil
	}
	if !e.IsSynced(uuid) {
		return false, nil
	}
	if err := e.client.PatchImage(ctx, uuid, patch); err != nil {
		return false, err
	}
	return true, nil
}

// Unsync removes the remote copy and the local synced marker. This is the
// only operation that reduces quota usage. A remote 404 counts as already
// removed.
func (e *Engine) Unsync(ctx context.Context, uuid string) error {
	if !e.client.Authenticated() {
		return nil
	}

	if err := e.client.DeleteImage(ctx, uuid); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	e.mu.Lock()
	if e.syncedIDs[uuid] {
		delete(e.syncedIDs, uuid)
		if e.quotaUsed > 0 {
			e.quotaUsed--
		}
	}
	e.mu.Unlock()

	return nil
}

// toRemote builds the wire record for one upload.
func toRemote(rec *models.ImageRecord, blob *models.ImageBlob, priority int) RemoteRecord {
	rr := RemoteRecord{
		UUID:           rec.UUID,
		Prompt:         rec.Prompt,
		PromptSummary:  rec.PromptSummary,
		NegativePrompt: rec.NegativePrompt,
		Model:          rec.Model,
		Seed:           rec.Seed,
		CFG:            rec.CFG,
		Width:          rec.Width,
		Height:         rec.Height,
		AspectRatio:    rec.AspectRatio,
		Loras:          rec.Loras,
		Regional:       rec.Regional,
		IsFavorite:     rec.Favorite,
		Tags:           rec.TagIDs(),
		Timestamp:      rec.Timestamp,
		SyncPriority:   priority,
	}
	if blob != nil {
		rr.PayloadBase64 = base64.StdEncoding.EncodeToString(blob.Data)
		rr.ContentType = blob.ContentType
	}
	return rr
}

// fromRemote converts a wire record into a local one, attaching only tags
// that already exist locally; the reconciler owns tag creation.
func (e *Engine) fromRemote(rr RemoteRecord) *models.ImageRecord {
	rec := &models.ImageRecord{
		UUID:           rr.UUID,
		Prompt:         rr.Prompt,
		PromptSummary:  rr.PromptSummary,
		NegativePrompt: rr.NegativePrompt,
		Model:          rr.Model,
		Seed:           rr.Seed,
		CFG:            rr.CFG,
		Width:          rr.Width,
		Height:         rr.Height,
		AspectRatio:    rr.AspectRatio,
		Loras:          rr.Loras,
		Regional:       rr.Regional,
		Favorite:       rr.IsFavorite,
		Timestamp:      rr.Timestamp,
		SyncPriority:   rr.SyncPriority,
	}
	for _, tagID := range rr.Tags {
		tag, err := e.store.GetTag(tagID)
		if err != nil || tag == nil {
			continue
		}
		rec.Tags = append(rec.Tags, *tag)
	}
	return rec
}

// remoteBlob decodes the payload of a wire record, when present.
func (e *Engine) remoteBlob(rr RemoteRecord) (*models.ImageBlob, error) {
	payload, err := rr.Payload()
	if err != nil || payload == nil {
		return nil, err
	}
	contentType := rr.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &models.ImageBlob{UUID: rr.UUID, Data: payload, ContentType: contentType}, nil
}
