// Package tagsync merges the local tag set with the remote archive's tag
// set. Both replicas mutate independently (multiple devices, multiple open
// instances), so a pass has to tolerate deletions, renames, and concurrent
// edits without a central lock. Tombstones keep locally-deleted tags from
// being resurrected by stale remote reads; duplicate names are folded into
// the earliest-created tag. The merge is first-writer-wins by creation
// timestamp, an accepted heuristic rather than a proven-consistent CRDT.
package tagsync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/artbox-app/artbox/internal/bus"
	"github.com/artbox-app/artbox/internal/log"
	"github.com/artbox-app/artbox/internal/models"
	"github.com/artbox-app/artbox/internal/store"
	"github.com/artbox-app/artbox/internal/sync"
)

// State of a reconciliation pass. Terminal on completion or error.
type State int32

// Reconciliation states.
const (
	StateIdle State = iota
	StateFetching
	StateDiffing
	StateRemapping
	StatePersisting
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateDiffing:
		return "diffing"
	case StateRemapping:
		return "remapping"
	case StatePersisting:
		return "persisting"
	default:
		return "unknown"
	}
}

// ErrPassInFlight is returned when a pass request arrives while one is
// already running. The request is dropped, not queued; the next periodic
// tick retries.
var ErrPassInFlight = errors.New("reconciliation pass already in flight")

// Result summarizes one reconciliation pass. Per-step errors accumulate
// here instead of aborting the pass; local data is never at risk from a
// failed remote call.
type Result struct {
	Uploaded int // tags pushed to the remote
	Pulled   int // remote tags adopted locally
	Remapped int // local ids rewritten to remote ids
	Removed  int // tags deleted locally (remote-driven)
	Deduped  int // name collisions folded post-remap
	Patched  int // cloud metadata patches for affected records
	Errors   []string
}

// Failed reports whether anything went wrong; the last-sync timestamp only
// advances on a clean pass.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

func (r *Result) errorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Reconciler owns the tag set and the tombstone set. No other component
// mutates either; everything it caches is rebuildable from the store.
type Reconciler struct {
	store  *store.Store
	client *sync.Client
	engine *sync.Engine
	events *bus.Bus

	state   atomic.Int32
	running atomic.Bool
	mu      stdsync.Mutex // serializes DeleteTag against a running pass
}

// New creates a reconciler.
func New(s *store.Store, c *sync.Client, e *sync.Engine, events *bus.Bus) *Reconciler {
	return &Reconciler{store: s, client: c, engine: e, events: events}
}

// State returns the current pass state.
func (r *Reconciler) State() State {
	return State(r.state.Load())
}

func (r *Reconciler) setState(s State) {
	r.state.Store(int32(s))
}

// DeleteTag removes a tag locally and schedules the remote deletion. The
// tombstone is written before anything else, so even a crash between local
// and remote deletion cannot let a stale cloud read resurrect the tag. The
// tombstone is cleared only once the remote confirms the deletion (a 404
// counts: the tag is already gone).
func (r *Reconciler) DeleteTag(ctx context.Context, tagID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.AddTombstone(tagID); err != nil {
		return fmt.Errorf("write tombstone: %w", err)
	}
	if err := r.store.DeleteTag(tagID); err != nil {
		return fmt.Errorf("delete tag locally: %w", err)
	}
	if r.events != nil {
		r.events.Publish(bus.TopicTagsChanged)
	}

	if !r.client.Authenticated() {
		// Anonymous: the tombstone stays until a later pass confirms.
		return nil
	}

	err := r.client.DeleteTag(ctx, tagID)
	if err != nil && !errors.Is(err, sync.ErrNotFound) {
		// Remote deletion pending; the tombstone keeps the id excluded
		// from reconciliation until the next pass retries.
		return err
	}
	return r.store.ClearTombstone(tagID)
}

// Reconcile runs one pass: fetch remote tags, diff against local, apply id
// remaps, apply remote-driven removals, fold duplicate names, persist and
// upload. Only one pass runs at a time; overlapping requests get
// ErrPassInFlight. Running the same pass twice with no intervening change
// converges: the second pass finds nothing to do.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrPassInFlight
	}
	defer r.running.Store(false)
	defer r.setState(StateIdle)

	result := &Result{}

	if !r.client.Authenticated() {
		// Local-only: nothing to merge against.
		return result, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// --- Fetching ---
	r.setState(StateFetching)

	// Retry pending tombstones first, so the subsequent remote fetch
	// reflects the deletions.
	tombstones, err := r.store.ListTombstones()
	if err != nil {
		return result, fmt.Errorf("list tombstones: %w", err)
	}
	for id := range tombstones {
		err := r.client.DeleteTag(ctx, id)
		if err == nil || errors.Is(err, sync.ErrNotFound) {
			if err := r.store.ClearTombstone(id); err != nil {
				result.errorf("clear tombstone %s: %v", id, err)
			}
			delete(tombstones, id)
			continue
		}
		// Still pending: keep the id excluded below.
		result.errorf("remote delete %s: %v", id, err)
	}

	remoteTags, err := r.client.ListTags(ctx)
	if err != nil {
		return result, fmt.Errorf("fetch remote tags: %w", err)
	}
	localTags, err := r.store.ListTags()
	if err != nil {
		return result, fmt.Errorf("list local tags: %w", err)
	}
	lastSync, err := r.store.GetSyncMetaTime(models.SyncMetaLastTagSync)
	if err != nil {
		return result, fmt.Errorf("read last sync time: %w", err)
	}

	// --- Diffing ---
	r.setState(StateDiffing)

	remoteByID := make(map[string]sync.RemoteTag)
	remoteBySlug := make(map[string]sync.RemoteTag)
	for _, rt := range remoteTags {
		if tombstones[rt.ID] {
			// A tombstoned id never re-enters, even if the remote still
			// lists it.
			continue
		}
		remoteByID[rt.ID] = rt
		remoteBySlug[models.NormalizeTagName(rt.Name)] = rt
	}

	// Empty remote plus existing local tags means first sync: everything
	// local is an upload candidate, nothing is a deletion.
	firstSync := len(remoteByID) == 0 && len(localTags) > 0

	localByID := make(map[string]models.Tag, len(localTags))
	var uploads []models.Tag
	remaps := make(map[string]sync.RemoteTag) // local id -> winning remote tag
	var removals []string

	for _, lt := range localTags {
		if tombstones[lt.ID] {
			continue
		}
		localByID[lt.ID] = lt

		if rt, ok := remoteByID[lt.ID]; ok {
			// Same id on both sides: keep it, merge the color toward
			// whichever replica has one.
			if rt.Color == "" && lt.Color != "" {
				uploads = append(uploads, lt)
			} else if lt.Color == "" && rt.Color != "" {
				lt.Color = rt.Color
				if err := r.store.UpsertTag(&lt); err != nil {
					result.errorf("adopt color for %s: %v", lt.ID, err)
				}
			}
			continue
		}
		if rt, ok := remoteBySlug[models.NormalizeTagName(lt.Name)]; ok {
			// Same name, different id: remap instead of duplicating.
			remaps[lt.ID] = rt
			continue
		}
		if firstSync || lastSync.IsZero() || !lt.CreatedAt.Before(lastSync) {
			// Created since the last successful sync (or never synced):
			// the remote simply hasn't seen it yet.
			uploads = append(uploads, lt)
			continue
		}
		// Known to the remote at last sync and gone now: deleted on
		// another device.
		removals = append(removals, lt.ID)
	}

	// Remote tags unknown locally are adopted (tombstoned ids were
	// filtered above).
	for id, rt := range remoteByID {
		if _, ok := localByID[id]; ok {
			continue
		}
		claimed := false
		for _, target := range remaps {
			if target.ID == id {
				claimed = true // arrives via the merge below
				break
			}
		}
		if claimed {
			continue
		}
		tag := remoteToLocal(rt)
		if err := r.store.UpsertTag(&tag); err != nil {
			result.errorf("adopt remote tag %s: %v", id, err)
			continue
		}
		result.Pulled++
	}

	// --- Remapping ---
	r.setState(StateRemapping)

	for localID, rt := range remaps {
		winner := remoteToLocal(rt)
		affected, err := r.store.RecordUUIDsWithTag(localID)
		if err != nil {
			result.errorf("records of %s: %v", localID, err)
			affected = nil
		}
		if err := r.store.MergeTags(localID, &winner); err != nil {
			result.errorf("remap %s -> %s: %v", localID, winner.ID, err)
			continue
		}
		result.Remapped++
		result.Patched += r.patchRecords(ctx, affected, result)
	}

	// --- Removals (remote-driven) ---
	for _, id := range removals {
		affected, err := r.store.RecordUUIDsWithTag(id)
		if err != nil {
			result.errorf("records of %s: %v", id, err)
			affected = nil
		}
		if err := r.store.DeleteTag(id); err != nil {
			result.errorf("remove %s: %v", id, err)
			continue
		}
		result.Removed++
		result.Patched += r.patchRecords(ctx, affected, result)
	}

	// Second dedupe: independently-created tags can collide by name only
	// after the remap round. Earliest creation wins.
	deduped, err := r.dedupeByName(ctx, result)
	if err != nil {
		result.errorf("dedupe: %v", err)
	}
	result.Deduped = deduped

	// --- Persisting ---
	r.setState(StatePersisting)

	for _, tag := range uploads {
		if err := r.client.PushTag(ctx, localToRemote(tag)); err != nil {
			result.errorf("upload tag %q: %v", tag.Name, err)
			continue
		}
		result.Uploaded++
	}

	if err := r.store.UpdateTagCounts(); err != nil {
		result.errorf("update tag counts: %v", err)
	}

	if !result.Failed() {
		if err := r.store.SetSyncMetaTime(models.SyncMetaLastTagSync, time.Now()); err != nil {
			result.errorf("advance last sync: %v", err)
		}
	}

	if r.events != nil && (result.Remapped+result.Removed+result.Deduped+result.Pulled) > 0 {
		r.events.Publish(bus.TopicTagsChanged)
	}

	return result, nil
}

// dedupeByName folds local tags sharing a normalized name into the
// earliest-created one and returns how many losers were merged.
func (r *Reconciler) dedupeByName(ctx context.Context, result *Result) (int, error) {
	tags, err := r.store.ListTags()
	if err != nil {
		return 0, err
	}

	byName := make(map[string][]models.Tag)
	for _, t := range tags {
		key := models.NormalizeTagName(t.Name)
		byName[key] = append(byName[key], t)
	}

	merged := 0
	for _, group := range byName {
		if len(group) < 2 {
			continue
		}
		winner := group[0]
		for _, t := range group[1:] {
			if t.CreatedAt.Before(winner.CreatedAt) {
				winner = t
			}
		}
		for _, loser := range group {
			if loser.ID == winner.ID {
				continue
			}
			affected, err := r.store.RecordUUIDsWithTag(loser.ID)
			if err != nil {
				result.errorf("records of %s: %v", loser.ID, err)
				affected = nil
			}
			if err := r.store.MergeTags(loser.ID, &winner); err != nil {
				result.errorf("fold %s into %s: %v", loser.ID, winner.ID, err)
				continue
			}
			merged++
			result.Patched += r.patchRecords(ctx, affected, result)
		}
	}
	return merged, nil
}

// patchRecords pushes the post-remap tag list of affected records to the
// cloud. Never-synced records need no patch; errors accumulate.
func (r *Reconciler) patchRecords(ctx context.Context, uuids []string, result *Result) int {
	patched := 0
	for _, uuid := range uuids {
		if !r.engine.IsSynced(uuid) {
			continue
		}
		rec, err := r.store.GetRecord(uuid)
		if err != nil || rec == nil {
			result.errorf("reload %s: %v", uuid, err)
			continue
		}
		ids := rec.TagIDs()
		ok, err := r.engine.UpdateMetadata(ctx, uuid, sync.MetadataPatch{Tags: &ids})
		if err != nil {
			result.errorf("patch %s: %v", uuid, err)
			continue
		}
		if ok {
			patched++
		}
	}
	return patched
}

// Run drives periodic passes until the context is canceled. A failed pass
// is retried on the next tick; no backoff beyond the fixed interval.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := r.Reconcile(ctx)
			if err != nil {
				if !errors.Is(err, ErrPassInFlight) {
					log.Errorf("tagsync: pass failed: %v", err)
				}
				continue
			}
			if result.Failed() {
				log.Errorf("tagsync: pass finished with %d errors", len(result.Errors))
			}
		}
	}
}

func remoteToLocal(rt sync.RemoteTag) models.Tag {
	return models.Tag{
		ID:        rt.ID,
		Name:      rt.Name,
		Slug:      models.NormalizeTagName(rt.Name),
		Color:     rt.Color,
		CreatedAt: rt.CreatedAt,
	}
}

func localToRemote(t models.Tag) sync.RemoteTag {
	return sync.RemoteTag{
		ID:        t.ID,
		Name:      t.Name,
		Color:     t.Color,
		CreatedAt: t.CreatedAt,
	}
}
