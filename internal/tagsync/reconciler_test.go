package tagsync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artbox-app/artbox/internal/models"
	"github.com/artbox-app/artbox/internal/store"
	"github.com/artbox-app/artbox/internal/sync"
	"github.com/artbox-app/artbox/internal/testutil"
)

const testToken = "test-token"

func testStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(store.DefaultConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testReconciler(t *testing.T, f *testutil.FakeArchive) (*store.Store, *sync.Engine, *Reconciler) {
	t.Helper()

	s := testStore(t)
	client := sync.NewClient(f.URL(), testToken, 600)
	engine := sync.NewEngine(s, client, nil)
	return s, engine, New(s, client, engine, nil)
}

func TestReconcile_Anonymous(t *testing.T) {
	s := testStore(t)
	client := sync.NewClient("http://127.0.0.1:0", "", 60)
	r := New(s, client, sync.NewEngine(s, client, nil), nil)

	require.NoError(t, s.CreateTag(&models.Tag{ID: "t1", Name: "local only"}))

	result, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Uploaded)
	assert.False(t, result.Failed())

	// Local tags are untouched.
	tags, err := s.ListTags()
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestReconcile_FirstSyncUploadsEverything(t *testing.T) {
	f := testutil.NewFakeArchive(t, testToken)
	s, _, r := testReconciler(t, f)

	require.NoError(t, s.CreateTag(&models.Tag{ID: "t1", Name: "landscapes"}))
	require.NoError(t, s.CreateTag(&models.Tag{ID: "t2", Name: "portraits"}))

	result, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.False(t, result.Failed(), "errors: %v", result.Errors)

	assert.Equal(t, 2, result.Uploaded)
	assert.Zero(t, result.Removed)
	assert.True(t, f.HasTag("t1"))
	assert.True(t, f.HasTag("t2"))

	lastSync, err := s.GetSyncMetaTime(models.SyncMetaLastTagSync)
	require.NoError(t, err)
	assert.False(t, lastSync.IsZero())
}

func TestReconcile_Idempotent(t *testing.T) {
	f := testutil.NewFakeArchive(t, testToken)
	s, _, r := testReconciler(t, f)
	ctx := context.Background()

	require.NoError(t, s.CreateTag(&models.Tag{ID: "t1", Name: "landscapes"}))
	f.SeedTag("t2", "portraits", "", time.Now().Add(-time.Hour))

	first, err := r.Reconcile(ctx)
	require.NoError(t, err)
	require.False(t, first.Failed(), "errors: %v", first.Errors)

	// Re-running against an unchanged world finds nothing to do.
	second, err := r.Reconcile(ctx)
	require.NoError(t, err)
	require.False(t, second.Failed(), "errors: %v", second.Errors)
	assert.Zero(t, second.Uploaded)
	assert.Zero(t, second.Pulled)
	assert.Zero(t, second.Remapped)
	assert.Zero(t, second.Removed)
	assert.Zero(t, second.Deduped)
}

func TestReconcile_AdoptsRemoteTags(t *testing.T) {
	f := testutil.NewFakeArchive(t, testToken)
	s, _, r := testReconciler(t, f)

	f.SeedTag("remote-1", "from the cloud", "#112233", time.Now().Add(-time.Hour))

	result, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.False(t, result.Failed(), "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Pulled)

	tag, err := s.GetTag("remote-1")
	require.NoError(t, err)
	require.NotNil(t, tag)
	assert.Equal(t, "from the cloud", tag.Name)
	assert.Equal(t, "#112233", tag.Color)
}

func TestReconcile_RemapsSameNameDifferentID(t *testing.T) {
	f := testutil.NewFakeArchive(t, testToken)
	s, engine, r := testReconciler(t, f)
	ctx := context.Background()

	// Device A already synced its "Sunset" tag; this device created its own
	// under a different id and applied it to a synced record.
	f.SeedTag("remote-id", "Sunset", "", time.Now().Add(-2*time.Hour))
	f.SeedImage("r1", map[string]interface{}{"tags": []string{}})

	require.NoError(t, s.CreateTag(&models.Tag{ID: "local-id", Name: "sunset"}))
	require.NoError(t, s.PutRecord(&models.ImageRecord{UUID: "r1"}))
	local, err := s.GetTag("local-id")
	require.NoError(t, err)
	require.NoError(t, s.SetRecordTags("r1", []models.Tag{*local}))
	require.NoError(t, engine.Refresh(ctx))

	result, err := r.Reconcile(ctx)
	require.NoError(t, err)
	require.False(t, result.Failed(), "errors: %v", result.Errors)

	assert.Equal(t, 1, result.Remapped)
	assert.Equal(t, 1, result.Patched)

	// The local id is gone; the record now carries the remote id.
	gone, err := s.GetTag("local-id")
	require.NoError(t, err)
	assert.Nil(t, gone)

	rec, err := s.GetRecord("r1")
	require.NoError(t, err)
	require.Len(t, rec.Tags, 1)
	assert.Equal(t, "remote-id", rec.Tags[0].ID)

	// The cloud copy of the record was patched to the winning id.
	assert.Equal(t, []interface{}{"remote-id"}, f.ImageField("r1", "tags"))
}

func TestReconcile_RemoteDeletionPropagates(t *testing.T) {
	f := testutil.NewFakeArchive(t, testToken)
	s, _, r := testReconciler(t, f)

	// Both tags were known at the last sync; "stale" was deleted on another
	// device since then.
	created := time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.CreateTag(&models.Tag{ID: "keeper", Name: "keeper", CreatedAt: created}))
	require.NoError(t, s.CreateTag(&models.Tag{ID: "stale", Name: "stale", CreatedAt: created}))
	f.SeedTag("keeper", "keeper", "", created)
	require.NoError(t, s.SetSyncMetaTime(models.SyncMetaLastTagSync, time.Now().Add(-time.Hour)))

	result, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.False(t, result.Failed(), "errors: %v", result.Errors)

	assert.Equal(t, 1, result.Removed)
	gone, err := s.GetTag("stale")
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := s.GetTag("keeper")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestReconcile_NewLocalTagSurvivesRemoteSilence(t *testing.T) {
	f := testutil.NewFakeArchive(t, testToken)
	s, _, r := testReconciler(t, f)

	// Created after the last sync: absence from the remote means "not yet
	// uploaded", not "deleted elsewhere".
	f.SeedTag("keeper", "keeper", "", time.Now().Add(-2*time.Hour))
	require.NoError(t, s.SetSyncMetaTime(models.SyncMetaLastTagSync, time.Now().Add(-time.Hour)))
	require.NoError(t, s.CreateTag(&models.Tag{ID: "fresh", Name: "fresh", CreatedAt: time.Now()}))

	result, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.False(t, result.Failed(), "errors: %v", result.Errors)

	assert.Zero(t, result.Removed)
	assert.Equal(t, 1, result.Uploaded)
	assert.True(t, f.HasTag("fresh"))
}

func TestDeleteTag_ClearsTombstoneOnConfirmedDelete(t *testing.T) {
	f := testutil.NewFakeArchive(t, testToken)
	s, _, r := testReconciler(t, f)

	require.NoError(t, s.CreateTag(&models.Tag{ID: "t1", Name: "doomed"}))
	f.SeedTag("t1", "doomed", "", time.Now())

	require.NoError(t, r.DeleteTag(context.Background(), "t1"))

	gone, err := s.GetTag("t1")
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.False(t, f.HasTag("t1"))

	dead, err := s.IsTombstoned("t1")
	require.NoError(t, err)
	assert.False(t, dead, "tombstone must be cleared after confirmed remote delete")
}

func TestDeleteTag_OfflineThenReconcile(t *testing.T) {
	f := testutil.NewFakeArchive(t, testToken)
	s, _, r := testReconciler(t, f)

	// The tag exists on both sides; the local delete happens while
	// anonymous (offline), leaving a pending tombstone.
	require.NoError(t, s.CreateTag(&models.Tag{ID: "t1", Name: "doomed"}))
	f.SeedTag("t1", "doomed", "", time.Now().Add(-time.Hour))

	offline := New(s, sync.NewClient("http://127.0.0.1:0", "", 60), nil, nil)
	require.NoError(t, offline.DeleteTag(context.Background(), "t1"))

	dead, err := s.IsTombstoned("t1")
	require.NoError(t, err)
	require.True(t, dead)

	// Back online: the pass retries the deletion before fetching, so the
	// stale remote listing cannot resurrect the tag.
	result, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.False(t, result.Failed(), "errors: %v", result.Errors)

	assert.Zero(t, result.Pulled)
	assert.False(t, f.HasTag("t1"))
	gone, err := s.GetTag("t1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	dead, err = s.IsTombstoned("t1")
	require.NoError(t, err)
	assert.False(t, dead)
}

func TestReconcile_DedupesByCreationTime(t *testing.T) {
	f := testutil.NewFakeArchive(t, testToken)
	s, _, r := testReconciler(t, f)

	earlier := time.Now().Add(-2 * time.Hour)
	// The unique slug index forbids two live tags with the same normalized
	// name, so fake the state a half-finished earlier merge leaves behind:
	// the younger tag holds a retired slug but still has the colliding name.
	require.NoError(t, s.CreateTag(&models.Tag{ID: "younger", Name: "Golden Hour", CreatedAt: time.Now()}))
	require.NoError(t, s.Exec(
		"UPDATE tags SET slug = ? WHERE id = ?", "golden hour~import", "younger").Error)
	require.NoError(t, s.CreateTag(&models.Tag{ID: "older", Name: "golden hour", CreatedAt: earlier}))

	result, err := r.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deduped)
	tags, err := s.ListTags()
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "older", tags[0].ID, "earliest-created tag wins")
}

func TestReconcile_ColorMergesTowardValue(t *testing.T) {
	f := testutil.NewFakeArchive(t, testToken)
	s, _, r := testReconciler(t, f)
	ctx := context.Background()

	created := time.Now().Add(-time.Hour)
	require.NoError(t, s.CreateTag(&models.Tag{ID: "t1", Name: "colorless", CreatedAt: created}))
	f.SeedTag("t1", "colorless", "#abcdef", created)

	result, err := r.Reconcile(ctx)
	require.NoError(t, err)
	require.False(t, result.Failed(), "errors: %v", result.Errors)

	tag, err := s.GetTag("t1")
	require.NoError(t, err)
	assert.Equal(t, "#abcdef", tag.Color, "local adopts the remote color")
}

func TestReconcile_SingleFlight(t *testing.T) {
	f := testutil.NewFakeArchive(t, testToken)
	_, _, r := testReconciler(t, f)

	r.running.Store(true)
	_, err := r.Reconcile(context.Background())
	assert.ErrorIs(t, err, ErrPassInFlight)
	r.running.Store(false)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "fetching", StateFetching.String())
	assert.Equal(t, "remapping", StateRemapping.String())
	assert.Equal(t, "unknown", State(99).String())
}
