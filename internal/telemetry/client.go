// Package telemetry provides anonymous usage tracking via PostHog.
package telemetry

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
)

// PostHogAPIKey is set at compile time via ldflags.
var PostHogAPIKey string

// Client interface for telemetry operations.
type Client interface {
	Track(event string, properties map[string]interface{})
	Close()

	TrackAppStarted(recordCount int64, syncEnabled bool)
	TrackSyncBatchCompleted(uploaded, skipped, failed int)
	TrackDownloadCompleted(added int, includeBlobs bool)
	TrackReconcileCompleted(uploaded, remapped, removed, deduped int, failed bool)
	TrackMigrationCompleted(migrated, skipped int)
}

// posthogClient wraps the PostHog SDK.
type posthogClient struct {
	client    posthog.Client
	sessionID string
	mu        sync.Mutex
}

// noopClient does nothing (for disabled telemetry).
type noopClient struct{}

// IsEnabled returns true if telemetry is enabled.
// Telemetry is opt-out: enabled by default unless ARTBOX_TELEMETRY_ENABLED=false.
func IsEnabled() bool {
	return os.Getenv("ARTBOX_TELEMETRY_ENABLED") != "false" && PostHogAPIKey != ""
}

// New creates a telemetry client with a per-session anonymous id.
func New() Client {
	if !IsEnabled() {
		return &noopClient{}
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:  "https://us.i.posthog.com",
		BatchSize: 250,
		Interval:  5 * time.Second,
	})
	if err != nil {
		return &noopClient{}
	}

	return &posthogClient{
		client:    client,
		sessionID: uuid.New().String(),
	}
}

// Track sends an event to PostHog.
func (c *posthogClient) Track(event string, properties map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	props := posthog.NewProperties()
	props.Set("$process_person_profile", false)
	props.Set("$geoip_disable", true)

	for k, v := range properties {
		props.Set(k, v)
	}

	_ = c.client.Enqueue(posthog.Capture{
		DistinctId: c.sessionID,
		Event:      event,
		Properties: props,
	})
}

// Close flushes remaining events and closes the client.
func (c *posthogClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.client.Close()
}

func (c *posthogClient) TrackAppStarted(recordCount int64, syncEnabled bool) {
	c.Track("app_started", map[string]interface{}{
		"record_count": recordCount,
		"sync_enabled": syncEnabled,
	})
}

func (c *posthogClient) TrackSyncBatchCompleted(uploaded, skipped, failed int) {
	c.Track("sync_batch_completed", map[string]interface{}{
		"uploaded": uploaded,
		"skipped":  skipped,
		"failed":   failed,
	})
}

func (c *posthogClient) TrackDownloadCompleted(added int, includeBlobs bool) {
	c.Track("download_completed", map[string]interface{}{
		"added":         added,
		"include_blobs": includeBlobs,
	})
}

func (c *posthogClient) TrackReconcileCompleted(uploaded, remapped, removed, deduped int, failed bool) {
	c.Track("reconcile_completed", map[string]interface{}{
		"uploaded": uploaded,
		"remapped": remapped,
		"removed":  removed,
		"deduped":  deduped,
		"failed":   failed,
	})
}

func (c *posthogClient) TrackMigrationCompleted(migrated, skipped int) {
	c.Track("migration_completed", map[string]interface{}{
		"migrated": migrated,
		"skipped":  skipped,
	})
}

// No-op implementations for disabled telemetry.
func (c *noopClient) Track(event string, properties map[string]interface{}) {}
func (c *noopClient) Close()                                                {}
func (c *noopClient) TrackAppStarted(recordCount int64, syncEnabled bool)   {}
func (c *noopClient) TrackSyncBatchCompleted(uploaded, skipped, failed int) {}
func (c *noopClient) TrackDownloadCompleted(added int, includeBlobs bool)   {}
func (c *noopClient) TrackReconcileCompleted(u, rm, rv, d int, failed bool) {}
func (c *noopClient) TrackMigrationCompleted(migrated, skipped int)         {}
