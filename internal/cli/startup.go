package cli

import (
	"errors"
	"fmt"

	"github.com/artbox-app/artbox/internal/bus"
	"github.com/artbox-app/artbox/internal/config"
	"github.com/artbox-app/artbox/internal/gallery"
	"github.com/artbox-app/artbox/internal/log"
	"github.com/artbox-app/artbox/internal/migration"
	"github.com/artbox-app/artbox/internal/store"
	"github.com/artbox-app/artbox/internal/sync"
	"github.com/artbox-app/artbox/internal/tagsync"
)

// app bundles the components every command wires the same way. The legacy
// payload migration runs during construction, before any query or sync
// logic touches the store.
type app struct {
	cfg        *config.Config
	store      *store.Store
	client     *sync.Client
	engine     *sync.Engine
	reconciler *tagsync.Reconciler
	gallery    *gallery.Gallery
	events     *bus.Bus
}

// openApp loads configuration, opens the store and runs the startup
// migration. A store that cannot be opened is fatal to every command.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	paths := config.GetPaths(cfg)
	if err := log.Init(paths.Logs); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	s, err := store.Open(store.DefaultConfig(paths.Database))
	if err != nil {
		return nil, err
	}

	migResult, err := migration.MigrateLegacyPayloads(s, cfg.Storage.MigrationBatchSize)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("legacy migration: %w", err)
	}
	if migResult.Migrated > 0 || migResult.Skipped > 0 {
		telemetryClient.TrackMigrationCompleted(migResult.Migrated, migResult.Skipped)
	}
	if count, err := s.CountRecords(); err == nil {
		telemetryClient.TrackAppStarted(count, cfg.Archive.Token != "")
	}

	events := bus.New()
	client := sync.NewClient(cfg.Archive.BaseURL, cfg.Archive.Token, cfg.Archive.RateLimit)
	engine := sync.NewEngine(s, client, events)

	return &app{
		cfg:        cfg,
		store:      s,
		client:     client,
		engine:     engine,
		reconciler: tagsync.New(s, client, engine, events),
		gallery:    gallery.New(s, engine),
		events:     events,
	}, nil
}

// close releases the store and the log file.
func (a *app) close() {
	_ = a.store.Close()
	_ = log.Close()
}

// trackCLIError records a command failure for telemetry and passes the
// error through unchanged.
func trackCLIError(cmdName string, err error) error {
	if err == nil {
		return nil
	}
	telemetryClient.Track("cli_error", map[string]interface{}{
		"command":    cmdName,
		"error_type": classifyError(err),
	})
	return err
}

// classifyError determines the error type for telemetry. Only the taxonomy
// category is recorded, never the message.
func classifyError(err error) string {
	switch {
	case errors.Is(err, store.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, store.ErrItemUnavailable):
		return "item_unavailable"
	case errors.Is(err, sync.ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, sync.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, sync.ErrNotFound):
		return "not_found"
	case errors.Is(err, sync.ErrNetwork):
		return "network"
	default:
		return "other"
	}
}
