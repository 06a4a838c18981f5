// Package config handles application configuration management.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	// Base directory for all Artbox data (defaults under XDG data home)
	BaseDir string

	// Remote archive settings
	Archive ArchiveConfig

	// Local storage settings
	Storage StorageConfig
}

// ArchiveConfig holds remote archive API settings.
type ArchiveConfig struct {
	// BaseURL of the archive API, e.g. https://api.artbox.app
	BaseURL string
	// Token is the bearer identity token. Empty means anonymous: every
	// remote operation degrades to a local-only no-op.
	Token string
	// RateLimit is the request budget per minute against the archive.
	RateLimit int
}

// StorageConfig holds local store settings.
type StorageConfig struct {
	// LossyStorage transcodes payloads to the storage codec on write.
	// When false, originals are kept and export needs no reverse transcode.
	LossyStorage bool
	// MigrationBatchSize is the unit of work for the legacy payload
	// migration; the job is resumable at batch boundaries.
	MigrationBatchSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if url := os.Getenv("ARTBOX_API_URL"); url != "" {
		cfg.Archive.BaseURL = url
	}
	if token := os.Getenv("ARTBOX_TOKEN"); token != "" {
		cfg.Archive.Token = token
	}
	if v := os.Getenv("ARTBOX_LOSSY_STORAGE"); v != "" {
		if lossy, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.LossyStorage = lossy
		}
	}
	if dir := os.Getenv("ARTBOX_DATA_DIR"); dir != "" {
		cfg.BaseDir = dir
	}

	if err := ensureDirectories(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ensureDirectories creates required directories if they don't exist.
func ensureDirectories(cfg *Config) error {
	dirs := []string{
		cfg.BaseDir,
		filepath.Join(cfg.BaseDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
