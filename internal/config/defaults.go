package config

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseDir: DefaultBaseDir(),

		Archive: ArchiveConfig{
			BaseURL:   "https://api.artbox.app",
			RateLimit: 60, // requests per minute
		},

		Storage: StorageConfig{
			LossyStorage:       true,
			MigrationBatchSize: 25,
		},
	}
}
