// Package cli provides the command-line interface for Artbox.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/artbox-app/artbox/internal/telemetry"
	"github.com/artbox-app/artbox/pkg/version"
)

var telemetryClient telemetry.Client

var commandStartTime time.Time

var rootCmd = &cobra.Command{
	Use:   "artbox",
	Short: "Local-first image archive with cloud sync",
	Long: `Local-first image archive with cloud sync

Every generated image lives in a local store that works fully offline.
An optional cloud archive holds a quota-bounded subset of the library
and keeps tags consistent across devices.

Telemetry:
  Telemetry is enabled by default, always anonymous, and will never track
  prompts, images, or IP addresses.

  Opt-out with:
  	ARTBOX_TELEMETRY_ENABLED=false`,
	Version:      version.Info(),
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		commandStartTime = time.Now()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cmd.Name() != "artbox" {
			durationMs := time.Since(commandStartTime).Milliseconds()
			telemetryClient.Track("cli_command_executed", map[string]interface{}{
				"command":     cmd.Name(),
				"has_flags":   cmd.Flags().NFlag() > 0,
				"duration_ms": durationMs,
			})
		}
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(favoriteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(tagsCmd)
}

// Execute runs the CLI.
func Execute(ctx context.Context, tc telemetry.Client) error {
	if tc == nil {
		tc = telemetry.New()
	}
	telemetryClient = tc

	return rootCmd.ExecuteContext(ctx)
}
