package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncFavoritesOnly bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload local records to the cloud archive",
	Long: `Upload local records to the cloud archive.

Records are uploaded in priority order (favorites first, then tagged and
recent work) until the cloud quota is reached. Already-synced records are
skipped. Partial failures never touch local data.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncFavoritesOnly, "favorites", false, "only sync favorite records")
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return trackCLIError("sync", err)
	}
	defer a.close()

	if !a.client.Authenticated() {
		fmt.Println("Anonymous: nothing to sync. Set ARTBOX_TOKEN to enable cloud sync.")
		return nil
	}

	ctx := cmd.Context()
	if err := a.engine.Refresh(ctx); err != nil {
		return trackCLIError("sync", err)
	}

	list := a.store.ListRecords
	if syncFavoritesOnly {
		list = a.store.ListFavorites
	}
	records, err := list()
	if err != nil {
		return trackCLIError("sync", fmt.Errorf("list records: %w", err))
	}

	result := a.engine.SyncBatch(ctx, records, a.store.GetBlob, func(current, total int) {
		fmt.Printf("\r  uploading %d/%d", current, total)
	})
	if result.Uploaded > 0 {
		fmt.Println()
	}
	fmt.Println(result.Summary())

	telemetryClient.TrackSyncBatchCompleted(result.Uploaded, result.Skipped, len(result.Errors))
	return nil
}
