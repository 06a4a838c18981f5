package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive statistics and cloud sync state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return trackCLIError("status", err)
	}
	defer a.close()

	stats, err := a.store.Stats()
	if err != nil {
		return trackCLIError("status", fmt.Errorf("read stats: %w", err))
	}

	fmt.Printf("ARCHIVE (%s)\n", a.store.Path())
	fmt.Printf("  %d records (%d favorites), %d payloads, %d tags\n",
		stats.TotalRecords, stats.FavoriteCount, stats.TotalBlobs, stats.TotalTags)
	fmt.Printf("  store size: %.1f MiB\n", float64(stats.StoreSizeBytes)/(1024*1024))

	if !a.client.Authenticated() {
		fmt.Println("\nCLOUD SYNC: anonymous (set ARTBOX_TOKEN to enable)")
		return nil
	}

	if err := a.engine.Refresh(cmd.Context()); err != nil {
		return trackCLIError("status", err)
	}
	status := a.engine.Status()

	fmt.Println("\nCLOUD SYNC")
	fmt.Printf("  enabled: %t\n", status.Enabled)
	if status.QuotaLimit > 0 {
		fmt.Printf("  quota: %d of %d used\n", status.QuotaUsed, status.QuotaLimit)
	} else {
		fmt.Printf("  quota: %d used (unlimited)\n", status.QuotaUsed)
	}
	if !status.LastSyncTime.IsZero() {
		fmt.Printf("  last sync: %s\n", status.LastSyncTime.Format("2006-01-02 15:04:05"))
	}

	return nil
}
