package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pullBlobs bool

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download the cloud archive into the local store",
	Long: `Download the cloud archive into the local store.

The merge is additive: records already present locally are never
overwritten or deleted. With --blobs, missing payloads are restored too.`,
	RunE: runPull,
}

func init() {
	pullCmd.Flags().BoolVar(&pullBlobs, "blobs", false, "also download image payloads")
}

func runPull(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return trackCLIError("pull", err)
	}
	defer a.close()

	if !a.client.Authenticated() {
		fmt.Println("Anonymous: nothing to pull. Set ARTBOX_TOKEN to enable cloud sync.")
		return nil
	}

	added, err := a.engine.DownloadAll(cmd.Context(), pullBlobs)
	if err != nil {
		return trackCLIError("pull", err)
	}

	fmt.Printf("%d records added; local data untouched\n", added)
	telemetryClient.TrackDownloadCompleted(added, pullBlobs)
	return nil
}
