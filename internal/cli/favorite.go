package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artbox-app/artbox/internal/log"
	"github.com/artbox-app/artbox/internal/sync"
)

var favoriteRemove bool

var favoriteCmd = &cobra.Command{
	Use:   "favorite <uuid>",
	Short: "Mark or unmark a record as favorite",
	Args:  cobra.ExactArgs(1),
	RunE:  runFavorite,
}

func init() {
	favoriteCmd.Flags().BoolVar(&favoriteRemove, "remove", false, "unmark instead")
}

func runFavorite(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return trackCLIError("favorite", err)
	}
	defer a.close()

	uuid := args[0]
	rec, err := a.store.GetRecord(uuid)
	if err != nil {
		return trackCLIError("favorite", fmt.Errorf("look up record: %w", err))
	}
	if rec == nil {
		fmt.Printf("No record %s.\n", uuid)
		return nil
	}

	favorite := !favoriteRemove
	if err := a.store.SetFavorite(uuid, favorite); err != nil {
		return trackCLIError("favorite", fmt.Errorf("set favorite: %w", err))
	}

	// Cheap metadata patch when the record is already in the cloud. A
	// never-synced record just waits for the next sync batch.
	if a.client.Authenticated() {
		ctx := cmd.Context()
		if err := a.engine.Refresh(ctx); err == nil {
			if _, err := a.engine.UpdateMetadata(ctx, uuid, sync.MetadataPatch{IsFavorite: &favorite}); err != nil {
				log.Errorf("favorite: cloud patch of %s: %v", uuid, err)
			}
		}
	}

	if favorite {
		fmt.Printf("Marked %s as favorite\n", uuid)
	} else {
		fmt.Printf("Unmarked %s\n", uuid)
	}
	return nil
}
