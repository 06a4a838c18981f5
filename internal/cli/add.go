package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/artbox-app/artbox/internal/codec"
	"github.com/artbox-app/artbox/internal/models"
)

var (
	addPrompt   string
	addFavorite bool
)

var addCmd = &cobra.Command{
	Use:   "add <image-file>",
	Short: "Archive an image file",
	Long: `Archive an image file.

The payload is normalized into the storage codec and written together
with its metadata record as one unit.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addPrompt, "prompt", "", "generation prompt to record")
	addCmd.Flags().BoolVar(&addFavorite, "favorite", false, "mark as favorite")
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return trackCLIError("add", err)
	}
	defer a.close()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return trackCLIError("add", fmt.Errorf("read image: %w", err))
	}

	payload, contentType := codec.Encode(raw)
	blob := models.ImageBlob{
		UUID:        uuid.New().String(),
		Data:        payload,
		ContentType: contentType,
	}
	if a.cfg.Storage.LossyStorage {
		blob = codec.ToStorage(blob)
	}

	rec := &models.ImageRecord{
		UUID:      blob.UUID,
		Prompt:    addPrompt,
		Favorite:  addFavorite,
		Timestamp: time.Now(),
	}
	if err := a.store.PutRecordWithBlob(rec, &blob); err != nil {
		return trackCLIError("add", fmt.Errorf("store image: %w", err))
	}

	fmt.Printf("Archived %s (%s, %d bytes)\n", rec.UUID, blob.ContentType, len(blob.Data))
	return nil
}
