package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/artbox-app/artbox/internal/models"
)

var tagColor string

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage tags",
	RunE:  runTagsList,
}

var tagsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagsAdd,
}

var tagsRemoveCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a tag locally and from the cloud archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagsRemove,
}

var tagsReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Merge the local tag set with the cloud archive",
	RunE:  runTagsReconcile,
}

func init() {
	tagsAddCmd.Flags().StringVar(&tagColor, "color", "", "display color, e.g. #8b5cf6")
	tagsCmd.AddCommand(tagsAddCmd)
	tagsCmd.AddCommand(tagsRemoveCmd)
	tagsCmd.AddCommand(tagsReconcileCmd)
}

func runTagsList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return trackCLIError("tags", err)
	}
	defer a.close()

	tags, err := a.store.ListTags()
	if err != nil {
		return trackCLIError("tags", fmt.Errorf("list tags: %w", err))
	}
	if len(tags) == 0 {
		fmt.Println("No tags yet. Use 'artbox tags add <name>' to create one.")
		return nil
	}

	fmt.Printf("TAGS (%d)\n", len(tags))
	for _, tag := range tags {
		fmt.Printf("  %-24s %d favorites  %s\n", tag.Name, tag.ImageCount, tag.ID)
	}
	return nil
}

func runTagsAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return trackCLIError("tags", err)
	}
	defer a.close()

	name := args[0]
	existing, err := a.store.GetTagByName(name)
	if err != nil {
		return trackCLIError("tags", fmt.Errorf("look up tag: %w", err))
	}
	if existing != nil {
		fmt.Printf("Tag %q already exists.\n", existing.Name)
		return nil
	}

	tag := &models.Tag{
		ID:    uuid.New().String(),
		Name:  name,
		Color: tagColor,
	}
	if tag.Color == "" {
		tag.Color = models.DefaultTagColor
	}
	if err := a.store.CreateTag(tag); err != nil {
		return trackCLIError("tags", fmt.Errorf("create tag: %w", err))
	}

	fmt.Printf("Created tag %q (%s)\n", tag.Name, tag.ID)
	return nil
}

func runTagsRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return trackCLIError("tags", err)
	}
	defer a.close()

	tag, err := a.store.GetTagByName(args[0])
	if err != nil {
		return trackCLIError("tags", fmt.Errorf("look up tag: %w", err))
	}
	if tag == nil {
		fmt.Printf("No tag named %q.\n", args[0])
		return nil
	}

	if err := a.reconciler.DeleteTag(cmd.Context(), tag.ID); err != nil {
		// Local deletion succeeded; the tombstone retries the cloud side.
		fmt.Printf("Tag %q removed locally; cloud deletion pending: %v\n", tag.Name, err)
		return nil
	}

	fmt.Printf("Removed tag %q\n", tag.Name)
	return nil
}

func runTagsReconcile(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return trackCLIError("tags", err)
	}
	defer a.close()

	if !a.client.Authenticated() {
		fmt.Println("Anonymous: nothing to reconcile. Set ARTBOX_TOKEN to enable cloud sync.")
		return nil
	}

	ctx := cmd.Context()
	if err := a.engine.Refresh(ctx); err != nil {
		return trackCLIError("tags", err)
	}

	result, err := a.reconciler.Reconcile(ctx)
	if err != nil {
		return trackCLIError("tags", err)
	}

	fmt.Printf("%d uploaded, %d pulled, %d remapped, %d removed, %d deduped, %d records patched\n",
		result.Uploaded, result.Pulled, result.Remapped, result.Removed, result.Deduped, result.Patched)
	for _, msg := range result.Errors {
		fmt.Println("  " + msg)
	}

	telemetryClient.TrackReconcileCompleted(result.Uploaded, result.Remapped, result.Removed, result.Deduped, result.Failed())
	return nil
}
