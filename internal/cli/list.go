package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artbox-app/artbox/internal/gallery"
)

var (
	listFavorites bool
	listTag       string
	listSearch    string
	listPage      int
	listPageSize  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived records, newest first",
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listFavorites, "favorites", false, "only favorite records")
	listCmd.Flags().StringVar(&listTag, "tag", "", "filter by tag name")
	listCmd.Flags().StringVar(&listSearch, "search", "", "filter by prompt text")
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	listCmd.Flags().IntVar(&listPageSize, "page-size", gallery.DefaultPageSize, "records per page")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return trackCLIError("list", err)
	}
	defer a.close()

	q := gallery.Query{
		SearchText:    listSearch,
		FavoritesOnly: listFavorites,
	}
	if listTag != "" {
		tag, err := a.store.GetTagByName(listTag)
		if err != nil {
			return trackCLIError("list", fmt.Errorf("look up tag: %w", err))
		}
		if tag == nil {
			fmt.Printf("No tag named %q.\n", listTag)
			return nil
		}
		q.TagID = tag.ID
	}

	records, err := a.gallery.Records(cmd.Context(), q)
	if err != nil {
		return trackCLIError("list", fmt.Errorf("query records: %w", err))
	}

	page := gallery.Paginate(records, listPage, listPageSize)
	if page.TotalItems == 0 {
		fmt.Println("No records match.")
		return nil
	}

	fmt.Printf("RECORDS (page %d of %d, %d total)\n", page.Number, page.TotalPages, page.TotalItems)
	for _, rec := range page.Records {
		marker := " "
		if rec.Favorite {
			marker = "*"
		}
		synced := ""
		if a.engine.IsSynced(rec.UUID) {
			synced = " [synced]"
		}
		fmt.Printf("  %s %s  %s%s\n", marker, rec.UUID, rec.Timestamp.Format("2006-01-02 15:04"), synced)
		if prompt := summarize(rec.PromptSummary, rec.Prompt); prompt != "" {
			fmt.Printf("      %s\n", prompt)
		}
	}

	return nil
}

// summarize prefers the short prompt summary and truncates the full prompt
// for display otherwise.
func summarize(summary, prompt string) string {
	if summary != "" {
		return summary
	}
	prompt = strings.TrimSpace(prompt)
	if len(prompt) > 80 {
		return prompt[:77] + "..."
	}
	return prompt
}
