package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artbox-app/artbox/internal/codec"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <uuid>",
	Short: "Export a record's image as lossless PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default <uuid>.png)")
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return trackCLIError("export", err)
	}
	defer a.close()

	blob, err := a.store.GetBlob(args[0])
	if err != nil {
		return trackCLIError("export", err)
	}

	out, err := codec.ToExport(*blob)
	if err != nil {
		return trackCLIError("export", err)
	}

	path := exportOutput
	if path == "" {
		path = out.UUID + ".png"
	}
	if err := os.WriteFile(path, out.Data, 0644); err != nil {
		return trackCLIError("export", fmt.Errorf("write output: %w", err))
	}

	fmt.Printf("Exported %s to %s (%d bytes)\n", out.UUID, path, len(out.Data))
	return nil
}
