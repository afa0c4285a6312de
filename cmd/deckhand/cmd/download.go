package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"deckhand/internal/storage"
)

var downloadDir string

var downloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "Download the generated pptx",
	Long: `Download streams the compiled pptx to disk. The filename comes from the
server; the target directory defaults to DECKHAND_DOWNLOAD_DIR or the current
directory. Fails if the pptx step has not completed yet.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadDir, "dir", "d", "", "target directory (default $DECKHAND_DOWNLOAD_DIR)")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	body, filename, err := client.DownloadPPTX(ctx, args[0])
	if err != nil {
		return err
	}
	defer body.Close()

	dir := downloadDir
	if dir == "" {
		dir = cfg.DownloadDir
	}
	store, err := storage.NewFileStore(dir)
	if err != nil {
		return err
	}
	path, n, err := store.WriteStream(ctx, filename, body)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s (%d bytes)\n", path, n)
	return nil
}
