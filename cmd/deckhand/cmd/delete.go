package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete one or more presentations",
	Long: `Delete removes presentations permanently. With several ids one batch
request is sent and unknown ids are skipped rather than failing the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) == 1 {
		if err := client.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	}
	if err := client.DeleteBatch(ctx, args); err != nil {
		return err
	}
	fmt.Printf("Deleted %d presentations\n", len(args))
	return nil
}
