package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List presentations",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	items, err := client.List(cmd.Context())
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println(`No presentations yet. Create one with: deckhand new --topic "..."`)
		return nil
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header("ID", "NAME", "SLIDES", "STEPS", "UPDATED")
	for _, p := range items {
		if err := table.Append(p.ID, p.Name, strconv.Itoa(len(p.Slides)), progressSummary(p.Steps), formatTime(p.UpdatedAt)); err != nil {
			return err
		}
	}
	return table.Render()
}
