package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"deckhand/internal/deck"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write a presentation to a deck file",
	Long: `Export writes the authorable content of a presentation (name, topic,
author, slides) to a YAML or JSON file chosen by the output extension.
Pipeline state stays server-side and is not exported.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default <name>.yaml)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	p, err := client.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := exportOut
	if out == "" {
		out = deck.Slug(p.Name) + ".yaml"
	}
	if err := deck.WriteFile(out, deck.FromPresentation(p)); err != nil {
		return err
	}
	fmt.Printf("Exported %q (%d slides) to %s\n", p.Name, len(p.Slides), out)
	return nil
}
