package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"deckhand/internal/api"
	"deckhand/internal/deck"
)

var importName string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create a presentation from a deck file",
	Long: `Import reads a YAML or JSON deck file and creates a new presentation
from it. Slides keep their file order; every pipeline step starts pending, so
generation can be rerun on the imported content.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importName, "name", "", "override the name from the file")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := deck.ReadFile(args[0])
	if err != nil {
		return err
	}
	name := f.Name
	if importName != "" {
		name = importName
	}

	p, err := client.Create(cmd.Context(), api.CreateRequest{
		Name:   name,
		Topic:  f.Topic,
		Author: f.Author,
		Slides: f.DomainSlides(),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Imported %q (%d slides)\n  id: %s\n", p.Name, len(p.Slides), p.ID)
	return nil
}
