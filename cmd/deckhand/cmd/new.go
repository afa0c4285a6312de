package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"deckhand/internal/api"
	"deckhand/internal/domain"
)

var (
	newTopic  string
	newAuthor string
	newRun    bool
)

var newCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a presentation",
	Long: `Create a presentation with every pipeline step pending. When no name is
given one is derived from --topic by title-casing it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNew,
}

func init() {
	newCmd.Flags().StringVar(&newTopic, "topic", "", "what the presentation is about")
	newCmd.Flags().StringVar(&newAuthor, "author", "", "author shown on the deck")
	newCmd.Flags().BoolVar(&newRun, "run", false, "start the research step right away")
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	var name string
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	topic := strings.TrimSpace(newTopic)
	if name == "" {
		if topic == "" {
			return errors.New("a name argument or --topic is required")
		}
		name = cases.Title(language.English).String(topic)
	}

	p, err := client.Create(cmd.Context(), api.CreateRequest{
		Name:   name,
		Topic:  topic,
		Author: strings.TrimSpace(newAuthor),
	})
	if err != nil {
		return err
	}
	if newRun {
		if err := client.RunStep(cmd.Context(), p.ID, domain.StepResearch, domain.RunStepParams{}); err != nil {
			return err
		}
	}
	if flagJSON {
		return printJSON(p)
	}

	fmt.Printf("Created %q\n  id: %s\n", p.Name, p.ID)
	if newRun {
		fmt.Printf("Research step started. Follow it with: deckhand watch %s\n", p.ID)
	} else {
		fmt.Printf("Start the pipeline with: deckhand run %s research\n", p.ID)
	}
	return nil
}
