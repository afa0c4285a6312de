package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"deckhand/internal/domain"
	"deckhand/internal/wizard"
)

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show pipeline and slide status for one presentation",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := client.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(p)
	}

	fmt.Printf("%s\n", p.Name)
	if p.Topic != "" {
		fmt.Printf("  topic:  %s\n", p.Topic)
	}
	if p.Author != "" {
		fmt.Printf("  author: %s\n", p.Author)
	}
	fmt.Printf("  slides: %d\n", len(p.Slides))
	fmt.Printf("  updated: %s\n\n", formatTime(p.UpdatedAt))

	current := wizard.DetermineCurrentStep(p)
	table := tablewriter.NewTable(os.Stdout)
	table.Header("", "STEP", "STATUS", "DETAIL")
	for i, name := range domain.StepOrder {
		marker := ""
		if i == current {
			marker = ">"
		}
		step, ok := p.FindStep(name)
		if !ok {
			step = domain.Step{Name: name, Status: domain.StepPending}
		}
		if err := table.Append(marker, string(name), string(step.Status), stepDetail(step)); err != nil {
			return err
		}
	}
	return table.Render()
}
