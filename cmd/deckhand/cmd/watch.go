package cmd

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"deckhand/internal/domain"
	"deckhand/internal/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Follow generation progress live",
	Long: `Watch polls with adaptive cadence: every second while a step is
processing, backing off to thirty seconds once everything has settled. Each
change is printed as it lands; watch exits when all steps are terminal or on
Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }

	mgr, err := session.NewManager(session.Options{
		Fetcher:        client,
		PresentationID: args[0],
		Logger:         &logger,
		OnUpdate: func(p *domain.Presentation) {
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05"), progressLine(p))
			if allSettled(p.Steps) {
				finish()
			}
		},
		OnStepComplete: func(name domain.StepName) {
			fmt.Printf("           %s finished\n", name)
		},
		Poll: pollOptions(),
	})
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := mgr.Open(ctx); err != nil {
		return err
	}

	select {
	case <-done:
		fmt.Println("All steps settled.")
	case <-ctx.Done():
		fmt.Println("Stopped.")
	}
	return nil
}

func progressLine(p *domain.Presentation) string {
	parts := make([]string, 0, len(domain.StepOrder))
	for _, name := range domain.StepOrder {
		step, ok := p.FindStep(name)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", name, step.Status))
	}
	return strings.Join(parts, "  ")
}
