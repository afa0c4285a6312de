package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deckhand/internal/domain"
	"deckhand/internal/polling"
)

var (
	runSlideCount int
	runAudience   string
	runDensity    string
	runDuration   int
	runPrompt     string
	runWait       bool
	runForce      bool
)

var runCmd = &cobra.Command{
	Use:   "run <id> <step>",
	Short: "Start one generation step",
	Long: `Run starts a pipeline step. Steps build on each other, so starting one
whose predecessor has not completed is refused; --force skips that check (the
server accepts any order).`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runSlideCount, "slides", 0, "number of slides to generate (3-30)")
	runCmd.Flags().StringVar(&runAudience, "audience", "", "who the deck is for")
	runCmd.Flags().StringVar(&runDensity, "density", "", "content density: concise, regular, or detailed")
	runCmd.Flags().IntVar(&runDuration, "duration", 0, "target talk length in minutes")
	runCmd.Flags().StringVar(&runPrompt, "prompt", "", "extra instructions for the generator")
	runCmd.Flags().BoolVar(&runWait, "wait", false, "block until the step settles")
	runCmd.Flags().BoolVar(&runForce, "force", false, "skip the step-order check")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]
	step := domain.StepName(args[1])
	if !domain.KnownStep(step) {
		return fmt.Errorf("unknown step %q (choose from: %s)", args[1], stepNames())
	}

	if !runForce {
		p, err := client.Get(ctx, id)
		if err != nil {
			return err
		}
		if idx := domain.StepIndex(step); idx > 0 {
			prev, ok := p.StepAt(idx - 1)
			if !ok || prev.Status != domain.StepCompleted {
				return fmt.Errorf("%w: %s has not completed yet; run it first or pass --force", domain.ErrStepUnavailable, domain.StepOrder[idx-1])
			}
		}
	}

	params := domain.RunStepParams{
		SlideCount:   runSlideCount,
		Audience:     runAudience,
		Density:      runDensity,
		Duration:     runDuration,
		CustomPrompt: runPrompt,
	}
	if err := client.RunStep(ctx, id, step, params); err != nil {
		return err
	}
	fmt.Printf("Step %s accepted\n", step)

	if !runWait {
		return nil
	}
	return waitForStep(ctx, id, step)
}

// waitForStep polls until the step reaches a terminal status.
func waitForStep(ctx context.Context, id string, step domain.StepName) error {
	settled := make(chan domain.Step, 1)
	opts := pollOptions()
	opts.Fetcher = client
	opts.PresentationID = id
	opts.Logger = &logger
	opts.OnUpdate = func(p *domain.Presentation) {
		if s, ok := p.FindStep(step); ok && s.Status.Terminal() {
			select {
			case settled <- s:
			default:
			}
		}
	}
	engine, err := polling.New(opts)
	if err != nil {
		return err
	}
	engine.Start(ctx)
	defer engine.Stop()

	select {
	case s := <-settled:
		if s.Status == domain.StepFailed {
			return fmt.Errorf("step %s failed: %s", step, s.Error)
		}
		fmt.Printf("Step %s completed\n", step)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
