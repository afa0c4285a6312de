package wizard

import (
	"fmt"

	"deckhand/internal/domain"
	"deckhand/internal/infra"
)

// FollowMode says whether the current-step pointer tracks pipeline progress
// automatically or stays where the user navigated.
type FollowMode int

const (
	// FollowAuto advances the current step as the pipeline progresses.
	FollowAuto FollowMode = iota
	// FollowPinned holds the user's manually chosen step until a forced
	// update releases it.
	FollowPinned
)

func (m FollowMode) String() string {
	if m == FollowPinned {
		return "pinned"
	}
	return "auto"
}

// Level classifies user-facing notices.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier receives user-visible notices, the CLI's stand-in for toasts.
type Notifier interface {
	Notify(level Level, message string)
}

// NopNotifier drops all notices.
type NopNotifier struct{}

func (NopNotifier) Notify(Level, string) {}

// LogNotifier routes notices to the structured log.
type LogNotifier struct {
	Logger *infra.Logger
}

func (n LogNotifier) Notify(level Level, message string) {
	if n.Logger == nil {
		return
	}
	switch level {
	case LevelError:
		n.Logger.Error().Msg(message)
	case LevelWarn:
		n.Logger.Warn().Msg(message)
	default:
		n.Logger.Info().Msg(message)
	}
}

// Nav tracks which pipeline step the view is on and mediates between
// automatic progression and manual navigation. It is not safe for concurrent
// use; drive it from a single goroutine.
type Nav struct {
	steps    []domain.Step
	current  int
	mode     FollowMode
	notifier Notifier
}

// NewNav builds a Nav starting at step 0 in auto-follow mode. A nil notifier
// silently drops notices.
func NewNav(notifier Notifier) *Nav {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Nav{notifier: notifier}
}

// Current returns the current step index.
func (n *Nav) Current() int {
	return n.current
}

// Mode returns the follow mode.
func (n *Nav) Mode() FollowMode {
	return n.mode
}

// statusAt resolves a step by its name-at-index in the fixed pipeline order.
// A sparse or reordered step collection still resolves correctly; an absent
// step has no status.
func (n *Nav) statusAt(index int) (domain.StepStatus, bool) {
	if index < 0 || index >= len(domain.StepOrder) {
		return "", false
	}
	name := domain.StepOrder[index]
	for _, s := range n.steps {
		if s.Name == name {
			return s.Status, true
		}
	}
	return "", false
}

// IsStepCompleted reports whether the step at the pipeline index is
// completed. Absent steps are never completed.
func (n *Nav) IsStepCompleted(index int) bool {
	status, ok := n.statusAt(index)
	return ok && status == domain.StepCompleted
}

// IsStepPending reports whether the step at the pipeline index is pending.
func (n *Nav) IsStepPending(index int) bool {
	status, ok := n.statusAt(index)
	return ok && status == domain.StepPending
}

// IsStepProcessing reports whether the step at the pipeline index is
// processing.
func (n *Nav) IsStepProcessing(index int) bool {
	status, ok := n.statusAt(index)
	return ok && status == domain.StepProcessing
}

// IsStepFailed reports whether the step at the pipeline index has failed.
func (n *Nav) IsStepFailed(index int) bool {
	status, ok := n.statusAt(index)
	return ok && status == domain.StepFailed
}

// DetermineCurrentStep picks the index the view should follow: active work
// wins, otherwise the most recently finished step's results stay on screen
// rather than jumping ahead to an empty next step.
func DetermineCurrentStep(p *domain.Presentation) int {
	firstProcessing := -1
	highestCompleted := -1
	for i := range domain.StepOrder {
		step, ok := p.StepAt(i)
		if !ok {
			continue
		}
		switch step.Status {
		case domain.StepProcessing:
			if firstProcessing < 0 {
				firstProcessing = i
			}
		case domain.StepCompleted:
			highestCompleted = i
		}
	}
	if firstProcessing >= 0 {
		return firstProcessing
	}
	if highestCompleted < 0 {
		return 0
	}
	return highestCompleted
}

// HandleStepChange navigates to the target index if permitted: the current
// step (a no-op), any completed step, or the step immediately following a
// completed one. Anything else raises a notice and leaves the position
// unchanged. Permitted navigation pins the view until a forced update.
func (n *Nav) HandleStepChange(target int) bool {
	if target == n.current {
		return true
	}
	if target < 0 || target >= len(domain.StepOrder) {
		n.notifier.Notify(LevelWarn, fmt.Sprintf("step %d does not exist", target))
		return false
	}
	if !n.IsStepCompleted(target) && !(target > 0 && n.IsStepCompleted(target-1)) {
		n.notifier.Notify(LevelWarn, fmt.Sprintf("step %q is not available yet", domain.StepOrder[target]))
		return false
	}
	n.current = target
	n.mode = FollowPinned
	return true
}

// UpdateCurrentStep refreshes the step view from a fetched presentation and
// re-derives the current index. While the view is pinned the index only moves
// when force is set, which also releases the pin.
func (n *Nav) UpdateCurrentStep(p *domain.Presentation, force bool) {
	if p == nil {
		return
	}
	n.steps = make([]domain.Step, len(p.Steps))
	copy(n.steps, p.Steps)
	if force {
		n.mode = FollowAuto
	}
	if n.mode == FollowAuto {
		n.current = DetermineCurrentStep(p)
	}
}
