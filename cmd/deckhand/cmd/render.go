package cmd

import (
	"fmt"
	"strings"
	"time"

	"deckhand/internal/domain"
)

// progressSummary compresses step state into "n/m" with a failure marker,
// e.g. "2/5" or "2/5 (1 failed)".
func progressSummary(steps []domain.Step) string {
	completed, failed := 0, 0
	for _, s := range steps {
		switch s.Status {
		case domain.StepCompleted:
			completed++
		case domain.StepFailed:
			failed++
		}
	}
	out := fmt.Sprintf("%d/%d", completed, len(steps))
	if failed > 0 {
		out += fmt.Sprintf(" (%d failed)", failed)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func stepNames() string {
	names := make([]string, 0, len(domain.StepOrder))
	for _, n := range domain.StepOrder {
		names = append(names, string(n))
	}
	return strings.Join(names, ", ")
}

// stepDetail picks the most useful one-liner for a step row: the error for
// failures, a result-size hint for completions.
func stepDetail(s domain.Step) string {
	switch s.Status {
	case domain.StepFailed:
		return s.Error
	case domain.StepCompleted:
		if len(s.Result) > 0 {
			return fmt.Sprintf("result: %d bytes", len(s.Result))
		}
	}
	return ""
}

func allSettled(steps []domain.Step) bool {
	if len(steps) == 0 {
		return false
	}
	for _, s := range steps {
		if !s.Status.Terminal() {
			return false
		}
	}
	return true
}
