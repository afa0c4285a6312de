package domain

import (
	"fmt"
	"strings"
)

// RunStepParams carries the optional tuning parameters forwarded to the
// server when a step is run. Zero values are omitted from the wire payload;
// the server applies its own defaults for anything unset.
type RunStepParams struct {
	SlideCount   int    `json:"slide_count,omitempty"`
	Audience     string `json:"audience,omitempty"`
	Density      string `json:"density,omitempty"`
	Duration     int    `json:"duration_minutes,omitempty"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

const (
	// MinSlideCount is the smallest deck the slides step will produce.
	MinSlideCount = 3
	// MaxSlideCount caps requested deck size.
	MaxSlideCount = 30
	// DefaultSlideCount is applied by the simulator when the request leaves
	// the count unset.
	DefaultSlideCount = 10
)

var allowedDensities = map[string]struct{}{
	"concise":  {},
	"regular":  {},
	"detailed": {},
}

// Normalize trims free-text fields and clamps numeric ones. A zero SlideCount
// or Duration is left alone so the server default applies.
func (p *RunStepParams) Normalize() {
	if p == nil {
		return
	}
	p.Audience = strings.TrimSpace(p.Audience)
	p.Density = strings.ToLower(strings.TrimSpace(p.Density))
	p.CustomPrompt = strings.TrimSpace(p.CustomPrompt)
	if p.SlideCount != 0 {
		if p.SlideCount < MinSlideCount {
			p.SlideCount = MinSlideCount
		}
		if p.SlideCount > MaxSlideCount {
			p.SlideCount = MaxSlideCount
		}
	}
	if p.Duration < 0 {
		p.Duration = 0
	}
}

// Validate rejects values the server would refuse.
func (p RunStepParams) Validate() error {
	if p.Density != "" {
		if _, ok := allowedDensities[p.Density]; !ok {
			return fmt.Errorf("unsupported density %q", p.Density)
		}
	}
	if p.SlideCount < 0 {
		return fmt.Errorf("slide count must not be negative")
	}
	return nil
}

// Empty reports whether every parameter is unset, letting callers skip the
// request body entirely.
func (p RunStepParams) Empty() bool {
	return p == RunStepParams{}
}
