package domain

import "testing"

func TestStepIndex(t *testing.T) {
	cases := []struct {
		name StepName
		want int
	}{
		{StepResearch, 0},
		{StepSlides, 1},
		{StepImages, 2},
		{StepCompiled, 3},
		{StepPPTX, 4},
		{StepName("outline"), -1},
	}
	for _, tc := range cases {
		if got := StepIndex(tc.name); got != tc.want {
			t.Fatalf("StepIndex(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestNewStepsOrderedAndPending(t *testing.T) {
	steps := NewSteps()
	if len(steps) != len(StepOrder) {
		t.Fatalf("len = %d, want %d", len(steps), len(StepOrder))
	}
	for i, s := range steps {
		if s.Name != StepOrder[i] {
			t.Fatalf("steps[%d].Name = %q, want %q", i, s.Name, StepOrder[i])
		}
		if s.Status != StepPending {
			t.Fatalf("steps[%d].Status = %q, want pending", i, s.Status)
		}
	}
}

func TestHasStepStatus(t *testing.T) {
	steps := []Step{
		{Name: StepResearch, Status: StepCompleted},
		{Name: StepSlides, Status: StepProcessing},
	}
	if !HasStepStatus(steps, StepProcessing) {
		t.Fatalf("expected processing step to be found")
	}
	if HasStepStatus(steps, StepFailed) {
		t.Fatalf("did not expect a failed step")
	}
}

func TestStepStatusTerminal(t *testing.T) {
	if StepPending.Terminal() || StepProcessing.Terminal() {
		t.Fatalf("pending/processing must not be terminal")
	}
	if !StepCompleted.Terminal() || !StepFailed.Terminal() {
		t.Fatalf("completed/failed must be terminal")
	}
}

func TestPresentationStepAtUsesNameAtIndex(t *testing.T) {
	p := &Presentation{Steps: []Step{
		{Name: StepSlides, Status: StepProcessing},
		{Name: StepResearch, Status: StepCompleted},
	}}
	step, ok := p.StepAt(0)
	if !ok {
		t.Fatalf("expected research step at index 0")
	}
	if step.Name != StepResearch || step.Status != StepCompleted {
		t.Fatalf("StepAt(0) = %+v", step)
	}
	if _, ok := p.StepAt(2); ok {
		t.Fatalf("images step should be absent")
	}
	if _, ok := p.StepAt(99); ok {
		t.Fatalf("out-of-range index should be absent")
	}
}

func TestPresentationCloneIsDeep(t *testing.T) {
	p := &Presentation{
		ID:     "p1",
		Slides: []Slide{{ID: "s1", Content: SlideContent{"x"}}},
		Steps:  []Step{{Name: StepResearch, Status: StepCompleted, Result: []byte(`{"a":1}`)}},
	}
	clone := p.Clone()
	clone.Slides[0].Content[0] = "mutated"
	clone.Steps[0].Result[2] = 'z'
	if p.Slides[0].Content[0] != "x" {
		t.Fatalf("clone shares slide content")
	}
	if string(p.Steps[0].Result) != `{"a":1}` {
		t.Fatalf("clone shares step result bytes: %s", p.Steps[0].Result)
	}
}
