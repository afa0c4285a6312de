package domain

import "time"

// Presentation is the client-side view of one presentation resource. The
// server copy is authoritative; this value is a cache that can be discarded
// and refetched at any time.
type Presentation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Topic     string    `json:"topic,omitempty"`
	Author    string    `json:"author,omitempty"`
	Slides    []Slide   `json:"slides"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FindStep returns the step with the given name, if present.
func (p *Presentation) FindStep(name StepName) (Step, bool) {
	if p == nil {
		return Step{}, false
	}
	for _, s := range p.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

// StepAt returns the step at the fixed pipeline index, if present. Steps are
// looked up by their name-at-index, not by collection position, so a sparse
// or reordered server response still resolves correctly.
func (p *Presentation) StepAt(index int) (Step, bool) {
	if index < 0 || index >= len(StepOrder) {
		return Step{}, false
	}
	return p.FindStep(StepOrder[index])
}

// FindSlide returns the index of the slide with the given ID, or -1.
func (p *Presentation) FindSlide(id string) int {
	if p == nil {
		return -1
	}
	for i, s := range p.Slides {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the presentation.
func (p *Presentation) Clone() *Presentation {
	if p == nil {
		return nil
	}
	out := *p
	out.Slides = make([]Slide, len(p.Slides))
	for i, s := range p.Slides {
		out.Slides[i] = s.Clone()
	}
	out.Steps = make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		out.Steps[i] = s
		out.Steps[i].Result = append([]byte(nil), s.Result...)
	}
	return &out
}
