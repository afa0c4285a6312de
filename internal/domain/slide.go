package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Slide is a single slide of a presentation. IDs are client-generated and
// stable across saves; Order is the slide's position and is kept contiguous
// from zero by every mutation.
type Slide struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Content     SlideContent `json:"content"`
	Notes       string       `json:"notes,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	ImagePrompt string       `json:"image_prompt,omitempty"`
	Order       int          `json:"order"`
}

// Clone returns a deep copy of the slide.
func (s Slide) Clone() Slide {
	out := s
	out.Content = append(SlideContent(nil), s.Content...)
	return out
}

// SlideContent is the ordered paragraph/bullet text of a slide.
//
// The canonical in-memory representation is a sequence of strings. Older
// server responses serve slide content as a single string; the codec accepts
// both shapes on decode and always emits the sequence form, so the rest of the
// codebase never branches on shape.
type SlideContent []string

// UnmarshalJSON accepts either a JSON array of strings or a bare string.
// A bare string is split into lines, dropping blank ones.
func (c *SlideContent) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*c = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var lines []string
		if err := json.Unmarshal(data, &lines); err != nil {
			return fmt.Errorf("slide content: %w", err)
		}
		*c = lines
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("slide content: %w", err)
	}
	*c = splitContentLines(text)
	return nil
}

// MarshalJSON always emits the sequence form. Empty content encodes as [].
func (c SlideContent) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(c))
}

// String joins the content back into display text, one line per entry.
func (c SlideContent) String() string {
	return strings.Join(c, "\n")
}

func splitContentLines(text string) SlideContent {
	var out SlideContent
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// NormalizeSlideOrder renumbers the slides' Order fields to be contiguous
// starting at zero, in slice order.
func NormalizeSlideOrder(slides []Slide) {
	for i := range slides {
		slides[i].Order = i
	}
}
