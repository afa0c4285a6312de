package slides

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deckhand/internal/domain"
	"deckhand/internal/infra"
)

// Saver persists a full presentation and returns the server-canonical echo.
// *api.Client satisfies this.
type Saver interface {
	Update(ctx context.Context, p *domain.Presentation) (*domain.Presentation, error)
}

// SaveState tracks whether local edits have reached the server.
type SaveState int

const (
	// SaveSaved means the working copy matches the last server echo.
	SaveSaved SaveState = iota
	// SaveSaving means an update call is in flight.
	SaveSaving
	// SaveUnsaved means local edits exist that the server has not confirmed,
	// either not yet saved or left behind by a failed save. Retry with Save.
	SaveUnsaved
)

func (s SaveState) String() string {
	switch s {
	case SaveSaving:
		return "saving"
	case SaveUnsaved:
		return "unsaved"
	default:
		return "saved"
	}
}

// Options configures an Editor.
type Options struct {
	Saver  Saver
	Logger *infra.Logger
}

// Editor owns a working copy of one presentation's slide collection and
// applies optimistic local mutations with explicit saves. Edits stay local
// on save failure so nothing the user typed is thrown away. Not safe for
// concurrent use; drive it from a single goroutine.
type Editor struct {
	saver  Saver
	logger *infra.Logger

	presentation *domain.Presentation
	selectedID   string
	state        SaveState
}

// NewEditor builds an empty editor; load a presentation with SetPresentation.
func NewEditor(opts Options) (*Editor, error) {
	if opts.Saver == nil {
		return nil, errors.New("slides: saver is required")
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Editor{saver: opts.Saver, logger: logger}, nil
}

// SetPresentation replaces the working copy with a server-derived state.
// Selection is kept when the selected slide still exists, otherwise it falls
// back to the first slide. The state resets to saved.
func (e *Editor) SetPresentation(p *domain.Presentation) {
	e.presentation = p.Clone()
	e.state = SaveSaved
	e.reselect()
}

// Presentation returns the working copy, nil before SetPresentation.
func (e *Editor) Presentation() *domain.Presentation {
	return e.presentation
}

// State returns the current save state.
func (e *Editor) State() SaveState {
	return e.state
}

// Selected returns the currently selected slide.
func (e *Editor) Selected() (domain.Slide, bool) {
	if e.presentation == nil || e.selectedID == "" {
		return domain.Slide{}, false
	}
	if i := e.presentation.FindSlide(e.selectedID); i >= 0 {
		return e.presentation.Slides[i], true
	}
	return domain.Slide{}, false
}

// Select makes the slide with the given id current.
func (e *Editor) Select(id string) error {
	if e.presentation == nil {
		return domain.ErrNoPresentation
	}
	if e.presentation.FindSlide(id) < 0 {
		return fmt.Errorf("slides: select: %w: %s", domain.ErrSlideNotFound, id)
	}
	e.selectedID = id
	return nil
}

// AddNewSlide appends a fresh slide with a client-generated id, selects it,
// and saves. The returned slide reflects the server echo.
func (e *Editor) AddNewSlide(ctx context.Context) (domain.Slide, error) {
	if e.presentation == nil {
		return domain.Slide{}, domain.ErrNoPresentation
	}
	slide := domain.Slide{
		ID:    uuid.NewString(),
		Title: "New Slide",
		Order: len(e.presentation.Slides),
	}
	e.presentation.Slides = append(e.presentation.Slides, slide)
	e.selectedID = slide.ID
	e.state = SaveUnsaved
	if err := e.Save(ctx); err != nil {
		return slide, fmt.Errorf("slides: add slide: %w", err)
	}
	if i := e.presentation.FindSlide(slide.ID); i >= 0 {
		return e.presentation.Slides[i], nil
	}
	return slide, nil
}

// UpdateSlide replaces the slide matching the given id in place. It does not
// save; the caller decides when to persist.
func (e *Editor) UpdateSlide(slide domain.Slide) error {
	if e.presentation == nil {
		return domain.ErrNoPresentation
	}
	i := e.presentation.FindSlide(slide.ID)
	if i < 0 {
		return fmt.Errorf("slides: update: %w: %s", domain.ErrSlideNotFound, slide.ID)
	}
	e.presentation.Slides[i] = slide.Clone()
	e.state = SaveUnsaved
	return nil
}

// DeleteSlide removes the slide, renumbers the remainder contiguously from 0,
// reselects the first remaining slide if the deleted one was selected, and
// saves.
func (e *Editor) DeleteSlide(ctx context.Context, id string) error {
	if e.presentation == nil {
		return domain.ErrNoPresentation
	}
	i := e.presentation.FindSlide(id)
	if i < 0 {
		return fmt.Errorf("slides: delete: %w: %s", domain.ErrSlideNotFound, id)
	}
	e.presentation.Slides = append(e.presentation.Slides[:i], e.presentation.Slides[i+1:]...)
	domain.NormalizeSlideOrder(e.presentation.Slides)
	if e.selectedID == id {
		e.selectedID = ""
		if len(e.presentation.Slides) > 0 {
			e.selectedID = e.presentation.Slides[0].ID
		}
	}
	e.state = SaveUnsaved
	if err := e.Save(ctx); err != nil {
		return fmt.Errorf("slides: delete slide: %w", err)
	}
	return nil
}

// ReorderSlides moves the slide at from to position to, renumbers, and saves.
func (e *Editor) ReorderSlides(ctx context.Context, from, to int) error {
	if e.presentation == nil {
		return domain.ErrNoPresentation
	}
	n := len(e.presentation.Slides)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("slides: reorder: index out of range (%d -> %d of %d)", from, to, n)
	}
	moved := e.presentation.Slides[from]
	rest := append(e.presentation.Slides[:from:from], e.presentation.Slides[from+1:]...)
	slides := make([]domain.Slide, 0, n)
	slides = append(slides, rest[:to]...)
	slides = append(slides, moved)
	slides = append(slides, rest[to:]...)
	e.presentation.Slides = slides
	domain.NormalizeSlideOrder(e.presentation.Slides)
	e.state = SaveUnsaved
	if err := e.Save(ctx); err != nil {
		return fmt.Errorf("slides: reorder slides: %w", err)
	}
	return nil
}

// DuplicateSlide clones the slide under a new id with " (Copy)" appended to
// its title, inserts the copy right after the original, selects it, and
// saves. The returned slide reflects the server echo.
func (e *Editor) DuplicateSlide(ctx context.Context, id string) (domain.Slide, error) {
	if e.presentation == nil {
		return domain.Slide{}, domain.ErrNoPresentation
	}
	i := e.presentation.FindSlide(id)
	if i < 0 {
		return domain.Slide{}, fmt.Errorf("slides: duplicate: %w: %s", domain.ErrSlideNotFound, id)
	}
	copySlide := e.presentation.Slides[i].Clone()
	copySlide.ID = uuid.NewString()
	copySlide.Title += " (Copy)"

	slides := make([]domain.Slide, 0, len(e.presentation.Slides)+1)
	slides = append(slides, e.presentation.Slides[:i+1]...)
	slides = append(slides, copySlide)
	slides = append(slides, e.presentation.Slides[i+1:]...)
	e.presentation.Slides = slides
	domain.NormalizeSlideOrder(e.presentation.Slides)
	e.selectedID = copySlide.ID
	e.state = SaveUnsaved
	if err := e.Save(ctx); err != nil {
		return copySlide, fmt.Errorf("slides: duplicate slide: %w", err)
	}
	if j := e.presentation.FindSlide(copySlide.ID); j >= 0 {
		return e.presentation.Slides[j], nil
	}
	return copySlide, nil
}

// Save sends the full working copy to the server. On success the echo becomes
// the new working copy. On failure local edits stay put and the state reports
// unsaved so the user can retry.
func (e *Editor) Save(ctx context.Context) error {
	if e.presentation == nil {
		return domain.ErrNoPresentation
	}
	e.state = SaveSaving
	echo, err := e.saver.Update(ctx, e.presentation)
	if err != nil {
		e.state = SaveUnsaved
		e.logger.Warn().Err(err).Str("presentation_id", e.presentation.ID).Msg("slides: save failed, local edits kept")
		return fmt.Errorf("slides: save: %w", err)
	}
	e.presentation = echo.Clone()
	e.state = SaveSaved
	e.reselect()
	e.logger.Debug().Str("presentation_id", e.presentation.ID).Int("slides", len(e.presentation.Slides)).Msg("slides: saved")
	return nil
}

func (e *Editor) reselect() {
	if e.presentation == nil {
		e.selectedID = ""
		return
	}
	if e.selectedID != "" && e.presentation.FindSlide(e.selectedID) >= 0 {
		return
	}
	e.selectedID = ""
	if len(e.presentation.Slides) > 0 {
		e.selectedID = e.presentation.Slides[0].ID
	}
}
