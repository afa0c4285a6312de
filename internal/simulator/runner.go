package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deckhand/internal/deck"
	"deckhand/internal/domain"
	"deckhand/internal/infra"
	"deckhand/pkg/zip"
)

// DefaultStepDelay is how long a simulated step stays in processing before it
// settles.
const DefaultStepDelay = 2 * time.Second

// RunnerOptions configures the scripted step runner.
type RunnerOptions struct {
	Store     *Store
	Logger    *infra.Logger
	StepDelay time.Duration

	// FailSteps lists steps that fail instead of completing, for exercising
	// failure paths in demos and tests.
	FailSteps []domain.StepName
}

// Runner stands in for the generation backend: starting a step marks it
// processing, and after a fixed delay the step settles with canned results.
// Step dependencies are not enforced here; that gate lives client-side.
type Runner struct {
	store  *Store
	logger *infra.Logger
	delay  time.Duration
	fail   map[domain.StepName]struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewRunner validates the options and builds a runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("simulator: store is required")
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	delay := opts.StepDelay
	if delay <= 0 {
		delay = DefaultStepDelay
	}
	fail := make(map[domain.StepName]struct{}, len(opts.FailSteps))
	for _, name := range opts.FailSteps {
		fail[name] = struct{}{}
	}
	return &Runner{
		store:  opts.Store,
		logger: logger,
		delay:  delay,
		fail:   fail,
		timers: make(map[string]*time.Timer),
	}, nil
}

// Start marks the step processing and schedules its completion. A step that
// is already processing reports domain.ErrStepBusy.
func (r *Runner) Start(id string, step domain.StepName, params domain.RunStepParams) error {
	if !domain.KnownStep(step) {
		return fmt.Errorf("simulator: %w: %s", domain.ErrStepUnknown, step)
	}
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return errors.New("simulator: runner closed")
	}
	params.Normalize()

	busy := false
	ok := r.store.Mutate(id, func(p *domain.Presentation) {
		for i := range p.Steps {
			if p.Steps[i].Name != step {
				continue
			}
			if p.Steps[i].Status == domain.StepProcessing {
				busy = true
				return
			}
			p.Steps[i].Status = domain.StepProcessing
			p.Steps[i].Result = nil
			p.Steps[i].Error = ""
			p.UpdatedAt = time.Now().UTC()
			return
		}
		p.Steps = append(p.Steps, domain.Step{Name: step, Status: domain.StepProcessing})
		p.UpdatedAt = time.Now().UTC()
	})
	if !ok {
		return fmt.Errorf("simulator: %w: %s", domain.ErrNotFound, id)
	}
	if busy {
		return fmt.Errorf("simulator: %w: %s already running", domain.ErrStepBusy, step)
	}

	key := id + "/" + string(step)
	r.mu.Lock()
	if t, found := r.timers[key]; found {
		t.Stop()
	}
	r.timers[key] = time.AfterFunc(r.delay, func() { r.finish(id, step, params) })
	r.mu.Unlock()

	r.logger.Info().
		Str("presentation_id", id).
		Str("step", string(step)).
		Dur("delay", r.delay).
		Msg("sim: step started")
	return nil
}

// Close cancels all pending step completions.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for key, t := range r.timers {
		t.Stop()
		delete(r.timers, key)
	}
}

func (r *Runner) finish(id string, step domain.StepName, params domain.RunStepParams) {
	r.mu.Lock()
	delete(r.timers, id+"/"+string(step))
	r.mu.Unlock()

	if _, scripted := r.fail[step]; scripted {
		r.settle(id, step, nil, nil, fmt.Errorf("%s generation failed", step))
		return
	}

	snap, ok := r.store.Get(id)
	if !ok {
		r.logger.Warn().Str("presentation_id", id).Str("step", string(step)).Msg("sim: presentation deleted before step settled")
		return
	}

	var payload map[string]any
	var apply func(p *domain.Presentation)
	var err error
	switch step {
	case domain.StepResearch:
		payload = researchResult(snap, params)
	case domain.StepSlides:
		slides := generateSlides(topicOf(snap), params)
		payload = map[string]any{"slide_count": len(slides)}
		apply = func(p *domain.Presentation) { p.Slides = slides }
	case domain.StepImages:
		payload = map[string]any{"images": len(snap.Slides)}
		apply = func(p *domain.Presentation) {
			for i := range p.Slides {
				p.Slides[i].ImageURL = fmt.Sprintf("https://img.deckhand.local/%s/slide-%02d.png", p.ID, i+1)
				if p.Slides[i].ImagePrompt == "" {
					p.Slides[i].ImagePrompt = "Illustration for " + p.Slides[i].Title
				}
			}
		}
	case domain.StepCompiled:
		payload = map[string]any{
			"slide_count": len(snap.Slides),
			"compiled_at": time.Now().UTC().Format(time.RFC3339),
		}
	case domain.StepPPTX:
		var data []byte
		data, err = buildPPTX(snap)
		if err == nil {
			r.store.SetPPTX(id, data)
			payload = map[string]any{
				"url":      "/presentations/" + id + "/download-pptx",
				"filename": deck.Slug(snap.Name) + ".pptx",
				"bytes":    len(data),
			}
		}
	}
	r.settle(id, step, payload, apply, err)
}

// settle writes the step's terminal state and result in one store mutation.
func (r *Runner) settle(id string, step domain.StepName, payload map[string]any, apply func(p *domain.Presentation), failure error) {
	var result json.RawMessage
	if failure == nil && payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			failure = fmt.Errorf("encode result: %w", err)
		} else {
			result = encoded
		}
	}
	ok := r.store.Mutate(id, func(p *domain.Presentation) {
		if apply != nil && failure == nil {
			apply(p)
			domain.NormalizeSlideOrder(p.Slides)
		}
		for i := range p.Steps {
			if p.Steps[i].Name != step {
				continue
			}
			if failure != nil {
				p.Steps[i].Status = domain.StepFailed
				p.Steps[i].Error = failure.Error()
			} else {
				p.Steps[i].Status = domain.StepCompleted
				p.Steps[i].Result = result
			}
			break
		}
		p.UpdatedAt = time.Now().UTC()
	})
	if !ok {
		r.logger.Warn().Str("presentation_id", id).Str("step", string(step)).Msg("sim: presentation deleted before step settled")
		return
	}
	if failure != nil {
		r.logger.Warn().Str("presentation_id", id).Str("step", string(step)).Err(failure).Msg("sim: step failed")
		return
	}
	r.logger.Info().Str("presentation_id", id).Str("step", string(step)).Msg("sim: step completed")
}

func topicOf(p *domain.Presentation) string {
	if strings.TrimSpace(p.Topic) != "" {
		return p.Topic
	}
	return p.Name
}

func researchResult(p *domain.Presentation, params domain.RunStepParams) map[string]any {
	topic := topicOf(p)
	audience := params.Audience
	if audience == "" {
		audience = "a general audience"
	}
	payload := map[string]any{
		"summary": fmt.Sprintf("Research notes on %s, prepared for %s.", topic, audience),
		"key_points": []string{
			fmt.Sprintf("Why %s matters right now", topic),
			fmt.Sprintf("Current state of %s", topic),
			fmt.Sprintf("Recommended next steps on %s", topic),
		},
		"sources": []string{
			"https://example.com/research/" + deck.Slug(topic),
			"https://example.com/briefings/" + deck.Slug(topic),
		},
	}
	if params.CustomPrompt != "" {
		payload["focus"] = params.CustomPrompt
	}
	return payload
}

func generateSlides(topic string, params domain.RunStepParams) []domain.Slide {
	count := params.SlideCount
	if count <= 0 {
		count = domain.DefaultSlideCount
	}
	lines := 3
	switch params.Density {
	case "concise":
		lines = 2
	case "detailed":
		lines = 5
	}
	slides := make([]domain.Slide, 0, count)
	for i := 0; i < count; i++ {
		var title string
		switch i {
		case 0:
			title = "Introduction"
		case count - 1:
			title = "Summary and Next Steps"
		default:
			title = fmt.Sprintf("Key Point %d", i)
		}
		content := make(domain.SlideContent, 0, lines)
		for j := 0; j < lines; j++ {
			content = append(content, fmt.Sprintf("%s: supporting detail %d", topic, j+1))
		}
		slides = append(slides, domain.Slide{
			ID:      uuid.NewString(),
			Title:   title,
			Content: content,
			Notes:   fmt.Sprintf("Talk through %s here.", strings.ToLower(title)),
			Order:   i,
		})
	}
	return slides
}

// buildPPTX assembles a minimal pptx container: a zip with the content-types
// manifest, the presentation part, and one slide part per slide. Enough
// structure for downstream tooling to recognize the file; not a full deck
// renderer.
func buildPPTX(p *domain.Presentation) ([]byte, error) {
	entries := []zip.Entry{
		{Name: "[Content_Types].xml", Data: []byte(contentTypesXML(len(p.Slides)))},
		{Name: "_rels/.rels", Data: []byte(relsXML)},
		{Name: "ppt/presentation.xml", Data: []byte(presentationXML(p))},
	}
	for i, slide := range p.Slides {
		entries = append(entries, zip.Entry{
			Name: fmt.Sprintf("ppt/slides/slide%d.xml", i+1),
			Data: []byte(slideXML(slide)),
		})
	}
	data, err := zip.Archive(entries)
	if err != nil {
		return nil, fmt.Errorf("build pptx: %w", err)
	}
	return data, nil
}

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>
</Relationships>`

func contentTypesXML(slideCount int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` + "\n")
	b.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>` + "\n")
	for i := 1; i <= slideCount; i++ {
		fmt.Fprintf(&b, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`+"\n", i)
	}
	b.WriteString(`</Types>`)
	return b.String()
}

func presentationXML(p *domain.Presentation) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	fmt.Fprintf(&b, `<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" name=%q>`+"\n", xmlEscape(p.Name))
	b.WriteString("<p:sldIdLst>\n")
	for i := range p.Slides {
		fmt.Fprintf(&b, `<p:sldId id="%d"/>`+"\n", 256+i)
	}
	b.WriteString("</p:sldIdLst>\n</p:presentation>")
	return b.String()
}

func slideXML(s domain.Slide) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` + "\n")
	fmt.Fprintf(&b, "<p:title>%s</p:title>\n", xmlEscape(s.Title))
	for _, line := range s.Content {
		fmt.Fprintf(&b, "<p:text>%s</p:text>\n", xmlEscape(line))
	}
	if s.Notes != "" {
		fmt.Fprintf(&b, "<p:notes>%s</p:notes>\n", xmlEscape(s.Notes))
	}
	b.WriteString("</p:sld>")
	return b.String()
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}
