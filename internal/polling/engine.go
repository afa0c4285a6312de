package polling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deckhand/internal/domain"
	"deckhand/internal/infra"
)

// Fetcher retrieves the authoritative presentation state. *api.Client
// satisfies this.
type Fetcher interface {
	Get(ctx context.Context, id string) (*domain.Presentation, error)
}

// Options configures a polling engine for one presentation.
type Options struct {
	Fetcher        Fetcher
	PresentationID string
	Logger         *infra.Logger

	// OnUpdate fires when a fetched presentation differs from the last
	// snapshot (always on manual refresh). OnStepComplete fires once per step
	// observed reaching completed from any earlier status.
	OnUpdate       func(*domain.Presentation)
	OnStepComplete func(domain.StepName)

	// Interval overrides. Zero values take the production defaults; tests
	// shrink them to milliseconds.
	ProcessingInterval time.Duration
	PendingInterval    time.Duration
	SettledInterval    time.Duration
	IdleInterval       time.Duration

	// IdleAfter is how many consecutive unchanged ticks (with no step pending
	// or processing) switch the engine to the idle interval.
	IdleAfter int
}

const (
	defaultProcessingInterval = 1 * time.Second
	defaultPendingInterval    = 2 * time.Second
	defaultSettledInterval    = 10 * time.Second
	defaultIdleInterval       = 30 * time.Second
	defaultIdleAfter          = 5
)

// Engine keeps a local snapshot of a presentation's step statuses fresh by
// polling the job API at a status-driven cadence.
type Engine struct {
	fetcher Fetcher
	id      string
	logger  *infra.Logger

	onUpdate       func(*domain.Presentation)
	onStepComplete func(domain.StepName)

	processingInterval time.Duration
	pendingInterval    time.Duration
	settledInterval    time.Duration
	idleInterval       time.Duration
	idleAfter          int

	// fetchMu serializes fetches: the tick loop skips a beat while a fetch is
	// still in flight, and manual refreshes queue behind it instead of racing.
	fetchMu sync.Mutex

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	gen       uint64
	snapshot  string
	steps     []domain.Step
	unchanged int
	idle      bool
}

// New validates the options and builds a stopped engine.
func New(opts Options) (*Engine, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("polling: fetcher is required")
	}
	id := strings.TrimSpace(opts.PresentationID)
	if id == "" {
		return nil, errors.New("polling: presentation id is required")
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	e := &Engine{
		fetcher:            opts.Fetcher,
		id:                 id,
		logger:             logger,
		onUpdate:           opts.OnUpdate,
		onStepComplete:     opts.OnStepComplete,
		processingInterval: opts.ProcessingInterval,
		pendingInterval:    opts.PendingInterval,
		settledInterval:    opts.SettledInterval,
		idleInterval:       opts.IdleInterval,
		idleAfter:          opts.IdleAfter,
	}
	if e.processingInterval <= 0 {
		e.processingInterval = defaultProcessingInterval
	}
	if e.pendingInterval <= 0 {
		e.pendingInterval = defaultPendingInterval
	}
	if e.settledInterval <= 0 {
		e.settledInterval = defaultSettledInterval
	}
	if e.idleInterval <= 0 {
		e.idleInterval = defaultIdleInterval
	}
	if e.idleAfter <= 0 {
		e.idleAfter = defaultIdleAfter
	}
	return e, nil
}

// Seed primes the change detector from an already-fetched presentation so the
// first tick does not re-announce known state.
func (e *Engine) Seed(p *domain.Presentation) {
	if p == nil {
		return
	}
	e.mu.Lock()
	e.snapshot = snapshotSteps(p.Steps)
	e.steps = cloneSteps(p.Steps)
	e.unchanged = 0
	e.idle = false
	e.mu.Unlock()
}

// Start launches the poll loop. Calling it while already running is a no-op,
// so repeated mounts cannot stack timers.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.gen++
	gen := e.gen
	interval := e.selectIntervalLocked()
	e.mu.Unlock()

	e.logger.Debug().Str("presentation_id", e.id).Dur("interval", interval).Msg("poll: started")
	go e.loop(runCtx, gen, interval)
}

// Stop cancels the loop. Safe to call repeatedly and concurrently; an
// in-flight fetch is not aborted but its result is discarded.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	wasRunning := e.running
	e.running = false
	e.gen++
	e.mu.Unlock()
	if wasRunning {
		e.logger.Debug().Str("presentation_id", e.id).Msg("poll: stopped")
	}
}

// Refresh performs one immediate fetch outside the timer cadence. The update
// callback fires regardless of whether the presentation changed or the engine
// is running.
func (e *Engine) Refresh(ctx context.Context) (*domain.Presentation, error) {
	e.fetchMu.Lock()
	defer e.fetchMu.Unlock()

	p, err := e.fetcher.Get(ctx, e.id)
	if err != nil {
		return nil, fmt.Errorf("polling: refresh: %w", err)
	}
	e.mu.Lock()
	_, completions := e.applyLocked(p, false)
	e.mu.Unlock()
	e.emit(p, true, completions)
	return p, nil
}

// Running reports whether the poll loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Idle reports whether the engine has backed off to the idle interval.
func (e *Engine) Idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idle
}

func (e *Engine) loop(ctx context.Context, gen uint64, interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		e.tick(ctx, gen)

		e.mu.Lock()
		if !e.running || gen != e.gen {
			e.mu.Unlock()
			return
		}
		next := e.selectIntervalLocked()
		e.mu.Unlock()
		timer.Reset(next)
	}
}

func (e *Engine) tick(ctx context.Context, gen uint64) {
	if !e.fetchMu.TryLock() {
		e.logger.Debug().Str("presentation_id", e.id).Msg("poll: tick skipped, fetch in flight")
		return
	}
	defer e.fetchMu.Unlock()

	p, err := e.fetcher.Get(ctx, e.id)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.Warn().Err(err).Str("presentation_id", e.id).Msg("poll: fetch failed")
		return
	}
	e.mu.Lock()
	if !e.running || gen != e.gen {
		e.mu.Unlock()
		return
	}
	changed, completions := e.applyLocked(p, true)
	e.mu.Unlock()
	e.emit(p, changed, completions)
}

// applyLocked folds a fetched presentation into the change detector and
// returns whether the snapshot changed plus any processing-to-completed
// transitions. fromTick distinguishes cadence polls from manual refreshes;
// only the former feed the idle counter.
func (e *Engine) applyLocked(p *domain.Presentation, fromTick bool) (bool, []domain.StepName) {
	snap := snapshotSteps(p.Steps)
	if snap != e.snapshot {
		completions := completedTransitions(e.steps, p.Steps)
		e.snapshot = snap
		e.steps = cloneSteps(p.Steps)
		e.unchanged = 0
		if e.idle {
			e.idle = false
			e.logger.Info().Str("presentation_id", e.id).Msg("poll: change detected, resuming active cadence")
		}
		return true, completions
	}
	if fromTick {
		e.unchanged++
		if !e.idle && e.unchanged >= e.idleAfter && !stepsActive(e.steps) {
			e.idle = true
			e.logger.Info().
				Str("presentation_id", e.id).
				Int("unchanged_polls", e.unchanged).
				Msg("poll: settled, backing off to idle interval")
		}
	}
	return false, nil
}

func (e *Engine) emit(p *domain.Presentation, changed bool, completions []domain.StepName) {
	if changed && e.onUpdate != nil {
		e.onUpdate(p)
	}
	if e.onStepComplete == nil {
		return
	}
	for _, name := range completions {
		e.onStepComplete(name)
	}
}

func (e *Engine) selectIntervalLocked() time.Duration {
	return selectInterval(e.steps, e.idle, intervals{
		processing: e.processingInterval,
		pending:    e.pendingInterval,
		settled:    e.settledInterval,
		idle:       e.idleInterval,
	})
}

type intervals struct {
	processing time.Duration
	pending    time.Duration
	settled    time.Duration
	idle       time.Duration
}

// selectInterval picks the next poll delay: any processing step demands the
// fast cadence, pending steps the medium one, otherwise the settled cadence,
// unless the engine has already gone idle.
func selectInterval(steps []domain.Step, idle bool, cfg intervals) time.Duration {
	if idle {
		return cfg.idle
	}
	if domain.HasStepStatus(steps, domain.StepProcessing) {
		return cfg.processing
	}
	if domain.HasStepStatus(steps, domain.StepPending) {
		return cfg.pending
	}
	return cfg.settled
}

// snapshotSteps serializes the step collection for cheap change detection.
// Result payload length is enough to notice result rewrites without hashing
// whole payloads.
func snapshotSteps(steps []domain.Step) string {
	if len(steps) == 0 {
		return ""
	}
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, string(s.Name)+":"+string(s.Status)+":"+strconv.Itoa(len(s.Result))+":"+strconv.Itoa(len(s.Error)))
	}
	return strings.Join(parts, "|")
}

// completedTransitions lists steps that reached completed between two
// observations. A fast step can settle between polls without ever being seen
// processing, so any prior status other than completed counts as a
// transition.
func completedTransitions(prev, next []domain.Step) []domain.StepName {
	if len(prev) == 0 || len(next) == 0 {
		return nil
	}
	was := make(map[domain.StepName]domain.StepStatus, len(prev))
	for _, s := range prev {
		was[s.Name] = s.Status
	}
	var completed []domain.StepName
	for _, s := range next {
		if s.Status == domain.StepCompleted && was[s.Name] != domain.StepCompleted {
			completed = append(completed, s.Name)
		}
	}
	return completed
}

func stepsActive(steps []domain.Step) bool {
	return domain.HasStepStatus(steps, domain.StepProcessing) || domain.HasStepStatus(steps, domain.StepPending)
}

func cloneSteps(steps []domain.Step) []domain.Step {
	if steps == nil {
		return nil
	}
	out := make([]domain.Step, len(steps))
	copy(out, steps)
	return out
}
