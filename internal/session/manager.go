package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deckhand/internal/domain"
	"deckhand/internal/infra"
	"deckhand/internal/polling"
)

// DefaultNotFoundDelay is how long a missing presentation stays on screen
// before the not-found hook fires (the UI's redirect-home delay).
const DefaultNotFoundDelay = 3 * time.Second

// Options configures a Manager for one presentation id.
type Options struct {
	Fetcher        polling.Fetcher
	PresentationID string
	Logger         *infra.Logger

	// OnUpdate fires with the initial fetch and every polled change.
	// OnStepComplete passes through from the polling engine. OnNotFound fires
	// NotFoundDelay after an Open that hit a missing presentation, unless the
	// manager is closed first.
	OnUpdate       func(*domain.Presentation)
	OnStepComplete func(domain.StepName)
	OnNotFound     func()

	NotFoundDelay time.Duration

	// Poll carries interval overrides for the embedded engine; its fetcher,
	// id, and callbacks are filled in by the manager.
	Poll polling.Options
}

// Manager is the single entry point tying the initial fetch to the polling
// engine's lifecycle. The server copy stays authoritative; the manager only
// caches it.
type Manager struct {
	engine        *polling.Engine
	fetcher       polling.Fetcher
	id            string
	logger        *infra.Logger
	onUpdate      func(*domain.Presentation)
	onNotFound    func()
	notFoundDelay time.Duration

	mu            sync.Mutex
	presentation  *domain.Presentation
	loading       bool
	lastErr       error
	notFoundTimer *time.Timer
}

// NewManager validates the options and builds a manager with a stopped
// engine. Call Open to load the presentation and begin polling.
func NewManager(opts Options) (*Manager, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("session: fetcher is required")
	}
	id := strings.TrimSpace(opts.PresentationID)
	if id == "" {
		return nil, errors.New("session: presentation id is required")
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	m := &Manager{
		fetcher:       opts.Fetcher,
		id:            id,
		logger:        logger,
		onUpdate:      opts.OnUpdate,
		onNotFound:    opts.OnNotFound,
		notFoundDelay: opts.NotFoundDelay,
	}
	if m.notFoundDelay <= 0 {
		m.notFoundDelay = DefaultNotFoundDelay
	}

	pollOpts := opts.Poll
	pollOpts.Fetcher = opts.Fetcher
	pollOpts.PresentationID = id
	pollOpts.Logger = logger
	pollOpts.OnUpdate = m.handleUpdate
	pollOpts.OnStepComplete = opts.OnStepComplete
	engine, err := polling.New(pollOpts)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	m.engine = engine
	return m, nil
}

// Open stops any stale polling, fetches the presentation once, and starts the
// engine on success. A missing presentation schedules the not-found hook; any
// other failure just records the error.
func (m *Manager) Open(ctx context.Context) error {
	m.engine.Stop()

	m.mu.Lock()
	m.loading = true
	m.lastErr = nil
	m.stopNotFoundTimerLocked()
	m.mu.Unlock()

	p, err := m.fetcher.Get(ctx, m.id)

	m.mu.Lock()
	m.loading = false
	if err != nil {
		m.lastErr = err
		if errors.Is(err, domain.ErrNotFound) {
			m.logger.Warn().Str("presentation_id", m.id).Msg("session: presentation not found")
			if m.onNotFound != nil {
				m.notFoundTimer = time.AfterFunc(m.notFoundDelay, m.onNotFound)
			}
		} else {
			m.logger.Error().Err(err).Str("presentation_id", m.id).Msg("session: initial fetch failed")
		}
		m.mu.Unlock()
		return err
	}
	m.presentation = p
	m.mu.Unlock()

	if m.onUpdate != nil {
		m.onUpdate(p)
	}
	m.engine.Seed(p)
	m.engine.Start(ctx)
	m.logger.Info().Str("presentation_id", m.id).Str("name", p.Name).Msg("session: opened")
	return nil
}

// Presentation returns the cached presentation, nil before a successful Open.
// Callers must treat it as read-only; replace it via SetPresentation.
func (m *Manager) Presentation() *domain.Presentation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presentation
}

// Loading reports whether an Open fetch is in progress.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Err returns the error from the most recent Open, nil after success.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// PollingActive reports whether the engine loop is running.
func (m *Manager) PollingActive() bool {
	return m.engine.Running()
}

// Refresh performs one immediate fetch through the engine, updating the
// cached presentation and firing the update hook.
func (m *Manager) Refresh(ctx context.Context) (*domain.Presentation, error) {
	return m.engine.Refresh(ctx)
}

// SetPresentation replaces the cached presentation after an externally driven
// change, typically the server echo of an optimistic save.
func (m *Manager) SetPresentation(p *domain.Presentation) {
	m.mu.Lock()
	m.presentation = p
	m.mu.Unlock()
}

// Close stops polling and cancels any scheduled not-found hook. Safe to call
// repeatedly.
func (m *Manager) Close() {
	m.engine.Stop()
	m.mu.Lock()
	m.stopNotFoundTimerLocked()
	m.mu.Unlock()
}

func (m *Manager) handleUpdate(p *domain.Presentation) {
	m.mu.Lock()
	m.presentation = p
	m.mu.Unlock()
	if m.onUpdate != nil {
		m.onUpdate(p)
	}
}

func (m *Manager) stopNotFoundTimerLocked() {
	if m.notFoundTimer != nil {
		m.notFoundTimer.Stop()
		m.notFoundTimer = nil
	}
}
