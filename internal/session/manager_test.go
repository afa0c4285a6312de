package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deckhand/internal/domain"
	"deckhand/internal/polling"
)

type fakeFetcher struct {
	mu      sync.Mutex
	current *domain.Presentation
	err     error
	calls   int
}

func (f *fakeFetcher) Get(ctx context.Context, id string) (*domain.Presentation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.current.Clone(), nil
}

func (f *fakeFetcher) set(p *domain.Presentation) {
	f.mu.Lock()
	f.current = p
	f.mu.Unlock()
}

func processingPresentation() *domain.Presentation {
	steps := domain.NewSteps()
	steps[0].Status = domain.StepProcessing
	return &domain.Presentation{ID: "p1", Name: "Launch Deck", Steps: steps}
}

func fastPoll() polling.Options {
	return polling.Options{
		ProcessingInterval: 5 * time.Millisecond,
		PendingInterval:    5 * time.Millisecond,
		SettledInterval:    5 * time.Millisecond,
		IdleInterval:       50 * time.Millisecond,
		IdleAfter:          3,
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewManagerValidatesOptions(t *testing.T) {
	_, err := NewManager(Options{PresentationID: "p1"})
	require.Error(t, err)

	_, err = NewManager(Options{Fetcher: &fakeFetcher{}})
	require.Error(t, err)
}

func TestOpenSuccessStartsPolling(t *testing.T) {
	fetcher := &fakeFetcher{current: processingPresentation()}
	var mu sync.Mutex
	updates := 0
	mgr, err := NewManager(Options{
		Fetcher:        fetcher,
		PresentationID: "p1",
		OnUpdate: func(*domain.Presentation) {
			mu.Lock()
			updates++
			mu.Unlock()
		},
		Poll: fastPoll(),
	})
	require.NoError(t, err)
	defer mgr.Close()

	require.Nil(t, mgr.Presentation())
	require.NoError(t, mgr.Open(context.Background()))

	p := mgr.Presentation()
	require.NotNil(t, p)
	require.Equal(t, "Launch Deck", p.Name)
	require.False(t, mgr.Loading())
	require.NoError(t, mgr.Err())
	require.True(t, mgr.PollingActive())

	mu.Lock()
	initial := updates
	mu.Unlock()
	require.Equal(t, 1, initial, "initial fetch should fire the update hook once")

	// A polled change lands in the cache and fires the hook again.
	changed := processingPresentation()
	changed.Steps[0].Status = domain.StepCompleted
	fetcher.set(changed)
	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return updates >= 2
	})
	waitUntil(t, time.Second, func() bool {
		return mgr.Presentation().Steps[0].Status == domain.StepCompleted
	})
}

func TestOpenNotFoundSchedulesHook(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("api: %w: presentation not found", domain.ErrNotFound)}
	fired := make(chan struct{})
	mgr, err := NewManager(Options{
		Fetcher:        fetcher,
		PresentationID: "ghost",
		OnNotFound:     func() { close(fired) },
		NotFoundDelay:  20 * time.Millisecond,
		Poll:           fastPoll(),
	})
	require.NoError(t, err)
	defer mgr.Close()

	err = mgr.Open(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, mgr.Err(), domain.ErrNotFound)
	require.False(t, mgr.PollingActive())
	require.Nil(t, mgr.Presentation())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("not-found hook never fired")
	}
}

func TestCloseCancelsNotFoundHook(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("api: %w", domain.ErrNotFound)}
	var mu sync.Mutex
	fired := false
	mgr, err := NewManager(Options{
		Fetcher:        fetcher,
		PresentationID: "ghost",
		OnNotFound: func() {
			mu.Lock()
			fired = true
			mu.Unlock()
		},
		NotFoundDelay: 30 * time.Millisecond,
		Poll:          fastPoll(),
	})
	require.NoError(t, err)

	require.Error(t, mgr.Open(context.Background()))
	mgr.Close()

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.False(t, fired, "closed manager must not fire the not-found hook")
}

func TestOpenGenericErrorDoesNotScheduleHook(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	var mu sync.Mutex
	fired := false
	mgr, err := NewManager(Options{
		Fetcher:        fetcher,
		PresentationID: "p1",
		OnNotFound: func() {
			mu.Lock()
			fired = true
			mu.Unlock()
		},
		NotFoundDelay: 10 * time.Millisecond,
		Poll:          fastPoll(),
	})
	require.NoError(t, err)
	defer mgr.Close()

	require.Error(t, mgr.Open(context.Background()))
	require.Error(t, mgr.Err())
	require.False(t, mgr.PollingActive())

	time.Sleep(40 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.False(t, fired, "generic failures must not trigger the not-found hook")
}

func TestRefreshUpdatesCache(t *testing.T) {
	fetcher := &fakeFetcher{current: processingPresentation()}
	mgr, err := NewManager(Options{
		Fetcher:        fetcher,
		PresentationID: "p1",
		Poll:           fastPoll(),
	})
	require.NoError(t, err)
	defer mgr.Close()

	// Refresh works without Open: it fetches and caches.
	p, err := mgr.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Launch Deck", p.Name)
	require.NotNil(t, mgr.Presentation())
}

func TestSetPresentationReplacesCache(t *testing.T) {
	fetcher := &fakeFetcher{current: processingPresentation()}
	mgr, err := NewManager(Options{
		Fetcher:        fetcher,
		PresentationID: "p1",
		Poll:           fastPoll(),
	})
	require.NoError(t, err)
	defer mgr.Close()

	require.NoError(t, mgr.Open(context.Background()))

	replacement := processingPresentation()
	replacement.Name = "Edited Locally"
	mgr.SetPresentation(replacement)
	require.Equal(t, "Edited Locally", mgr.Presentation().Name)
}

func TestReopenRestartsPolling(t *testing.T) {
	fetcher := &fakeFetcher{current: processingPresentation()}
	mgr, err := NewManager(Options{
		Fetcher:        fetcher,
		PresentationID: "p1",
		Poll:           fastPoll(),
	})
	require.NoError(t, err)
	defer mgr.Close()

	require.NoError(t, mgr.Open(context.Background()))
	require.True(t, mgr.PollingActive())

	mgr.Close()
	require.False(t, mgr.PollingActive())

	require.NoError(t, mgr.Open(context.Background()))
	require.True(t, mgr.PollingActive())
}
