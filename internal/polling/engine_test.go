package polling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"deckhand/internal/domain"
)

func testPresentation(statuses ...domain.StepStatus) *domain.Presentation {
	steps := domain.NewSteps()
	for i, status := range statuses {
		if i >= len(steps) {
			break
		}
		steps[i].Status = status
	}
	return &domain.Presentation{ID: "p1", Name: "Test Deck", Steps: steps}
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	current *domain.Presentation
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) Get(ctx context.Context, id string) (*domain.Presentation, error) {
	f.mu.Lock()
	f.calls++
	p := f.current
	err := f.err
	entered := f.entered
	release := f.release
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func (f *fakeFetcher) set(p *domain.Presentation) {
	f.mu.Lock()
	f.current = p
	f.mu.Unlock()
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
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

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func fastOptions(f Fetcher) Options {
	return Options{
		Fetcher:            f,
		PresentationID:     "p1",
		ProcessingInterval: 5 * time.Millisecond,
		PendingInterval:    5 * time.Millisecond,
		SettledInterval:    5 * time.Millisecond,
		IdleInterval:       60 * time.Millisecond,
		IdleAfter:          3,
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{PresentationID: "p1"}); err == nil {
		t.Fatal("New without fetcher should fail")
	}
	if _, err := New(Options{Fetcher: &fakeFetcher{}}); err == nil {
		t.Fatal("New without presentation id should fail")
	}
	if _, err := New(Options{Fetcher: &fakeFetcher{}, PresentationID: "  "}); err == nil {
		t.Fatal("New with blank presentation id should fail")
	}
}

func TestSelectInterval(t *testing.T) {
	cfg := intervals{processing: 1 * time.Second, pending: 2 * time.Second, settled: 10 * time.Second, idle: 30 * time.Second}
	cases := []struct {
		name     string
		statuses []domain.StepStatus
		idle     bool
		want     time.Duration
	}{
		{name: "processing wins", statuses: []domain.StepStatus{domain.StepCompleted, domain.StepProcessing, domain.StepPending}, want: cfg.processing},
		{name: "pending without processing", statuses: []domain.StepStatus{domain.StepCompleted, domain.StepPending}, want: cfg.pending},
		{name: "all settled", statuses: []domain.StepStatus{domain.StepCompleted, domain.StepCompleted, domain.StepFailed, domain.StepCompleted, domain.StepCompleted}, want: cfg.settled},
		{name: "idle overrides everything", statuses: []domain.StepStatus{domain.StepProcessing}, idle: true, want: cfg.idle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			steps := testPresentation(tc.statuses...).Steps
			if got := selectInterval(steps, tc.idle, cfg); got != tc.want {
				t.Fatalf("selectInterval = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSnapshotStepsDetectsChanges(t *testing.T) {
	a := testPresentation(domain.StepProcessing).Steps
	b := testPresentation(domain.StepProcessing).Steps
	if snapshotSteps(a) != snapshotSteps(b) {
		t.Fatal("identical steps should produce identical snapshots")
	}
	b[0].Status = domain.StepCompleted
	if snapshotSteps(a) == snapshotSteps(b) {
		t.Fatal("status change should alter the snapshot")
	}
	c := testPresentation(domain.StepProcessing).Steps
	c[0].Result = []byte(`{"summary":"done"}`)
	if snapshotSteps(a) == snapshotSteps(c) {
		t.Fatal("result growth should alter the snapshot")
	}
	if snapshotSteps(nil) != "" {
		t.Fatal("empty steps should snapshot to the empty string")
	}
}

func TestCompletedTransitions(t *testing.T) {
	prev := testPresentation(domain.StepCompleted, domain.StepProcessing, domain.StepPending).Steps
	next := testPresentation(domain.StepCompleted, domain.StepCompleted, domain.StepCompleted).Steps

	// Already-completed research stays quiet; slides finished the normal way
	// and images settled so fast it skipped the visible processing state.
	got := completedTransitions(prev, next)
	if len(got) != 2 || got[0] != domain.StepSlides || got[1] != domain.StepImages {
		t.Fatalf("completedTransitions = %v, want [slides images]", got)
	}
	if got := completedTransitions(nil, next); got != nil {
		t.Fatalf("transitions from empty prev = %v, want nil", got)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{current: testPresentation(domain.StepProcessing)}
	engine, err := New(fastOptions(fetcher))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer engine.Stop()

	ctx := context.Background()
	engine.Start(ctx)
	engine.mu.Lock()
	firstGen := engine.gen
	engine.mu.Unlock()

	engine.Start(ctx)
	engine.mu.Lock()
	secondGen := engine.gen
	engine.mu.Unlock()

	if firstGen != secondGen {
		t.Fatalf("second Start spawned a new loop: gen %d -> %d", firstGen, secondGen)
	}
	if !engine.Running() {
		t.Fatal("engine should report running")
	}
	waitUntil(t, time.Second, func() bool { return fetcher.callCount() >= 2 })

	engine.Stop()
	if engine.Running() {
		t.Fatal("engine should report stopped after Stop")
	}
	settled := fetcher.callCount()
	time.Sleep(30 * time.Millisecond)
	if got := fetcher.callCount(); got > settled+1 {
		t.Fatalf("fetches continued after Stop: %d -> %d", settled, got)
	}
}

func TestTickFiresUpdateOnlyOnChange(t *testing.T) {
	fetcher := &fakeFetcher{current: testPresentation(domain.StepProcessing)}
	var updates counter
	opts := fastOptions(fetcher)
	opts.OnUpdate = func(*domain.Presentation) { updates.inc() }
	engine, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer engine.Stop()

	engine.Seed(fetcher.current)
	engine.Start(context.Background())

	waitUntil(t, time.Second, func() bool { return fetcher.callCount() >= 4 })
	if got := updates.value(); got != 0 {
		t.Fatalf("unchanged ticks fired %d updates, want 0", got)
	}

	fetcher.set(testPresentation(domain.StepCompleted))
	waitUntil(t, time.Second, func() bool { return updates.value() == 1 })

	calls := fetcher.callCount()
	waitUntil(t, time.Second, func() bool { return fetcher.callCount() >= calls+3 })
	if got := updates.value(); got != 1 {
		t.Fatalf("updates = %d after state settled, want exactly 1", got)
	}
}

func TestStepCompletionCallback(t *testing.T) {
	fetcher := &fakeFetcher{current: testPresentation(domain.StepProcessing)}
	var completed []domain.StepName
	var mu sync.Mutex
	opts := fastOptions(fetcher)
	opts.OnStepComplete = func(name domain.StepName) {
		mu.Lock()
		completed = append(completed, name)
		mu.Unlock()
	}
	engine, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer engine.Stop()

	engine.Seed(fetcher.current)
	engine.Start(context.Background())
	fetcher.set(testPresentation(domain.StepCompleted, domain.StepProcessing))

	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(completed) == 1
	})
	mu.Lock()
	first := completed[0]
	mu.Unlock()
	if first != domain.StepResearch {
		t.Fatalf("completed step = %q, want research", first)
	}

	// Status settles afterwards, so no duplicate completion events.
	calls := fetcher.callCount()
	waitUntil(t, time.Second, func() bool { return fetcher.callCount() >= calls+3 })
	mu.Lock()
	total := len(completed)
	mu.Unlock()
	if total != 1 {
		t.Fatalf("completion fired %d times, want once", total)
	}
}

func TestIdleBackoffAndRecovery(t *testing.T) {
	fetcher := &fakeFetcher{current: testPresentation(
		domain.StepCompleted, domain.StepCompleted, domain.StepCompleted, domain.StepCompleted, domain.StepCompleted,
	)}
	var updates counter
	opts := fastOptions(fetcher)
	opts.OnUpdate = func(*domain.Presentation) { updates.inc() }
	engine, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer engine.Stop()

	engine.Seed(fetcher.current)
	engine.Start(context.Background())

	waitUntil(t, time.Second, func() bool { return engine.Idle() })

	// A change observed by a slow tick snaps the engine back to the active
	// cadence and fires an update.
	changed := testPresentation(domain.StepCompleted, domain.StepCompleted, domain.StepCompleted, domain.StepCompleted, domain.StepCompleted)
	changed.Steps[4].Result = []byte(`{"url":"/decks/p1.pptx"}`)
	fetcher.set(changed)

	waitUntil(t, time.Second, func() bool { return updates.value() >= 1 })
	if engine.Idle() {
		t.Fatal("engine should have left idle mode after a change")
	}
}

func TestIdleRequiresNoActiveSteps(t *testing.T) {
	fetcher := &fakeFetcher{current: testPresentation(domain.StepCompleted, domain.StepPending)}
	engine, err := New(fastOptions(fetcher))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer engine.Stop()

	engine.Seed(fetcher.current)
	engine.Start(context.Background())

	waitUntil(t, time.Second, func() bool { return fetcher.callCount() >= 6 })
	if engine.Idle() {
		t.Fatal("engine must not idle while a step is pending")
	}
}

func TestRefreshFiresUpdateUnconditionally(t *testing.T) {
	fetcher := &fakeFetcher{current: testPresentation(domain.StepCompleted)}
	var updates counter
	opts := fastOptions(fetcher)
	opts.OnUpdate = func(*domain.Presentation) { updates.inc() }
	engine, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Never started: refresh still fetches and announces.
	p, err := engine.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if p == nil || p.ID != "p1" {
		t.Fatalf("Refresh returned %+v, want presentation p1", p)
	}
	if updates.value() != 1 {
		t.Fatalf("updates = %d after refresh, want 1", updates.value())
	}

	// Unchanged state still triggers the callback on manual refresh.
	if _, err := engine.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if updates.value() != 2 {
		t.Fatalf("updates = %d after second refresh, want 2", updates.value())
	}
}

func TestRefreshErrorWrapped(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("boom")}
	engine, err := New(fastOptions(fetcher))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := engine.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh should surface fetch errors")
	}
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	fetcher := &fakeFetcher{
		current: testPresentation(domain.StepProcessing),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	var updates counter
	opts := fastOptions(fetcher)
	opts.OnUpdate = func(*domain.Presentation) { updates.inc() }
	engine, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	engine.Start(context.Background())
	<-fetcher.entered
	engine.Stop()
	close(fetcher.release)

	time.Sleep(30 * time.Millisecond)
	if got := updates.value(); got != 0 {
		t.Fatalf("stale in-flight result fired %d updates, want 0", got)
	}
}

func TestFetchErrorsDoNotStopPolling(t *testing.T) {
	fetcher := &fakeFetcher{current: testPresentation(domain.StepProcessing), err: errors.New("transient")}
	var updates counter
	opts := fastOptions(fetcher)
	opts.OnUpdate = func(*domain.Presentation) { updates.inc() }
	engine, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer engine.Stop()

	engine.Start(context.Background())
	waitUntil(t, time.Second, func() bool { return fetcher.callCount() >= 3 })

	fetcher.setErr(nil)
	waitUntil(t, time.Second, func() bool { return updates.value() >= 1 })
}
