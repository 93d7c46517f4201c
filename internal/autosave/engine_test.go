package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storyforge/api/internal/netmon"
	"storyforge/api/internal/story"
)

// fakeClock drives the engine's timers deterministically.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward, firing due timers in order. Callbacks
// may schedule further timers, which fire too if they come due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.when.After(target) {
				continue
			}
			if next == nil || t.when.Before(next.when) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.when
		next.fired = true
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
}

// fakeClient records save requests and fails on demand.
type fakeClient struct {
	mu       sync.Mutex
	payloads []map[string]any
	err      error
}

func (f *fakeClient) PutStory(_ context.Context, _ string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.err
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeClient) lastPayload() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return nil
	}
	return f.payloads[len(f.payloads)-1]
}

func (f *fakeClient) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakeClient, *fakeClock) {
	t.Helper()
	client := &fakeClient{}
	clock := newFakeClock()
	cfg.StoryID = "story-1"
	cfg.Client = client
	cfg.Clock = clock
	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, client, clock
}

func TestNewRequiresStoryIDAndClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestIdenticalPayloadSavedOnce(t *testing.T) {
	engine, client, _ := newTestEngine(t, Config{})

	engine.Save(context.Background(), map[string]any{"title": "Dune"}, Options{})
	engine.Save(context.Background(), map[string]any{"title": "Dune"}, Options{})

	if client.calls() != 1 {
		t.Fatalf("expected exactly one request for identical payloads, got %d", client.calls())
	}
}

func TestChangedPayloadSavesAgain(t *testing.T) {
	engine, client, _ := newTestEngine(t, Config{})

	engine.Save(context.Background(), map[string]any{"title": "Dune"}, Options{})
	engine.Save(context.Background(), map[string]any{"title": "Dune Messiah"}, Options{})

	if client.calls() != 2 {
		t.Fatalf("expected two requests, got %d", client.calls())
	}
}

func TestDebounceCoalescesToLastPayload(t *testing.T) {
	engine, client, clock := newTestEngine(t, Config{})

	for i := 1; i <= 5; i++ {
		engine.DebouncedSave(map[string]any{"rev": i}, Options{})
	}
	clock.Advance(time.Second)

	if client.calls() != 1 {
		t.Fatalf("expected one request after debounce window, got %d", client.calls())
	}
	if got := client.lastPayload()["rev"]; got != 5 {
		t.Fatalf("expected the last payload to win, got rev=%v", got)
	}
}

func TestDebounceWaitsForQuietPeriod(t *testing.T) {
	engine, client, clock := newTestEngine(t, Config{})

	engine.DebouncedSave(map[string]any{"rev": 1}, Options{})
	clock.Advance(900 * time.Millisecond)
	if client.calls() != 0 {
		t.Fatalf("save fired before the quiet period elapsed")
	}
	engine.DebouncedSave(map[string]any{"rev": 2}, Options{})
	clock.Advance(900 * time.Millisecond)
	if client.calls() != 0 {
		t.Fatalf("rescheduled save fired early")
	}
	clock.Advance(100 * time.Millisecond)
	if client.calls() != 1 {
		t.Fatalf("expected one request, got %d", client.calls())
	}
}

func TestOfflineSaveIsQueuedNotSent(t *testing.T) {
	monitor := netmon.New()
	engine, client, _ := newTestEngine(t, Config{Connectivity: monitor})
	monitor.Set(false)

	engine.Save(context.Background(), map[string]any{"foo": 1}, Options{})

	if client.calls() != 0 {
		t.Fatalf("expected no network traffic while offline, got %d requests", client.calls())
	}
	if engine.Status() != story.SaveOffline {
		t.Fatalf("expected offline status, got %s", engine.Status())
	}
	pending := engine.PendingSaves()
	if len(pending) != 1 || pending[0].Data["foo"] != 1 {
		t.Fatalf("expected one queued save with the payload, got %+v", pending)
	}
}

func TestReconnectReplaysQueueHead(t *testing.T) {
	monitor := netmon.New()
	engine, client, _ := newTestEngine(t, Config{Connectivity: monitor})
	monitor.Set(false)
	engine.Save(context.Background(), map[string]any{"foo": 1}, Options{})

	monitor.Set(true)

	if client.calls() != 1 {
		t.Fatalf("expected one replayed request, got %d", client.calls())
	}
	if got := client.lastPayload()["foo"]; got != 1 {
		t.Fatalf("expected replayed payload foo=1, got %v", got)
	}
	if len(engine.PendingSaves()) != 0 {
		t.Fatalf("expected the queue to drain after replay")
	}
}

func TestRetriesUseLinearBackoffAndGiveUp(t *testing.T) {
	exhausted := 0
	engine, client, clock := newTestEngine(t, Config{
		OnRetriesExhausted: func(PendingSave) { exhausted++ },
	})
	client.setErr(errors.New("boom"))

	engine.Save(context.Background(), map[string]any{"foo": 1}, Options{})
	if client.calls() != 1 {
		t.Fatalf("expected the initial attempt, got %d", client.calls())
	}

	// Linear backoff: 2s, then 4s, then 6s.
	clock.Advance(2 * time.Second)
	if client.calls() != 2 {
		t.Fatalf("expected retry after 2s, got %d attempts", client.calls())
	}
	clock.Advance(4 * time.Second)
	if client.calls() != 3 {
		t.Fatalf("expected retry after 4s, got %d attempts", client.calls())
	}
	clock.Advance(6 * time.Second)
	if client.calls() != 4 {
		t.Fatalf("expected retry after 6s, got %d attempts", client.calls())
	}

	clock.Advance(time.Minute)
	if client.calls() != 4 {
		t.Fatalf("expected no attempts after retries are exhausted, got %d", client.calls())
	}
	if exhausted != 1 {
		t.Fatalf("expected one retries-exhausted notification, got %d", exhausted)
	}
	if len(engine.PendingSaves()) != 1 {
		t.Fatalf("expected the failed save to stay queued for later replay")
	}
}

func TestRetryWaitsForBackoffDelay(t *testing.T) {
	engine, client, clock := newTestEngine(t, Config{})
	client.setErr(errors.New("boom"))

	engine.Save(context.Background(), map[string]any{"foo": 1}, Options{})
	clock.Advance(1 * time.Second)

	if client.calls() != 1 {
		t.Fatalf("retry fired before its backoff delay")
	}
}

func TestQueueIsBounded(t *testing.T) {
	overflows := 0
	monitor := netmon.New()
	engine, client, _ := newTestEngine(t, Config{
		Connectivity:    monitor,
		OnQueueOverflow: func(PendingSave) { overflows++ },
	})
	monitor.Set(false)

	for i := 0; i < 12; i++ {
		engine.Save(context.Background(), map[string]any{"rev": i}, Options{})
	}

	if client.calls() != 0 {
		t.Fatalf("offline saves must not hit the network")
	}
	if got := len(engine.PendingSaves()); got != 10 {
		t.Fatalf("expected the queue capped at 10, got %d", got)
	}
	if overflows != 2 {
		t.Fatalf("expected 2 overflow notifications, got %d", overflows)
	}
}

func TestSuccessStatusRevertsToIdle(t *testing.T) {
	var statuses []story.SaveStatus
	engine, _, clock := newTestEngine(t, Config{
		OnStatus: func(s story.SaveStatus) { statuses = append(statuses, s) },
	})

	engine.Save(context.Background(), map[string]any{"foo": 1}, Options{})
	if engine.Status() != story.SaveSuccess {
		t.Fatalf("expected success status, got %s", engine.Status())
	}

	clock.Advance(2 * time.Second)
	if engine.Status() != story.SaveIdle {
		t.Fatalf("expected status to revert to idle, got %s", engine.Status())
	}
	want := []story.SaveStatus{story.SaveSaving, story.SaveSuccess, story.SaveIdle}
	if len(statuses) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, statuses)
		}
	}
}

func TestProgressMergedIntoPayload(t *testing.T) {
	engine, client, _ := newTestEngine(t, Config{})

	engine.Save(context.Background(), map[string]any{"title": "Dune"}, Options{
		CalculateProgress: func() int { return 40 },
		ProgressField:     story.ProgressConcept,
	})

	payload := client.lastPayload()
	progress, ok := payload["progress"].(map[string]any)
	if !ok {
		t.Fatalf("expected a progress object, got %v", payload["progress"])
	}
	if progress["concept"] != 40 {
		t.Fatalf("expected concept progress 40, got %v", progress["concept"])
	}
}

func TestCloseCancelsPendingDebounce(t *testing.T) {
	engine, client, clock := newTestEngine(t, Config{})

	engine.DebouncedSave(map[string]any{"foo": 1}, Options{})
	engine.Close()
	clock.Advance(5 * time.Second)

	if client.calls() != 0 {
		t.Fatalf("expected no request after Close, got %d", client.calls())
	}
}

func TestCloseCancelsScheduledRetry(t *testing.T) {
	engine, client, clock := newTestEngine(t, Config{})
	client.setErr(errors.New("boom"))

	engine.Save(context.Background(), map[string]any{"foo": 1}, Options{})
	engine.Close()
	clock.Advance(time.Minute)

	if client.calls() != 1 {
		t.Fatalf("expected only the initial attempt after Close, got %d", client.calls())
	}
}

func TestFailedSaveKeepsAlertContract(t *testing.T) {
	var alerts []string
	engine, client, clock := newTestEngine(t, Config{
		Alert: func(msg string) { alerts = append(alerts, msg) },
	})
	client.setErr(errors.New("boom"))

	engine.Save(context.Background(), map[string]any{"foo": 1}, Options{ShowAlert: true})
	clock.Advance(30 * time.Second)

	if len(alerts) != 1 {
		t.Fatalf("expected one terminal alert, got %v", alerts)
	}
}
