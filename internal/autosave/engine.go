// Package autosave persists story edits to the StoryForge API with
// debouncing, redundant-write suppression, bounded retry and an offline
// queue. One Engine owns the save pipeline for one open story; its
// pending queue, retry counter and last-persisted fingerprint are
// private to that instance and die with Close.
//
// Persistence failures are never returned to callers. They are absorbed
// into the save status and the pending queue, and surfaced through the
// optional OnStatus / OnQueueOverflow / OnRetriesExhausted hooks.
package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"storyforge/api/internal/story"
)

const (
	defaultDebounce        = 1 * time.Second
	defaultRetryDelay      = 2 * time.Second
	defaultMaxRetries      = 3
	defaultMaxPendingSaves = 10
	defaultStatusHold      = 2 * time.Second
)

var ErrInvalidConfig = errors.New("autosave: story id and client are required")

// Persister issues the actual save request. *apiclient.Client satisfies it.
type Persister interface {
	PutStory(ctx context.Context, storyID string, payload map[string]any) error
}

// ConnectivitySource reports and signals online/offline transitions.
// *netmon.Monitor satisfies it.
type ConnectivitySource interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Options tags a single save request.
type Options struct {
	// ShowAlert surfaces a user-facing notice on completion or on
	// exhausted retries, via the engine's Alert hook.
	ShowAlert bool
	// CalculateProgress, with ProgressField, merges a fresh completion
	// percentage into the outgoing payload's progress object.
	CalculateProgress func() int
	ProgressField     story.ProgressField
}

// PendingSave is a save that could not complete immediately: made while
// offline, or failed and awaiting replay.
type PendingSave struct {
	Data      map[string]any
	Options   Options
	Timestamp time.Time
}

// Config configures an Engine. StoryID and Client are required.
type Config struct {
	StoryID      string
	Client       Persister
	Connectivity ConnectivitySource
	Clock        Clock

	Debounce        time.Duration
	RetryDelay      time.Duration
	MaxRetries      int
	MaxPendingSaves int
	// StatusHold is how long success/error stays visible before the
	// status reverts to idle.
	StatusHold time.Duration

	// OnStatus observes every status transition. Hooks run outside the
	// engine lock and may call back into the engine.
	OnStatus func(story.SaveStatus)
	// OnQueueOverflow fires when a save is dropped because the pending
	// queue is at capacity.
	OnQueueOverflow func(PendingSave)
	// OnRetriesExhausted fires when automatic retries give up and the
	// save is left queued for a later replay.
	OnRetriesExhausted func(PendingSave)
	// Alert surfaces user-facing notices for ShowAlert saves.
	Alert func(message string)
}

// Engine is the autosave pipeline for one story.
type Engine struct {
	storyID string
	client  Persister
	clock   Clock

	debounce   time.Duration
	retryDelay time.Duration
	maxRetries int
	maxPending int
	statusHold time.Duration

	onStatus           func(story.SaveStatus)
	onQueueOverflow    func(PendingSave)
	onRetriesExhausted func(PendingSave)
	alert              func(string)

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	status        story.SaveStatus
	pending       []PendingSave
	retryCount    int
	online        bool
	lastSaved     string
	debounceTimer Timer
	retryTimer    Timer
	holdTimer     Timer
	unsubscribe   func()
	closed        bool
}

func New(cfg Config) (*Engine, error) {
	if cfg.StoryID == "" || cfg.Client == nil {
		return nil, ErrInvalidConfig
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxPendingSaves <= 0 {
		cfg.MaxPendingSaves = defaultMaxPendingSaves
	}
	if cfg.StatusHold <= 0 {
		cfg.StatusHold = defaultStatusHold
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		storyID:            cfg.StoryID,
		client:             cfg.Client,
		clock:              cfg.Clock,
		debounce:           cfg.Debounce,
		retryDelay:         cfg.RetryDelay,
		maxRetries:         cfg.MaxRetries,
		maxPending:         cfg.MaxPendingSaves,
		statusHold:         cfg.StatusHold,
		onStatus:           cfg.OnStatus,
		onQueueOverflow:    cfg.OnQueueOverflow,
		onRetriesExhausted: cfg.OnRetriesExhausted,
		alert:              cfg.Alert,
		ctx:                ctx,
		cancel:             cancel,
		status:             story.SaveIdle,
		online:             true,
	}
	if cfg.Connectivity != nil {
		e.online = cfg.Connectivity.Online()
		e.unsubscribe = cfg.Connectivity.Subscribe(e.handleConnectivity)
	}
	return e, nil
}

// Status returns the engine's current disposition, for UI indicators.
func (e *Engine) Status() story.SaveStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// PendingSaves returns a copy of the offline/retry queue, oldest first.
func (e *Engine) PendingSaves() []PendingSave {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]PendingSave(nil), e.pending...)
}

// Save attempts an immediate save. Offline saves are queued; failures
// retry with linear backoff and end up queued; a payload identical to
// the last persisted one is skipped without a network call.
func (e *Engine) Save(ctx context.Context, data map[string]any, opts Options) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	if !e.online {
		dropped := e.enqueueLocked(data, opts)
		notify := e.transitionLocked(story.SaveOffline)
		e.mu.Unlock()
		notify()
		e.reportDropped(dropped)
		return
	}

	payload := data
	if opts.CalculateProgress != nil && opts.ProgressField != "" {
		payload = mergeProgress(data, opts.ProgressField, opts.CalculateProgress())
	}

	fp := fingerprint(payload)
	if fp != "" && fp == e.lastSaved {
		// Byte-identical to the last persisted payload.
		e.mu.Unlock()
		return
	}

	notify := e.transitionLocked(story.SaveSaving)
	e.mu.Unlock()
	notify()

	// The request runs outside the engine lock. Two direct Save calls may
	// therefore overlap in flight (see package docs); internal state stays
	// consistent either way.
	err := e.client.PutStory(ctx, e.storyID, payload)
	if err == nil {
		e.finishSuccess(ctx, fp, opts)
		return
	}
	e.finishFailure(data, opts)
}

func (e *Engine) finishSuccess(ctx context.Context, fp string, opts Options) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.lastSaved = fp
	if len(e.pending) > 0 {
		// The save that just completed supersedes the queue head.
		e.pending = e.pending[1:]
	}
	e.retryCount = 0
	notify := e.transitionLocked(story.SaveSuccess)
	e.scheduleHoldLocked()
	var next *PendingSave
	if len(e.pending) > 0 {
		head := e.pending[0]
		next = &head
	}
	e.mu.Unlock()

	notify()
	if opts.ShowAlert && e.alert != nil {
		e.alert("Progress saved")
	}
	if next != nil {
		e.Save(ctx, next.Data, next.Options)
	}
}

func (e *Engine) finishFailure(data map[string]any, opts Options) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	notify := e.transitionLocked(story.SaveError)

	var dropped *PendingSave
	if !e.queuedLocked(data) {
		dropped = e.enqueueLocked(data, opts)
	}

	var exhausted *PendingSave
	if e.retryCount < e.maxRetries {
		e.retryCount++
		delay := e.retryDelay * time.Duration(e.retryCount)
		if e.retryTimer != nil {
			e.retryTimer.Stop()
		}
		e.retryTimer = e.clock.AfterFunc(delay, func() {
			e.Save(e.ctx, data, opts)
		})
	} else {
		exhausted = &PendingSave{Data: data, Options: opts, Timestamp: e.clock.Now()}
		e.scheduleHoldLocked()
	}
	e.mu.Unlock()

	notify()
	e.reportDropped(dropped)
	if exhausted != nil {
		if e.onRetriesExhausted != nil {
			e.onRetriesExhausted(*exhausted)
		}
		if opts.ShowAlert && e.alert != nil {
			e.alert("Could not save after several attempts. Changes are queued and will sync when the connection is restored.")
		}
	}
}

// DebouncedSave schedules Save after a quiet period. Only the most
// recent call within the window executes; earlier payloads are
// discarded, not merged.
func (e *Engine) DebouncedSave(data map[string]any, opts Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
	}
	e.debounceTimer = e.clock.AfterFunc(e.debounce, func() {
		e.Save(e.ctx, data, opts)
	})
}

// Close cancels the debounce, retry and status-hold timers and detaches
// from the connectivity monitor. An in-flight request is not canceled;
// its completion is ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
	}
	if e.retryTimer != nil {
		e.retryTimer.Stop()
	}
	if e.holdTimer != nil {
		e.holdTimer.Stop()
	}
	unsubscribe := e.unsubscribe
	e.mu.Unlock()

	e.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (e *Engine) handleConnectivity(online bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.online = online
	var notify func()
	var head *PendingSave
	if online {
		notify = e.transitionLocked(story.SaveIdle)
		if len(e.pending) > 0 {
			h := e.pending[0]
			head = &h
		}
	} else {
		notify = e.transitionLocked(story.SaveOffline)
	}
	e.mu.Unlock()

	notify()
	if head != nil {
		e.Save(e.ctx, head.Data, head.Options)
	}
}

// enqueueLocked appends to the pending queue if capacity remains, or
// returns the save that had to be dropped.
func (e *Engine) enqueueLocked(data map[string]any, opts Options) *PendingSave {
	p := PendingSave{Data: data, Options: opts, Timestamp: e.clock.Now()}
	if len(e.pending) < e.maxPending {
		e.pending = append(e.pending, p)
		return nil
	}
	return &p
}

func (e *Engine) reportDropped(dropped *PendingSave) {
	if dropped != nil && e.onQueueOverflow != nil {
		e.onQueueOverflow(*dropped)
	}
}

func (e *Engine) queuedLocked(data map[string]any) bool {
	fp := fingerprint(data)
	for _, p := range e.pending {
		if fingerprint(p.Data) == fp {
			return true
		}
	}
	return false
}

// transitionLocked updates the status and returns the deferred hook
// invocation, which must run after the lock is released.
func (e *Engine) transitionLocked(next story.SaveStatus) func() {
	if e.status == next {
		return func() {}
	}
	e.status = next
	if e.onStatus == nil {
		return func() {}
	}
	hook := e.onStatus
	return func() { hook(next) }
}

// scheduleHoldLocked reverts the status to idle after the hold window.
func (e *Engine) scheduleHoldLocked() {
	if e.holdTimer != nil {
		e.holdTimer.Stop()
	}
	e.holdTimer = e.clock.AfterFunc(e.statusHold, func() {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		notify := e.transitionLocked(story.SaveIdle)
		e.mu.Unlock()
		notify()
	})
}

// mergeProgress returns a shallow copy of data with the computed section
// percentage merged into its progress object.
func mergeProgress(data map[string]any, field story.ProgressField, value int) map[string]any {
	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	progress := map[string]any{}
	switch existing := data["progress"].(type) {
	case map[string]any:
		for k, v := range existing {
			progress[k] = v
		}
	case story.Progress:
		for k, v := range existing {
			progress[string(k)] = v
		}
	case map[string]int:
		for k, v := range existing {
			progress[k] = v
		}
	}
	progress[string(field)] = value
	payload["progress"] = progress
	return payload
}

// fingerprint serializes a payload for idempotence comparison. Map keys
// are sorted by encoding/json, so equal payloads fingerprint equally.
func fingerprint(payload map[string]any) string {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(encoded)
}
