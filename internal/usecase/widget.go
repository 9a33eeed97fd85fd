// Package usecase holds the voice widget: the recording toggle, the capture
// event handling and the completion request lifecycle.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

var (
	ErrNotListening = errors.New("widget is not listening")
	ErrSuperseded   = errors.New("completion request superseded or abandoned")
)

// Headings are the response panel titles.
type Headings struct {
	Pending  string
	Response string
}

// DefaultHeadings mirrors the copy used by the web widget.
var DefaultHeadings = Headings{
	Pending:  "Processing your input...",
	Response: "Response from the assistant",
}

// FailureAnswer replaces the answer whenever a completion request fails.
const FailureAnswer = "Error: API call failed. Try again.."

// Config controls widget behavior.
type Config struct {
	Language               string
	ClearTranscriptOnError bool
	MaxRestarts            int
	RestartBackoff         time.Duration
	MaxRestartBackoff      time.Duration
	RequestTimeout         time.Duration
	SpeakErrors            bool
	Headings               Headings
}

// Widget is the voice assistant widget. All state lives behind mu and no
// collaborator is called while mu is held.
type Widget struct {
	capture  ports.SpeechCapture
	playback ports.SpeechPlayback
	events   ports.EventSink
	orch     *orchestrator
	cfg      Config
	logger   *slog.Logger

	mu         sync.Mutex
	snap       domain.Snapshot
	generation uint64
	sub        ports.Subscription
	runCtx     context.Context
	stopRun    context.CancelFunc
	startedAt  time.Time
}

func NewWidget(
	capture ports.SpeechCapture,
	playback ports.SpeechPlayback,
	completion ports.CompletionService,
	rules ports.PromptRules,
	events ports.EventSink,
	cfg Config,
	logger *slog.Logger,
) *Widget {
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = 250 * time.Millisecond
	}
	if cfg.MaxRestartBackoff <= 0 {
		cfg.MaxRestartBackoff = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Headings == (Headings{}) {
		cfg.Headings = DefaultHeadings
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Widget{
		capture:  capture,
		playback: playback,
		events:   events,
		cfg:      cfg,
		logger:   logger.With("component", "widget"),
		snap: domain.Snapshot{
			Recording: domain.RecordingStateIdle,
			Phase:     domain.ResponsePhaseNone,
		},
	}
	w.orch = newOrchestrator(completion, playback, rules, events, w.update, cfg, logger)
	return w
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() domain.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap
}

// Toggle starts listening from Idle and stops listening from Listening.
// Stopping returns the outcome of the completion request it triggers.
func (w *Widget) Toggle(ctx context.Context) (domain.Outcome, error) {
	if w.Snapshot().Recording == domain.RecordingStateListening {
		return w.StopListening(ctx)
	}
	return domain.Outcome{}, w.StartListening(ctx)
}

// StartListening clears the transcript and starts speech capture. It is a
// no-op while already listening.
func (w *Widget) StartListening(ctx context.Context) error {
	w.mu.Lock()
	next, ok := nextRecordingState(w.snap.Recording, triggerStart)
	if !ok {
		w.mu.Unlock()
		return nil
	}
	w.generation++
	gen := w.generation
	w.snap.Recording = next
	w.snap.Transcript = ""
	runCtx, stopRun := context.WithCancel(ctx)
	w.runCtx = runCtx
	w.stopRun = stopRun
	snap := w.commitLocked()
	w.mu.Unlock()

	sub := w.capture.Subscribe(func(event domain.CaptureEvent) {
		w.onCapture(gen, event)
	})

	w.mu.Lock()
	if w.generation != gen {
		w.mu.Unlock()
		sub.Cancel()
		return nil
	}
	w.sub = sub
	w.mu.Unlock()

	w.playback.Cancel()
	w.events.StateChanged(snap)

	if err := w.capture.Start(runCtx, w.captureOptions()); err != nil {
		if !w.drop(gen, triggerGiveUp) {
			// Stopped or aborted while capture was opening.
			w.logger.Debug("speech capture start abandoned", "error", err)
			return nil
		}
		w.logger.Error("speech capture failed to start", "error", err)
		return fmt.Errorf("starting speech capture: %w", err)
	}

	w.mu.Lock()
	if w.generation == gen {
		w.startedAt = time.Now()
	}
	w.mu.Unlock()

	w.logger.Info("listening", "language", w.cfg.Language)
	return nil
}

// StopListening stops capture and submits the transcript as it stood at the
// moment of the stop. Calling it while Idle returns ErrNotListening and
// changes nothing.
func (w *Widget) StopListening(ctx context.Context) (domain.Outcome, error) {
	w.mu.Lock()
	next, ok := nextRecordingState(w.snap.Recording, triggerStop)
	if !ok {
		w.mu.Unlock()
		return domain.Outcome{}, ErrNotListening
	}
	prompt := w.snap.Transcript
	sub, stopRun := w.detachLocked(next)
	snap := w.commitLocked()
	w.mu.Unlock()

	// Late results after the stop belong to no one.
	if sub != nil {
		sub.Cancel()
	}
	if err := w.capture.Stop(); err != nil {
		w.logger.Warn("speech capture did not stop cleanly", "error", err)
		w.events.WidgetError(domain.ErrorCodeAudioStop, err.Error())
	}
	if stopRun != nil {
		stopRun()
	}
	w.events.StateChanged(snap)

	return w.orch.submit(ctx, prompt)
}

// Abort discards the current recording without submitting it, cancels any
// pending request and silences playback.
func (w *Widget) Abort() {
	w.mu.Lock()
	var (
		sub     ports.Subscription
		stopRun context.CancelFunc
		snap    domain.Snapshot
	)
	next, listening := nextRecordingState(w.snap.Recording, triggerStop)
	if listening {
		sub, stopRun = w.detachLocked(next)
		snap = w.commitLocked()
	}
	w.mu.Unlock()

	w.orch.cancel()
	w.playback.Cancel()
	if !listening {
		return
	}

	if sub != nil {
		sub.Cancel()
	}
	_ = w.capture.Stop()
	if stopRun != nil {
		stopRun()
	}
	w.events.StateChanged(snap)
	w.logger.Info("recording discarded")
}

// detachLocked moves to state and releases the current capture run. The
// generation bump makes every callback of the old run stale.
func (w *Widget) detachLocked(state domain.RecordingState) (ports.Subscription, context.CancelFunc) {
	w.snap.Recording = state
	w.generation++
	sub, stopRun := w.sub, w.stopRun
	w.sub, w.stopRun, w.runCtx = nil, nil, nil
	return sub, stopRun
}

// drop returns to Idle after capture could not be (re)started.
func (w *Widget) drop(gen uint64, t trigger) bool {
	w.mu.Lock()
	if w.generation != gen {
		w.mu.Unlock()
		return false
	}
	next, ok := nextRecordingState(w.snap.Recording, t)
	if !ok {
		w.mu.Unlock()
		return false
	}
	sub, stopRun := w.detachLocked(next)
	snap := w.commitLocked()
	w.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	_ = w.capture.Stop()
	if stopRun != nil {
		stopRun()
	}
	w.events.StateChanged(snap)
	return true
}

func (w *Widget) captureOptions() ports.CaptureOptions {
	return ports.CaptureOptions{
		Language:       w.cfg.Language,
		Continuous:     true,
		InterimResults: true,
	}
}

// listeningLocked reports whether gen is still the live capture run.
func (w *Widget) listeningLocked(gen uint64) bool {
	return w.generation == gen && w.snap.Recording == domain.RecordingStateListening
}

// commitLocked stamps the current state with the next version and returns it
// for publishing.
func (w *Widget) commitLocked() domain.Snapshot {
	w.snap.Version++
	return w.snap
}

// update applies mutate under the lock and publishes the result when it
// reports a change.
func (w *Widget) update(mutate func(*domain.Snapshot) bool) {
	w.mu.Lock()
	if !mutate(&w.snap) {
		w.mu.Unlock()
		return
	}
	snap := w.commitLocked()
	w.mu.Unlock()
	w.events.StateChanged(snap)
}
