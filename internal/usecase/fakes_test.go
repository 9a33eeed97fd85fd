package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCapture struct {
	mu        sync.Mutex
	listeners map[int]ports.CaptureListener
	nextID    int
	startErrs []error
	starts    int
	stops     int
	opts      []ports.CaptureOptions
	started   chan struct{}
	// startGate, when set, holds Start until it is closed.
	startGate chan struct{}
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{
		listeners: make(map[int]ports.CaptureListener),
		started:   make(chan struct{}, 32),
	}
}

func (f *fakeCapture) Start(_ context.Context, opts ports.CaptureOptions) error {
	f.mu.Lock()
	f.starts++
	f.opts = append(f.opts, opts)
	var err error
	if len(f.startErrs) > 0 {
		err = f.startErrs[0]
		f.startErrs = f.startErrs[1:]
	}
	f.mu.Unlock()

	f.started <- struct{}{}
	if f.startGate != nil {
		<-f.startGate
	}
	return err
}

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeCapture) Subscribe(listener ports.CaptureListener) ports.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = listener
	return fakeSubscription{cancel: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}}
}

func (f *fakeCapture) emit(event domain.CaptureEvent) {
	f.mu.Lock()
	listeners := make([]ports.CaptureListener, 0, len(f.listeners))
	for _, listener := range f.listeners {
		listeners = append(listeners, listener)
	}
	f.mu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

func (f *fakeCapture) emitResults(transcripts ...string) {
	results := make([]domain.RecognitionResult, 0, len(transcripts))
	for _, transcript := range transcripts {
		results = append(results, domain.RecognitionResult{
			Alternatives: []domain.Alternative{{Transcript: transcript}},
		})
	}
	f.emit(domain.CaptureEvent{Kind: domain.CaptureEventResult, Results: results})
}

func (f *fakeCapture) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeCapture) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *fakeCapture) waitStarts(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for f.startCount() < n {
		select {
		case <-f.started:
		case <-deadline:
			t.Fatalf("expected %d capture starts, got %d", n, f.startCount())
		}
	}
}

type fakeSubscription struct {
	cancel func()
}

func (s fakeSubscription) Cancel() { s.cancel() }

type fakePlayback struct {
	mu      sync.Mutex
	spoken  chan string
	cancels int
	err     error
}

func newFakePlayback() *fakePlayback {
	return &fakePlayback{spoken: make(chan string, 8)}
}

func (f *fakePlayback) Speak(_ context.Context, text string) error {
	f.spoken <- text
	return f.err
}

func (f *fakePlayback) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakePlayback) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

type fakeCompletion struct {
	mu      sync.Mutex
	prompts []string
	respond func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeCompletion) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.respond(ctx, prompt)
}

func (f *fakeCompletion) snapshotPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func answerWith(answer string) *fakeCompletion {
	return &fakeCompletion{respond: func(context.Context, string) (string, error) {
		return answer, nil
	}}
}

func failWith(err error) *fakeCompletion {
	return &fakeCompletion{respond: func(context.Context, string) (string, error) {
		return "", err
	}}
}

type fakeRules struct {
	out string
	err error
}

func (f fakeRules) Apply(string) (string, error) {
	return f.out, f.err
}

type errorEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu        sync.Mutex
	snapshots []domain.Snapshot
	errors    []errorEvent
}

func (f *fakeEventSink) StateChanged(snapshot domain.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
}

func (f *fakeEventSink) WidgetError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errorEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Snapshot(nil), f.snapshots...)
}

func (f *fakeEventSink) snapshotErrors() []errorEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errorEvent(nil), f.errors...)
}

func (f *fakeEventSink) waitForError(t *testing.T, code domain.ErrorCode) errorEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range f.snapshotErrors() {
			if e.code == code {
				return e
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s error", code)
	return errorEvent{}
}

var errBoom = errors.New("boom")
