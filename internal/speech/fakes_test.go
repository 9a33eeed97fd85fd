package speech

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

// fakeAudioSession yields its chunks, then blocks until stopped.
type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
	stopped   chan struct{}
	once      sync.Once
}

func newFakeAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, stopped: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.chunks) {
		n := copy(p, f.chunks[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()
	<-f.stopped
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return f.Stop() }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.once.Do(func() { close(f.stopped) })
	return nil
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions []*fakeStreamingSession
	err      error
	calls    int
	configs  []ports.StreamingConfig
}

func (f *fakeProvider) StartStreaming(_ context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeStreamingSession struct {
	mu      sync.Mutex
	events  chan domain.TranscriptEvent
	sent    [][]byte
	waitErr error
	closed  bool
	done    chan struct{}
}

func newFakeStreamingSession() *fakeStreamingSession {
	return &fakeStreamingSession{
		events: make(chan domain.TranscriptEvent, 16),
		done:   make(chan struct{}),
	}
}

func (f *fakeStreamingSession) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeStreamingSession) CloseSend() error {
	f.end()
	return nil
}

func (f *fakeStreamingSession) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	<-f.done
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.end()
	return f.waitErr
}

// end simulates the provider closing the stream.
func (f *fakeStreamingSession) end() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		close(f.events)
		close(f.done)
		f.closed = true
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.CaptureEvent
	signal chan domain.CaptureEventKind
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{signal: make(chan domain.CaptureEventKind, 64)}
}

func (r *eventRecorder) listen(event domain.CaptureEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.signal <- event.Kind
}

func (r *eventRecorder) waitFor(kind domain.CaptureEventKind) bool {
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.signal:
			if got == kind {
				return true
			}
		case <-timeout:
			return false
		}
	}
}

func (r *eventRecorder) snapshot() []domain.CaptureEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.CaptureEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) kinds() []domain.CaptureEventKind {
	var out []domain.CaptureEventKind
	for _, event := range r.snapshot() {
		out = append(out, event.Kind)
	}
	return out
}
