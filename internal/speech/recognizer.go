// Package speech turns microphone audio and a streaming transcription
// provider into a continuous recognition session with listener events.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

var (
	ErrAlreadyStarted = errors.New("speech capture already started")
	// ErrStoppedWhileStarting is returned by Start when Stop was called
	// before the session finished opening.
	ErrStoppedWhileStarting = errors.New("speech capture stopped while starting")
)

// Config controls recognizer behavior.
type Config struct {
	Audio          ports.AudioConfig
	Encoding       string
	ChunkSize      int
	StreamingGrace time.Duration
	StreamTimeout  time.Duration
}

// Recognizer implements ports.SpeechCapture. Each Recognizer owns its own
// session, so several widgets never share capture state.
type Recognizer struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      Config
	logger   *slog.Logger

	listeners listenerSet

	mu      sync.Mutex
	current *run
}

type run struct {
	cancel     context.CancelFunc
	audio      ports.AudioSession
	stream     ports.StreamingSession
	buffer     *segmentBuffer
	continuous bool

	stopping   atomic.Bool
	eventsDone chan struct{}
	audioDone  chan struct{}
	endOnce    sync.Once
}

func NewRecognizer(audio ports.AudioCapture, provider ports.TranscriptionProvider, cfg Config, logger *slog.Logger) *Recognizer {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 4 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		audio:    audio,
		provider: provider,
		cfg:      cfg,
		logger:   logger.With("component", "speech"),
	}
}

// Subscribe registers a listener until the returned subscription is cancelled.
func (r *Recognizer) Subscribe(listener ports.CaptureListener) ports.Subscription {
	return r.listeners.add(listener)
}

// Start opens the provider stream and begins feeding it microphone audio.
func (r *Recognizer) Start(ctx context.Context, opts ports.CaptureOptions) error {
	r.mu.Lock()
	if r.current != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	// Reserve the slot so concurrent starts fail fast.
	pending := &run{}
	r.current = pending
	r.mu.Unlock()

	active, err := r.open(ctx, opts)

	r.mu.Lock()
	if err != nil {
		if r.current == pending {
			r.current = nil
		}
		r.mu.Unlock()
		return err
	}
	if pending.stopping.Load() {
		if r.current == pending {
			r.current = nil
		}
		r.mu.Unlock()
		_ = active.audio.Stop()
		_ = active.stream.Close()
		active.cancel()
		r.logger.Debug("capture stopped before it finished starting")
		return ErrStoppedWhileStarting
	}
	r.current = active
	r.mu.Unlock()

	go r.consume(active)
	go pumpAudio(active.audio, active.stream, r.cfg.ChunkSize, func(err error) {
		if active.stopping.Load() {
			return
		}
		r.emitError(domain.CaptureErrorAudio, err)
	}, active.audioDone)

	r.logger.Debug("capture started", "language", opts.Language, "continuous", opts.Continuous)
	r.listeners.emit(domain.CaptureEvent{Kind: domain.CaptureEventStart})
	return nil
}

func (r *Recognizer) open(ctx context.Context, opts ports.CaptureOptions) (*run, error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := r.provider.StartStreaming(sessionCtx, ports.StreamingConfig{
		SampleRate:     r.cfg.Audio.SampleRate,
		Channels:       r.cfg.Audio.Channels,
		Encoding:       r.cfg.Encoding,
		Language:       opts.Language,
		InterimResults: opts.InterimResults,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	audioSession, err := r.audio.Start(sessionCtx, r.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return nil, err
	}

	return &run{
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		buffer:     newSegmentBuffer(),
		continuous: opts.Continuous,
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}, nil
}

// Stop ends the current session gracefully. Stopping an idle recognizer is a
// no-op. A session that is still opening is torn down as soon as it opens.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	active := r.current
	if active == nil {
		r.mu.Unlock()
		return nil
	}
	if active.stream == nil {
		active.stopping.Store(true)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	return r.stopRun(active)
}

func (r *Recognizer) stopRun(active *run) error {
	if !active.stopping.CompareAndSwap(false, true) {
		return nil
	}

	var stopErr error
	if err := active.audio.Stop(); err != nil {
		stopErr = err
		r.logger.Warn("audio stop failed", "error", err)
	}

	if r.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(r.cfg.StreamingGrace)
		<-timer.C
	}

	_ = active.stream.CloseSend()
	streamErr := waitForStream(active.stream, r.cfg.StreamTimeout)
	<-active.eventsDone
	<-active.audioDone

	if streamErr != nil {
		r.emitError(domain.CaptureErrorNetwork, streamErr)
	}
	r.finish(active)
	return stopErr
}

// Running reports whether a capture session is open.
func (r *Recognizer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

func (r *Recognizer) consume(active *run) {
	for event := range active.stream.Events() {
		results, changed := active.buffer.Add(event)
		if !changed {
			continue
		}
		r.listeners.emit(domain.CaptureEvent{Kind: domain.CaptureEventResult, Results: results})

		if !active.continuous && event.Kind == domain.TranscriptKindFinal {
			go func() { _ = r.stopRun(active) }()
		}
	}
	close(active.eventsDone)

	// The provider ended on its own: release the microphone and report.
	if !active.stopping.CompareAndSwap(false, true) {
		return
	}
	_ = active.audio.Stop()
	<-active.audioDone
	if err := active.stream.Wait(); err != nil {
		r.emitError(domain.CaptureErrorProvider, err)
	}
	r.logger.Info("capture ended unexpectedly")
	r.finish(active)
}

func (r *Recognizer) finish(active *run) {
	active.endOnce.Do(func() {
		active.cancel()

		r.mu.Lock()
		if r.current == active {
			r.current = nil
		}
		r.mu.Unlock()

		r.listeners.emit(domain.CaptureEvent{Kind: domain.CaptureEventEnd})
	})
}

func (r *Recognizer) emitError(kind domain.CaptureErrorKind, err error) {
	r.listeners.emit(domain.CaptureEvent{
		Kind:      domain.CaptureEventError,
		ErrorKind: kind,
		Detail:    err.Error(),
	})
}
