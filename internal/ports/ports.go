package ports

import (
	"context"
	"io"

	"voicewidget/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	Language       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// CaptureOptions configures a speech capture run.
type CaptureOptions struct {
	Language       string
	Continuous     bool
	InterimResults bool
}

// CaptureListener receives speech capture events.
type CaptureListener func(event domain.CaptureEvent)

// Subscription is a cancellable listener registration.
type Subscription interface {
	Cancel()
}

// SpeechCapture is a continuous speech-to-text stream.
type SpeechCapture interface {
	Start(ctx context.Context, opts CaptureOptions) error
	Stop() error
	Subscribe(listener CaptureListener) Subscription
}

// SpeechPlayback speaks text aloud.
type SpeechPlayback interface {
	Speak(ctx context.Context, text string) error
	Cancel()
}

// CompletionService maps a prompt to a generated answer.
type CompletionService interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PromptRules rewrites a finished transcript before it is submitted.
type PromptRules interface {
	Apply(text string) (string, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	StateChanged(snapshot domain.Snapshot)
	WidgetError(code domain.ErrorCode, detail string)
}
