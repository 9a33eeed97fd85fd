//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"errors"
	"log/slog"

	"voicewidget/internal/ports"
)

// PortAudioCapture stub when portaudio is not available
type PortAudioCapture struct{}

func NewPortAudioCapture(_ *slog.Logger) *PortAudioCapture {
	return &PortAudioCapture{}
}

func (c *PortAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	return nil, errors.New("portaudio capture not available: rebuild with -tags portaudio")
}
