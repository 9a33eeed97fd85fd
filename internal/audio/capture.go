package audio

import (
	"fmt"
	"log/slog"
	"strings"

	"voicewidget/internal/ports"
)

const (
	BackendFFmpeg    = "ffmpeg"
	BackendPortAudio = "portaudio"
)

// NewCapture selects a microphone backend by name.
func NewCapture(backend string, recorderCommand string, logger *slog.Logger) (ports.AudioCapture, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFFmpeg:
		return NewFFmpegCapture(recorderCommand, logger), nil
	case BackendPortAudio:
		return NewPortAudioCapture(logger), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}
