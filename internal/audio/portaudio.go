//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"voicewidget/internal/ports"
)

const framesPerBuffer = 1024

// PortAudioCapture reads the default input device through portaudio.
type PortAudioCapture struct {
	logger *slog.Logger
}

func NewPortAudioCapture(logger *slog.Logger) *PortAudioCapture {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAudioCapture{logger: logger.With("component", "audio.portaudio")}
}

func (c *PortAudioCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withAudioDefaults(cfg)

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	samples := make([]int16, framesPerBuffer*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), framesPerBuffer, samples)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("starting stream: %w", err)
	}

	c.logger.Debug("capture started", "sample_rate", cfg.SampleRate, "channels", cfg.Channels)

	session := &portAudioSession{stream: stream, samples: samples}
	go func() {
		<-ctx.Done()
		_ = session.Stop()
	}()
	return session, nil
}

type portAudioSession struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	samples []int16
	pending []byte
	stopped bool

	stopOnce sync.Once
	stopErr  error
}

// Read returns little-endian PCM16, matching the ffmpeg s16le output.
func (s *portAudioSession) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		if s.stopped {
			return 0, io.EOF
		}
		if err := s.stream.Read(); err != nil {
			if s.stopped {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("reading from stream: %w", err)
		}
		buf := make([]byte, len(s.samples)*2)
		for i, sample := range s.samples {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
		}
		s.pending = buf
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *portAudioSession) Close() error {
	return s.Stop()
}

func (s *portAudioSession) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		err := s.stream.Stop()
		if closeErr := s.stream.Close(); err == nil {
			err = closeErr
		}
		if termErr := portaudio.Terminate(); err == nil {
			err = termErr
		}
		if err != nil && !errors.Is(err, portaudio.StreamIsStopped) {
			s.stopErr = err
		}
	})
	return s.stopErr
}
