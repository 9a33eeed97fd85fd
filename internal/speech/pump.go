package speech

import (
	"errors"
	"fmt"
	"io"
	"time"

	"voicewidget/internal/ports"
)

// pumpAudio copies microphone chunks into the provider stream until the
// audio session ends. Errors other than EOF are handed to report.
func pumpAudio(
	audio ports.AudioSession,
	stream ports.StreamingSession,
	chunkSize int,
	report func(error),
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				report(fmt.Errorf("stream audio: %w", sendErr))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				report(fmt.Errorf("audio capture: %w", err))
			}
			return
		}
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
