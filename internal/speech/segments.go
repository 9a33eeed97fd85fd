package speech

import (
	"strings"
	"sync"

	"voicewidget/internal/domain"
)

// segmentBuffer rebuilds the full result list from provider events: final
// segments accumulate, the trailing interim segment is replaced in place.
type segmentBuffer struct {
	mu      sync.Mutex
	finals  []domain.RecognitionResult
	interim *domain.RecognitionResult
}

func newSegmentBuffer() *segmentBuffer {
	return &segmentBuffer{}
}

// Add folds an event in and reports whether the result list changed.
func (b *segmentBuffer) Add(event domain.TranscriptEvent) ([]domain.RecognitionResult, bool) {
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return nil, false
	}

	result := domain.RecognitionResult{
		Alternatives: []domain.Alternative{{Transcript: text, Confidence: event.Confidence}},
		IsFinal:      event.Kind == domain.TranscriptKindFinal,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if result.IsFinal {
		b.finals = append(b.finals, result)
		b.interim = nil
	} else {
		b.interim = &result
	}
	return b.snapshotLocked(), true
}

func (b *segmentBuffer) Results() []domain.RecognitionResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *segmentBuffer) snapshotLocked() []domain.RecognitionResult {
	out := make([]domain.RecognitionResult, 0, len(b.finals)+1)
	out = append(out, b.finals...)
	if b.interim != nil {
		out = append(out, *b.interim)
	}
	return out
}
