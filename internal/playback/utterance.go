package playback

import (
	"context"
	"sync"
)

// utterances tracks the one utterance allowed to play at a time.
type utterances struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// begin cancels whatever is playing and returns a context for the next utterance.
func (u *utterances) begin(ctx context.Context) (context.Context, func()) {
	next, cancel := context.WithCancel(ctx)

	u.mu.Lock()
	if u.cancel != nil {
		u.cancel()
	}
	u.seq++
	seq := u.seq
	u.cancel = cancel
	u.mu.Unlock()

	return next, func() {
		cancel()
		u.mu.Lock()
		if u.seq == seq {
			u.cancel = nil
		}
		u.mu.Unlock()
	}
}

func (u *utterances) stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancel != nil {
		u.cancel()
		u.cancel = nil
	}
}
