package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voicewidget/internal/domain"
)

// A run that ends sooner than this is restarted only after a backoff delay.
const minHealthyRun = time.Second

func (w *Widget) onCapture(gen uint64, event domain.CaptureEvent) {
	switch event.Kind {
	case domain.CaptureEventStart:
		w.logger.Debug("speech capture started")
	case domain.CaptureEventResult:
		w.onResult(gen, event.Results)
	case domain.CaptureEventError:
		w.onError(gen, event)
	case domain.CaptureEventEnd:
		w.onEnd(gen)
	}
}

func (w *Widget) onResult(gen uint64, results []domain.RecognitionResult) {
	transcript := joinTranscripts(domain.TopTranscripts(results))
	w.update(func(s *domain.Snapshot) bool {
		if !w.listeningLocked(gen) || s.Transcript == transcript {
			return false
		}
		s.Transcript = transcript
		return true
	})
}

func (w *Widget) onError(gen uint64, event domain.CaptureEvent) {
	w.mu.Lock()
	live := w.listeningLocked(gen)
	w.mu.Unlock()
	if !live {
		return
	}

	w.logger.Warn("speech capture error", "kind", event.ErrorKind, "detail", event.Detail)
	w.events.WidgetError(domain.ErrorCodeCapture, fmt.Sprintf("%s: %s", event.ErrorKind, event.Detail))

	if w.cfg.ClearTranscriptOnError {
		w.update(func(s *domain.Snapshot) bool {
			if !w.listeningLocked(gen) || s.Transcript == "" {
				return false
			}
			s.Transcript = ""
			return true
		})
	}
}

// onEnd restarts capture that ended while the widget still wants to listen.
func (w *Widget) onEnd(gen uint64) {
	w.mu.Lock()
	if !w.listeningLocked(gen) {
		w.mu.Unlock()
		return
	}
	ctx := w.runCtx
	ranFor := time.Since(w.startedAt)
	w.mu.Unlock()

	w.logger.Info("speech capture ended unexpectedly, restarting", "ran_for", ranFor.Round(time.Millisecond))
	go w.restart(ctx, gen, ranFor < minHealthyRun)
}

func (w *Widget) restart(ctx context.Context, gen uint64, delayFirst bool) {
	if delayFirst {
		timer := time.NewTimer(w.cfg.RestartBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	policy := retryPolicy{
		MaxAttempts:  w.cfg.MaxRestarts,
		InitialDelay: w.cfg.RestartBackoff,
		MaxDelay:     w.cfg.MaxRestartBackoff,
		Multiplier:   2,
	}
	err := withRetry(ctx, policy, func(attempt int) error {
		w.mu.Lock()
		live := w.listeningLocked(gen)
		w.mu.Unlock()
		if !live {
			return errRestartAbandoned
		}

		if err := w.capture.Start(ctx, w.captureOptions()); err != nil {
			w.logger.Warn("speech capture restart failed", "attempt", attempt, "error", err)
			return err
		}

		w.mu.Lock()
		if w.generation == gen {
			w.startedAt = time.Now()
		}
		w.mu.Unlock()
		return nil
	})
	if err == nil || ctx.Err() != nil {
		return
	}
	if errors.Is(err, errRestartAbandoned) {
		return
	}

	if w.drop(gen, triggerGiveUp) {
		w.logger.Error("giving up on speech capture", "attempts", w.cfg.MaxRestarts, "error", err)
		w.events.WidgetError(domain.ErrorCodeCapture, fmt.Sprintf("speech capture stopped after %d failed restarts: %v", w.cfg.MaxRestarts, err))
	}
}
