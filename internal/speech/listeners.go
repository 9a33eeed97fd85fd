package speech

import (
	"sync"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

type listenerEntry struct {
	id       uint64
	listener ports.CaptureListener
}

// listenerSet holds capture listeners in registration order.
type listenerSet struct {
	mu      sync.Mutex
	nextID  uint64
	entries []listenerEntry
}

func (s *listenerSet) add(listener ports.CaptureListener) ports.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.entries = append(s.entries, listenerEntry{id: s.nextID, listener: listener})
	return &subscription{set: s, id: s.nextID}
}

func (s *listenerSet) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.entries {
		if entry.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

// emit calls listeners outside the lock so they may subscribe, cancel or
// restart capture.
func (s *listenerSet) emit(event domain.CaptureEvent) {
	s.mu.Lock()
	snapshot := make([]listenerEntry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()

	for _, entry := range snapshot {
		if !s.active(entry.id) {
			continue
		}
		entry.listener(event)
	}
}

func (s *listenerSet) active(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.id == id {
			return true
		}
	}
	return false
}

func (s *listenerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type subscription struct {
	set  *listenerSet
	id   uint64
	once sync.Once
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.set.remove(s.id)
	})
}
