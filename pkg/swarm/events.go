package swarm

import (
	"sync"
	"time"

	"github.com/XiaoConstantine/ramanujan-go/pkg/logging"
)

// EventType identifies a session lifecycle event.
type EventType string

const (
	EventGenerationStarted  EventType = "generation_started"
	EventGenerationComplete EventType = "generation_complete"
	EventSessionStopped     EventType = "session_stopped"
	EventSessionError       EventType = "session_error"
)

// Event is delivered to listeners as a session progresses. Summary is set on
// generation_complete, Err on session_error.
type Event struct {
	Type      EventType
	SessionID string
	Target    string
	Timestamp time.Time
	Summary   *GenerationSummary
	Err       error
}

// GenerationSummary is the per-generation progress report.
type GenerationSummary struct {
	Generation     int              `json:"generation"`
	Evaluated      int              `json:"evaluated"`
	TotalEvaluated int              `json:"total_evaluated"`
	PoolSize       int              `json:"pool_size"`
	BestCandidates []*CandidateView `json:"best_candidates"`
	NewDiscoveries []*Discovery     `json:"new_discoveries,omitempty"`
}

// Listener receives session events. Listeners run synchronously on the
// session goroutine and should return quickly.
type Listener func(Event)

// eventBus fans events out to registered listeners. A panicking listener is
// logged and skipped; it never takes a session down.
type eventBus struct {
	mu        sync.RWMutex
	listeners []Listener
}

func (b *eventBus) subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *eventBus) publish(ev Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.GetLogger().Error(nil, "event listener panicked: %v", r)
				}
			}()
			l(ev)
		}()
	}
}
