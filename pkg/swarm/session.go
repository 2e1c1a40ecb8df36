package swarm

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is a handle on one running search. It is returned by
// Orchestrator.Start and stays valid after the search stops; Snapshot and
// Wait keep working on a finished session.
type Session struct {
	id      string
	target  Target
	started time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	pool *GenePool

	mu          sync.Mutex
	running     bool
	generation  int
	evaluated   int
	discoveries []*Discovery
	discovered  map[string]struct{}
	err         error
}

func newSession(target Target, poolSize int) *Session {
	return &Session{
		id:         uuid.New().String(),
		target:     target,
		started:    time.Now(),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		pool:       NewGenePool(poolSize),
		discovered: make(map[string]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Target returns the constant this session searches for.
func (s *Session) Target() Target { return s.target }

// Stop requests the session to halt. It is idempotent and level-triggered:
// the generation in flight finishes, no later generation starts. Stop does
// not wait; use Wait or Done for that.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Done is closed when the session loop has fully exited.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// Wait blocks until the session has stopped and returns its terminal error,
// nil for a clean stop or generation-budget exhaustion.
func (s *Session) Wait() error {
	<-s.doneCh
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// stopped reports whether a stop has been requested.
func (s *Session) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	s.running = false
	if err != nil {
		s.err = err
	}
	s.mu.Unlock()
	close(s.doneCh)
}

// recordGeneration updates progress counters after a generation completes.
func (s *Session) recordGeneration(generation, evaluated int) (total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation = generation
	s.evaluated += evaluated
	return s.evaluated
}

// recordDiscovery appends d unless the expression was already discovered.
// The discovery list is append-only; a rediscovery never replaces the stored
// record even when its score is better.
func (s *Session) recordDiscovery(d *Discovery) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.discovered[d.Expression]; seen {
		return false
	}
	s.discovered[d.Expression] = struct{}{}
	s.discoveries = append(s.discoveries, d)
	return true
}

// Snapshot is an immutable view of session progress.
type Snapshot struct {
	SessionID   string           `json:"session_id"`
	Target      string           `json:"target"`
	Running     bool             `json:"running"`
	Generation  int              `json:"generation"`
	Evaluated   int              `json:"evaluated"`
	PoolSize    int              `json:"pool_size"`
	Best        []*CandidateView `json:"best,omitempty"`
	Discoveries []*Discovery     `json:"discoveries,omitempty"`
	ElapsedMS   int64            `json:"elapsed_ms"`
	Error       string           `json:"error,omitempty"`
}

// Snapshot returns a point-in-time copy of the session state. Safe to call
// from any goroutine, including event listeners.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:   s.id,
		Target:      s.target.Name,
		Running:     s.running,
		Generation:  s.generation,
		Evaluated:   s.evaluated,
		PoolSize:    s.pool.Len(),
		Discoveries: append([]*Discovery(nil), s.discoveries...),
		ElapsedMS:   time.Since(s.started).Milliseconds(),
	}
	for _, c := range s.pool.Top(10) {
		view := c.View()
		snap.Best = append(snap.Best, &view)
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}
