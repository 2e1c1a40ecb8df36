package swarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/ramanujan-go/pkg/errors"
	"github.com/XiaoConstantine/ramanujan-go/pkg/oracle"
)

type stubProducer struct {
	name  string
	exprs []string
	err   error
}

func (p *stubProducer) Name() string { return p.name }

func (p *stubProducer) Produce(ctx context.Context, target Target, pool []*Candidate) ([]string, error) {
	if p.err != nil {
		return nil, p.err
	}
	return append([]string(nil), p.exprs...), nil
}

type fakeOracle struct {
	matches []oracle.Match
	err     error
}

func (o *fakeOracle) LookupByValue(ctx context.Context, value string) ([]oracle.Match, error) {
	return o.matches, o.err
}

func (o *fakeOracle) LookupByExpression(ctx context.Context, expression string) ([]oracle.Match, error) {
	return o.matches, o.err
}

type fakeSink struct {
	mu    sync.Mutex
	saved []*Discovery
	err   error
}

func (s *fakeSink) SaveDiscovery(ctx context.Context, sessionID, target string, d *Discovery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, d)
	return s.err
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) byType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestOrchestrator(t *testing.T, pause time.Duration) *Orchestrator {
	t.Helper()
	s := newTestScorer(t)
	gen := NewGenerator(s, NewGrammar(42), 10, 15)
	orch, err := NewOrchestrator(s, gen, Options{
		PopulationSize:  6,
		GenePoolSize:    25,
		VerifyThreshold: "1e-50",
		MaxConcurrency:  4,
		GenerationPause: pause,
	})
	require.NoError(t, err)
	return orch
}

func TestNewOrchestratorRejectsBadOptions(t *testing.T) {
	s := newTestScorer(t)
	gen := NewGenerator(s, NewGrammar(1), 10, 15)

	_, err := NewOrchestrator(s, gen, Options{PopulationSize: 0, GenePoolSize: 25, VerifyThreshold: "1e-50"})
	assert.True(t, errors.HasCode(err, errors.InvalidInput))

	_, err = NewOrchestrator(s, gen, Options{PopulationSize: 6, GenePoolSize: 25, VerifyThreshold: "not-a-number"})
	assert.True(t, errors.HasCode(err, errors.InvalidInput))

	_, err = NewOrchestrator(s, gen, Options{PopulationSize: 6, GenePoolSize: 25, VerifyThreshold: "-1e-10"})
	assert.True(t, errors.HasCode(err, errors.InvalidInput))
}

func TestStartUnknownTarget(t *testing.T) {
	orch := newTestOrchestrator(t, 0)
	_, err := orch.Start(context.Background(), "feigenbaum", 1)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.UnknownConstant))
}

func TestSessionRunsGenerationBudget(t *testing.T) {
	orch := newTestOrchestrator(t, 0)
	orch.RegisterProducer(&stubProducer{name: "stub", exprs: []string{"22/7", "355/113"}})
	rec := &eventRecorder{}
	orch.Subscribe(rec.record)

	sess, err := orch.Start(context.Background(), "pi", 3)
	require.NoError(t, err)
	require.NoError(t, sess.Wait())

	assert.Len(t, rec.byType(EventGenerationStarted), 3)
	completes := rec.byType(EventGenerationComplete)
	require.Len(t, completes, 3)
	assert.Len(t, rec.byType(EventSessionStopped), 1)
	assert.Empty(t, rec.byType(EventSessionError))

	for i, ev := range completes {
		require.NotNil(t, ev.Summary)
		assert.Equal(t, i+1, ev.Summary.Generation)
		assert.Equal(t, 6, ev.Summary.Evaluated)
		assert.Equal(t, 6*(i+1), ev.Summary.TotalEvaluated)
		assert.NotEmpty(t, ev.Summary.BestCandidates)
		assert.LessOrEqual(t, len(ev.Summary.BestCandidates), 5)
	}

	snap := sess.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, 3, snap.Generation)
	assert.Equal(t, 18, snap.Evaluated)
	assert.Equal(t, "pi", snap.Target)
	assert.NotEmpty(t, snap.Best)
	assert.Empty(t, snap.Error)
}

func TestStartRejectsWhileRunning(t *testing.T) {
	orch := newTestOrchestrator(t, 20*time.Millisecond)
	orch.RegisterProducer(&stubProducer{name: "stub", exprs: []string{"22/7"}})

	sess, err := orch.Start(context.Background(), "pi", 0)
	require.NoError(t, err)

	_, err = orch.Start(context.Background(), "e", 1)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.SessionAlreadyRunning))

	sess.Stop()
	require.NoError(t, sess.Wait())

	// A stopped session no longer blocks a fresh start.
	next, err := orch.Start(context.Background(), "e", 1)
	require.NoError(t, err)
	require.NoError(t, next.Wait())
}

func TestDiscoveryFirstWriteWins(t *testing.T) {
	orch := newTestOrchestrator(t, 0)
	orch.RegisterProducer(&stubProducer{name: "stub", exprs: []string{"e^(1+0)"}})
	rec := &eventRecorder{}
	orch.Subscribe(rec.record)

	sess, err := orch.Start(context.Background(), "e", 3)
	require.NoError(t, err)
	require.NoError(t, sess.Wait())

	snap := sess.Snapshot()
	require.Len(t, snap.Discoveries, 1)
	d := snap.Discoveries[0]
	assert.Equal(t, "e^(1+0)", d.Expression)
	assert.Equal(t, 1, d.Generation)
	assert.Equal(t, Complexity("e^(1+0)"), d.Complexity)
	assert.GreaterOrEqual(t, d.ElapsedMS, int64(0))

	// An exact match ranks first in the pool with a zero elegance score.
	require.NotEmpty(t, snap.Best)
	assert.Equal(t, "e^(1+0)", snap.Best[0].Expression)

	// Only the first generation reports it as new.
	completes := rec.byType(EventGenerationComplete)
	require.Len(t, completes, 3)
	assert.Len(t, completes[0].Summary.NewDiscoveries, 1)
	assert.Empty(t, completes[1].Summary.NewDiscoveries)
	assert.Empty(t, completes[2].Summary.NewDiscoveries)
}

func TestStopIsLevelTriggered(t *testing.T) {
	orch := newTestOrchestrator(t, 10*time.Millisecond)
	orch.RegisterProducer(&stubProducer{name: "stub", exprs: []string{"22/7"}})

	rec := &eventRecorder{}
	sessCh := make(chan *Session, 1)
	var stopOnce sync.Once
	orch.Subscribe(func(ev Event) {
		rec.record(ev)
		if ev.Type == EventGenerationComplete {
			// Listeners run synchronously on the session goroutine,
			// so the stop request lands before the inter-generation
			// pause and generation 2 never starts.
			stopOnce.Do(func() { (<-sessCh).Stop() })
		}
	})

	sess, err := orch.Start(context.Background(), "pi", 0)
	require.NoError(t, err)
	sessCh <- sess
	require.NoError(t, sess.Wait())

	// Stop is idempotent.
	sess.Stop()

	assert.Len(t, rec.byType(EventGenerationStarted), 1)
	assert.Len(t, rec.byType(EventGenerationComplete), 1)
	assert.Len(t, rec.byType(EventSessionStopped), 1)
	assert.Equal(t, 1, sess.Snapshot().Generation)
}

func TestContextCancelStopsSession(t *testing.T) {
	orch := newTestOrchestrator(t, time.Millisecond)
	orch.RegisterProducer(&stubProducer{name: "stub", exprs: []string{"22/7"}})

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := orch.Start(ctx, "pi", 0)
	require.NoError(t, err)
	cancel()

	err = sess.Wait()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.Canceled))
}

func TestProducerFailureTolerated(t *testing.T) {
	orch := newTestOrchestrator(t, 0)
	orch.RegisterProducer(&stubProducer{name: "broken", err: errors.New(errors.ProducerFailed, "boom")})
	orch.RegisterProducer(&stubProducer{name: "good", exprs: []string{"22/7"}})
	rec := &eventRecorder{}
	orch.Subscribe(rec.record)

	sess, err := orch.Start(context.Background(), "pi", 1)
	require.NoError(t, err)
	require.NoError(t, sess.Wait())

	completes := rec.byType(EventGenerationComplete)
	require.Len(t, completes, 1)
	// The generator tops the population up to full size regardless.
	assert.Equal(t, 6, completes[0].Summary.Evaluated)
	assert.Empty(t, rec.byType(EventSessionError))
}

func TestOracleAnnotatesDiscoveries(t *testing.T) {
	orch := newTestOrchestrator(t, 0)
	orch.RegisterProducer(&stubProducer{name: "stub", exprs: []string{"e^(1+0)"}})
	orch.SetOracle(&fakeOracle{matches: []oracle.Match{{ID: "A001113", Name: "Decimal expansion of e", Confidence: 0.95}}})

	sess, err := orch.Start(context.Background(), "e", 1)
	require.NoError(t, err)
	require.NoError(t, sess.Wait())

	snap := sess.Snapshot()
	require.Len(t, snap.Discoveries, 1)
	require.Len(t, snap.Discoveries[0].Novelty, 1)
	assert.Equal(t, "A001113", snap.Discoveries[0].Novelty[0].ID)
}

func TestOracleFailureMeansNovelByDefault(t *testing.T) {
	orch := newTestOrchestrator(t, 0)
	orch.RegisterProducer(&stubProducer{name: "stub", exprs: []string{"e^(1+0)"}})
	orch.SetOracle(&fakeOracle{err: errors.New(errors.OracleUnavailable, "down")})

	sess, err := orch.Start(context.Background(), "e", 1)
	require.NoError(t, err)
	require.NoError(t, sess.Wait())

	snap := sess.Snapshot()
	require.Len(t, snap.Discoveries, 1)
	assert.Empty(t, snap.Discoveries[0].Novelty)
}

func TestSinkPersistsDiscoveries(t *testing.T) {
	orch := newTestOrchestrator(t, 0)
	orch.RegisterProducer(&stubProducer{name: "stub", exprs: []string{"e^(1+0)"}})
	sink := &fakeSink{}
	orch.SetSink(sink)

	sess, err := orch.Start(context.Background(), "e", 2)
	require.NoError(t, err)
	require.NoError(t, sess.Wait())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.saved, 1)
	assert.Equal(t, "e^(1+0)", sink.saved[0].Expression)
}

func TestSinkFailureTolerated(t *testing.T) {
	orch := newTestOrchestrator(t, 0)
	orch.RegisterProducer(&stubProducer{name: "stub", exprs: []string{"e^(1+0)"}})
	orch.SetSink(&fakeSink{err: errors.New(errors.StorageFailed, "disk full")})

	sess, err := orch.Start(context.Background(), "e", 1)
	require.NoError(t, err)
	require.NoError(t, sess.Wait())
	assert.Len(t, sess.Snapshot().Discoveries, 1)
}

func TestListenerPanicIsolated(t *testing.T) {
	orch := newTestOrchestrator(t, 0)
	orch.RegisterProducer(&stubProducer{name: "stub", exprs: []string{"22/7"}})
	orch.Subscribe(func(Event) { panic("listener bug") })
	rec := &eventRecorder{}
	orch.Subscribe(rec.record)

	sess, err := orch.Start(context.Background(), "pi", 2)
	require.NoError(t, err)
	require.NoError(t, sess.Wait())
	assert.Len(t, rec.byType(EventGenerationComplete), 2)
	assert.Empty(t, rec.byType(EventSessionError))
}

func TestVerify(t *testing.T) {
	orch := newTestOrchestrator(t, 0)

	_, err := orch.Verify(context.Background(), "22/7")
	assert.True(t, errors.HasCode(err, errors.OracleUnavailable))

	orch.SetOracle(&fakeOracle{matches: []oracle.Match{{ID: "A000796"}}})
	matches, err := orch.Verify(context.Background(), " 22/7 ")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "A000796", matches[0].ID)

	_, err = orch.Verify(context.Background(), "1/0")
	require.Error(t, err)
}

func TestExport(t *testing.T) {
	orch := newTestOrchestrator(t, 0)
	orch.RegisterProducer(&stubProducer{name: "stub", exprs: []string{"e^(1+0)", "e^1"}})

	sess, err := orch.Start(context.Background(), "e", 2)
	require.NoError(t, err)
	require.NoError(t, sess.Wait())

	record := orch.Export(sess)
	assert.Equal(t, sess.ID(), record.SessionID)
	assert.Equal(t, "e", record.Target)
	assert.Equal(t, 2, record.Generations)
	assert.Equal(t, 12, record.Evaluated)
	assert.NotEmpty(t, record.Pool)
	require.NotEmpty(t, record.Discoveries)
	assert.False(t, record.StartedAt.IsZero())
}
