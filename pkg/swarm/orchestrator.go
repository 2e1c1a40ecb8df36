package swarm

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/ramanujan-go/pkg/errors"
	"github.com/XiaoConstantine/ramanujan-go/pkg/logging"
	"github.com/XiaoConstantine/ramanujan-go/pkg/numeric"
	"github.com/XiaoConstantine/ramanujan-go/pkg/oracle"
)

// DiscoverySink persists discoveries as they happen. Persistence failures are
// logged and tolerated; they never abort a session.
type DiscoverySink interface {
	SaveDiscovery(ctx context.Context, sessionID, target string, d *Discovery) error
}

// Options configures an Orchestrator.
type Options struct {
	// PopulationSize is the exact number of candidates scored per
	// generation.
	PopulationSize int
	// GenePoolSize caps the elite pool.
	GenePoolSize int
	// VerifyThreshold is the decimal error bound below which a candidate
	// becomes a discovery, e.g. "1e-50".
	VerifyThreshold string
	// MaxConcurrency bounds the producer fan-out.
	MaxConcurrency int
	// GenerationPause is the idle gap between generations, giving stop
	// requests a chance to land.
	GenerationPause time.Duration
}

// Orchestrator runs discovery sessions. One session is active at a time;
// Start while a session runs is rejected. Verify and Export work regardless
// of session state.
type Orchestrator struct {
	scorer    *Scorer
	generator *Generator
	opts      Options
	threshold *big.Float
	bus       eventBus

	mu        sync.Mutex
	producers []Producer
	oracle    oracle.Oracle
	sink      DiscoverySink
	active    *Session
}

// NewOrchestrator builds an orchestrator around a scorer and generator.
func NewOrchestrator(scorer *Scorer, generator *Generator, opts Options) (*Orchestrator, error) {
	if opts.PopulationSize < 1 {
		return nil, errors.New(errors.InvalidInput, "population size must be at least 1")
	}
	if opts.GenePoolSize < 1 {
		return nil, errors.New(errors.InvalidInput, "gene pool size must be at least 1")
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 4
	}
	reg := scorer.Evaluator().Registry()
	threshold, ok := numeric.ParseDecimal(opts.VerifyThreshold, reg.Prec())
	if !ok || threshold.Sign() <= 0 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "verify threshold must be a positive decimal"),
			errors.Fields{"threshold": opts.VerifyThreshold})
	}
	return &Orchestrator{
		scorer:    scorer,
		generator: generator,
		opts:      opts,
		threshold: threshold,
	}, nil
}

// RegisterProducer adds a producer to the per-generation fan-out. Not safe to
// call while a session is running.
func (o *Orchestrator) RegisterProducer(p Producer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.producers = append(o.producers, p)
}

// SetOracle installs the novelty oracle used to annotate discoveries.
func (o *Orchestrator) SetOracle(orc oracle.Oracle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.oracle = orc
}

// SetSink installs the discovery persistence sink.
func (o *Orchestrator) SetSink(sink DiscoverySink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sink = sink
}

// Subscribe registers an event listener for all future sessions.
func (o *Orchestrator) Subscribe(l Listener) {
	o.bus.subscribe(l)
}

// Start launches a session searching for the named constant. maxGenerations
// of zero or less means run until stopped. Start returns immediately; the
// search runs on its own goroutine.
func (o *Orchestrator) Start(ctx context.Context, targetName string, maxGenerations int) (*Session, error) {
	reg := o.scorer.Evaluator().Registry()
	value, ok := reg.Lookup(targetName)
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.UnknownConstant, "unknown target constant"),
			errors.Fields{"target": targetName})
	}
	target := Target{Name: targetName, Value: value}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		o.active.mu.Lock()
		running := o.active.running
		o.active.mu.Unlock()
		if running {
			return nil, errors.WithFields(
				errors.New(errors.SessionAlreadyRunning, "a session is already running"),
				errors.Fields{"session_id": o.active.id})
		}
	}

	sess := newSession(target, o.opts.GenePoolSize)
	sess.running = true
	o.active = sess

	producers := make([]Producer, len(o.producers))
	copy(producers, o.producers)

	go o.run(ctx, sess, producers, maxGenerations)
	return sess, nil
}

// Active returns the most recently started session, or nil.
func (o *Orchestrator) Active() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *Orchestrator) run(ctx context.Context, sess *Session, producers []Producer, maxGenerations int) {
	logger := logging.GetLogger()
	ctx = logging.WithSessionID(ctx, sess.id)

	var runErr error
	defer func() {
		if r := recover(); r != nil {
			runErr = errors.New(errors.SessionAborted, fmt.Sprintf("session aborted: %v", r))
			logger.Error(ctx, "session aborted by panic: %v", r)
		}
		sess.finish(runErr)
		if runErr != nil {
			o.bus.publish(Event{
				Type: EventSessionError, SessionID: sess.id,
				Target: sess.target.Name, Timestamp: time.Now(), Err: runErr,
			})
		}
		o.bus.publish(Event{
			Type: EventSessionStopped, SessionID: sess.id,
			Target: sess.target.Name, Timestamp: time.Now(),
		})
	}()

	logger.Info(ctx, "session started: target=%s, population=%d, producers=%d",
		sess.target.Name, o.opts.PopulationSize, len(producers))

	for gen := 1; maxGenerations <= 0 || gen <= maxGenerations; gen++ {
		if sess.stopped() {
			logger.Info(ctx, "stop requested, halting before generation %d", gen)
			return
		}
		if err := errors.CheckContext(ctx, "generation loop"); err != nil {
			runErr = err
			return
		}

		genCtx := logging.WithGeneration(ctx, gen)
		o.bus.publish(Event{
			Type: EventGenerationStarted, SessionID: sess.id,
			Target: sess.target.Name, Timestamp: time.Now(),
			Summary: &GenerationSummary{Generation: gen},
		})

		raw := o.collect(genCtx, sess, producers)
		candidates := o.generator.Assemble(genCtx, sess.target, sess.pool, raw, o.opts.PopulationSize, gen)
		admitted := sess.pool.Merge(candidates)
		total := sess.recordGeneration(gen, len(candidates))

		discoveries := o.scanDiscoveries(genCtx, sess, candidates)

		summary := &GenerationSummary{
			Generation:     gen,
			Evaluated:      len(candidates),
			TotalEvaluated: total,
			PoolSize:       sess.pool.Len(),
			NewDiscoveries: discoveries,
		}
		for _, c := range sess.pool.Top(5) {
			view := c.View()
			summary.BestCandidates = append(summary.BestCandidates, &view)
		}
		logger.Debug(genCtx, "generation complete: evaluated=%d, admitted=%d, pool=%d, discoveries=%d",
			len(candidates), admitted, sess.pool.Len(), len(discoveries))
		o.bus.publish(Event{
			Type: EventGenerationComplete, SessionID: sess.id,
			Target: sess.target.Name, Timestamp: time.Now(), Summary: summary,
		})

		if o.opts.GenerationPause > 0 {
			select {
			case <-sess.stopCh:
				logger.Info(ctx, "stop requested, halting after generation %d", gen)
				return
			case <-ctx.Done():
				runErr = errors.CheckContext(ctx, "generation pause")
				return
			case <-time.After(o.opts.GenerationPause):
			}
		}
	}
	logger.Info(ctx, "generation budget exhausted")
}

// collect fans requests out to every producer with a full barrier: the
// generation does not assemble until all producers have returned or failed.
// Batch order follows registration order so assembly stays deterministic for
// a fixed set of batches.
func (o *Orchestrator) collect(ctx context.Context, sess *Session, producers []Producer) []string {
	if len(producers) == 0 {
		return nil
	}
	logger := logging.GetLogger()
	poolTop := sess.pool.Top(10)
	batches := make([][]string, len(producers))

	p := pool.New().WithMaxGoroutines(o.opts.MaxConcurrency)
	for i, prod := range producers {
		i, prod := i, prod
		p.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Warn(ctx, "producer %s panicked: %v", prod.Name(), r)
				}
			}()
			batch, err := prod.Produce(ctx, sess.target, poolTop)
			if err != nil {
				logger.Warn(ctx, "producer %s failed: %v", prod.Name(), err)
				return
			}
			batches[i] = batch
		})
	}
	p.Wait()

	return CollectExpressions(batches)
}

// scanDiscoveries checks freshly scored candidates against the verification
// threshold and records new discoveries, annotated by the oracle and handed
// to the sink when configured.
func (o *Orchestrator) scanDiscoveries(ctx context.Context, sess *Session, candidates []*Candidate) []*Discovery {
	logger := logging.GetLogger()
	var found []*Discovery
	for _, c := range candidates {
		if !c.Valid() || c.Error.Cmp(o.threshold) >= 0 {
			continue
		}
		view := c.View()
		d := &Discovery{
			Expression: c.Expression,
			Value:      view.Value,
			Error:      view.Error,
			Elegance:   view.Elegance,
			Complexity: c.Complexity,
			Generation: c.Generation,
			ElapsedMS:  time.Since(sess.started).Milliseconds(),
		}
		if !sess.recordDiscovery(d) {
			continue
		}
		logger.Info(ctx, "discovery: %s (error %s)", d.Expression, d.Error)
		o.annotate(ctx, d)
		o.persist(ctx, sess, d)
		found = append(found, d)
	}
	return found
}

// annotate asks the oracle about a discovery. An unreachable oracle leaves
// the discovery marked novel by default.
func (o *Orchestrator) annotate(ctx context.Context, d *Discovery) {
	o.mu.Lock()
	orc := o.oracle
	o.mu.Unlock()
	if orc == nil {
		return
	}
	matches, err := orc.LookupByValue(ctx, d.Value)
	if err != nil {
		logging.GetLogger().Warn(ctx, "oracle lookup failed for %s, treating as novel: %v", d.Expression, err)
		return
	}
	d.Novelty = matches
}

func (o *Orchestrator) persist(ctx context.Context, sess *Session, d *Discovery) {
	o.mu.Lock()
	sink := o.sink
	o.mu.Unlock()
	if sink == nil {
		return
	}
	if err := sink.SaveDiscovery(ctx, sess.id, sess.target.Name, d); err != nil {
		logging.GetLogger().Warn(ctx, "failed to persist discovery %s: %v", d.Expression, err)
	}
}

// Verify evaluates an expression and asks the oracle whether its value is
// already cataloged. It does not require, or touch, a running session.
func (o *Orchestrator) Verify(ctx context.Context, expression string) ([]oracle.Match, error) {
	o.mu.Lock()
	orc := o.oracle
	o.mu.Unlock()
	if orc == nil {
		return nil, errors.New(errors.OracleUnavailable, "no oracle configured")
	}
	value, err := o.scorer.Evaluator().Evaluate(NormalizeExpression(expression))
	if err != nil {
		return nil, err
	}
	matches, err := orc.LookupByValue(ctx, value.Text('f', 40))
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return matches, nil
	}
	return orc.LookupByExpression(ctx, expression)
}

// ExportRecord bundles a finished or running session for export.
type ExportRecord struct {
	SessionID   string           `json:"session_id"`
	Target      string           `json:"target"`
	StartedAt   time.Time        `json:"started_at"`
	Generations int              `json:"generations"`
	Evaluated   int              `json:"evaluated"`
	Discoveries []*Discovery     `json:"discoveries"`
	Pool        []*CandidateView `json:"pool"`
}

// Export renders the session's discoveries and pool for archival.
func (o *Orchestrator) Export(sess *Session) *ExportRecord {
	snap := sess.Snapshot()
	return &ExportRecord{
		SessionID:   snap.SessionID,
		Target:      snap.Target,
		StartedAt:   sess.started,
		Generations: snap.Generation,
		Evaluated:   snap.Evaluated,
		Discoveries: snap.Discoveries,
		Pool:        snap.Best,
	}
}
