package swarm

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Producer supplies raw expression strings for scoring. Implementations may
// suspend (network or model calls) and may fail; the orchestrator tolerates
// both. The pool argument is an immutable top-ranked snapshot of the gene
// pool, never a live reference.
type Producer interface {
	Name() string
	Produce(ctx context.Context, target Target, pool []*Candidate) ([]string, error)
}

// StrategyKind selects a grammar-backed producer's behavior.
type StrategyKind string

const (
	// StrategyExplorer emits only fresh template expressions.
	StrategyExplorer StrategyKind = "explorer"
	// StrategyMutator emits transformations of pool survivors, falling
	// back to exploration while the pool is empty.
	StrategyMutator StrategyKind = "mutator"
	// StrategyHybrid mixes exploration with mutation and crossover.
	StrategyHybrid StrategyKind = "hybrid"
)

// StrategyProducer is a grammar-backed swarm agent. A session typically runs
// many of them concurrently, in an explorer/mutator/hybrid mix.
type StrategyProducer struct {
	id      string
	kind    StrategyKind
	grammar *Grammar
	batch   int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewStrategyProducer creates a producer emitting batch expressions per
// generation.
func NewStrategyProducer(kind StrategyKind, grammar *Grammar, batch int) *StrategyProducer {
	if batch < 1 {
		batch = 1
	}
	return &StrategyProducer{
		id:      fmt.Sprintf("%s-%s", kind, uuid.New().String()[:8]),
		kind:    kind,
		grammar: grammar,
		batch:   batch,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *StrategyProducer) Name() string { return p.id }

// Kind returns the producer's strategy.
func (p *StrategyProducer) Kind() StrategyKind { return p.kind }

func (p *StrategyProducer) Produce(ctx context.Context, target Target, pool []*Candidate) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, p.batch)
	for i := 0; i < p.batch; i++ {
		if err := ctx.Err(); err != nil {
			return out, nil
		}
		switch p.kind {
		case StrategyMutator:
			if len(pool) > 0 {
				parent := pool[p.rng.Intn(len(pool))]
				out = append(out, p.grammar.Mutate(parent.Expression))
				continue
			}
			out = append(out, p.grammar.Explore())
		case StrategyHybrid:
			switch {
			case len(pool) >= 2 && p.rng.Intn(3) == 0:
				a := pool[p.rng.Intn(len(pool))]
				b := pool[p.rng.Intn(len(pool))]
				out = append(out, p.grammar.Crossover(a.Expression, b.Expression))
			case len(pool) > 0 && p.rng.Intn(2) == 0:
				parent := pool[p.rng.Intn(len(pool))]
				out = append(out, p.grammar.Mutate(parent.Expression))
			default:
				out = append(out, p.grammar.Explore())
			}
		default: // StrategyExplorer
			out = append(out, p.grammar.Explore())
		}
	}
	return out, nil
}

// NormalizeExpression canonicalizes a raw producer string: NFC normalization
// collapses unicode variants of the constant symbols so textual dedup in the
// gene pool and discovery list sees one spelling, and surrounding whitespace
// is trimmed.
func NormalizeExpression(raw string) string {
	return strings.TrimSpace(norm.NFC.String(raw))
}

// CollectExpressions flattens per-producer result batches into one ordered,
// normalized, deduplicated sequence. Producer order is preserved so a
// generation's assembly stays deterministic for a fixed set of batches.
func CollectExpressions(batches [][]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, batch := range batches {
		for _, raw := range batch {
			expr := NormalizeExpression(raw)
			if expr == "" {
				continue
			}
			if _, dup := seen[expr]; dup {
				continue
			}
			seen[expr] = struct{}{}
			out = append(out, expr)
		}
	}
	return out
}
