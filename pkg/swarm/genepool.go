package swarm

import (
	"sort"
	"sync"
)

// GenePool is the bounded elitist archive of the best candidates seen so far.
// Expression text is the dedup key; the pool is always sorted ascending by
// elegance and never exceeds its capacity. Merge is the sole mutator and is
// atomic with respect to readers.
type GenePool struct {
	mu       sync.RWMutex
	capacity int
	byExpr   map[string]*Candidate
	ranked   []*Candidate
}

// NewGenePool creates an empty pool with capacity K.
func NewGenePool(capacity int) *GenePool {
	if capacity < 1 {
		capacity = 1
	}
	return &GenePool{
		capacity: capacity,
		byExpr:   make(map[string]*Candidate),
	}
}

// Merge folds a generation's candidates into the pool: undefined scores are
// dropped, duplicate expression text keeps the lower-elegance instance, the
// result is re-sorted and truncated to capacity. Returns the number of
// incoming candidates that survived admission (they may still be evicted by
// the capacity cut).
func (p *GenePool) Merge(candidates []*Candidate) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	admitted := 0
	for _, c := range candidates {
		if !c.Valid() {
			continue
		}
		existing, ok := p.byExpr[c.Expression]
		if ok && existing.Elegance.Cmp(c.Elegance) <= 0 {
			continue
		}
		p.byExpr[c.Expression] = c
		admitted++
	}

	ranked := make([]*Candidate, 0, len(p.byExpr))
	for _, c := range p.byExpr {
		ranked = append(ranked, c)
	}
	// Expression text as tie-break keeps merge results deterministic when
	// elegance scores collide.
	sort.Slice(ranked, func(i, j int) bool {
		if cmp := ranked[i].Elegance.Cmp(ranked[j].Elegance); cmp != 0 {
			return cmp < 0
		}
		return ranked[i].Expression < ranked[j].Expression
	})

	if len(ranked) > p.capacity {
		for _, evicted := range ranked[p.capacity:] {
			delete(p.byExpr, evicted.Expression)
		}
		ranked = ranked[:p.capacity]
	}
	p.ranked = ranked
	return admitted
}

// Top returns the n lowest-elegance candidates, or fewer if the pool is
// smaller. Candidates are immutable after scoring, so sharing the records
// themselves is safe; the slice is always fresh.
func (p *GenePool) Top(n int) []*Candidate {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if n > len(p.ranked) {
		n = len(p.ranked)
	}
	out := make([]*Candidate, n)
	copy(out, p.ranked[:n])
	return out
}

// Len returns the current pool size.
func (p *GenePool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ranked)
}

// Contains reports whether an expression text is resident in the pool.
func (p *GenePool) Contains(expr string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byExpr[expr]
	return ok
}
