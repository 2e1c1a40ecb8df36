package swarm

import (
	"context"

	"github.com/XiaoConstantine/ramanujan-go/pkg/logging"
)

// Generator builds one generation's full candidate set. Three weighted
// strategies contribute: Explore (fresh template expressions, no lineage),
// Mutate (single transformation of a top-ranked parent, lineage 1) and
// Crossover (binary combination of two distinct top-ranked parents,
// lineage 2). Strategies that cannot run fall back to Explore, so Generate
// always returns exactly the requested size.
type Generator struct {
	scorer  *Scorer
	grammar *Grammar

	mutateParents    int
	crossoverParents int
}

// NewGenerator wires a population generator from its collaborators.
func NewGenerator(scorer *Scorer, grammar *Grammar, mutateParents, crossoverParents int) *Generator {
	if mutateParents < 1 {
		mutateParents = 1
	}
	if crossoverParents < 2 {
		crossoverParents = 2
	}
	return &Generator{
		scorer:           scorer,
		grammar:          grammar,
		mutateParents:    mutateParents,
		crossoverParents: crossoverParents,
	}
}

func (g *Generator) explore(target Target, generation int) *Candidate {
	return g.scorer.Score(g.grammar.Explore(), target, generation, nil)
}

// Generate produces exactly size scored candidates for the given generation.
// A transformation or evaluation failure degrades that one candidate to an
// undefined score; it never aborts population generation.
func (g *Generator) Generate(ctx context.Context, target Target, pool *GenePool, size, generation int) []*Candidate {
	if size < 1 {
		return nil
	}
	population := make([]*Candidate, 0, size)

	// Exploration: fresh expressions.
	for i := 0; i < size/3; i++ {
		population = append(population, g.explore(target, generation))
	}

	// Exploitation: mutate top-ranked survivors. Falls back to Explore
	// while the pool is empty.
	parents := pool.Top(g.mutateParents)
	for i := 0; i < size/3; i++ {
		if len(parents) == 0 {
			population = append(population, g.explore(target, generation))
			continue
		}
		parent := parents[g.grammar.Intn(len(parents))]
		mutated := g.grammar.Mutate(parent.Expression)
		population = append(population, g.scorer.Score(
			mutated, target, generation, []string{parent.Expression}))
	}

	// Recombination: cross two distinct top-ranked parents. Falls back to
	// Explore while fewer than two survive.
	crossParents := pool.Top(g.crossoverParents)
	for len(population) < size {
		if err := ctx.Err(); err != nil {
			logging.GetLogger().Debug(ctx, "population generation canceled: %v", err)
			break
		}
		if len(crossParents) < 2 {
			population = append(population, g.explore(target, generation))
			continue
		}
		i := g.grammar.Intn(len(crossParents))
		j := g.grammar.Intn(len(crossParents) - 1)
		if j >= i {
			j++
		}
		p1, p2 := crossParents[i], crossParents[j]
		crossed := g.grammar.Crossover(p1.Expression, p2.Expression)
		population = append(population, g.scorer.Score(
			crossed, target, generation, []string{p1.Expression, p2.Expression}))
	}

	return population
}

// Assemble builds a generation from externally produced raw expression
// strings, topping up with the strategy mix so the output is exactly size
// candidates. Raw strings beyond size are dropped; duplicates are assumed to
// be filtered by the caller.
func (g *Generator) Assemble(ctx context.Context, target Target, pool *GenePool, raw []string, size, generation int) []*Candidate {
	if size < 1 {
		return nil
	}
	if len(raw) > size {
		raw = raw[:size]
	}

	population := make([]*Candidate, 0, size)
	for _, expr := range raw {
		population = append(population, g.scorer.Score(expr, target, generation, nil))
	}

	remainder := size - len(population)
	if remainder > 0 {
		population = append(population, g.Generate(ctx, target, pool, remainder, generation)...)
	}
	return population
}
