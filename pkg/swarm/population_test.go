package swarm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T) (*Generator, Target) {
	t.Helper()
	s := newTestScorer(t)
	g := NewGenerator(s, NewGrammar(42), 10, 15)
	return g, testTarget(t, s, "pi")
}

func TestGenerateExactSizeOnEmptyPool(t *testing.T) {
	g, target := newTestGenerator(t)
	pool := NewGenePool(25)

	for _, size := range []int{1, 2, 3, 7, 20} {
		population := g.Generate(context.Background(), target, pool, size, 1)
		require.Len(t, population, size, "size %d", size)
		for _, c := range population {
			// Nothing to mutate or cross yet; everything is fresh.
			assert.Empty(t, c.Lineage)
			assert.Equal(t, 1, c.Generation)
			assert.NotEmpty(t, c.Expression)
		}
	}
}

func TestGenerateUsesStrategyMixWithSeededPool(t *testing.T) {
	g, target := newTestGenerator(t)
	pool := NewGenePool(25)
	pool.Merge([]*Candidate{
		poolCand("22/7", 0.1),
		poolCand("355/113", 0.01),
		poolCand("π+0", 0.001),
	})

	population := g.Generate(context.Background(), target, pool, 30, 2)
	require.Len(t, population, 30)

	var explored, mutated, crossed int
	for _, c := range population {
		switch len(c.Lineage) {
		case 0:
			explored++
		case 1:
			mutated++
		case 2:
			crossed++
		default:
			t.Fatalf("unexpected lineage %v", c.Lineage)
		}
	}
	assert.Equal(t, 10, explored)
	assert.Equal(t, 10, mutated)
	assert.Equal(t, 10, crossed)

	// Lineage points back into the pool.
	resident := map[string]bool{"22/7": true, "355/113": true, "π+0": true}
	for _, c := range population {
		for _, parent := range c.Lineage {
			assert.True(t, resident[parent], "unknown parent %q", parent)
		}
	}
}

func TestGenerateCrossoverParentsDistinct(t *testing.T) {
	g, target := newTestGenerator(t)
	pool := NewGenePool(25)
	pool.Merge([]*Candidate{poolCand("a+1", 0.1), poolCand("b+1", 0.2)})

	population := g.Generate(context.Background(), target, pool, 30, 1)
	for _, c := range population {
		if len(c.Lineage) == 2 {
			assert.NotEqual(t, c.Lineage[0], c.Lineage[1])
		}
	}
}

func TestGenerateZeroSize(t *testing.T) {
	g, target := newTestGenerator(t)
	assert.Nil(t, g.Generate(context.Background(), target, NewGenePool(25), 0, 1))
}

func TestAssembleScoresRawThenTopsUp(t *testing.T) {
	g, target := newTestGenerator(t)
	pool := NewGenePool(25)

	raw := []string{"22/7", "355/113", "1/0"}
	population := g.Assemble(context.Background(), target, pool, raw, 10, 4)
	require.Len(t, population, 10)

	// Raw strings come first, lineage-less, in order. The unevaluable one
	// is still constructed and counted.
	assert.Equal(t, "22/7", population[0].Expression)
	assert.Equal(t, "355/113", population[1].Expression)
	assert.Equal(t, "1/0", population[2].Expression)
	assert.False(t, population[2].Valid())
	for _, c := range population[:3] {
		assert.Empty(t, c.Lineage)
		assert.Equal(t, 4, c.Generation)
	}
}

func TestAssembleTruncatesRawAtSize(t *testing.T) {
	g, target := newTestGenerator(t)
	pool := NewGenePool(25)

	raw := []string{"1+1", "2+2", "3+3", "4+4", "5+5"}
	population := g.Assemble(context.Background(), target, pool, raw, 3, 1)
	require.Len(t, population, 3)
	assert.Equal(t, "1+1", population[0].Expression)
	assert.Equal(t, "3+3", population[2].Expression)
}

func TestAssembleEmptyRawEqualsGenerate(t *testing.T) {
	g, target := newTestGenerator(t)
	pool := NewGenePool(25)
	population := g.Assemble(context.Background(), target, pool, nil, 7, 1)
	assert.Len(t, population, 7)
}
