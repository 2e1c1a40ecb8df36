package swarm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/ramanujan-go/pkg/numeric"
)

func TestExploreFillsAllPlaceholders(t *testing.T) {
	g := NewGrammar(7)
	for i := 0; i < 200; i++ {
		expr := g.Explore()
		require.NotEmpty(t, expr)
		assert.NotContains(t, expr, "{")
		assert.NotContains(t, expr, "}")
	}
}

func TestExploreOutputLexes(t *testing.T) {
	g := NewGrammar(7)
	eval := numeric.NewEvaluator(numeric.NewRegistry(testDigits))
	for i := 0; i < 200; i++ {
		expr := g.Explore()
		// Every template instantiates with positive coefficients, so the
		// whole explore surface must evaluate cleanly.
		_, err := eval.Evaluate(expr)
		assert.NoError(t, err, "expression %q", expr)
	}
}

func TestExploreDeterministicForSeed(t *testing.T) {
	a, b := NewGrammar(99), NewGrammar(99)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Explore(), b.Explore())
	}
}

func TestMutateChangesOrPreservesShape(t *testing.T) {
	g := NewGrammar(11)
	for i := 0; i < 100; i++ {
		out := g.Mutate("π + 7")
		require.NotEmpty(t, out)
	}
}

func TestStandaloneEReplacementSparesFunctionNames(t *testing.T) {
	got := standaloneE.ReplaceAllString("exp(e) + e + zeta3", "π")
	assert.Equal(t, "exp(π) + π + zeta3", got)
}

func TestCrossoverContainsBothParents(t *testing.T) {
	g := NewGrammar(13)
	for i := 0; i < 50; i++ {
		out := g.Crossover("π+1", "e-2")
		assert.Contains(t, out, "π+1")
		assert.Contains(t, out, "e-2")
	}
}

func TestCrossoverBalancesParentheses(t *testing.T) {
	g := NewGrammar(17)
	for i := 0; i < 50; i++ {
		out := g.Crossover("(π+1)", "sqrt(2)")
		assert.Equal(t, strings.Count(out, "("), strings.Count(out, ")"))
	}
}
