package swarm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/ramanujan-go/pkg/numeric"
)

// testDigits keeps registry construction fast; scoring semantics do not
// depend on the digit count.
const testDigits = 60

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	reg := numeric.NewRegistry(testDigits)
	return NewScorer(numeric.NewEvaluator(reg), 0.03)
}

func testTarget(t *testing.T, s *Scorer, name string) Target {
	t.Helper()
	value, ok := s.Evaluator().Registry().Lookup(name)
	require.True(t, ok)
	return Target{Name: name, Value: value}
}

func TestComplexityContract(t *testing.T) {
	cases := []struct {
		expr string
		want int
	}{
		{"π", 1},
		{"22/7", 6},           // 4 runes + one operator
		{"π+e", 5},            // 3 runes + one operator
		{"e^(1+0)", 17},       // 7 runes + 4 symbols + 1 nesting level
		{"sqrt(2)", 16},       // 7 runes + 2 symbols + 1 function + 1 nesting
		{"sqrt(sqrt(2))", 31}, // 13 runes + 4 symbols + 2 functions + 2 nesting
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Complexity(tc.expr), "complexity of %q", tc.expr)
	}
}

func TestComplexityCountsRunesNotBytes(t *testing.T) {
	// π is multi-byte; the contract counts characters.
	assert.Equal(t, 1, Complexity("π"))
	assert.Equal(t, 1, Complexity("e"))
}

func TestComplexityIncreasesUnderWrapping(t *testing.T) {
	for _, expr := range []string{"π", "22/7", "e^(π*sqrt(163))"} {
		wrapped := "sqrt(" + expr + ")"
		assert.Greater(t, Complexity(wrapped), Complexity(expr))
	}
}

func TestElegance(t *testing.T) {
	errVal := big.NewFloat(1)
	elegance := Elegance(errVal, 10, 0.03)
	require.NotNil(t, elegance)
	got, _ := elegance.Float64()
	assert.InDelta(t, 1.3, got, 1e-12)

	assert.Nil(t, Elegance(nil, 10, 0.03))
	assert.Nil(t, Elegance(big.NewFloat(0).SetInf(false), 10, 0.03))
}

func TestEleganceZeroErrorIsZero(t *testing.T) {
	elegance := Elegance(new(big.Float), 100, 0.03)
	require.NotNil(t, elegance)
	assert.Equal(t, 0, elegance.Sign())
}

func TestScoreApproximation(t *testing.T) {
	s := newTestScorer(t)
	target := testTarget(t, s, "pi")

	c := s.Score("22/7", target, 3, []string{"22/7"})
	require.True(t, c.Valid())
	assert.Equal(t, "22/7", c.Expression)
	assert.Equal(t, 3, c.Generation)
	assert.Equal(t, []string{"22/7"}, c.Lineage)
	assert.Equal(t, Complexity("22/7"), c.Complexity)

	// 22/7 misses pi by about 1.26e-3.
	errVal, _ := c.Error.Float64()
	assert.InDelta(t, 1.264e-3, errVal, 1e-5)

	// Elegance strictly worse than raw error for any nonzero complexity.
	assert.Equal(t, 1, c.Elegance.Cmp(c.Error))
}

func TestScoreExactMatchHasZeroElegance(t *testing.T) {
	s := newTestScorer(t)
	target := testTarget(t, s, "e")

	c := s.Score("e^(1+0)", target, 1, nil)
	require.True(t, c.Valid())
	assert.Equal(t, 0, c.Error.Sign())
	assert.Equal(t, 0, c.Elegance.Sign())
}

func TestScoreFailureYieldsUndefinedMarker(t *testing.T) {
	s := newTestScorer(t)
	target := testTarget(t, s, "pi")

	for _, expr := range []string{"1/0", "sqrt(-1)", "log(0)", "((("} {
		c := s.Score(expr, target, 1, nil)
		assert.False(t, c.Valid(), "expression %q", expr)
		assert.Nil(t, c.Value)
		assert.Nil(t, c.Error)
		assert.Nil(t, c.Elegance)
		assert.Equal(t, Complexity(expr), c.Complexity)
	}
}

func TestScoreCopiesLineage(t *testing.T) {
	s := newTestScorer(t)
	target := testTarget(t, s, "pi")

	lineage := []string{"π", "e"}
	c := s.Score("(π+e)/2", target, 2, lineage)
	lineage[0] = "mutated"
	assert.Equal(t, []string{"π", "e"}, c.Lineage)
}
