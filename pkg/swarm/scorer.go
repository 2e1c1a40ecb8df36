package swarm

import (
	"math/big"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/XiaoConstantine/ramanujan-go/pkg/logging"
	"github.com/XiaoConstantine/ramanujan-go/pkg/numeric"
)

// funcNames matches the grammar's unary function names. The complexity
// contract counts every occurrence, mirroring how the elegance ranking was
// calibrated.
var funcNames = regexp.MustCompile(`sqrt|log|exp|sin|cos|tan`)

// Complexity measures the structural weight of an expression. The weighting
// is a contract: rune count, plus 2 per arithmetic/grouping symbol, plus 3
// per function name, plus 2 per opening parenthesis as a nesting proxy.
// Changing it changes every elegance score in a pool.
func Complexity(expr string) int {
	symbols := 0
	for _, r := range expr {
		switch r {
		case '+', '-', '*', '/', '^', '(', ')':
			symbols++
		}
	}
	functions := len(funcNames.FindAllString(expr, -1))
	nesting := strings.Count(expr, "(")
	return utf8.RuneCountInString(expr) + symbols*2 + functions*3 + nesting*2
}

// Elegance combines numerical error and structural complexity:
// error * (1 + penalty * complexity). Lower is better. A nil or non-finite
// error propagates as nil, the undefined marker.
func Elegance(errVal *big.Float, complexity int, penalty float64) *big.Float {
	if errVal == nil || errVal.IsInf() {
		return nil
	}
	factor := new(big.Float).SetPrec(errVal.Prec()).SetFloat64(1 + penalty*float64(complexity))
	return factor.Mul(factor, errVal)
}

// Scorer turns raw expression strings into scored Candidates.
type Scorer struct {
	eval    *numeric.Evaluator
	penalty float64
}

// NewScorer creates a scorer using the evaluator's precision and the given
// complexity penalty.
func NewScorer(eval *numeric.Evaluator, penalty float64) *Scorer {
	return &Scorer{eval: eval, penalty: penalty}
}

// Evaluator exposes the underlying evaluator, mainly for target resolution.
func (s *Scorer) Evaluator() *numeric.Evaluator { return s.eval }

// Score evaluates an expression against the target and builds the Candidate
// record. Evaluation failure degrades the candidate to the undefined marker;
// it never propagates an error to the caller.
func (s *Scorer) Score(expr string, target Target, generation int, lineage []string) *Candidate {
	c := &Candidate{
		Expression: expr,
		Complexity: Complexity(expr),
		Generation: generation,
	}
	if len(lineage) > 0 {
		c.Lineage = append([]string(nil), lineage...)
	}

	value, err := s.eval.Evaluate(expr)
	if err != nil {
		logging.GetLogger().Debug(nil, "expression rejected: %v", err)
		return c
	}

	c.Value = value
	c.Error = new(big.Float).SetPrec(value.Prec()).Sub(value, target.Value)
	c.Error.Abs(c.Error)
	c.Elegance = Elegance(c.Error, c.Complexity, s.penalty)
	return c
}
