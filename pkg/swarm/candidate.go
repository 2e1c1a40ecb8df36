// Package swarm implements the evolutionary search core: candidate scoring,
// the elitist gene pool, population generation and the generation
// orchestrator that drives discovery sessions.
package swarm

import (
	"math/big"

	"github.com/XiaoConstantine/ramanujan-go/pkg/oracle"
)

// Candidate is one scored expression. The nil big.Float fields are the
// undefined marker: an expression that failed evaluation has nil Value, Error
// and Elegance and can never enter the gene pool.
//
// Candidates are immutable once scored; nothing in this package writes to a
// Candidate after the Scorer returns it, which is what makes handing pool
// snapshots to concurrent producers safe.
type Candidate struct {
	Expression string
	Value      *big.Float
	Error      *big.Float
	Complexity int
	Elegance   *big.Float
	Generation int

	// Lineage holds the parent expressions: empty for fresh exploration,
	// one entry for a mutation, two for a crossover. Write-once at
	// construction.
	Lineage []string
}

// Valid reports whether the candidate carries a defined, finite elegance and
// is therefore admissible to the gene pool.
func (c *Candidate) Valid() bool {
	return c != nil &&
		c.Error != nil && !c.Error.IsInf() &&
		c.Elegance != nil && !c.Elegance.IsInf()
}

// Target identifies the constant a session searches for.
type Target struct {
	Name  string
	Value *big.Float
}

// viewDigits bounds the rendered decimal digits in external views; full
// precision stays on the big.Float fields.
const viewDigits = 50

// CandidateView is the string-rendered form of a Candidate used in events,
// status snapshots and exports.
type CandidateView struct {
	Expression string   `json:"expression"`
	Value      string   `json:"value,omitempty"`
	Error      string   `json:"error,omitempty"`
	Elegance   string   `json:"elegance,omitempty"`
	Complexity int      `json:"complexity"`
	Generation int      `json:"generation"`
	Lineage    []string `json:"lineage,omitempty"`
}

// View renders the candidate for external consumption.
func (c *Candidate) View() CandidateView {
	v := CandidateView{
		Expression: c.Expression,
		Complexity: c.Complexity,
		Generation: c.Generation,
	}
	if len(c.Lineage) > 0 {
		v.Lineage = append([]string(nil), c.Lineage...)
	}
	if c.Value != nil {
		v.Value = c.Value.Text('g', viewDigits)
	}
	if c.Error != nil {
		v.Error = c.Error.Text('e', 20)
	}
	if c.Elegance != nil {
		v.Elegance = c.Elegance.Text('e', 20)
	}
	return v
}

// Discovery is a candidate whose error fell below the verification threshold.
// Discoveries are append-only and first-write-wins: rediscovering the same
// expression text later, even with a better score, does not touch the stored
// record. Improvements remain visible through the gene pool ranking instead.
type Discovery struct {
	Expression string         `json:"expression"`
	Value      string         `json:"value"`
	Error      string         `json:"error"`
	Elegance   string         `json:"elegance"`
	Complexity int            `json:"complexity"`
	Generation int            `json:"generation"`
	ElapsedMS  int64          `json:"elapsed_ms"` // session-relative timestamp
	Novelty    []oracle.Match `json:"novelty,omitempty"`
}
