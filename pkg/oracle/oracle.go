// Package oracle checks discovered values and expressions against external
// mathematical knowledge bases. A positive match means the relationship is
// already cataloged; discoveries with no match are the interesting ones.
package oracle

import "context"

// Match is a single hit in an external knowledge base.
type Match struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	URL         string  `json:"url,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Oracle answers novelty queries. Implementations call external services and
// must honor context cancellation; a lookup failure is reported as an error,
// never as an empty match list.
type Oracle interface {
	// LookupByValue searches for sequences whose digits match the decimal
	// expansion of value. The value is passed as a decimal string so the
	// caller controls how many digits are exposed.
	LookupByValue(ctx context.Context, value string) ([]Match, error)

	// LookupByExpression searches for the expression text itself, catching
	// well-known closed forms that a digit search would miss.
	LookupByExpression(ctx context.Context, expression string) ([]Match, error)
}
