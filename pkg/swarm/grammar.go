package swarm

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Grammar produces and transforms raw expression strings. It backs the
// Explore strategy (template instantiation), the Mutate strategy (one random
// transformation from a fixed set) and the Crossover strategy (one random
// binary combinator). All methods are safe for concurrent use.
type Grammar struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGrammar creates a grammar with the given random seed; seed 0 picks a
// time-based one.
func NewGrammar(seed int64) *Grammar {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Grammar{rng: rand.New(rand.NewSource(seed))}
}

// exploreTemplates is the generative table for fresh expressions. Placeholders
// {a}..{d} are filled with random coefficients or constant symbols.
var exploreTemplates = []string{
	// Basic arithmetic combinations
	"π + {a}",
	"π - {a}",
	"π * {a}",
	"π / {a}",
	"{a} / π",

	// Exponential forms
	"e^({a})",
	"e^(π/{a})",
	"e^(π*{a})",

	// Square roots and radicals
	"sqrt({a})",
	"sqrt(π + {a})",
	"sqrt(π * {a})",
	"sqrt({a} + sqrt({b}))",

	// Golden ratio combinations
	"φ^{a}",
	"φ + {a}",
	"φ * {a}",

	// Continued fractions
	"{a} + 1/({b} + 1/{c})",
	"π + 1/({a} + 1/{b})",

	// Nested expressions
	"({a} + {b}) / ({c} + {d})",
	"sqrt({a}) + sqrt({b})",
	"log({a}) + π",

	// Ramanujan-style
	"e^(π * sqrt({a}))",
	"π^2 / {a}",
	"163 + {a}",
	"sqrt(163) + {a}",
}

var symbolCoefficients = []string{"π", "e", "φ", "2", "3", "5", "7", "163"}

func (g *Grammar) coefficient() string {
	switch g.rng.Intn(4) {
	case 0:
		return strconv.Itoa(1 + g.rng.Intn(20))
	case 1:
		return strconv.Itoa(1 + g.rng.Intn(200))
	case 2:
		return strconv.FormatFloat(0.1+g.rng.Float64()*9.9, 'f', 3, 64)
	default:
		return symbolCoefficients[g.rng.Intn(len(symbolCoefficients))]
	}
}

// Explore returns a fresh expression from the generative template table.
func (g *Grammar) Explore() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	expr := exploreTemplates[g.rng.Intn(len(exploreTemplates))]
	for _, v := range []string{"{a}", "{b}", "{c}", "{d}"} {
		if strings.Contains(expr, v) {
			expr = strings.ReplaceAll(expr, v, g.coefficient())
		}
	}
	return expr
}

var (
	integerLiteral = regexp.MustCompile(`\d+`)
	// Standalone e only: the word boundary keeps exp/log function names and
	// zeta3 intact.
	standaloneE = regexp.MustCompile(`\be\b`)
)

// mutations is the fixed transformation set; Mutate applies exactly one.
var mutations = []func(*Grammar, string) string{
	// Perturb numeric literals
	func(g *Grammar, e string) string {
		return integerLiteral.ReplaceAllStringFunc(e, func(m string) string {
			n, err := strconv.Atoi(m)
			if err != nil {
				return m
			}
			return strconv.Itoa(n + g.rng.Intn(11) - 5)
		})
	},
	// Flip additive operators
	func(g *Grammar, e string) string {
		if strings.Contains(e, "+") {
			return strings.ReplaceAll(e, "+", "-")
		}
		return strings.ReplaceAll(e, "-", "+")
	},
	// Flip multiplicative operators
	func(g *Grammar, e string) string {
		if strings.Contains(e, "*") {
			return strings.ReplaceAll(e, "*", "/")
		}
		return strings.ReplaceAll(e, "/", "*")
	},
	// Function wraps
	func(g *Grammar, e string) string { return fmt.Sprintf("sqrt(%s)", e) },
	func(g *Grammar, e string) string {
		if strings.HasPrefix(e, "log") {
			return e
		}
		return fmt.Sprintf("log(%s)", e)
	},
	func(g *Grammar, e string) string {
		if strings.HasPrefix(e, "exp") {
			return e
		}
		return fmt.Sprintf("exp(%s)", e)
	},
	// Constant substitutions
	func(g *Grammar, e string) string {
		if strings.Contains(e, "π") {
			return strings.ReplaceAll(e, "π", "e")
		}
		return standaloneE.ReplaceAllString(e, "π")
	},
	func(g *Grammar, e string) string {
		if strings.Contains(e, "φ") {
			return strings.ReplaceAll(e, "φ", "π")
		}
		return e
	},
	// Coefficient wraps
	func(g *Grammar, e string) string { return fmt.Sprintf("(%s) + 1", e) },
	func(g *Grammar, e string) string { return fmt.Sprintf("(%s) / 2", e) },
	func(g *Grammar, e string) string { return fmt.Sprintf("2 * (%s)", e) },
}

// Mutate applies exactly one randomly chosen transformation to an expression.
func (g *Grammar) Mutate(expr string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return mutations[g.rng.Intn(len(mutations))](g, expr)
}

// crossovers is the fixed binary combinator set.
var crossovers = []func(a, b string) string{
	func(a, b string) string { return fmt.Sprintf("(%s) + (%s)", a, b) },
	func(a, b string) string { return fmt.Sprintf("(%s) - (%s)", a, b) },
	func(a, b string) string { return fmt.Sprintf("(%s) * (%s)", a, b) },
	func(a, b string) string { return fmt.Sprintf("(%s) / (%s)", a, b) },
	func(a, b string) string { return fmt.Sprintf("sqrt((%s) * (%s))", a, b) },
	func(a, b string) string { return fmt.Sprintf("(%s + %s) / 2", a, b) },
}

// Crossover combines two parent expressions with one randomly chosen
// combinator.
func (g *Grammar) Crossover(a, b string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return crossovers[g.rng.Intn(len(crossovers))](a, b)
}

// Intn exposes the grammar's random source for strategy decisions that need
// to stay coupled to the same seed.
func (g *Grammar) Intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}
