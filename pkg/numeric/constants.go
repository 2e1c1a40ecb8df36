// Package numeric provides the high-precision arithmetic the discovery engine
// scores candidates with: a registry of named mathematical constants and an
// evaluator for the fixed expression grammar, both running on big.Float at a
// configurable decimal precision.
//
// Precision is a correctness requirement, not a tuning knob. Discovery
// verification compares absolute errors against thresholds like 1e-50, which
// only means something when the evaluation itself carries hundreds of decimal
// digits; float64 evaluation would make every comparison noise.
package numeric

import (
	"math"
	"math/big"
	"sync"

	"github.com/ALTree/bigfloat"
)

// Registry computes and caches named constants at a fixed decimal precision.
// Accessors return copies because big.Float's API mutates in place and the
// cached values must stay stable.
type Registry struct {
	digits int
	prec   uint

	mu    sync.Mutex
	cache map[string]*big.Float
}

// constantNames lists the registry contents in a stable order.
var constantNames = []string{"pi", "e", "phi", "gamma", "zeta3"}

// NewRegistry creates a registry computing constants with the given number of
// decimal digits.
func NewRegistry(digits int) *Registry {
	if digits < 1 {
		digits = 1
	}
	// bits per decimal digit is log2(10); the slack absorbs rounding in the
	// series evaluations.
	prec := uint(math.Ceil(float64(digits)*math.Log2(10))) + 64
	return &Registry{
		digits: digits,
		prec:   prec,
		cache:  make(map[string]*big.Float),
	}
}

// Digits returns the decimal precision the registry was built with.
func (r *Registry) Digits() int { return r.digits }

// Prec returns the binary precision used for big.Float values.
func (r *Registry) Prec() uint { return r.prec }

// Names returns the identifiers Lookup understands.
func (r *Registry) Names() []string {
	out := make([]string, len(constantNames))
	copy(out, constantNames)
	return out
}

// Lookup resolves a constant by identifier. The boolean is false for unknown
// names.
func (r *Registry) Lookup(name string) (*big.Float, bool) {
	switch name {
	case "pi":
		return r.Pi(), true
	case "e":
		return r.E(), true
	case "phi":
		return r.Phi(), true
	case "gamma":
		return r.Gamma(), true
	case "zeta3":
		return r.Zeta3(), true
	default:
		return nil, false
	}
}

func (r *Registry) cached(name string, compute func() *big.Float) *big.Float {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache[name]; ok {
		return new(big.Float).Copy(v)
	}
	v := compute()
	r.cache[name] = v
	return new(big.Float).Copy(v)
}

// Pi returns π, computed with Machin's formula.
func (r *Registry) Pi() *big.Float {
	return r.cached("pi", func() *big.Float {
		// pi = 16*atan(1/5) - 4*atan(1/239)
		wp := r.prec + 32
		a := atanRecip(5, wp)
		b := atanRecip(239, wp)
		a.Mul(a, big.NewFloat(16).SetPrec(wp))
		b.Mul(b, big.NewFloat(4).SetPrec(wp))
		return a.Sub(a, b).SetPrec(r.prec)
	})
}

// E returns Euler's number.
func (r *Registry) E() *big.Float {
	return r.cached("e", func() *big.Float {
		one := big.NewFloat(1).SetPrec(r.prec + 32)
		return bigfloat.Exp(one).SetPrec(r.prec)
	})
}

// Phi returns the golden ratio (1+sqrt(5))/2.
func (r *Registry) Phi() *big.Float {
	return r.cached("phi", func() *big.Float {
		wp := r.prec + 32
		v := new(big.Float).SetPrec(wp).SetInt64(5)
		v.Sqrt(v)
		v.Add(v, big.NewFloat(1).SetPrec(wp))
		return v.Quo(v, big.NewFloat(2).SetPrec(wp)).SetPrec(r.prec)
	})
}

// Gamma returns the Euler-Mascheroni constant, computed with the
// Brent-McMillan algorithm: gamma = S(n)/I(n) - ln(n), error O(e^-4n).
func (r *Registry) Gamma() *big.Float {
	return r.cached("gamma", func() *big.Float {
		wp := r.prec + 64

		// 4n >= wp*ln(2) makes the series error smaller than one ulp.
		n := int64(float64(wp)*math.Ln2/4) + 2
		nf := new(big.Float).SetPrec(wp).SetInt64(n)

		term := big.NewFloat(1).SetPrec(wp) // (n^k/k!)^2, k=0
		harmonic := new(big.Float).SetPrec(wp)
		sumS := new(big.Float).SetPrec(wp)
		sumI := big.NewFloat(1).SetPrec(wp)
		tmp := new(big.Float).SetPrec(wp)

		kmax := int64(3.5912*float64(n)) + 10
		for k := int64(1); k <= kmax; k++ {
			kf := new(big.Float).SetPrec(wp).SetInt64(k)
			term.Mul(term, nf)
			term.Quo(term, kf)
			term.Mul(term, nf)
			term.Quo(term, kf)

			tmp.Quo(big.NewFloat(1).SetPrec(wp), kf)
			harmonic.Add(harmonic, tmp)

			sumI.Add(sumI, term)
			tmp.Mul(term, harmonic)
			sumS.Add(sumS, tmp)
		}

		v := new(big.Float).SetPrec(wp).Quo(sumS, sumI)
		v.Sub(v, bigfloat.Log(nf))
		return v.SetPrec(r.prec)
	})
}

// Zeta3 returns Apery's constant zeta(3), via the accelerated series
// zeta(3) = 5/2 * sum_{k>=1} (-1)^(k-1) / (k^3 * C(2k,k)).
func (r *Registry) Zeta3() *big.Float {
	return r.cached("zeta3", func() *big.Float {
		wp := r.prec + 64

		sum := new(big.Float).SetPrec(wp)
		binom := big.NewInt(2) // C(2,1)
		den := new(big.Int)
		term := new(big.Float).SetPrec(wp)

		for k := int64(1); ; k++ {
			if k > 1 {
				// C(2k,k) = C(2k-2,k-1) * 2*(2k-1)/k, exact
				binom.Mul(binom, big.NewInt(2*(2*k-1)))
				binom.Div(binom, big.NewInt(k))
			}
			den.SetInt64(k * k * k)
			den.Mul(den, binom)

			term.SetInt(den)
			term.Quo(big.NewFloat(1).SetPrec(wp), term)
			if k%2 == 1 {
				sum.Add(sum, term)
			} else {
				sum.Sub(sum, term)
			}

			if term.MantExp(nil) < -int(wp) {
				break
			}
		}

		sum.Mul(sum, big.NewFloat(5).SetPrec(wp))
		sum.Quo(sum, big.NewFloat(2).SetPrec(wp))
		return sum.SetPrec(r.prec)
	})
}

// atanRecip computes atan(1/n) by its Taylor series.
func atanRecip(n int64, prec uint) *big.Float {
	one := big.NewFloat(1).SetPrec(prec)
	nf := new(big.Float).SetPrec(prec).SetInt64(n)

	inv := new(big.Float).SetPrec(prec).Quo(one, nf)
	inv2 := new(big.Float).SetPrec(prec).Mul(inv, inv)

	power := new(big.Float).Copy(inv) // 1/n^(2k+1)
	sum := new(big.Float).Copy(inv)
	tmp := new(big.Float).SetPrec(prec)

	for k := int64(1); ; k++ {
		power.Mul(power, inv2)
		tmp.Quo(power, new(big.Float).SetPrec(prec).SetInt64(2*k+1))
		if k%2 == 1 {
			sum.Sub(sum, tmp)
		} else {
			sum.Add(sum, tmp)
		}
		if power.Sign() == 0 || power.MantExp(nil) < -int(prec) {
			break
		}
	}
	return sum
}

// ParseDecimal parses a decimal string (scientific notation allowed) at the
// given binary precision.
func ParseDecimal(s string, prec uint) (*big.Float, bool) {
	return new(big.Float).SetPrec(prec).SetString(s)
}
