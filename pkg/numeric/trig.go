package numeric

import (
	"math/big"

	"github.com/XiaoConstantine/ramanujan-go/pkg/errors"
)

// Trigonometric functions are not covered by bigfloat, so they are computed
// here: argument reduction modulo 2π followed by the Taylor series, which
// converges quickly once |x| <= π.

// reduce maps x into [-π, π]. Arguments with exponents beyond the working
// precision cannot be reduced without losing every significant digit, so they
// are rejected.
func (e *Evaluator) reduce(x *big.Float) (*big.Float, error) {
	prec := e.reg.prec
	if x.MantExp(nil) > int(prec)/2 {
		return nil, errors.New(errors.EvaluationFailed, "trig argument too large to reduce")
	}

	pi := e.reg.Pi()
	twoPi := new(big.Float).SetPrec(prec).Add(pi, pi)

	r := new(big.Float).SetPrec(prec).Set(x)
	q := new(big.Float).SetPrec(prec).Quo(r, twoPi)
	qi, _ := q.Int(nil)
	if qi.Sign() != 0 {
		qf := new(big.Float).SetPrec(prec).SetInt(qi)
		r.Sub(r, qf.Mul(qf, twoPi))
	}
	if r.Cmp(pi) > 0 {
		r.Sub(r, twoPi)
	} else if r.Cmp(new(big.Float).SetPrec(prec).Neg(pi)) < 0 {
		r.Add(r, twoPi)
	}
	return r, nil
}

func (e *Evaluator) sin(x *big.Float) (*big.Float, error) {
	prec := e.reg.prec
	r, err := e.reduce(x)
	if err != nil {
		return nil, err
	}

	// sin r = r - r^3/3! + r^5/5! - ...
	sum := new(big.Float).SetPrec(prec).Set(r)
	term := new(big.Float).SetPrec(prec).Set(r)
	r2 := new(big.Float).SetPrec(prec).Mul(r, r)

	for k := int64(1); ; k++ {
		term.Mul(term, r2)
		term.Quo(term, new(big.Float).SetPrec(prec).SetInt64(2*k*(2*k+1)))
		if k%2 == 1 {
			sum.Sub(sum, term)
		} else {
			sum.Add(sum, term)
		}
		if term.Sign() == 0 || term.MantExp(nil) < -int(prec) {
			break
		}
	}
	return sum, nil
}

func (e *Evaluator) cos(x *big.Float) (*big.Float, error) {
	prec := e.reg.prec
	r, err := e.reduce(x)
	if err != nil {
		return nil, err
	}

	// cos r = 1 - r^2/2! + r^4/4! - ...
	sum := big.NewFloat(1).SetPrec(prec)
	term := big.NewFloat(1).SetPrec(prec)
	r2 := new(big.Float).SetPrec(prec).Mul(r, r)

	for k := int64(1); ; k++ {
		term.Mul(term, r2)
		term.Quo(term, new(big.Float).SetPrec(prec).SetInt64((2*k-1)*(2*k)))
		if k%2 == 1 {
			sum.Sub(sum, term)
		} else {
			sum.Add(sum, term)
		}
		if term.Sign() == 0 || term.MantExp(nil) < -int(prec) {
			break
		}
	}
	return sum, nil
}

func (e *Evaluator) tan(x *big.Float) (*big.Float, error) {
	s, err := e.sin(x)
	if err != nil {
		return nil, err
	}
	c, err := e.cos(x)
	if err != nil {
		return nil, err
	}
	if c.Sign() == 0 {
		return nil, errors.New(errors.EvaluationFailed, "tangent undefined at this argument")
	}
	return new(big.Float).SetPrec(e.reg.prec).Quo(s, c), nil
}
