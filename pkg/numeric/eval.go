package numeric

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/ALTree/bigfloat"

	"github.com/XiaoConstantine/ramanujan-go/pkg/errors"
)

// Evaluator evaluates candidate expressions over the fixed search grammar:
// binary + - * / ^, parentheses, unary minus, the unary functions
// sqrt/log/exp/sin/cos/tan, integer and decimal literals, and the constant
// symbols the Registry knows. Unicode forms (π, φ, γ, ζ(3), √) are accepted
// and rewritten before lexing.
//
// Evaluate never panics and never returns a partial value: any lex, parse or
// math-domain failure comes back as an error, which scoring turns into the
// undefined marker.
type Evaluator struct {
	reg *Registry
}

// NewEvaluator creates an evaluator bound to a constant registry; all
// arithmetic runs at the registry's precision.
func NewEvaluator(reg *Registry) *Evaluator {
	return &Evaluator{reg: reg}
}

// Registry returns the constant registry the evaluator is bound to.
func (e *Evaluator) Registry() *Registry { return e.reg }

// symbolRewriter maps unicode constant and function symbols onto the grammar's
// ascii identifiers. ζ(3) must be first so the parenthesized form is consumed
// whole.
var symbolRewriter = strings.NewReplacer(
	"ζ(3)", "zeta3",
	"π", "pi",
	"φ", "phi",
	"γ", "gamma",
	"√", "sqrt",
)

// Evaluate parses and evaluates expr, returning its numeric value at the
// registry's precision.
func (e *Evaluator) Evaluate(expr string) (v *big.Float, err error) {
	// big.Float signals 0/0 and similar through ErrNaN panics; convert
	// anything of that kind into an evaluation error.
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = errors.WithFields(
				errors.Newf(errors.EvaluationFailed, "evaluation panic: %v", r),
				errors.Fields{"expression": expr},
			)
		}
	}()

	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, errors.New(errors.EvaluationFailed, "empty expression")
	}

	toks, err := lex(symbolRewriter.Replace(trimmed))
	if err != nil {
		return nil, errors.WithFields(err, errors.Fields{"expression": expr})
	}

	p := &parser{toks: toks, ev: e}
	v, err = p.parseExpr()
	if err != nil {
		return nil, errors.WithFields(err, errors.Fields{"expression": expr})
	}
	if p.peek().kind != tokEOF {
		return nil, errors.WithFields(
			errors.Newf(errors.EvaluationFailed, "unexpected trailing input %q", p.peek().text),
			errors.Fields{"expression": expr},
		)
	}
	if v.IsInf() {
		return nil, errors.WithFields(
			errors.New(errors.EvaluationFailed, "result is not finite"),
			errors.Fields{"expression": expr},
		)
	}
	return v, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp // one of + - * / ^
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r >= '0' && r <= '9' || r == '.':
			start := i
			dots := 0
			for i < len(runes) && (runes[i] >= '0' && runes[i] <= '9' || runes[i] == '.') {
				if runes[i] == '.' {
					dots++
				}
				i++
			}
			if dots > 1 {
				return nil, errors.Newf(errors.EvaluationFailed, "malformed number %q", string(runes[start:i]))
			}
			toks = append(toks, token{tokNumber, string(runes[start:i])})
		case unicode.IsLetter(r):
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			toks = append(toks, token{tokIdent, strings.ToLower(string(runes[start:i]))})
		case r == '+' || r == '-' || r == '*' || r == '/' || r == '^':
			toks = append(toks, token{tokOp, string(r)})
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		default:
			return nil, errors.Newf(errors.EvaluationFailed, "unexpected character %q", string(r))
		}
	}
	toks = append(toks, token{kind: tokEOF})
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
	ev   *Evaluator
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.peek().kind != kind {
		return errors.Newf(errors.EvaluationFailed, "expected %s, found %q", what, p.peek().text)
	}
	p.next()
	return nil
}

// parseExpr handles + and -.
func (p *parser) parseExpr() (*big.Float, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && (p.peek().text == "+" || p.peek().text == "-") {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if op == "+" {
			left = new(big.Float).SetPrec(p.ev.reg.prec).Add(left, right)
		} else {
			left = new(big.Float).SetPrec(p.ev.reg.prec).Sub(left, right)
		}
	}
	return left, nil
}

// parseTerm handles * and /.
func (p *parser) parseTerm() (*big.Float, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && (p.peek().text == "*" || p.peek().text == "/") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == "*" {
			left = new(big.Float).SetPrec(p.ev.reg.prec).Mul(left, right)
		} else {
			if right.Sign() == 0 {
				return nil, errors.New(errors.EvaluationFailed, "division by zero")
			}
			left = new(big.Float).SetPrec(p.ev.reg.prec).Quo(left, right)
		}
	}
	return left, nil
}

func (p *parser) parseUnary() (*big.Float, error) {
	if p.peek().kind == tokOp && p.peek().text == "-" {
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return new(big.Float).SetPrec(p.ev.reg.prec).Neg(v), nil
	}
	if p.peek().kind == tokOp && p.peek().text == "+" {
		p.next()
		return p.parseUnary()
	}
	return p.parsePower()
}

// parsePower handles ^, right-associative and binding tighter than unary
// minus on its left operand.
func (p *parser) parsePower() (*big.Float, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokOp && p.peek().text == "^" {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return p.ev.pow(base, exp)
	}
	return base, nil
}

func (p *parser) parseAtom() (*big.Float, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		v, ok := new(big.Float).SetPrec(p.ev.reg.prec).SetString(t.text)
		if !ok {
			return nil, errors.Newf(errors.EvaluationFailed, "malformed number %q", t.text)
		}
		return v, nil
	case tokIdent:
		p.next()
		if p.peek().kind == tokLParen {
			return p.parseCall(t.text)
		}
		if v, ok := p.ev.reg.Lookup(t.text); ok {
			return v, nil
		}
		return nil, errors.Newf(errors.UnknownConstant, "unknown symbol %q", t.text)
	case tokLParen:
		p.next()
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, `")"`); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, errors.Newf(errors.EvaluationFailed, "unexpected token %q", t.text)
	}
}

func (p *parser) parseCall(name string) (*big.Float, error) {
	if err := p.expect(tokLParen, `"("`); err != nil {
		return nil, err
	}
	arg, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokRParen, `")"`); err != nil {
		return nil, err
	}
	return p.ev.call(name, arg)
}

// expArgLimit bounds exp/pow arguments; beyond it the result exponent would
// approach big.Float's internal limits.
var expArgLimit = big.NewFloat(1e8)

func (e *Evaluator) call(name string, arg *big.Float) (*big.Float, error) {
	switch name {
	case "sqrt":
		if arg.Sign() < 0 {
			return nil, errors.New(errors.EvaluationFailed, "square root of negative value")
		}
		return new(big.Float).SetPrec(e.reg.prec).Sqrt(arg), nil
	case "log", "ln":
		if arg.Sign() <= 0 {
			return nil, errors.New(errors.EvaluationFailed, "logarithm of non-positive value")
		}
		return bigfloat.Log(new(big.Float).SetPrec(e.reg.prec).Set(arg)), nil
	case "exp":
		if new(big.Float).Abs(arg).Cmp(expArgLimit) > 0 {
			return nil, errors.New(errors.EvaluationFailed, "exp argument out of range")
		}
		return bigfloat.Exp(new(big.Float).SetPrec(e.reg.prec).Set(arg)), nil
	case "sin":
		return e.sin(arg)
	case "cos":
		return e.cos(arg)
	case "tan":
		return e.tan(arg)
	default:
		return nil, errors.Newf(errors.EvaluationFailed, "unknown function %q", name)
	}
}

// maxIntExponent bounds integer powers; larger exponents explode the result
// exponent without ever helping the search.
const maxIntExponent = 1 << 20

func (e *Evaluator) pow(base, exp *big.Float) (*big.Float, error) {
	prec := e.reg.prec

	if exp.IsInt() {
		n, acc := exp.Int64()
		if acc != big.Exact || n > maxIntExponent || n < -maxIntExponent {
			return nil, errors.New(errors.EvaluationFailed, "integer exponent out of range")
		}
		if n == 0 {
			if base.Sign() == 0 {
				return nil, errors.New(errors.EvaluationFailed, "0^0 is undefined")
			}
			return big.NewFloat(1).SetPrec(prec), nil
		}
		neg := n < 0
		if neg {
			n = -n
			if base.Sign() == 0 {
				return nil, errors.New(errors.EvaluationFailed, "division by zero")
			}
		}
		result := big.NewFloat(1).SetPrec(prec)
		sq := new(big.Float).SetPrec(prec).Set(base)
		for n > 0 {
			if n&1 == 1 {
				result.Mul(result, sq)
			}
			n >>= 1
			if n > 0 {
				sq.Mul(sq, sq)
			}
		}
		if neg {
			result.Quo(big.NewFloat(1).SetPrec(prec), result)
		}
		if result.IsInf() {
			return nil, errors.New(errors.EvaluationFailed, "power overflow")
		}
		return result, nil
	}

	// Fractional exponent: base must be strictly positive.
	if base.Sign() <= 0 {
		return nil, errors.New(errors.EvaluationFailed, "fractional power of non-positive base")
	}
	logBase := bigfloat.Log(new(big.Float).SetPrec(prec).Set(base))
	product := new(big.Float).SetPrec(prec).Mul(exp, logBase)
	if new(big.Float).Abs(product).Cmp(expArgLimit) > 0 {
		return nil, errors.New(errors.EvaluationFailed, "power overflow")
	}
	return bigfloat.Exp(product), nil
}

func (e *Evaluator) String() string {
	return fmt.Sprintf("numeric.Evaluator(digits=%d)", e.reg.digits)
}
