package symtool

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Named numeric constants available in expressions.
var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

type lexer struct {
	toks []token
	pos  int
}

func lex(s string) (*lexer, error) {
	var toks []token
	i := 0
	for i < len(s) {
		r := rune(s[i])
		switch {
		case unicode.IsSpace(r):
			i++
		case r >= '0' && r <= '9' || r == '.':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			v, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", s[i:j])
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j], num: v})
			i = j
		case unicode.IsLetter(r):
			j := i
			for j < len(s) && unicode.IsLetter(rune(s[j])) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: s[i:j]})
			i = j
		case strings.ContainsRune("+-*/^()", r):
			toks = append(toks, token{kind: tokOp, text: string(r)})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}
	toks = append(toks, token{kind: tokEOF})
	return &lexer{toks: toks}, nil
}

func (l *lexer) peek() token { return l.toks[l.pos] }

func (l *lexer) next() token {
	t := l.toks[l.pos]
	if t.kind != tokEOF {
		l.pos++
	}
	return t
}

// parsePoly parses an expression into a polynomial.
func parsePoly(s string) (poly, error) {
	l, err := lex(s)
	if err != nil {
		return poly{}, err
	}
	p, err := parseSum(l)
	if err != nil {
		return poly{}, err
	}
	if t := l.peek(); t.kind != tokEOF {
		return poly{}, fmt.Errorf("unexpected %q", t.text)
	}
	return p, nil
}

func parseSum(l *lexer) (poly, error) {
	p, err := parseProduct(l)
	if err != nil {
		return poly{}, err
	}
	for {
		t := l.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return p, nil
		}
		l.next()
		q, err := parseProduct(l)
		if err != nil {
			return poly{}, err
		}
		if t.text == "-" {
			q = q.neg()
		}
		p, err = p.add(q)
		if err != nil {
			return poly{}, err
		}
	}
}

func parseProduct(l *lexer) (poly, error) {
	p, err := parseUnary(l)
	if err != nil {
		return poly{}, err
	}
	for {
		t := l.peek()
		switch {
		case t.kind == tokOp && t.text == "*":
			l.next()
			q, err := parseUnary(l)
			if err != nil {
				return poly{}, err
			}
			p, err = p.mul(q)
			if err != nil {
				return poly{}, err
			}
		case t.kind == tokOp && t.text == "/":
			l.next()
			q, err := parseUnary(l)
			if err != nil {
				return poly{}, err
			}
			p, err = p.divConst(q)
			if err != nil {
				return poly{}, err
			}
		// Implicit multiplication: "5x", "2(x+1)", "x(x-1)".
		case t.kind == tokIdent || (t.kind == tokOp && t.text == "("):
			q, err := parseUnary(l)
			if err != nil {
				return poly{}, err
			}
			p, err = p.mul(q)
			if err != nil {
				return poly{}, err
			}
		default:
			return p, nil
		}
	}
}

func parseUnary(l *lexer) (poly, error) {
	if t := l.peek(); t.kind == tokOp && t.text == "-" {
		l.next()
		p, err := parseUnary(l)
		if err != nil {
			return poly{}, err
		}
		return p.neg(), nil
	}
	return parsePower(l)
}

func parsePower(l *lexer) (poly, error) {
	p, err := parsePrimary(l)
	if err != nil {
		return poly{}, err
	}
	t := l.peek()
	if t.kind != tokOp || t.text != "^" {
		return p, nil
	}
	l.next()
	// Right-associative: x^2^3 is x^(2^3).
	exp, err := parseUnary(l)
	if err != nil {
		return poly{}, err
	}
	if exp.degree() > 0 {
		return poly{}, fmt.Errorf("exponents must be constant")
	}
	n := exp.eval(0)
	if n != math.Trunc(n) || n < 0 {
		return poly{}, fmt.Errorf("exponents must be non-negative integers, got %v", n)
	}
	return p.pow(int(n))
}

func parsePrimary(l *lexer) (poly, error) {
	t := l.next()
	switch {
	case t.kind == tokNumber:
		return constPoly(t.num), nil
	case t.kind == tokIdent:
		if v, ok := constants[t.text]; ok {
			return constPoly(v), nil
		}
		return poly{vari: t.text, coefs: []float64{0, 1}}, nil
	case t.kind == tokOp && t.text == "(":
		p, err := parseSum(l)
		if err != nil {
			return poly{}, err
		}
		if c := l.next(); c.kind != tokOp || c.text != ")" {
			return poly{}, fmt.Errorf("missing closing parenthesis")
		}
		return p, nil
	case t.kind == tokEOF:
		return poly{}, fmt.Errorf("unexpected end of expression")
	default:
		return poly{}, fmt.Errorf("unexpected %q", t.text)
	}
}
