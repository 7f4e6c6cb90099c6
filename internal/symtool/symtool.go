// Package symtool evaluates the solver's optional symbolic-math requests.
//
// The solver may ask for exactly one call from a fixed capability table:
//
//	solve(expr[, var])      roots of a polynomial equation
//	simplify(expr)          canonical polynomial form
//	expand(expr)            expanded polynomial form
//	diff(expr[, var])       derivative
//	integrate(expr[, var])  antiderivative (constant omitted)
//	limit(expr, var, point) value of a polynomial at a point
//	det(matrix)             determinant of a numeric matrix (up to 3x3)
//
// Expressions are polynomials in one variable with the constants pi and e.
// There is no interpreter and no way to reach outside this table; anything
// else is rejected with an error.
package symtool

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Eval evaluates a single function call against the capability table.
func Eval(call string) (string, error) {
	name, args, err := splitCall(call)
	if err != nil {
		return "", err
	}

	switch name {
	case "solve":
		return evalSolve(args)
	case "simplify", "expand":
		return evalSimplify(args)
	case "diff":
		return evalDiff(args)
	case "integrate":
		return evalIntegrate(args)
	case "limit":
		return evalLimit(args)
	case "det":
		return evalDet(args)
	default:
		return "", fmt.Errorf("unknown function %q", name)
	}
}

// splitCall separates "name(arg1, arg2)" into its name and argument texts.
// Commas inside brackets do not split arguments.
func splitCall(call string) (string, []string, error) {
	call = strings.TrimSpace(call)
	open := strings.Index(call, "(")
	if open <= 0 || !strings.HasSuffix(call, ")") {
		return "", nil, fmt.Errorf("expected a function call of the form name(...), got %q", call)
	}

	name := strings.TrimSpace(call[:open])
	inner := call[open+1 : len(call)-1]

	var args []string
	depth := 0
	start := 0
	for i, r := range inner {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(inner[start:]); rest != "" {
		args = append(args, rest)
	}

	return name, args, nil
}

func evalSolve(args []string) (string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", fmt.Errorf("solve expects 1 or 2 arguments, got %d", len(args))
	}

	expr := args[0]
	// Equations move the right-hand side over: a = b becomes a - (b) = 0.
	if eq := strings.Index(expr, "="); eq >= 0 {
		expr = expr[:eq] + " - (" + expr[eq+1:] + ")"
	}

	p, err := parsePoly(expr)
	if err != nil {
		return "", err
	}
	vari := p.variable()
	if len(args) == 2 {
		if vari != "" && vari != args[1] {
			return "", fmt.Errorf("expression is in %s, not %s", vari, args[1])
		}
		vari = args[1]
	}
	if vari == "" {
		vari = "x"
	}

	p.trim()
	switch p.degree() {
	case 0:
		if len(p.coefs) == 0 || p.coefs[0] == 0 {
			return fmt.Sprintf("all values of %s are solutions", vari), nil
		}
		return "no solutions", nil
	case 1:
		root := -p.coefs[0] / p.coefs[1]
		return fmt.Sprintf("%s = %s", vari, formatNumber(root)), nil
	case 2:
		a, b, c := p.coefs[2], p.coefs[1], p.coefs[0]
		disc := b*b - 4*a*c
		if disc < 0 {
			return "no real roots (discriminant < 0)", nil
		}
		sq := math.Sqrt(disc)
		r1 := (-b - sq) / (2 * a)
		r2 := (-b + sq) / (2 * a)
		roots := []float64{r1, r2}
		sort.Float64s(roots)
		if roots[0] == roots[1] {
			return fmt.Sprintf("%s = %s", vari, formatNumber(roots[0])), nil
		}
		return fmt.Sprintf("%s = %s, %s = %s",
			vari, formatNumber(roots[0]), vari, formatNumber(roots[1])), nil
	default:
		return "", fmt.Errorf("solve supports polynomials up to degree 2, got degree %d", p.degree())
	}
}

func evalSimplify(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	p, err := parsePoly(args[0])
	if err != nil {
		return "", err
	}
	return p.format(), nil
}

func evalDiff(args []string) (string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", fmt.Errorf("diff expects 1 or 2 arguments, got %d", len(args))
	}
	p, err := parsePoly(args[0])
	if err != nil {
		return "", err
	}
	if len(args) == 2 && p.variable() != "" && p.variable() != args[1] {
		return "", fmt.Errorf("expression is in %s, not %s", p.variable(), args[1])
	}
	return p.derivative().format(), nil
}

func evalIntegrate(args []string) (string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", fmt.Errorf("integrate expects 1 or 2 arguments, got %d", len(args))
	}
	p, err := parsePoly(args[0])
	if err != nil {
		return "", err
	}
	vari := p.variable()
	if len(args) == 2 {
		if vari != "" && vari != args[1] {
			return "", fmt.Errorf("expression is in %s, not %s", vari, args[1])
		}
		vari = args[1]
	}
	if vari == "" {
		vari = "x"
	}
	return p.antiderivative(vari).format(), nil
}

func evalLimit(args []string) (string, error) {
	if len(args) != 3 {
		return "", fmt.Errorf("limit expects 3 arguments (expr, var, point), got %d", len(args))
	}
	p, err := parsePoly(args[0])
	if err != nil {
		return "", err
	}
	if p.variable() != "" && p.variable() != args[1] {
		return "", fmt.Errorf("expression is in %s, not %s", p.variable(), args[1])
	}
	point, err := parseConstant(args[2])
	if err != nil {
		return "", fmt.Errorf("limit point: %w", err)
	}
	// Polynomials are continuous, so the limit is the value at the point.
	return formatNumber(p.eval(point)), nil
}

func evalDet(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("det expects 1 argument, got %d", len(args))
	}
	m, err := parseMatrix(args[0])
	if err != nil {
		return "", err
	}

	n := len(m)
	for _, row := range m {
		if len(row) != n {
			return "", fmt.Errorf("det requires a square matrix, got %dx%d", n, len(row))
		}
	}

	var d float64
	switch n {
	case 1:
		d = m[0][0]
	case 2:
		d = m[0][0]*m[1][1] - m[0][1]*m[1][0]
	case 3:
		d = m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
			m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
			m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	default:
		return "", fmt.Errorf("det supports matrices up to 3x3, got %dx%d", n, n)
	}

	return formatNumber(d), nil
}

// parseMatrix parses a numeric matrix literal like [[1, 2], [3, 4]].
// Entries are constant expressions.
func parseMatrix(s string) ([][]float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[[") || !strings.HasSuffix(s, "]]") {
		return nil, fmt.Errorf("expected a matrix literal [[...], [...]], got %q", s)
	}

	var m [][]float64
	inner := s[1 : len(s)-1]
	for len(inner) > 0 {
		open := strings.Index(inner, "[")
		if open < 0 {
			break
		}
		close := strings.Index(inner[open:], "]")
		if close < 0 {
			return nil, fmt.Errorf("unterminated matrix row in %q", s)
		}
		rowText := inner[open+1 : open+close]
		var row []float64
		for _, cell := range strings.Split(rowText, ",") {
			v, err := parseConstant(cell)
			if err != nil {
				return nil, fmt.Errorf("matrix entry %q: %w", strings.TrimSpace(cell), err)
			}
			row = append(row, v)
		}
		m = append(m, row)
		inner = inner[open+close+1:]
	}

	if len(m) == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	return m, nil
}

// parseConstant parses an expression that must reduce to a number.
func parseConstant(s string) (float64, error) {
	p, err := parsePoly(s)
	if err != nil {
		return 0, err
	}
	if p.degree() > 0 {
		return 0, fmt.Errorf("%q is not a constant", strings.TrimSpace(s))
	}
	if len(p.coefs) == 0 {
		return 0, nil
	}
	return p.coefs[0], nil
}

func formatNumber(v float64) string {
	if v == 0 {
		v = 0 // normalize -0
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// poly is a dense univariate polynomial: coefs[i] is the coefficient of
// vari^i. A constant has an empty vari.
type poly struct {
	vari  string
	coefs []float64
}

func constPoly(v float64) poly {
	return poly{coefs: []float64{v}}
}

func (p poly) variable() string { return p.vari }

func (p *poly) trim() {
	for len(p.coefs) > 1 && p.coefs[len(p.coefs)-1] == 0 {
		p.coefs = p.coefs[:len(p.coefs)-1]
	}
	if len(p.coefs) == 1 && p.coefs[0] == 0 {
		p.vari = ""
	}
}

func (p poly) degree() int {
	d := 0
	for i, c := range p.coefs {
		if c != 0 {
			d = i
		}
	}
	return d
}

func (p poly) eval(x float64) float64 {
	var v float64
	for i := len(p.coefs) - 1; i >= 0; i-- {
		v = v*x + p.coefs[i]
	}
	return v
}

func (p poly) derivative() poly {
	if len(p.coefs) <= 1 {
		return constPoly(0)
	}
	out := poly{vari: p.vari, coefs: make([]float64, len(p.coefs)-1)}
	for i := 1; i < len(p.coefs); i++ {
		out.coefs[i-1] = p.coefs[i] * float64(i)
	}
	out.trim()
	return out
}

func (p poly) antiderivative(vari string) poly {
	out := poly{vari: vari, coefs: make([]float64, len(p.coefs)+1)}
	for i, c := range p.coefs {
		out.coefs[i+1] = c / float64(i+1)
	}
	out.trim()
	return out
}

func mergeVars(a, b string) (string, error) {
	switch {
	case a == "":
		return b, nil
	case b == "" || a == b:
		return a, nil
	default:
		return "", fmt.Errorf("multiple variables %s and %s are not supported", a, b)
	}
}

func (p poly) add(q poly) (poly, error) {
	vari, err := mergeVars(p.vari, q.vari)
	if err != nil {
		return poly{}, err
	}
	n := len(p.coefs)
	if len(q.coefs) > n {
		n = len(q.coefs)
	}
	out := poly{vari: vari, coefs: make([]float64, n)}
	for i, c := range p.coefs {
		out.coefs[i] += c
	}
	for i, c := range q.coefs {
		out.coefs[i] += c
	}
	out.trim()
	return out, nil
}

func (p poly) neg() poly {
	out := poly{vari: p.vari, coefs: make([]float64, len(p.coefs))}
	for i, c := range p.coefs {
		out.coefs[i] = -c
	}
	return out
}

func (p poly) mul(q poly) (poly, error) {
	vari, err := mergeVars(p.vari, q.vari)
	if err != nil {
		return poly{}, err
	}
	if len(p.coefs) == 0 || len(q.coefs) == 0 {
		return constPoly(0), nil
	}
	out := poly{vari: vari, coefs: make([]float64, len(p.coefs)+len(q.coefs)-1)}
	for i, a := range p.coefs {
		for j, b := range q.coefs {
			out.coefs[i+j] += a * b
		}
	}
	out.trim()
	return out, nil
}

func (p poly) divConst(q poly) (poly, error) {
	if q.degree() > 0 {
		return poly{}, fmt.Errorf("division by a non-constant is not supported")
	}
	d := q.eval(0)
	if d == 0 {
		return poly{}, fmt.Errorf("division by zero")
	}
	out := poly{vari: p.vari, coefs: make([]float64, len(p.coefs))}
	for i, c := range p.coefs {
		out.coefs[i] = c / d
	}
	return out, nil
}

func (p poly) pow(n int) (poly, error) {
	if n < 0 {
		return poly{}, fmt.Errorf("negative exponents are not supported")
	}
	out := constPoly(1)
	var err error
	for i := 0; i < n; i++ {
		out, err = out.mul(p)
		if err != nil {
			return poly{}, err
		}
	}
	return out, nil
}

// format renders the polynomial in descending degree order, e.g.
// "x^2 + 5x + 6" or "-2x^3 + x".
func (p poly) format() string {
	q := p
	q.trim()
	if q.degree() == 0 {
		if len(q.coefs) == 0 {
			return "0"
		}
		return formatNumber(q.coefs[0])
	}

	vari := q.vari
	var b strings.Builder
	first := true
	for i := len(q.coefs) - 1; i >= 0; i-- {
		c := q.coefs[i]
		if c == 0 {
			continue
		}
		if first {
			if c < 0 {
				b.WriteString("-")
			}
			first = false
		} else {
			if c < 0 {
				b.WriteString(" - ")
			} else {
				b.WriteString(" + ")
			}
		}
		abs := math.Abs(c)
		switch {
		case i == 0:
			b.WriteString(formatNumber(abs))
		case i == 1:
			if abs != 1 {
				b.WriteString(formatNumber(abs))
			}
			b.WriteString(vari)
		default:
			if abs != 1 {
				b.WriteString(formatNumber(abs))
			}
			b.WriteString(vari)
			b.WriteString("^")
			b.WriteString(strconv.Itoa(i))
		}
	}
	return b.String()
}
