package symtool

import (
	"strings"
	"testing"
)

func TestEval(t *testing.T) {
	tests := []struct {
		name string
		call string
		want string
	}{
		{
			name: "solve quadratic with two roots",
			call: "solve(x^2 + 5x + 6)",
			want: "x = -3, x = -2",
		},
		{
			name: "solve quadratic equation form",
			call: "solve(x^2 + 5x + 6 = 0)",
			want: "x = -3, x = -2",
		},
		{
			name: "solve linear",
			call: "solve(2x - 8)",
			want: "x = 4",
		},
		{
			name: "solve repeated root",
			call: "solve(x^2 - 2x + 1)",
			want: "x = 1",
		},
		{
			name: "solve no real roots",
			call: "solve(x^2 + 1)",
			want: "no real roots (discriminant < 0)",
		},
		{
			name: "solve degenerate zero",
			call: "solve(0)",
			want: "all values of x are solutions",
		},
		{
			name: "expand product",
			call: "expand((x + 2)(x + 3))",
			want: "x^2 + 5x + 6",
		},
		{
			name: "simplify cancels terms",
			call: "simplify(x^2 + 3x - x^2 - x)",
			want: "2x",
		},
		{
			name: "derivative",
			call: "diff(x^3 + 2x)",
			want: "3x^2 + 2",
		},
		{
			name: "derivative of constant",
			call: "diff(7)",
			want: "0",
		},
		{
			name: "antiderivative",
			call: "integrate(3x^2 + 2)",
			want: "x^3 + 2x",
		},
		{
			name: "limit of polynomial",
			call: "limit(x^2 + 1, x, 3)",
			want: "10",
		},
		{
			name: "determinant 2x2",
			call: "det([[1, 2], [3, 4]])",
			want: "-2",
		},
		{
			name: "determinant 3x3",
			call: "det([[2, 0, 0], [0, 3, 0], [0, 0, 4]])",
			want: "24",
		},
		{
			name: "named variable",
			call: "solve(t^2 - 9, t)",
			want: "t = -3, t = 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.call)
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.call, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %q, want %q", tt.call, got, tt.want)
			}
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name string
		call string
		msg  string
	}{
		{
			name: "unknown function",
			call: "import(os)",
			msg:  "unknown function",
		},
		{
			name: "not a call",
			call: "x + 1",
			msg:  "function call",
		},
		{
			name: "cubic solve unsupported",
			call: "solve(x^3 - 1)",
			msg:  "degree",
		},
		{
			name: "two variables",
			call: "simplify(x + y)",
			msg:  "multiple variables",
		},
		{
			name: "division by zero",
			call: "simplify(x / 0)",
			msg:  "division by zero",
		},
		{
			name: "non-square matrix",
			call: "det([[1, 2, 3], [4, 5, 6]])",
			msg:  "square",
		},
		{
			name: "negative exponent",
			call: "simplify(x^-1)",
			msg:  "exponent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eval(tt.call)
			if err == nil {
				t.Fatalf("Eval(%q) succeeded, want error containing %q", tt.call, tt.msg)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("Eval(%q) error = %q, want it to contain %q", tt.call, err, tt.msg)
			}
		})
	}
}

func TestEval_Constants(t *testing.T) {
	got, err := Eval("limit(2 * pi, x, 0)")
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if !strings.HasPrefix(got, "6.283185") {
		t.Errorf("2*pi = %q, want ~6.283185", got)
	}
}
