package bytecode

import (
	"math"
	"testing"
)

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{3, "3"},
		{-7, "-7"},
		{0.5, "0.5"},
		{1.2, "1.2"},
		{1e21, "1000000000000000000000"},
		{Value(math.Inf(1)), "inf"},
		{Value(math.Inf(-1)), "-inf"},
		{Value(math.NaN()), "NaN"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("Value(%v).String() = %q, want %q", float64(tt.v), got, tt.want)
		}
	}
}

func TestInterpretResultString(t *testing.T) {
	tests := map[InterpretResult]string{
		InterpretOK:           "ok",
		InterpretCompileError: "compile error",
		InterpretRuntimeError: "runtime error",
		InterpretResult(0):    "InterpretResult(0)",
	}
	for r, want := range tests {
		if got := r.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
