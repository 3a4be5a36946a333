package bytecode

import (
	"math"
	"strconv"
)

// Value is the only runtime type: a 64-bit float.
type Value float64

// String formats the value in its shortest round-tripping decimal form.
func (v Value) String() string {
	f := float64(v)
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
