// Package decision converts classifier scores into real-access/attack
// decisions, frame by frame or fused over time.
package decision

import (
	"math"
	"strconv"
)

// Score is a classifier output for one frame. A frame where no face was
// detected has no score; it is Missing rather than a NaN float so that
// comparisons never silently see NaN.
type Score struct {
	value float64
	known bool
}

// Known wraps a score value. NaN is mapped to Missing.
func Known(v float64) Score {
	if math.IsNaN(v) {
		return Missing()
	}
	return Score{value: v, known: true}
}

// Missing returns the score of a frame without face detection.
func Missing() Score { return Score{} }

// FromFloat is Known under the file-format convention that NaN marks a
// frame without face detection.
func FromFloat(v float64) Score { return Known(v) }

// FromFloats converts a raw score sequence.
func FromFloats(vs []float64) []Score {
	out := make([]Score, len(vs))
	for i, v := range vs {
		out[i] = Known(v)
	}
	return out
}

// IsKnown reports whether the score carries a value.
func (s Score) IsKnown() bool { return s.known }

// Value returns the score and whether it is known.
func (s Score) Value() (float64, bool) { return s.value, s.known }

// Float returns the score, or NaN when unknown.
func (s Score) Float() float64 {
	if !s.known {
		return math.NaN()
	}
	return s.value
}

func (s Score) String() string {
	if !s.known {
		return "unknown"
	}
	return strconv.FormatFloat(s.value, 'g', -1, 64)
}

// Floats converts scores back to the NaN-encoded representation.
func Floats(ss []Score) []float64 {
	out := make([]float64, len(ss))
	for i, s := range ss {
		out[i] = s.Float()
	}
	return out
}

// KnownValues returns the values of the known scores, in order.
func KnownValues(ss []Score) []float64 {
	out := make([]float64, 0, len(ss))
	for _, s := range ss {
		if s.known {
			out = append(out, s.value)
		}
	}
	return out
}
