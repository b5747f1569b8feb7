// Package lda trains and applies a two-class linear discriminant on
// feature vectors, such as the five quantities extracted from frame
// difference signals.
package lda

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrLengthMismatch is returned when a feature vector does not have the
	// dimension the machine or normalisation was built for.
	ErrLengthMismatch = errors.New("feature length mismatch")
	// ErrEmptyClass is returned when a training class has no samples.
	ErrEmptyClass = errors.New("empty training class")
)

// Norm is a zero-mean unit-variance normalisation.
type Norm struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// ComputeNorm returns the per-column mean and population standard
// deviation over the samples of both classes. Columns with zero deviation
// get a divisor of 1.
func ComputeNorm(real, attack [][]float64) (Norm, error) {
	if len(real) == 0 || len(attack) == 0 {
		return Norm{}, ErrEmptyClass
	}
	d, err := dimension(real, attack)
	if err != nil {
		return Norm{}, err
	}

	n := Norm{Mean: make([]float64, d), Std: make([]float64, d)}
	col := make([]float64, 0, len(real)+len(attack))
	for j := 0; j < d; j++ {
		col = col[:0]
		for _, row := range real {
			col = append(col, row[j])
		}
		for _, row := range attack {
			col = append(col, row[j])
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		n.Mean[j] = mean
		n.Std[j] = math.Sqrt(variance)
		if n.Std[j] == 0 {
			n.Std[j] = 1
		}
	}
	return n, nil
}

// Apply returns the normalised copy of x.
func (n Norm) Apply(x []float64) ([]float64, error) {
	if len(x) != len(n.Mean) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrLengthMismatch, len(x), len(n.Mean))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - n.Mean[i]) / n.Std[i]
	}
	return out, nil
}

// ApplyAll normalises every row.
func (n Norm) ApplyAll(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		var err error
		if out[i], err = n.Apply(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return out, nil
}

func dimension(sets ...[][]float64) (int, error) {
	d := -1
	for _, rows := range sets {
		for i, row := range rows {
			if d < 0 {
				d = len(row)
			}
			if len(row) != d {
				return 0, fmt.Errorf("%w: row %d has %d values, want %d", ErrLengthMismatch, i, len(row), d)
			}
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: zero-length features", ErrLengthMismatch)
	}
	return d, nil
}
