package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientSamples is returned when a window is too short for the
// unbiased standard deviation.
var ErrInsufficientSamples = errors.New("insufficient samples")

// NumQuantities is the width of a descriptor vector.
const NumQuantities = 5

// Descriptor holds the five quantities computed over one window, as
// described in Anjos & Marcel, "Counter-Measures to Photo Attacks in Face
// Recognition", IJCB 2011.
type Descriptor struct {
	Min     float64
	Max     float64
	Mean    float64
	Std     float64 // unbiased, N-1 divisor
	DCRatio float64
}

// Vector returns the descriptor as a feature row in
// (min, max, mean, std, dc_ratio) order.
func (d Descriptor) Vector() []float64 {
	return []float64{d.Min, d.Max, d.Mean, d.Std, d.DCRatio}
}

// DescriptorFromVector is the inverse of Vector.
func DescriptorFromVector(v []float64) (Descriptor, error) {
	if len(v) != NumQuantities {
		return Descriptor{}, fmt.Errorf("descriptor needs %d values, got %d", NumQuantities, len(v))
	}
	return Descriptor{Min: v[0], Max: v[1], Mean: v[2], Std: v[3], DCRatio: v[4]}, nil
}

// Extract computes the descriptor of a window. Windows with fewer than two
// samples have no unbiased standard deviation and are rejected.
func Extract(w Window) (Descriptor, error) {
	n := w.Len()
	if n < 2 {
		return Descriptor{}, fmt.Errorf("%w: window at %d has %d sample(s), need at least 2",
			ErrInsufficientSamples, w.Start, n)
	}
	if floats.HasNaN(w.Values) {
		// a frame without face detection poisons the whole window
		nan := math.NaN()
		return Descriptor{Min: nan, Max: nan, Mean: nan, Std: nan, DCRatio: nan}, nil
	}
	return Descriptor{
		Min:     floats.Min(w.Values),
		Max:     floats.Max(w.Values),
		Mean:    stat.Mean(w.Values, nil),
		Std:     stat.StdDev(w.Values, nil),
		DCRatio: DCRatio(w.Values),
	}, nil
}

// DCRatio returns the sum of the non-DC spectral magnitudes divided by the
// DC magnitude:
//
//	D(N) = sum(|FFT_i|, i=1..N-1) / |FFT_0|
//
// Windows of one sample or less have ratio 0. A zero DC term gives +Inf
// when there is any AC energy and 0 otherwise.
func DCRatio(values []float64) float64 {
	n := len(values)
	if n <= 1 {
		return 0
	}

	seq := make([]complex128, n)
	for i, v := range values {
		seq[i] = complex(v, 0)
	}
	coeffs := fourier.NewCmplxFFT(n).Coefficients(nil, seq)

	dc := cmplx.Abs(coeffs[0])
	var ac float64
	for _, c := range coeffs[1:] {
		ac += cmplx.Abs(c)
	}

	if dc == 0 {
		// magnitudes are never negative, so the sum is either 0 or positive
		if ac > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return ac / dc
}
