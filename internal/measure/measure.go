// Package measure computes error rates and operating thresholds for a
// binary classifier where higher scores mean real access. Negatives are
// attack scores, positives are real-access scores.
package measure

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptyInput is returned when a threshold is requested for an empty
// population.
var ErrEmptyInput = errors.New("empty score population")

// FARFRR returns the false acceptance rate (negatives scoring at or above
// the threshold) and the false rejection rate (positives scoring below it),
// both as fractions. An empty population yields a rate of 0.
func FARFRR(negatives, positives []float64, threshold float64) (far, frr float64) {
	if n := len(negatives); n > 0 {
		accepted := 0
		for _, v := range negatives {
			if v >= threshold {
				accepted++
			}
		}
		far = float64(accepted) / float64(n)
	}
	if n := len(positives); n > 0 {
		rejected := 0
		for _, v := range positives {
			if v < threshold {
				rejected++
			}
		}
		frr = float64(rejected) / float64(n)
	}
	return far, frr
}

// CorrectlyClassifiedNegatives reports, per score, whether a negative is
// rejected at the threshold.
func CorrectlyClassifiedNegatives(negatives []float64, threshold float64) []bool {
	out := make([]bool, len(negatives))
	for i, v := range negatives {
		out[i] = v < threshold
	}
	return out
}

// CorrectlyClassifiedPositives reports, per score, whether a positive is
// accepted at the threshold.
func CorrectlyClassifiedPositives(positives []float64, threshold float64) []bool {
	out := make([]bool, len(positives))
	for i, v := range positives {
		out[i] = v >= threshold
	}
	return out
}

// Finite returns the finite values of xs in order.
func Finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// EERThreshold returns the threshold where FAR and FRR are closest. Ties
// are broken by the lower total error and then by the lower threshold.
func EERThreshold(negatives, positives []float64) (float64, error) {
	return search(negatives, positives, func(far, frr float64) (float64, float64) {
		return math.Abs(far - frr), far + frr
	})
}

// MinHTERThreshold returns the threshold that minimises (FAR+FRR)/2. Ties
// are broken by the lower threshold.
func MinHTERThreshold(negatives, positives []float64) (float64, error) {
	return search(negatives, positives, func(far, frr float64) (float64, float64) {
		return far + frr, 0
	})
}

// search evaluates candidate thresholds that never coincide with a sample:
// midpoints between consecutive distinct scores plus one threshold below
// and one above all of them. cost returns a primary and a secondary key.
func search(negatives, positives []float64, cost func(far, frr float64) (float64, float64)) (float64, error) {
	neg, pos := sorted(negatives), sorted(positives)
	if len(neg) == 0 || len(pos) == 0 {
		return 0, ErrEmptyInput
	}

	all := make([]float64, 0, len(neg)+len(pos))
	all = append(all, neg...)
	all = append(all, pos...)
	sort.Float64s(all)
	all = dedup(all)

	candidates := make([]float64, 0, len(all)+1)
	candidates = append(candidates, all[0])
	for i := 1; i < len(all); i++ {
		candidates = append(candidates, all[i-1]+(all[i]-all[i-1])/2)
	}
	candidates = append(candidates, math.Nextafter(all[len(all)-1], math.Inf(1)))

	best := candidates[0]
	bestP, bestS := math.Inf(1), math.Inf(1)
	for _, t := range candidates {
		far := 1 - float64(sort.SearchFloat64s(neg, t))/float64(len(neg))
		frr := float64(sort.SearchFloat64s(pos, t)) / float64(len(pos))
		p, s := cost(far, frr)
		if p < bestP || (p == bestP && s < bestS) {
			best, bestP, bestS = t, p, s
		}
	}
	return best, nil
}

func sorted(xs []float64) []float64 {
	out := Finite(xs)
	sort.Float64s(out)
	return out
}

func dedup(xs []float64) []float64 {
	if len(xs) == 0 {
		return xs
	}
	out := xs[:1]
	for _, v := range xs[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
