// Package cluster turns per-frame difference signals into fixed-size
// statistical descriptors. Index 0 of every signal is the degenerate first
// frame (there is no previous frame to diff against) and never enters a
// window.
package cluster

import (
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidParameter is returned for window sizes or overlaps that cannot
// produce a well-formed sliding window sequence.
var ErrInvalidParameter = errors.New("invalid window parameter")

// Window is a contiguous view on a signal. Values aliases the signal's
// backing array; callers must not modify it.
type Window struct {
	Start  int
	Values []float64
}

// End returns the exclusive end index of the window in the source signal.
func (w Window) End() int { return w.Start + len(w.Values) }

// Len returns the number of samples in the window.
func (w Window) Len() int { return len(w.Values) }

// Windows is a finite, restartable sequence of windows over one signal.
// Nothing is materialised until the sequence is ranged over.
type Windows struct {
	signal []float64
	// starts and ends of the i-th window
	bounds func(i int) (int, int)
	n      int
}

// Len returns the number of windows in the sequence.
func (ws Windows) Len() int { return ws.n }

// At returns the i-th window. It panics if i is out of range.
func (ws Windows) At(i int) Window {
	if i < 0 || i >= ws.n {
		panic(fmt.Sprintf("cluster: window index %d out of range [0,%d)", i, ws.n))
	}
	start, end := ws.bounds(i)
	return Window{Start: start, Values: ws.signal[start:end:end]}
}

// All yields (index, window) pairs in increasing start order. Every call
// starts again from the first window.
func (ws Windows) All() iter.Seq2[int, Window] {
	return func(yield func(int, Window) bool) {
		for i := 0; i < ws.n; i++ {
			if !yield(i, ws.At(i)) {
				return
			}
		}
	}
}

// Collect materialises the sequence into a slice of views.
func (ws Windows) Collect() []Window {
	out := make([]Window, 0, ws.n)
	for _, w := range ws.All() {
		out = append(out, w)
	}
	return out
}

// ValidateWindow checks a sliding window configuration.
func ValidateWindow(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: window size must be greater than 0, got %d", ErrInvalidParameter, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidParameter, size, overlap)
	}
	return nil
}

// Slide returns fixed-size windows starting at index 1 and advancing by
// size-overlap while the window fits inside the signal.
func Slide(signal []float64, size, overlap int) (Windows, error) {
	if err := ValidateWindow(size, overlap); err != nil {
		return Windows{}, err
	}
	step := size - overlap
	n := 0
	if len(signal)-size >= 1 {
		n = (len(signal)-size-1)/step + 1
	}
	return Windows{
		signal: signal,
		n:      n,
		bounds: func(i int) (int, int) {
			start := 1 + i*step
			return start, start + size
		},
	}, nil
}

// Grow returns cumulative windows [1, k) for k in [2, len(signal)), one per
// added frame. The first window holds a single sample; signals with fewer
// than 3 samples yield no windows.
func Grow(signal []float64) Windows {
	n := len(signal) - 2
	if n < 0 {
		n = 0
	}
	return Windows{
		signal: signal,
		n:      n,
		bounds: func(i int) (int, int) {
			return 1, i + 2
		},
	}
}
