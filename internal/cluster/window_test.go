package cluster

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestSlide_InvalidParameters(t *testing.T) {
	testCases := []struct {
		name          string
		size, overlap int
	}{
		{"zero_size", 0, 0},
		{"negative_size", -3, 0},
		{"negative_overlap", 4, -1},
		{"overlap_equals_size", 4, 4},
		{"overlap_exceeds_size", 4, 9},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Slide(seq(10), tc.size, tc.overlap)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidParameter), "got %v", err)
		})
	}
}

func TestSlide_NonOverlappingCoversSignal(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 7} {
		for length := size + 1; length < 40; length++ {
			ws, err := Slide(seq(length), size, 0)
			require.NoError(t, err)
			require.Equal(t, (length-1)/size, ws.Len(), "size=%d len=%d", size, length)

			next := 1
			for i, w := range ws.All() {
				assert.Equal(t, next, w.Start, "window %d", i)
				assert.Len(t, w.Values, size)
				assert.Equal(t, float64(w.Start), w.Values[0])
				next = w.End()
			}
		}
	}
}

func TestSlide_Overlap(t *testing.T) {
	ws, err := Slide(seq(11), 4, 2)
	require.NoError(t, err)

	// python: range(1, 11-4+1, 2) -> 1, 3, 5, 7
	got := []int{}
	for _, w := range ws.All() {
		got = append(got, w.Start)
	}
	assert.Equal(t, []int{1, 3, 5, 7}, got)
	assert.Equal(t, []float64{7, 8, 9, 10}, ws.At(3).Values)
}

func TestSlide_SignalTooShort(t *testing.T) {
	ws, err := Slide(seq(5), 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, ws.Len())
	assert.Empty(t, ws.Collect())
}

func TestSlide_Restartable(t *testing.T) {
	ws, err := Slide(seq(20), 3, 1)
	require.NoError(t, err)
	first := ws.Collect()
	second := ws.Collect()
	assert.Equal(t, first, second)

	// early break leaves the sequence intact
	for range ws.All() {
		break
	}
	assert.Equal(t, first, ws.Collect())
}

func TestGrow(t *testing.T) {
	testCases := []struct {
		name   string
		length int
		want   int
	}{
		{"empty", 0, 0},
		{"single", 1, 0},
		{"two", 2, 0},
		{"three", 3, 1},
		{"ten", 10, 8},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ws := Grow(seq(tc.length))
			require.Equal(t, tc.want, ws.Len())
			for i, w := range ws.All() {
				assert.Equal(t, 1, w.Start)
				assert.Equal(t, i+1, w.Len())
				assert.Equal(t, i+2, w.End())
			}
		})
	}
}

func TestWindows_AtOutOfRangePanics(t *testing.T) {
	ws := Grow(seq(4))
	assert.Panics(t, func() { ws.At(2) })
	assert.Panics(t, func() { ws.At(-1) })
}
