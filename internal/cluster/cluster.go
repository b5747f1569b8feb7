package cluster

import "fmt"

// Cluster computes one descriptor per sliding window of the signal.
func Cluster(signal []float64, size, overlap int) ([]Descriptor, error) {
	ws, err := Slide(signal, size, overlap)
	if err != nil {
		return nil, err
	}
	return extractAll(ws, 0)
}

// Accumulate computes one descriptor per cumulative window of the signal.
// The first cumulative window holds a single sample and has no unbiased
// standard deviation, so output starts with the two-sample window [1, 3).
func Accumulate(signal []float64) ([]Descriptor, error) {
	return extractAll(Grow(signal), 1)
}

func extractAll(ws Windows, skip int) ([]Descriptor, error) {
	if ws.Len() <= skip {
		return nil, nil
	}
	out := make([]Descriptor, 0, ws.Len()-skip)
	for i, w := range ws.All() {
		if i < skip {
			continue
		}
		d, err := Extract(w)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Rows flattens descriptors into feature rows.
func Rows(ds []Descriptor) [][]float64 {
	rows := make([][]float64, len(ds))
	for i, d := range ds {
		rows[i] = d.Vector()
	}
	return rows
}
