package lda

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/banshee-data/antispoofing.motion/internal/decision"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Machine projects a normalised feature vector onto the discriminant
// direction. Real accesses score higher than attacks.
type Machine struct {
	Norm    Norm      `json:"norm"`
	Weights []float64 `json:"weights"`
}

// Train fits a Fisher discriminant separating real from attack samples.
// Samples are normalised first; the normalisation is kept in the machine.
func Train(real, attack [][]float64) (*Machine, error) {
	norm, err := ComputeNorm(real, attack)
	if err != nil {
		return nil, err
	}
	r, err := norm.ApplyAll(real)
	if err != nil {
		return nil, err
	}
	a, err := norm.ApplyAll(attack)
	if err != nil {
		return nil, err
	}
	d := len(norm.Mean)

	muR, sR := scatter(r, d)
	muA, sA := scatter(a, d)

	sw := mat.NewSymDense(d, nil)
	sw.AddSym(sR, sA)

	diff := mat.NewVecDense(d, nil)
	diff.SubVec(mat.NewVecDense(d, muR), mat.NewVecDense(d, muA))

	var w mat.VecDense
	if err := w.SolveVec(sw, diff); err != nil {
		// singular within-class scatter; regularise and retry
		ridge := 1e-6 * math.Max(mat.Trace(sw)/float64(d), 1)
		for i := 0; i < d; i++ {
			sw.SetSym(i, i, sw.At(i, i)+ridge)
		}
		if err := w.SolveVec(sw, diff); err != nil {
			return nil, fmt.Errorf("failed to solve discriminant: %w", err)
		}
	}

	weights := mat.Col(nil, 0, &w)
	if nrm := floats.Norm(weights, 2); nrm > 0 {
		floats.Scale(1/nrm, weights)
	}
	if floats.Dot(weights, muR) < floats.Dot(weights, muA) {
		floats.Scale(-1, weights)
	}
	return &Machine{Norm: norm, Weights: weights}, nil
}

// scatter returns the column means and the scatter matrix (unnormalised
// covariance) of rows.
func scatter(rows [][]float64, d int) ([]float64, *mat.SymDense) {
	data := mat.NewDense(len(rows), d, nil)
	for i, row := range rows {
		data.SetRow(i, row)
	}
	mu := make([]float64, d)
	for j := range mu {
		mu[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}
	s := mat.NewSymDense(d, nil)
	if len(rows) > 1 {
		stat.CovarianceMatrix(s, data, nil)
		s.ScaleSym(float64(len(rows)-1), s)
	}
	return mu, s
}

// Score projects one feature vector. Vectors containing NaN, such as
// frames without face detection, have no score.
func (m *Machine) Score(x []float64) (decision.Score, error) {
	if len(x) != len(m.Weights) {
		return decision.Missing(), fmt.Errorf("%w: got %d values, want %d", ErrLengthMismatch, len(x), len(m.Weights))
	}
	if floats.HasNaN(x) {
		return decision.Missing(), nil
	}
	z, err := m.Norm.Apply(x)
	if err != nil {
		return decision.Missing(), err
	}
	return decision.Known(floats.Dot(z, m.Weights)), nil
}

// ScoreAll scores every row.
func (m *Machine) ScoreAll(rows [][]float64) ([]decision.Score, error) {
	out := make([]decision.Score, len(rows))
	for i, row := range rows {
		var err error
		if out[i], err = m.Score(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return out, nil
}

// Save writes the machine as JSON.
func (m *Machine) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// Load reads a machine written by Save.
func Load(r io.Reader) (*Machine, error) {
	var m Machine
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode machine: %w", err)
	}
	if len(m.Weights) == 0 || len(m.Norm.Mean) != len(m.Weights) || len(m.Norm.Std) != len(m.Weights) {
		return nil, fmt.Errorf("%w: inconsistent machine dimensions", ErrLengthMismatch)
	}
	return &m, nil
}

// SaveFile writes the machine to path.
func (m *Machine) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a machine from path.
func LoadFile(path string) (*Machine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
