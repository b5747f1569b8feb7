// Package scoreio reads and writes the text formats exchanged between the
// pipeline stages: one-column score and signal files, feature matrices and
// five-column score lists.
package scoreio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/antispoofing.motion/internal/decision"
)

// ReadScores reads one value per line from the first comma-separated
// column. Blank lines and lines starting with '#' are skipped. "nan" marks
// a frame without a score.
func ReadScores(r io.Reader) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		field, _, _ := strings.Cut(text, ",")
		v, err := parseFloat(field)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadSignal reads a per-frame difference signal. The format is the score
// format; index 0 is the degenerate first frame.
func ReadSignal(r io.Reader) ([]float64, error) { return ReadScores(r) }

// ReadFeatures reads a matrix of comma-separated floats. Every row must
// have the same number of columns.
func ReadFeatures(r io.Reader) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var out [][]float64
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		row := make([]float64, len(rec))
		for i, field := range rec {
			if row[i], err = parseFloat(field); err != nil {
				line, col := cr.FieldPos(i)
				return nil, fmt.Errorf("line %d, column %d: %w", line, col, err)
			}
		}
		out = append(out, row)
	}
}

// DropNaNRows removes rows containing a non-finite value. Frames where
// face detection failed produce such rows.
func DropNaNRows(rows [][]float64) [][]float64 {
	out := make([][]float64, 0, len(rows))
rows:
	for _, row := range rows {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue rows
			}
		}
		out = append(out, row)
	}
	return out
}

// WriteFeatures writes rows in the format ReadFeatures reads.
func WriteFeatures(w io.Writer, rows [][]float64) error {
	cw := csv.NewWriter(w)
	rec := []string{}
	for _, row := range rows {
		rec = rec[:0]
		for _, v := range row {
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteScores writes one score per line; unknown scores become "nan".
func WriteScores(w io.Writer, scores []decision.Score) error {
	bw := bufio.NewWriter(w)
	for _, s := range scores {
		bw.WriteString(formatFloat(s.Float()))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// AverageFirst returns the mean of the known scores among the first n.
// n <= 0 uses every score. ok is false when none of them is known.
func AverageFirst(scores []decision.Score, n int) (avg float64, ok bool) {
	if n > 0 && n < len(scores) {
		scores = scores[:n]
	}
	vs := decision.KnownValues(scores)
	if len(vs) == 0 {
		return math.NaN(), false
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs)), true
}

// FiveColumnEntry is one line of a five-column score list: the claimed
// identity, the real identity (or "attack"), the file and its score.
type FiveColumnEntry struct {
	ClientID int
	Attack   bool
	Path     string
	Score    float64
}

// WriteFiveColumn writes entries as
// "<claimed> <model> <real-id|attack> <path> <score>" with the score in
// %.5e.
func WriteFiveColumn(w io.Writer, entries []FiveColumnEntry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if e.Attack {
			fmt.Fprintf(bw, "%d %d attack %s %.5e\n", e.ClientID, e.ClientID, e.Path, e.Score)
		} else {
			fmt.Fprintf(bw, "%d %d %d %s %.5e\n", e.ClientID, e.ClientID, e.ClientID, e.Path, e.Score)
		}
	}
	return bw.Flush()
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
