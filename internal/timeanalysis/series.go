package timeanalysis

// Series is one view flattened for plotting.
type Series struct {
	Time []float64
	FAR  []float64
	FRR  []float64
	HTER []float64
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Time) }

// Series returns the error rates of one view against time.
func (a *Analyzer) Series(m Mode) Series {
	es := a.reports[m].entries
	s := Series{
		Time: make([]float64, len(es)),
		FAR:  make([]float64, len(es)),
		FRR:  make([]float64, len(es)),
		HTER: make([]float64, len(es)),
	}
	for i, e := range es {
		s.Time[i] = float64(e.Time)
		s.FAR[i] = e.FAR
		s.FRR[i] = e.FRR
		s.HTER[i] = e.HTER
	}
	return s
}

// Summary is the last entry of each view, used when recording a run.
type Summary struct {
	Threshold     float64
	Instantaneous Entry
	Cumulative    Entry
}

// Summary returns the final entries. Views with no entries leave the
// corresponding field zero.
func (a *Analyzer) Summary() Summary {
	s := Summary{Threshold: a.threshold}
	if es := a.reports[Instantaneous].entries; len(es) > 0 {
		s.Instantaneous = es[len(es)-1]
	}
	if es := a.reports[Cumulative].entries; len(es) > 0 {
		s.Cumulative = es[len(es)-1]
	}
	return s
}
