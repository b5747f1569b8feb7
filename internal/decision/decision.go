package decision

// Decision is the outcome for one frame.
type Decision int

const (
	// Unknown means the frame carried no score.
	Unknown Decision = iota
	// Attack means the score fell below the threshold.
	Attack
	// Real means the score was at or above the threshold.
	Real
)

func (d Decision) String() string {
	switch d {
	case Attack:
		return "attack"
	case Real:
		return "real"
	default:
		return "unknown"
	}
}

// Decide thresholds a single score. Equality resolves to Real.
func Decide(s Score, threshold float64) Decision {
	v, ok := s.Value()
	if !ok {
		return Unknown
	}
	if v < threshold {
		return Attack
	}
	return Real
}

// DecideFloat thresholds a NaN-encoded score.
func DecideFloat(v, threshold float64) Decision {
	return Decide(Known(v), threshold)
}

// Instantaneous decides every frame independently.
func Instantaneous(scores []Score, threshold float64) []Decision {
	out := make([]Decision, len(scores))
	for i, s := range scores {
		out[i] = Decide(s, threshold)
	}
	return out
}

// RunningAverage decides frame k from the mean of all known scores in
// [0, k]. Frames whose own score is unknown stay Unknown; they do not
// contribute to the mean of later frames.
func RunningAverage(scores []Score, threshold float64) []Decision {
	out := make([]Decision, len(scores))
	var sum float64
	var n int
	for i, s := range scores {
		v, ok := s.Value()
		if !ok {
			out[i] = Unknown
			continue
		}
		sum += v
		n++
		out[i] = DecideFloat(sum/float64(n), threshold)
	}
	return out
}

// Votes maps decisions onto +1 (Real) and -1 (Attack) so that they can be
// fused with RunningAverage against a zero threshold.
func Votes(ds []Decision) []Score {
	out := make([]Score, len(ds))
	for i, d := range ds {
		switch d {
		case Real:
			out[i] = Known(1)
		case Attack:
			out[i] = Known(-1)
		default:
			out[i] = Missing()
		}
	}
	return out
}
