// Package timeanalysis measures how false rejections and false accepts of
// a frame-level anti-spoofing classifier evolve as more of each video is
// seen.
//
// Two views are computed once, when the Analyzer is built:
//
//   - Instantaneous: every frame is decided on its own score.
//   - Cumulative: every frame is decided on everything seen so far, either
//     by a running vote over thresholded decisions or by thresholding the
//     running mean of the raw scores.
//
// Frames without face detection carry no score. A real-access video with
// no score at a frame is never counted as rejected; an attack video with
// no score is counted as accepted, since the attacker benefits from the
// detector failing.
package timeanalysis

import (
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/banshee-data/antispoofing.motion/internal/cluster"
	"github.com/banshee-data/antispoofing.motion/internal/decision"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyPopulation is returned when either population has no files.
	ErrEmptyPopulation = errors.New("empty population")
	// ErrNoSuchStep is returned when a query names a time that is not in
	// the report.
	ErrNoSuchStep = errors.New("no such time step")
)

// Mode selects one of the two report views.
type Mode int

const (
	// Instantaneous decides each frame independently.
	Instantaneous Mode = iota
	// Cumulative decides each frame from the history up to it.
	Cumulative
)

func (m Mode) String() string {
	if m == Instantaneous {
		return "instantaneous"
	}
	return "cumulative"
}

// Record is one video clip with its per-frame scores.
type Record struct {
	ID     string
	Scores []decision.Score
}

// RecordsFromMap builds records from NaN-encoded score sequences, ordered
// by ID so that reports do not depend on map iteration order.
func RecordsFromMap(m map[string][]float64) []Record {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Record, len(ids))
	for i, id := range ids {
		out[i] = Record{ID: id, Scores: decision.FromFloats(m[id])}
	}
	return out
}

// Entry is the report for one time step.
type Entry struct {
	Step int // position in the score sequences
	Time int // frame (or window end) the step corresponds to

	FRR             float64 // percent of real files rejected
	FalseRejections []string
	FAR             float64 // percent of attack files accepted
	FalseAccepts    []string
	HTER            float64

	// No real (attack) file had a score at this step. An entry is only
	// dropped when both are set.
	RealNoData   bool
	AttackNoData bool
}

type options struct {
	runningAverage bool
	windowSize     int
	overlap        int
	workers        int
}

// Option configures an Analyzer.
type Option func(*options)

// WithRunningAverage selects how cumulative decisions are made. When true
// (the default) every frame is thresholded first and the decisions are
// fused by a running vote. When false the running mean of the raw scores
// is thresholded.
func WithRunningAverage(on bool) Option {
	return func(o *options) { o.runningAverage = on }
}

// WithWindow declares that each score summarises a sliding window of the
// given size and overlap, so step i is reported at frame
// i*(size-overlap)+size.
func WithWindow(size, overlap int) Option {
	return func(o *options) {
		o.windowSize = size
		o.overlap = overlap
	}
}

// WithWorkers bounds the number of goroutines used to decide files.
// Values below 1 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// Analyzer holds the instantaneous and cumulative reports for one
// threshold. It is immutable once built.
type Analyzer struct {
	threshold      float64
	runningAverage bool
	numReal        int
	numAttack      int

	reports [2]report
}

type report struct {
	entries []Entry     // sorted by Time
	byTime  map[int]int // Time -> index in entries
}

// fileDecisions holds both decision sequences for one file.
type fileDecisions struct {
	inst []decision.Decision
	cum  []decision.Decision
}

// New decides every frame of every file and folds the decisions into the
// per-step reports. Sequences are compared up to the shortest one.
func New(real, attack []Record, threshold float64, opts ...Option) (*Analyzer, error) {
	if len(real) == 0 {
		return nil, fmt.Errorf("%w: no real-access files", ErrEmptyPopulation)
	}
	if len(attack) == 0 {
		return nil, fmt.Errorf("%w: no attack files", ErrEmptyPopulation)
	}

	o := options{runningAverage: true}
	for _, opt := range opts {
		opt(&o)
	}
	timeline := func(step int) int { return step }
	if o.windowSize != 0 || o.overlap != 0 {
		if err := cluster.ValidateWindow(o.windowSize, o.overlap); err != nil {
			return nil, err
		}
		size, advance := o.windowSize, o.windowSize-o.overlap
		timeline = func(step int) int { return step*advance + size }
	}

	a := &Analyzer{
		threshold:      threshold,
		runningAverage: o.runningAverage,
		numReal:        len(real),
		numAttack:      len(attack),
	}

	realDec := a.decideAll(real, o.workers)
	attackDec := a.decideAll(attack, o.workers)

	steps := minLength(real, attack)
	monitoring.Logf("time analysis: %d real, %d attack files, %d common steps, threshold %.4e",
		len(real), len(attack), steps, threshold)

	realIDs, attackIDs := ids(real), ids(attack)
	a.reports[Instantaneous] = fold(steps, timeline,
		realIDs, pick(realDec, Instantaneous), attackIDs, pick(attackDec, Instantaneous))
	a.reports[Cumulative] = fold(steps, timeline,
		realIDs, pick(realDec, Cumulative), attackIDs, pick(attackDec, Cumulative))
	return a, nil
}

// decideAll runs the per-file pass concurrently. Results are stored by
// file position, so the fold that follows sees them in input order.
func (a *Analyzer) decideAll(files []Record, workers int) []fileDecisions {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]fileDecisions, len(files))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range files {
		g.Go(func() error {
			monitoring.Debugf("thresholding file %s [%d/%d]", files[i].ID, i+1, len(files))
			out[i] = a.decideFile(files[i].Scores)
			return nil
		})
	}
	_ = g.Wait() // workers never fail
	return out
}

func (a *Analyzer) decideFile(scores []decision.Score) fileDecisions {
	inst := decision.Instantaneous(scores, a.threshold)
	var cum []decision.Decision
	if a.runningAverage {
		cum = decision.RunningAverage(decision.Votes(inst), 0)
	} else {
		cum = decision.RunningAverage(scores, a.threshold)
	}
	return fileDecisions{inst: inst, cum: cum}
}

func fold(steps int, timeline func(int) int,
	realIDs []string, real [][]decision.Decision,
	attackIDs []string, attack [][]decision.Decision) report {

	r := report{byTime: make(map[int]int)}
	for k := 0; k < steps; k++ {
		e := Entry{Step: k, Time: timeline(k), FalseRejections: []string{}, FalseAccepts: []string{}}

		e.RealNoData = true
		for i, d := range real {
			switch d[k] {
			case decision.Attack:
				e.FalseRejections = append(e.FalseRejections, realIDs[i])
				e.RealNoData = false
			case decision.Real:
				e.RealNoData = false
			}
		}

		e.AttackNoData = true
		for i, d := range attack {
			if d[k] != decision.Unknown {
				e.AttackNoData = false
			}
			if d[k] != decision.Attack {
				e.FalseAccepts = append(e.FalseAccepts, attackIDs[i])
			}
		}

		if e.RealNoData && e.AttackNoData {
			continue
		}

		e.FRR = 100 * float64(len(e.FalseRejections)) / float64(len(real))
		e.FAR = 100 * float64(len(e.FalseAccepts)) / float64(len(attack))
		e.HTER = (e.FAR + e.FRR) / 2

		r.byTime[e.Time] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r
}

func pick(fd []fileDecisions, m Mode) [][]decision.Decision {
	out := make([][]decision.Decision, len(fd))
	for i, f := range fd {
		if m == Instantaneous {
			out[i] = f.inst
		} else {
			out[i] = f.cum
		}
	}
	return out
}

func ids(rs []Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func minLength(groups ...[]Record) int {
	n := -1
	for _, g := range groups {
		for _, r := range g {
			if n < 0 || len(r.Scores) < n {
				n = len(r.Scores)
			}
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

// Threshold returns the decision threshold the reports were built with.
func (a *Analyzer) Threshold() float64 { return a.threshold }

// RunningAverage reports whether cumulative decisions use a running vote.
func (a *Analyzer) RunningAverage() bool { return a.runningAverage }

// Population returns the number of real and attack files.
func (a *Analyzer) Population() (real, attack int) { return a.numReal, a.numAttack }

// Entries returns the entries of one view, sorted by time. The slice is
// a copy; the entries' file lists are shared and must not be modified.
func (a *Analyzer) Entries(m Mode) []Entry {
	src := a.reports[m].entries
	out := make([]Entry, len(src))
	copy(out, src)
	return out
}

// Entry returns the entry reported at the given time.
func (a *Analyzer) Entry(m Mode, time int) (Entry, bool) {
	r := a.reports[m]
	i, ok := r.byTime[time]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// LastTime returns the highest time present in a view.
func (a *Analyzer) LastTime(m Mode) (int, bool) {
	es := a.reports[m].entries
	if len(es) == 0 {
		return 0, false
	}
	return es[len(es)-1].Time, true
}
