// Package evaluation loads per-file scores for a catalog selection and
// runs threshold calibration and time analysis over them.
package evaluation

import (
	"context"
	"fmt"

	"github.com/banshee-data/antispoofing.motion/internal/catalog"
	"github.com/banshee-data/antispoofing.motion/internal/config"
	"github.com/banshee-data/antispoofing.motion/internal/decision"
	"github.com/banshee-data/antispoofing.motion/internal/lda"
	"github.com/banshee-data/antispoofing.motion/internal/measure"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/banshee-data/antispoofing.motion/internal/scoreio"
	"github.com/banshee-data/antispoofing.motion/internal/store"
	"github.com/banshee-data/antispoofing.motion/internal/timeanalysis"
)

// Scorer returns the per-frame scores of one file.
type Scorer interface {
	Scores(ctx context.Context, f catalog.File) ([]decision.Score, error)
}

// TreeScores reads score files from a data tree.
type TreeScores struct {
	Tree scoreio.Tree
}

func (s TreeScores) Scores(_ context.Context, f catalog.File) ([]decision.Score, error) {
	return s.Tree.ReadScores(f)
}

// MachineScores runs a trained machine over feature files.
type MachineScores struct {
	Machine  *lda.Machine
	Features scoreio.Tree
}

func (s MachineScores) Scores(_ context.Context, f catalog.File) ([]decision.Score, error) {
	rows, err := s.Features.ReadFeatures(f)
	if err != nil {
		return nil, err
	}
	scores, err := s.Machine.ScoreAll(rows)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", f.ID, err)
	}
	return scores, nil
}

// StoreScores reads scores imported into a score store.
type StoreScores struct {
	DB *store.DB
}

func (s StoreScores) Scores(ctx context.Context, f catalog.File) ([]decision.Score, error) {
	return s.DB.Scores(ctx, f.ID)
}

// Selection is the protocol and supports an evaluation runs on.
type Selection struct {
	Protocol string
	Supports []string
}

// SelectionFrom reads the selection out of an analysis config.
func SelectionFrom(cfg *config.AnalysisConfig) Selection {
	return Selection{
		Protocol: cfg.GetProtocol(),
		Supports: catalog.ParseSupports(cfg.GetSupport()),
	}
}

// AllFiles matches every group and class of the selection.
func (s Selection) AllFiles() catalog.Filter {
	return catalog.Filter{Protocol: s.Protocol, Supports: s.Supports}
}

// Filter narrows the selection to one group and class.
func (s Selection) Filter(g catalog.Group, c catalog.Class) catalog.Filter {
	return catalog.Filter{
		Protocol: s.Protocol,
		Supports: s.Supports,
		Groups:   []catalog.Group{g},
		Classes:  []catalog.Class{c},
	}
}

// Records loads the scores of every selected file of group g and class c,
// in catalog order. Records are keyed by file path.
func Records(ctx context.Context, cat catalog.Catalog, src Scorer, sel Selection, g catalog.Group, c catalog.Class) ([]timeanalysis.Record, error) {
	files, err := cat.Files(ctx, sel.Filter(g, c))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s %s files: %w", g, c, err)
	}
	out := make([]timeanalysis.Record, 0, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		monitoring.Debugf("Loading %s scores of %s [%d/%d]", g, f.Path, i+1, len(files))
		scores, err := src.Scores(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("failed to load scores of %s: %w", f.ID, err)
		}
		out = append(out, timeanalysis.Record{ID: f.Path, Scores: scores})
	}
	return out, nil
}

// Population holds the flattened known scores of one group.
type Population struct {
	Negatives []float64 // attacks
	Positives []float64 // real accesses
}

// LoadPopulation loads and flattens the known scores of group g.
func LoadPopulation(ctx context.Context, cat catalog.Catalog, src Scorer, sel Selection, g catalog.Group) (Population, error) {
	var p Population
	for _, c := range []catalog.Class{catalog.Real, catalog.Attack} {
		rs, err := Records(ctx, cat, src, sel, g, c)
		if err != nil {
			return Population{}, err
		}
		var vs []float64
		for _, r := range rs {
			vs = append(vs, decision.KnownValues(r.Scores)...)
		}
		if c == catalog.Real {
			p.Positives = vs
		} else {
			p.Negatives = vs
		}
	}
	return p, nil
}

// Threshold picks the operating threshold on p with the given criterion.
func (p Population) Threshold(criterion string) (float64, error) {
	switch criterion {
	case config.CriterionEER:
		return measure.EERThreshold(p.Negatives, p.Positives)
	case config.CriterionHTER:
		return measure.MinHTERThreshold(p.Negatives, p.Positives)
	default:
		return 0, fmt.Errorf("unknown threshold criterion %q", criterion)
	}
}

// Rates are the error rates of a population at a threshold, with the
// counts behind them.
type Rates struct {
	FAR, FRR, HTER  float64 // fractions
	FalseAccepts    int
	Negatives       int
	FalseRejections int
	Positives       int
}

// RatesAt evaluates p at threshold.
func (p Population) RatesAt(threshold float64) Rates {
	far, frr := measure.FARFRR(p.Negatives, p.Positives, threshold)
	r := Rates{
		FAR:       far,
		FRR:       frr,
		HTER:      (far + frr) / 2,
		Negatives: len(p.Negatives),
		Positives: len(p.Positives),
	}
	for _, ok := range measure.CorrectlyClassifiedNegatives(p.Negatives, threshold) {
		if !ok {
			r.FalseAccepts++
		}
	}
	for _, ok := range measure.CorrectlyClassifiedPositives(p.Positives, threshold) {
		if !ok {
			r.FalseRejections++
		}
	}
	return r
}

// Calibrate chooses the threshold on the devel group using the config's
// criterion.
func Calibrate(ctx context.Context, cat catalog.Catalog, src Scorer, cfg *config.AnalysisConfig) (float64, error) {
	p, err := LoadPopulation(ctx, cat, src, SelectionFrom(cfg), catalog.Devel)
	if err != nil {
		return 0, err
	}
	thr, err := p.Threshold(cfg.GetCriterion())
	if err != nil {
		return 0, fmt.Errorf("failed to calibrate on devel set: %w", err)
	}
	monitoring.Logf("Threshold (%s) on devel set: %.5e", cfg.GetCriterion(), thr)
	return thr, nil
}

// Analyze runs the time analysis on the test group at threshold.
func Analyze(ctx context.Context, cat catalog.Catalog, src Scorer, cfg *config.AnalysisConfig, threshold float64) (*timeanalysis.Analyzer, error) {
	sel := SelectionFrom(cfg)
	real, err := Records(ctx, cat, src, sel, catalog.Test, catalog.Real)
	if err != nil {
		return nil, err
	}
	attack, err := Records(ctx, cat, src, sel, catalog.Test, catalog.Attack)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("Analysing %d real and %d attack test files", len(real), len(attack))

	opts := []timeanalysis.Option{
		timeanalysis.WithRunningAverage(cfg.GetRunningAverage()),
		timeanalysis.WithWorkers(cfg.GetWorkers()),
	}
	if size := cfg.GetWindowSize(); size > 0 {
		opts = append(opts, timeanalysis.WithWindow(size, cfg.GetOverlap()))
	}
	return timeanalysis.New(real, attack, threshold, opts...)
}

// NewRun summarises an analysis for the run history.
func NewRun(cfg *config.AnalysisConfig, a *timeanalysis.Analyzer) *store.Run {
	s := a.Summary()
	last, _ := a.LastTime(timeanalysis.Cumulative)
	return &store.Run{
		Protocol:       cfg.GetProtocol(),
		Supports:       catalog.ParseSupports(cfg.GetSupport()),
		Criterion:      cfg.GetCriterion(),
		Threshold:      s.Threshold,
		RunningAverage: a.RunningAverage(),
		WindowSize:     cfg.GetWindowSize(),
		Overlap:        cfg.GetOverlap(),
		LastTime:       last,
		InstFAR:        s.Instantaneous.FAR,
		InstFRR:        s.Instantaneous.FRR,
		InstHTER:       s.Instantaneous.HTER,
		CumFAR:         s.Cumulative.FAR,
		CumFRR:         s.Cumulative.FRR,
		CumHTER:        s.Cumulative.HTER,
	}
}
