package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/antispoofing.motion/internal/catalog"
	"github.com/banshee-data/antispoofing.motion/internal/config"
	"github.com/banshee-data/antispoofing.motion/internal/evaluation"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/banshee-data/antispoofing.motion/internal/report"
	"github.com/banshee-data/antispoofing.motion/internal/scoreio"
	"github.com/banshee-data/antispoofing.motion/internal/store"
	"github.com/banshee-data/antispoofing.motion/internal/timeanalysis"
	"github.com/spf13/cobra"
)

// Output files of a time analysis, written to the machine directory
// unless --output is given.
const (
	tableFile = "time-analysis-table.rst"
	plotFile  = "time-analysis.pdf"
	htmlFile  = "time-analysis.html"
)

func misclassifiedFile(at int) string {
	return fmt.Sprintf("time-analysis-misclassified-at-%d.txt", at)
}

func newTimeAnalysisCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "time-analysis <machine-dir>",
		Short: "Analyse how error rates evolve over time on the test set",
		Long: `Chooses a threshold on the devel group (EER, or min. HTER with -m), then
decides every test video frame by frame and reports, per frame, the
instantaneous error rates and the rates of a decision averaged since the
start of the video. Scores come from running the trained machine over the
session's features, from a score directory (--scores) or from a score
store (--db). A run given a store is also recorded in it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTimeAnalysis(cmd, args[0])
		},
	}
	defaults := config.EmptyAnalysisConfig()
	f := cmd.Flags()
	f.String("manifest", "", "catalog CSV (defaults to the one used for training)")
	addSelectionFlags(cmd)
	f.IntP("window-size", "w", defaults.GetWindowSize(), "window size of the scores, sets the time axis (defaults to the training session's)")
	f.IntP("overlap", "o", defaults.GetOverlap(), "window overlap of the scores (defaults to the training session's)")
	f.Bool("running-average", defaults.GetRunningAverage(), "average thresholded decisions over time; when false, average scores and threshold the mean")
	f.String("criterion", defaults.GetCriterion(), "threshold criterion on the devel set: eer or hter")
	f.BoolP("min-hter", "m", false, "shorthand for --criterion=hter")
	f.Int("misclassified-at", defaults.GetMisclassifiedAt(), "frame listed in the misclassification report, -1 for the last one")
	f.Int("workers", defaults.GetWorkers(), "goroutines deciding files, 0 for one per CPU")
	f.String("analysis-config", "", "JSON file with analysis options")
	f.String("scores", "", "read per-frame scores from this directory")
	f.String("db", "", "SQLite score store to read scores from and record the run in")
	f.String("output", "", "directory for the reports (defaults to the machine directory)")
	f.BoolP("verbose", "v", false, "also print the report tables")
	return cmd
}

func (a *app) runTimeAnalysis(cmd *cobra.Command, dir string) error {
	ctx := cmd.Context()
	md, err := loadMachineDir(dir)
	if err != nil {
		return err
	}
	cfg, err := a.analysisConfig(cmd, md.session.Analysis)
	if err != nil {
		return err
	}
	scoresDir, dbPath := a.v.GetString("scores"), a.v.GetString("db")
	if scoresDir != "" && dbPath != "" {
		return errors.New("--scores and --db are mutually exclusive")
	}

	var cat catalog.Catalog
	var src evaluation.Scorer
	var db *store.DB
	if dbPath != "" {
		if db, err = store.Open(dbPath); err != nil {
			return err
		}
		defer db.Close()
		cat, src = db, evaluation.StoreScores{DB: db}
	} else {
		m, _, err := a.openManifest(md.session.Manifest)
		if err != nil {
			return err
		}
		cat = m
		if scoresDir != "" {
			src = evaluation.TreeScores{Tree: scoreio.NewTree(scoresDir)}
		} else {
			src = evaluation.MachineScores{Machine: md.machine, Features: scoreio.NewTree(md.session.Input)}
		}
	}

	thr, err := evaluation.Calibrate(ctx, cat, src, cfg)
	if err != nil {
		return err
	}
	analyzer, err := evaluation.Analyze(ctx, cat, src, cfg, thr)
	if err != nil {
		return err
	}

	outDir := a.v.GetString("output")
	if outDir == "" {
		outDir = dir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	title := report.Title(cfg.GetWindowSize(), cfg.GetOverlap(), cfg.GetProtocol(), cfg.GetSupport())
	header := report.Header{Title: title, InputDir: dir, FeatureDir: md.session.Input}
	if err := writeFile(filepath.Join(outDir, tableFile), func(w io.Writer) error {
		return report.WriteAnalysis(w, header, analyzer)
	}); err != nil {
		return err
	}
	if a.v.GetBool("verbose") {
		if err := report.WriteAnalysis(cmd.OutOrStdout(), header, analyzer); err != nil {
			return err
		}
	}

	if err := writeMisclassified(outDir, analyzer, cfg.GetMisclassifiedAt()); err != nil {
		return err
	}

	inst, cum := analyzer.Series(timeanalysis.Instantaneous), analyzer.Series(timeanalysis.Cumulative)
	if err := report.PlotTimeAnalysis(filepath.Join(outDir, plotFile), title, inst, cum); err != nil {
		if !errors.Is(err, report.ErrNoData) {
			return err
		}
		monitoring.Logf("Nothing to plot: %v", err)
	}
	if err := writeFile(filepath.Join(outDir, htmlFile), func(w io.Writer) error {
		return report.RenderHTML(w, title, inst, cum)
	}); err != nil {
		return err
	}

	run := evaluation.NewRun(cfg, analyzer)
	if db != nil {
		if err := db.RecordRun(ctx, run); err != nil {
			return err
		}
		monitoring.Logf("Recorded run %s", run.ID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Threshold (%s): %.5e; at frame %d HTER %.2f%% instantaneous, %.2f%% averaged\n",
		run.Criterion, run.Threshold, run.LastTime, run.InstHTER, run.CumHTER)
	return nil
}

// writeMisclassified lists the misclassified files at frame at of the
// averaged view. A frame past the end of the analysis is reported and
// skipped.
func writeMisclassified(dir string, analyzer *timeanalysis.Analyzer, at int) error {
	if at == timeanalysis.LastStep {
		last, ok := analyzer.LastTime(timeanalysis.Cumulative)
		if !ok {
			monitoring.Logf("No misclassification report: the analysis is empty")
			return nil
		}
		at = last
	}
	var buf bytes.Buffer
	if err := analyzer.WriteMisclassified(&buf, timeanalysis.Cumulative, at); err != nil {
		if errors.Is(err, timeanalysis.ErrNoSuchStep) {
			monitoring.Logf("No misclassification report: %v", err)
			return nil
		}
		return err
	}
	return os.WriteFile(filepath.Join(dir, misclassifiedFile(at)), buf.Bytes(), 0o644)
}

func writeFile(path string, emit func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := emit(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
