package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/antispoofing.motion/internal/catalog"
	"github.com/banshee-data/antispoofing.motion/internal/config"
	"github.com/banshee-data/antispoofing.motion/internal/evaluation"
	"github.com/banshee-data/antispoofing.motion/internal/lda"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/banshee-data/antispoofing.motion/internal/scoreio"
	"github.com/banshee-data/antispoofing.motion/internal/version"
	"github.com/spf13/cobra"
)

func newLDATrainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ldatrain <feature-dir> <output-dir>",
		Short: "Train a linear discriminant on 5-quantity features",
		Long: `Trains a Fisher linear discriminant separating real accesses from attacks
on the train group, picks the equal error rate threshold on the devel
group and reports the error rates on the devel and test groups. The
machine and a session record are saved in the output directory.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLDATrain(cmd, args[0], args[1])
		},
	}
	f := cmd.Flags()
	f.String("manifest", "", "catalog CSV describing the database (required)")
	addSelectionFlags(cmd)
	f.IntP("window-size", "n", 20, "window size the features were clustered with")
	f.IntP("overlap", "o", 0, "window overlap the features were clustered with")
	f.BoolP("overwrite", "f", false, "write into an existing output directory")
	return cmd
}

func (a *app) runLDATrain(cmd *cobra.Command, inputDir, outputDir string) error {
	ctx := cmd.Context()
	start := time.Now()
	if err := requireDir(inputDir); err != nil {
		return err
	}
	if _, err := os.Stat(outputDir); err == nil {
		if !a.v.GetBool("overwrite") {
			return fmt.Errorf("output directory %q exists and --overwrite was not set", outputDir)
		}
	} else if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	m, manifestPath, err := a.openManifest("")
	if err != nil {
		return err
	}
	// the session records the feature geometry alongside the selection
	size, overlap := a.v.GetInt("window-size"), a.v.GetInt("overlap")
	base := &config.AnalysisConfig{WindowSize: &size, Overlap: &overlap}
	cfg, err := a.analysisConfig(cmd, base)
	if err != nil {
		return err
	}
	sel := evaluation.SelectionFrom(cfg)
	features := scoreio.NewTree(inputDir)

	monitoring.Logf("Loading non-NaN entries from %s", inputDir)
	real, err := loadRows(ctx, m, features, sel, catalog.Train, catalog.Real)
	if err != nil {
		return err
	}
	attack, err := loadRows(ctx, m, features, sel, catalog.Train, catalog.Attack)
	if err != nil {
		return err
	}
	monitoring.Logf("Training LDA on %d real and %d attack samples", len(real), len(attack))
	machine, err := lda.Train(real, attack)
	if err != nil {
		return err
	}

	src := evaluation.MachineScores{Machine: machine, Features: features}
	devel, err := evaluation.LoadPopulation(ctx, m, src, sel, catalog.Devel)
	if err != nil {
		return err
	}
	thr, err := devel.Threshold(config.CriterionEER)
	if err != nil {
		return fmt.Errorf("failed to calibrate on devel set: %w", err)
	}
	test, err := evaluation.LoadPopulation(ctx, m, src, sel, catalog.Test)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, " -> EER @ devel set threshold: %.5e\n", thr)
	writeRates(w, "Devel", "FAR ", "FRR ", devel.RatesAt(thr))
	writeRates(w, "Test", "FAR", "FRR", test.RatesAt(thr))

	if err := machine.SaveFile(filepath.Join(outputDir, machineFile)); err != nil {
		return err
	}

	absInput, err := filepath.Abs(inputDir)
	if err != nil {
		return err
	}
	absManifest, err := filepath.Abs(manifestPath)
	if err != nil {
		return err
	}
	host, _ := os.Hostname()
	protocol, support := cfg.GetProtocol(), cfg.GetSupport()
	session := &config.Session{
		Started:     start,
		Host:        host,
		CommandLine: os.Args,
		Version:     version.Version,
		Input:       absInput,
		Manifest:    absManifest,
		TrainReal:   len(real),
		TrainAttack: len(attack),
		Dimension:   len(machine.Weights),
		Analysis: &config.AnalysisConfig{
			Protocol:   &protocol,
			Support:    &support,
			WindowSize: cfg.WindowSize,
			Overlap:    cfg.Overlap,
		},
	}
	session.Finish(time.Now())
	if err := session.Save(filepath.Join(outputDir, config.SessionFile)); err != nil {
		return err
	}
	monitoring.Logf("Saved machine and session to %s (took %s)", outputDir, session.Duration)
	return nil
}

// loadRows concatenates the feature rows of the selected files, dropping
// rows with missing values.
func loadRows(ctx context.Context, cat catalog.Catalog, tree scoreio.Tree, sel evaluation.Selection, g catalog.Group, c catalog.Class) ([][]float64, error) {
	files, err := cat.Files(ctx, sel.Filter(g, c))
	if err != nil {
		return nil, err
	}
	var rows [][]float64
	for _, f := range files {
		fr, err := tree.ReadFeatures(f)
		if err != nil {
			return nil, err
		}
		rows = append(rows, scoreio.DropNaNRows(fr)...)
	}
	return rows, nil
}

func writeRates(w io.Writer, group, farLabel, frrLabel string, r evaluation.Rates) {
	fmt.Fprintf(w, " -> %s set results:\n", group)
	fmt.Fprintf(w, "     * %s: %.3f%% (%d/%d)\n", farLabel, 100*r.FAR, r.FalseAccepts, r.Negatives)
	fmt.Fprintf(w, "     * %s: %.3f%% (%d/%d)\n", frrLabel, 100*r.FRR, r.FalseRejections, r.Positives)
	fmt.Fprintf(w, "     * HTER: %.3f%%\n", 100*r.HTER)
}
