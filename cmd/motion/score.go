package main

import (
	"fmt"

	"github.com/banshee-data/antispoofing.motion/internal/evaluation"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/banshee-data/antispoofing.motion/internal/scoreio"
	"github.com/spf13/cobra"
)

func newScoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <machine-dir> <output-dir>",
		Short: "Produce per-frame score files with a trained machine",
		Long: `Runs the feature vectors of every selected catalog file through the
machine saved by ldatrain and writes one score file per video. The feature
directory, manifest and selection default to what the training session
recorded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScore(cmd, args[0], args[1])
		},
	}
	f := cmd.Flags()
	f.String("manifest", "", "catalog CSV (defaults to the one used for training)")
	f.String("features", "", "feature directory (defaults to the one used for training)")
	addSelectionFlags(cmd)
	return cmd
}

func (a *app) runScore(cmd *cobra.Command, dir, outputDir string) error {
	ctx := cmd.Context()
	md, err := loadMachineDir(dir)
	if err != nil {
		return err
	}
	m, _, err := a.openManifest(md.session.Manifest)
	if err != nil {
		return err
	}
	cfg, err := a.analysisConfig(cmd, md.session.Analysis)
	if err != nil {
		return err
	}
	featureDir := md.session.Input
	if p := a.v.GetString("features"); p != "" {
		featureDir = p
	}

	sel := evaluation.SelectionFrom(cfg)
	files, err := m.Files(ctx, sel.AllFiles())
	if err != nil {
		return err
	}
	src := evaluation.MachineScores{Machine: md.machine, Features: scoreio.NewTree(featureDir)}
	out := scoreio.NewTree(outputDir)
	for i, f := range files {
		monitoring.Debugf("Processing file %s [%d/%d]", f.Path, i+1, len(files))
		scores, err := src.Scores(ctx, f)
		if err != nil {
			return err
		}
		if err := out.WriteScores(f, scores); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scored %d file(s) into %s\n", len(files), outputDir)
	return nil
}
