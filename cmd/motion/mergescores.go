package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/antispoofing.motion/internal/catalog"
	"github.com/banshee-data/antispoofing.motion/internal/evaluation"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/banshee-data/antispoofing.motion/internal/scoreio"
	"github.com/spf13/cobra"
)

func newMergeScoresCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge-scores <scores-dir> <output-dir>",
		Short: "Average per-frame scores into 5-column files per group",
		Long: `Writes <group>-5col.txt for the train, devel and test groups. Every line
describes one video: its client id twice, the client id again or "attack",
the file path and the mean of its first --average scores.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMergeScores(cmd, args[0], args[1])
		},
	}
	f := cmd.Flags()
	f.String("manifest", "", "catalog CSV describing the database (required)")
	addSelectionFlags(cmd)
	f.IntP("average", "n", 11, "number of leading scores averaged per file, 0 for all")
	return cmd
}

func (a *app) runMergeScores(cmd *cobra.Command, scoresDir, outputDir string) error {
	if err := requireDir(scoresDir); err != nil {
		return err
	}
	m, _, err := a.openManifest("")
	if err != nil {
		return err
	}
	cfg, err := a.analysisConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	sel := evaluation.SelectionFrom(cfg)
	tree := scoreio.NewTree(scoresDir)
	for _, g := range catalog.Groups {
		monitoring.Logf("Processing '%s' group...", g)
		var entries []scoreio.FiveColumnEntry
		for _, c := range []catalog.Class{catalog.Real, catalog.Attack} {
			files, err := m.Files(cmd.Context(), sel.Filter(g, c))
			if err != nil {
				return err
			}
			for _, f := range files {
				e, err := fiveColumnEntry(tree, f, cfg.GetAverage())
				if err != nil {
					return err
				}
				entries = append(entries, e)
			}
		}
		if err := writeFiveColumnFile(filepath.Join(outputDir, string(g)+"-5col.txt"), entries); err != nil {
			return err
		}
	}
	return nil
}

func fiveColumnEntry(tree scoreio.Tree, f catalog.File, n int) (scoreio.FiveColumnEntry, error) {
	client, err := f.ClientID()
	if err != nil {
		return scoreio.FiveColumnEntry{}, err
	}
	scores, err := tree.ReadScores(f)
	if err != nil {
		return scoreio.FiveColumnEntry{}, err
	}
	avg, ok := scoreio.AverageFirst(scores, n)
	if !ok {
		monitoring.Logf("File %s has no valid score among its first %d", f.Path, n)
	}
	return scoreio.FiveColumnEntry{
		ClientID: client,
		Attack:   f.Class == catalog.Attack,
		Path:     f.Path,
		Score:    avg,
	}, nil
}

func writeFiveColumnFile(path string, entries []scoreio.FiveColumnEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := scoreio.WriteFiveColumn(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
