package main

import (
	"fmt"

	"github.com/banshee-data/antispoofing.motion/internal/catalog"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/banshee-data/antispoofing.motion/internal/scoreio"
	"github.com/banshee-data/antispoofing.motion/internal/store"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <scores-dir>",
		Short: "Load a catalog and its score files into a score store",
		Long: `Registers every manifest file in the SQLite score store and loads the
score file of each one found under the scores directory. Files without a
score file are registered but keep no scores.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImport(cmd, args[0])
		},
	}
	f := cmd.Flags()
	f.String("manifest", "", "catalog CSV to import (required)")
	f.String("db", "", "path of the SQLite score store, created if missing (required)")
	return cmd
}

func (a *app) runImport(cmd *cobra.Command, scoresDir string) error {
	ctx := cmd.Context()
	if err := requireDir(scoresDir); err != nil {
		return err
	}
	dbPath := a.v.GetString("db")
	if dbPath == "" {
		return fmt.Errorf("no score store given (use --db)")
	}
	m, _, err := a.openManifest("")
	if err != nil {
		return err
	}
	files, err := m.Files(ctx, catalog.Filter{})
	if err != nil {
		return err
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	tree := scoreio.NewTree(scoresDir)
	loaded := 0
	for i, f := range files {
		if err := db.PutFile(ctx, f); err != nil {
			return err
		}
		if !tree.Has(f) {
			monitoring.Debugf("No scores for %s", f.Path)
			continue
		}
		monitoring.Debugf("Importing %s [%d/%d]", f.Path, i+1, len(files))
		scores, err := tree.ReadScores(f)
		if err != nil {
			return err
		}
		if err := db.PutScores(ctx, f.ID, scores); err != nil {
			return err
		}
		loaded++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d file(s), %d with scores, into %s\n", len(files), loaded, dbPath)
	return nil
}
