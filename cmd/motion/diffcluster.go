package main

import (
	"fmt"
	"slices"

	"github.com/banshee-data/antispoofing.motion/internal/catalog"
	"github.com/banshee-data/antispoofing.motion/internal/cluster"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/banshee-data/antispoofing.motion/internal/scoreio"
	"github.com/spf13/cobra"
)

func newDiffClusterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diffcluster <signal-dir> <output-dir>",
		Short: "Cluster frame differences into windowed 5-quantity features",
		Long: `Reads the frame-difference signal of every catalog file and writes, per
window, the minimum, maximum, mean, standard deviation and DC ratio of the
signal. Windows either slide over the signal (--window-size, --overlap) or
grow from its start one frame at a time (--accumulate).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDiffCluster(cmd, args[0], args[1])
		},
	}
	f := cmd.Flags()
	f.String("manifest", "", "catalog CSV listing the files to process (required)")
	f.StringP("protocol", "p", "", "only process files of this protocol")
	f.StringSlice("id", nil, "only process the files with these ids")
	f.IntP("window-size", "n", 20, "number of frame differences per window")
	f.IntP("overlap", "o", 0, "frames shared by consecutive windows, in [0, window-size)")
	f.Bool("accumulate", false, "use growing windows anchored at the first frame")
	f.BoolP("force", "f", false, "overwrite existing feature files")
	return cmd
}

func (a *app) runDiffCluster(cmd *cobra.Command, inputDir, outputDir string) error {
	v := a.v
	size, overlap := v.GetInt("window-size"), v.GetInt("overlap")
	accumulate := v.GetBool("accumulate")
	if !accumulate {
		if err := cluster.ValidateWindow(size, overlap); err != nil {
			return err
		}
	}
	if err := requireDir(inputDir); err != nil {
		return err
	}
	m, _, err := a.openManifest("")
	if err != nil {
		return err
	}
	files, err := m.Files(cmd.Context(), catalog.Filter{Protocol: v.GetString("protocol")})
	if err != nil {
		return err
	}
	if ids := v.GetStringSlice("id"); len(ids) > 0 {
		files = slices.DeleteFunc(files, func(f catalog.File) bool { return !slices.Contains(ids, f.ID) })
	}

	in, out := scoreio.NewTree(inputDir), scoreio.NewTree(outputDir)
	force := v.GetBool("force")
	fmt.Fprintf(cmd.OutOrStdout(), "Processing %d file(s)\n", len(files))

	written := 0
	for i, f := range files {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		if !force && out.Has(f) {
			monitoring.Debugf("Skipping %s, features exist", f.Path)
			continue
		}
		monitoring.Debugf("Loading %s [%d/%d]", f.Path, i+1, len(files))
		signal, err := in.ReadSignal(f)
		if err != nil {
			return err
		}

		var ds []cluster.Descriptor
		if accumulate {
			ds, err = cluster.Accumulate(signal)
		} else {
			ds, err = cluster.Cluster(signal, size, overlap)
		}
		if err != nil {
			return fmt.Errorf("file %s: %w", f.ID, err)
		}
		if len(ds) == 0 {
			monitoring.Logf("File %s has %d frame differences, too few for one window", f.Path, len(signal))
		}
		if err := out.WriteFeatures(f, cluster.Rows(ds)); err != nil {
			return err
		}
		written++
	}
	monitoring.Logf("Saved features of %d file(s) to %s", written, outputDir)
	return nil
}
