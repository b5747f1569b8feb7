package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/antispoofing.motion/internal/cluster"
	"github.com/banshee-data/antispoofing.motion/internal/scoreio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs a fresh root command and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRootCmd_Version(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "motion dev (commit unknown, built unknown)\n", out)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "motion dev (commit unknown, built unknown)\n", out)
}

func TestRootCmd_NoArgsPrintsHelp(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "motion turns frame-difference signals")
	for _, sub := range []string{"diffcluster", "ldatrain", "score", "import", "time-analysis", "merge-scores", "serve"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "version")
	assert.Error(t, err)
}

func TestDiffCluster_ConfigFileAndEnvironment(t *testing.T) {
	ds := newDataset(t)

	cfgPath := filepath.Join(t.TempDir(), "motion.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("window-size: 10\n"), 0o644))

	out := filepath.Join(t.TempDir(), "features")
	_, err := execute(t, "--config", cfgPath, "diffcluster", "--manifest", ds.manifest, "--id", "1", ds.signals, out)
	require.NoError(t, err)
	assert.Len(t, readFeatures(t, out, ds.files[0].Path), 10)

	// environment overrides the file, flags override both
	t.Setenv("MOTION_OVERLAP", "5")
	_, err = execute(t, "--config", cfgPath, "diffcluster", "--manifest", ds.manifest, "--id", "1", "--force", ds.signals, out)
	require.NoError(t, err)
	assert.Len(t, readFeatures(t, out, ds.files[0].Path), 19)

	_, err = execute(t, "--config", cfgPath, "diffcluster", "--manifest", ds.manifest, "--id", "1", "--force",
		"--window-size", "20", "--overlap", "0", ds.signals, out)
	require.NoError(t, err)
	assert.Len(t, readFeatures(t, out, ds.files[0].Path), 5)
}

func TestDiffCluster_Errors(t *testing.T) {
	ds := newDataset(t)
	out := t.TempDir()

	_, err := execute(t, "diffcluster", "--manifest", ds.manifest, "--window-size", "5", "--overlap", "5", ds.signals, out)
	assert.True(t, errors.Is(err, cluster.ErrInvalidParameter), "got %v", err)

	_, err = execute(t, "diffcluster", ds.signals, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--manifest")

	_, err = execute(t, "diffcluster", "--manifest", ds.manifest, filepath.Join(out, "missing"), out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	_, err = execute(t, "diffcluster", "--manifest", ds.manifest, ds.signals)
	assert.Error(t, err)
}

func TestDiffCluster_Accumulate(t *testing.T) {
	ds := newDataset(t)
	out := t.TempDir()

	stdout, err := execute(t, "diffcluster", "--manifest", ds.manifest, "--accumulate", "--id", "1", "--id", "2", ds.signals, out)
	require.NoError(t, err)
	assert.Equal(t, "Processing 2 file(s)\n", stdout)

	// growing windows [1, k) for k in [3, signalLength)
	rows := readFeatures(t, out, ds.files[0].Path)
	assert.Len(t, rows, signalLength-3)
	assert.Len(t, rows[0], cluster.NumQuantities)
}

func TestDiffCluster_SkipsExisting(t *testing.T) {
	ds := newDataset(t)
	out := t.TempDir()

	_, err := execute(t, "diffcluster", "--manifest", ds.manifest, "--id", "1", ds.signals, out)
	require.NoError(t, err)
	first := readFeatures(t, out, ds.files[0].Path)

	_, err = execute(t, "diffcluster", "--manifest", ds.manifest, "--id", "1", "--window-size", "10", ds.signals, out)
	require.NoError(t, err)
	assert.Equal(t, first, readFeatures(t, out, ds.files[0].Path))
}

func readFeatures(t *testing.T, dir, path string) [][]float64 {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(path)+scoreio.Ext))
	require.NoError(t, err)
	defer f.Close()
	rows, err := scoreio.ReadFeatures(f)
	require.NoError(t, err)
	return rows
}
