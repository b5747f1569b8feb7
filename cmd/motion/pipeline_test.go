package main

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/banshee-data/antispoofing.motion/internal/catalog"
	"github.com/banshee-data/antispoofing.motion/internal/config"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/banshee-data/antispoofing.motion/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signalLength = 101

type dataset struct {
	signals  string
	manifest string
	files    []catalog.File
}

// newDataset writes two real and two attack signals per group. Real
// accesses move a lot more than attacks.
func newDataset(t *testing.T) dataset {
	t.Helper()
	root := t.TempDir()
	ds := dataset{
		signals:  filepath.Join(root, "signals"),
		manifest: filepath.Join(root, "manifest.csv"),
	}
	rng := rand.New(rand.NewPCG(1, 2))

	id, client := 0, 0
	supports := []string{"hand", "fixed"}
	for _, g := range catalog.Groups {
		for _, c := range []catalog.Class{catalog.Real, catalog.Attack} {
			for i := range 2 {
				id++
				client++
				f := catalog.File{
					ID:      strconv.Itoa(id),
					Path:    fmt.Sprintf("%s/%s/client%03d_session01_%d", g, c, client, i),
					Support: supports[i],
					Group:   g,
					Class:   c,
				}
				scale := 1.0
				if c == catalog.Real {
					scale = 10
				}
				writeSignal(t, filepath.Join(ds.signals, f.Path+".csv"), rng, scale)
				ds.files = append(ds.files, f)
			}
		}
	}

	m, err := catalog.NewManifest(ds.files)
	require.NoError(t, err)
	out, err := os.Create(ds.manifest)
	require.NoError(t, err)
	require.NoError(t, m.Write(out))
	require.NoError(t, out.Close())
	return ds
}

func writeSignal(t *testing.T, path string, rng *rand.Rand, scale float64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var b strings.Builder
	for range signalLength {
		fmt.Fprintf(&b, "%g\n", scale*rng.Float64())
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestPipeline(t *testing.T) {
	ds := newDataset(t)
	work := t.TempDir()
	features := filepath.Join(work, "features")
	machine := filepath.Join(work, "machine")
	scores := filepath.Join(work, "scores")
	dbPath := filepath.Join(work, "motion.db")

	out, err := execute(t, "diffcluster", "--manifest", ds.manifest, ds.signals, features)
	require.NoError(t, err)
	assert.Equal(t, "Processing 12 file(s)\n", out)
	for _, f := range ds.files {
		rows := readFeatures(t, features, f.Path)
		require.Len(t, rows, 5, f.Path)
		assert.Len(t, rows[0], 5)
	}

	out, err = execute(t, "ldatrain", "--manifest", ds.manifest, features, machine)
	require.NoError(t, err)
	assert.Contains(t, out, " -> EER @ devel set threshold: ")
	assert.Contains(t, out, " -> Devel set results:\n     * FAR : ")
	assert.Contains(t, out, " -> Test set results:\n     * FAR: ")
	assert.Contains(t, out, "     * HTER: ")
	assert.FileExists(t, filepath.Join(machine, machineFile))

	session, err := config.LoadSession(filepath.Join(machine, config.SessionFile))
	require.NoError(t, err)
	assert.Equal(t, 10, session.TrainReal)
	assert.Equal(t, 10, session.TrainAttack)
	assert.Equal(t, 5, session.Dimension)
	assert.True(t, filepath.IsAbs(session.Input))
	assert.True(t, filepath.IsAbs(session.Manifest))
	assert.Equal(t, 20, session.Analysis.GetWindowSize())
	assert.Equal(t, "grandtest", session.Analysis.GetProtocol())

	_, err = execute(t, "ldatrain", "--manifest", ds.manifest, features, machine)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--overwrite")

	// the manifest and features come from the session
	out, err = execute(t, "score", machine, scores)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Scored 12 file(s) into %s\n", scores), out)
	assert.Len(t, readLines(t, filepath.Join(scores, ds.files[0].Path+".csv")), 5)

	out, err = execute(t, "import", "--manifest", ds.manifest, "--db", dbPath, scores)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Imported 12 file(s), 12 with scores, into %s\n", dbPath), out)

	t.Run("time-analysis", func(t *testing.T) {
		out, err := execute(t, "time-analysis", "--misclassified-at", "-1", machine)
		require.NoError(t, err)
		assert.Contains(t, out, "Threshold (eer): ")
		assert.Contains(t, out, "at frame 100 ")

		table, err := os.ReadFile(filepath.Join(machine, tableFile))
		require.NoError(t, err)
		assert.Contains(t, string(table), "Time Analysis, Window *20*, Overlap *0*, Protocol *grandtest*, Support *hand+fixed*")
		assert.Contains(t, string(table), "Thresholded Averaged Analysis")
		assert.FileExists(t, filepath.Join(machine, plotFile))
		assert.FileExists(t, filepath.Join(machine, htmlFile))
		assert.FileExists(t, filepath.Join(machine, misclassifiedFile(100)))
	})

	t.Run("time-analysis past the end", func(t *testing.T) {
		dir := t.TempDir()
		_, err := execute(t, "time-analysis", "--output", dir, machine)
		require.NoError(t, err)
		assert.NoFileExists(t, filepath.Join(dir, misclassifiedFile(220)))
		assert.FileExists(t, filepath.Join(dir, tableFile))
	})

	t.Run("time-analysis from store", func(t *testing.T) {
		dir := t.TempDir()
		_, err := execute(t, "time-analysis", "--db", dbPath, "--running-average=false", "--output", dir, machine)
		require.NoError(t, err)

		table, err := os.ReadFile(filepath.Join(dir, tableFile))
		require.NoError(t, err)
		assert.Contains(t, string(table), "Averaged Analysis")
		assert.NotContains(t, string(table), "Thresholded")

		db, err := store.Open(dbPath)
		require.NoError(t, err)
		defer db.Close()
		runs, err := db.Runs(context.Background())
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.False(t, runs[0].RunningAverage)
		assert.Equal(t, 20, runs[0].WindowSize)
		assert.Equal(t, 100, runs[0].LastTime)
	})

	t.Run("time-analysis from score files", func(t *testing.T) {
		out, err := execute(t, "time-analysis", "--scores", scores, "-m", "--output", t.TempDir(), machine)
		require.NoError(t, err)
		assert.Contains(t, out, "Threshold (hter): ")
	})

	t.Run("time-analysis with conflicting sources", func(t *testing.T) {
		_, err := execute(t, "time-analysis", "--scores", scores, "--db", dbPath, machine)
		assert.Error(t, err)
	})

	t.Run("merge-scores", func(t *testing.T) {
		dir := filepath.Join(work, "merged")
		_, err := execute(t, "merge-scores", "--manifest", ds.manifest, scores, dir)
		require.NoError(t, err)
		for _, g := range catalog.Groups {
			lines := readLines(t, filepath.Join(dir, string(g)+"-5col.txt"))
			require.Len(t, lines, 4, g)
			for i, line := range lines {
				fields := strings.Fields(line)
				require.Len(t, fields, 5, line)
				assert.Equal(t, fields[0], fields[1])
				if i < 2 {
					assert.Equal(t, fields[0], fields[2])
				} else {
					assert.Equal(t, "attack", fields[2])
				}
			}
		}
	})

	t.Run("merge-scores by support", func(t *testing.T) {
		dir := filepath.Join(work, "merged-hand")
		_, err := execute(t, "merge-scores", "--manifest", ds.manifest, "-s", "hand", scores, dir)
		require.NoError(t, err)
		assert.Len(t, readLines(t, filepath.Join(dir, "test-5col.txt")), 2)
	})
}

func TestScore_MissingMachine(t *testing.T) {
	_, err := execute(t, "score", filepath.Join(t.TempDir(), "none"), t.TempDir())
	assert.Error(t, err)
}

func TestServe(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "motion.db")

	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := executeContext(t, ctx, "serve", "--db", dbPath, "--listen", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "Serving "+dbPath+" on http://127.0.0.1:")
}

func TestNewHandler(t *testing.T) {
	monitoring.SetLogger(nil)
	db, err := store.Open(filepath.Join(t.TempDir(), "motion.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h, err := newHandler(db, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// no scores yet
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/time-analysis", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
