package store

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/antispoofing.motion/internal/catalog"
	"github.com/banshee-data/antispoofing.motion/internal/decision"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(nil)
	db, err := Open(filepath.Join(t.TempDir(), "motion.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var testFiles = []catalog.File{
	{ID: "10", Path: "devel/real/client001_a", Support: "hand", Group: catalog.Devel, Class: catalog.Real},
	{ID: "2", Path: "devel/attack/fixed/attack_print_client001_b", Protocol: "print", Support: "fixed", Group: catalog.Devel, Class: catalog.Attack},
	{ID: "3", Path: "test/real/client002_a", Support: "fixed", Group: catalog.Test, Class: catalog.Real},
	{ID: "4", Path: "test/attack/hand/attack_mobile_client002_b", Protocol: "grandtest", Support: "hand", Group: catalog.Test, Class: catalog.Attack},
}

func putFiles(t *testing.T, db *DB) {
	t.Helper()
	for _, f := range testFiles {
		require.NoError(t, db.PutFile(context.Background(), f))
	}
}

func TestOpen_MigratesToLatest(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// reopening an up-to-date database is a no-op
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestFiles_MatchesCatalogFilter(t *testing.T) {
	db := openTestDB(t)
	putFiles(t, db)
	ctx := context.Background()

	manifest, err := catalog.NewManifest(testFiles)
	require.NoError(t, err)

	filters := []catalog.Filter{
		{},
		{Protocol: "grandtest"},
		{Supports: []string{"hand"}},
		{Groups: []catalog.Group{catalog.Test}, Classes: []catalog.Class{catalog.Attack}},
		{Protocol: "print", Supports: []string{"hand", "fixed"}, Groups: []catalog.Group{catalog.Devel}},
	}
	for _, flt := range filters {
		want, err := manifest.Files(ctx, flt)
		require.NoError(t, err)
		got, err := db.Files(ctx, flt)
		require.NoError(t, err)
		assert.Equal(t, want, got, "filter %+v", flt)
	}
}

func TestPutFile_UpdateKeepsOrder(t *testing.T) {
	db := openTestDB(t)
	putFiles(t, db)
	ctx := context.Background()

	updated := testFiles[0]
	updated.Support = "fixed"
	require.NoError(t, db.PutFile(ctx, updated))

	files, err := db.Files(ctx, catalog.Filter{})
	require.NoError(t, err)
	require.Len(t, files, len(testFiles))
	assert.Equal(t, "10", files[0].ID)
	assert.Equal(t, "fixed", files[0].Support)
}

func TestScores_RoundTripWithMissing(t *testing.T) {
	db := openTestDB(t)
	putFiles(t, db)
	ctx := context.Background()

	scores := decision.FromFloats([]float64{0.25, math.NaN(), -1.5, math.NaN()})
	require.NoError(t, db.PutScores(ctx, "10", scores))

	got, err := db.Scores(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, scores, got)

	// replacing shortens the sequence
	require.NoError(t, db.PutScores(ctx, "10", decision.FromFloats([]float64{1})))
	got, err = db.Scores(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, []decision.Score{decision.Known(1)}, got)

	got, err = db.Scores(ctx, "3")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScores_UnknownFile(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.PutScores(ctx, "nope", decision.FromFloats([]float64{1}))
	assert.True(t, errors.Is(err, ErrUnknownFile))

	_, err = db.Scores(ctx, "nope")
	assert.True(t, errors.Is(err, ErrUnknownFile))
}

func TestRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := &Run{
		Created:   time.Unix(1000, 0),
		Protocol:  "grandtest",
		Supports:  []string{"hand", "fixed"},
		Criterion: "eer",
		Threshold: 0.125,
		LastTime:  220,
		InstHTER:  12.5,
		CumHTER:   5,
	}
	require.NoError(t, db.RecordRun(ctx, first))
	assert.NotEmpty(t, first.ID)

	second := &Run{
		Created:        time.Unix(2000, 0),
		Criterion:      "hter",
		Threshold:      -0.5,
		RunningAverage: true,
		WindowSize:     20,
		Overlap:        10,
		LastTime:       130,
	}
	require.NoError(t, db.RecordRun(ctx, second))

	runs, err := db.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.True(t, runs[0].RunningAverage)
	assert.Equal(t, 20, runs[0].WindowSize)
	assert.Empty(t, runs[0].Supports)

	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, []string{"hand", "fixed"}, runs[1].Supports)
	assert.Equal(t, 0.125, runs[1].Threshold)
	assert.Equal(t, 12.5, runs[1].InstHTER)
	assert.Equal(t, int64(1000), runs[1].Created.Unix())

	// IDs are unique
	assert.Error(t, db.RecordRun(ctx, &Run{ID: first.ID, Criterion: "eer"}))
}

func TestAttachAdminRoutes_Backup(t *testing.T) {
	db := openTestDB(t)
	putFiles(t, db)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))
}
