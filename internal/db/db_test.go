package db

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/accident.report/internal/accidents"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(id string, started time.Time) RunData {
	return RunData{
		Run: Run{
			ID:         id,
			SourcePath: "data/accidentes.csv",
			StartedAt:  started,
			Duration:   1500 * time.Millisecond,
			RawRows:    3,
			CleanRows:  3,
			CutoffYear: 2024,
			ChartDir:   "reports/accidentes/20240101_000000",
		},
		Accidents: []AccidentRecord{
			{Row: 0, Date: "2020/01/05", Class: "CHOQUE", Severity: "HERIDOS", Fields: map[string]string{"Barrio": "CENTRO"}},
			{Row: 1, Date: "", Class: "OTROS", Severity: "MUERTOS", Fields: map[string]string{}},
		},
		Monthly: []MonthlyRow{
			{Year: 2020, Month: 2, Count: 4},
			{Year: 2020, Month: 1, Count: 7},
		},
		ClassSeverity: []ClassSeverityRow{
			{Class: "OTROS", Severity: "MUERTOS", Count: 1},
			{Class: "CHOQUE", Severity: "HERIDOS", Count: 2},
		},
	}
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Running again is a no-op.
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestOpenDB_NoSchema(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)
}

func TestSaveRun_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveRun(ctx, sampleRun("run-1", started)))

	runs, err := db.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	want := sampleRun("run-1", started).Run
	if diff := cmp.Diff(want, runs[0]); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}

	monthly, err := db.MonthlyCounts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []MonthlyRow{{2020, 1, 7}, {2020, 2, 4}}, monthly)

	cells, err := db.ClassSeverityCounts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []ClassSeverityRow{{"CHOQUE", "HERIDOS", 2}, {"OTROS", "MUERTOS", 1}}, cells)

	rows, err := db.Accidents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "CENTRO", rows[0].Fields["Barrio"])
	assert.Equal(t, "", rows[1].Date)
}

func TestSaveRun_DuplicateIDRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveRun(ctx, sampleRun("run-1", started)))
	assert.Error(t, db.SaveRun(ctx, sampleRun("run-1", started)))

	monthly, err := db.MonthlyCounts(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, monthly, 2)
}

func TestLatestRunAndDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNoRuns)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveRun(ctx, sampleRun("older", base)))
	require.NoError(t, db.SaveRun(ctx, sampleRun("newer", base.Add(time.Hour))))

	latest, err := db.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newer", latest.ID)

	require.NoError(t, db.DeleteRun(ctx, "newer"))
	assert.Error(t, db.DeleteRun(ctx, "newer"))

	rows, err := db.Accidents(ctx, "newer")
	require.NoError(t, err)
	assert.Empty(t, rows)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, TableStats{Name: "report_runs", Rows: 1}, stats.Tables[0])
}

func TestAttachAdminRoutes_AllEndpoints(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	// Routes may answer 403 to non-local callers, but must be registered.
	for _, endpoint := range []string{"/debug/db-stats", "/debug/backup", "/debug/tailsql/"} {
		t.Run(endpoint, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, endpoint, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			assert.NotEqual(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestAttachAdminRoutes_DBStats(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/db-stats", nil)
	req.RemoteAddr = "127.0.0.1:4321"
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code == http.StatusOK {
		var stats DatabaseStats
		require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
		assert.Len(t, stats.Tables, len(statsTables))
	}
}

func TestRowsFrom(t *testing.T) {
	d, err := accidents.FromRecords(
		[]string{accidents.ColCleanDate, accidents.ColCleanClass, accidents.ColCleanSeverity, "Barrio"},
		[][]string{
			{"2020/01/05", "CHOQUE", "HERIDOS", "CENTRO"},
			{"NaN", "OTROS", "MUERTOS", ""},
		},
		nil,
	)
	require.NoError(t, err)

	records := AccidentRecordsFrom(d)
	require.Len(t, records, 2)
	assert.Equal(t, AccidentRecord{
		Row: 0, Date: "2020/01/05", Class: "CHOQUE", Severity: "HERIDOS",
		Fields: map[string]string{
			accidents.ColCleanDate:     "2020/01/05",
			accidents.ColCleanClass:    "CHOQUE",
			accidents.ColCleanSeverity: "HERIDOS",
			"Barrio":                   "CENTRO",
		},
	}, records[0])
	assert.Equal(t, "", records[1].Date)
	assert.NotContains(t, records[1].Fields, "Barrio")

	monthly := MonthlyRowsFrom([]accidents.MonthlyCount{{Year: 2020, Month: time.March, Count: 4}})
	assert.Equal(t, []MonthlyRow{{Year: 2020, Month: 3, Count: 4}}, monthly)

	assert.Empty(t, ClassSeverityRowsFrom(nil))
	assert.NotNil(t, ClassSeverityRowsFrom(nil))
}
