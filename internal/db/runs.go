package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/accident.report/internal/accidents"
)

// ErrNoRuns is returned when the database holds no report runs.
var ErrNoRuns = errors.New("no report runs recorded")

// Run is the metadata of one pipeline execution.
type Run struct {
	ID         string        `json:"run_id"`
	SourcePath string        `json:"source_path"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	RawRows    int           `json:"raw_rows"`
	CleanRows  int           `json:"clean_rows"`
	CutoffYear int           `json:"cutoff_year"`
	ChartDir   string        `json:"chart_dir"`
}

// AccidentRecord is one cleaned row. Fields holds every column by name.
type AccidentRecord struct {
	Row      int
	Date     string
	Class    string
	Severity string
	Fields   map[string]string
}

// MonthlyRow is one month of the consolidated series.
type MonthlyRow struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}

// ClassSeverityRow is one cell of the class by severity table.
type ClassSeverityRow struct {
	Class    string `json:"class"`
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

// RunData is everything recorded for a run.
type RunData struct {
	Run           Run
	Accidents     []AccidentRecord
	Monthly       []MonthlyRow
	ClassSeverity []ClassSeverityRow
}

// MonthlyRowsFrom converts the aggregated series into storable rows.
func MonthlyRowsFrom(counts []accidents.MonthlyCount) []MonthlyRow {
	out := make([]MonthlyRow, len(counts))
	for i, c := range counts {
		out[i] = MonthlyRow{Year: c.Year, Month: int(c.Month), Count: c.Count}
	}
	return out
}

// ClassSeverityRowsFrom converts the non-zero cells of ct. A nil ct yields
// an empty slice.
func ClassSeverityRowsFrom(ct *accidents.CrossTab) []ClassSeverityRow {
	out := []ClassSeverityRow{}
	if ct == nil {
		return out
	}
	for _, c := range ct.Cells() {
		out = append(out, ClassSeverityRow{Class: c.Class, Severity: c.Severity, Count: c.Count})
	}
	return out
}

// AccidentRecordsFrom converts every row of d. Missing values are left out
// of Fields.
func AccidentRecordsFrom(d *accidents.Dataset) []AccidentRecord {
	header, rows := d.Records()
	out := make([]AccidentRecord, len(rows))
	for i, row := range rows {
		rec := AccidentRecord{Row: i, Fields: make(map[string]string, len(header))}
		for j, name := range header {
			v := row[j]
			if v == "" {
				continue
			}
			rec.Fields[name] = v
			switch name {
			case accidents.ColCleanDate:
				rec.Date = v
			case accidents.ColCleanClass:
				rec.Class = v
			case accidents.ColCleanSeverity:
				rec.Severity = v
			}
		}
		out[i] = rec
	}
	return out
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SaveRun writes a run and its rows in one transaction.
func (db *DB) SaveRun(ctx context.Context, data RunData) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	r := data.Run
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO report_runs (run_id, source_path, started_at, duration_ms, raw_rows, clean_rows, cutoff_year, chart_dir)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SourcePath, r.StartedAt.UTC().Format(time.RFC3339Nano), r.Duration.Milliseconds(),
		r.RawRows, r.CleanRows, r.CutoffYear, r.ChartDir,
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.ID, err)
	}

	accStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO accidents (run_id, row_index, accident_date, class, severity, record_json)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare accident insert: %w", err)
	}
	defer accStmt.Close()
	for _, a := range data.Accidents {
		record, err := json.Marshal(a.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", a.Row, err)
		}
		if _, err := accStmt.ExecContext(ctx, r.ID, a.Row, nullable(a.Date), nullable(a.Class), nullable(a.Severity), string(record)); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", a.Row, err)
		}
	}

	for _, m := range data.Monthly {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO monthly_counts (run_id, year, month, count) VALUES (?, ?, ?, ?)`,
			r.ID, m.Year, m.Month, m.Count,
		); err != nil {
			return fmt.Errorf("failed to insert monthly count %d-%02d: %w", m.Year, m.Month, err)
		}
	}

	for _, c := range data.ClassSeverity {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO class_severity_counts (run_id, class, severity, count) VALUES (?, ?, ?, ?)`,
			r.ID, c.Class, c.Severity, c.Count,
		); err != nil {
			return fmt.Errorf("failed to insert class/severity count: %w", err)
		}
	}

	return tx.Commit()
}

const runColumns = `run_id, source_path, started_at, duration_ms, raw_rows, clean_rows, cutoff_year, chart_dir`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		r          Run
		startedAt  string
		durationMs int64
	)
	if err := row.Scan(&r.ID, &r.SourcePath, &startedAt, &durationMs, &r.RawRows, &r.CleanRows, &r.CutoffYear, &r.ChartDir); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("bad started_at %q for run %s: %w", startedAt, r.ID, err)
	}
	r.StartedAt = t
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return r, nil
}

// Runs lists every recorded run, newest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM report_runs ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run or ErrNoRuns.
func (db *DB) LatestRun(ctx context.Context) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM report_runs ORDER BY started_at DESC, run_id LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MonthlyCounts returns the monthly series of a run ordered by month.
func (db *DB) MonthlyCounts(ctx context.Context, runID string) ([]MonthlyRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT year, month, count FROM monthly_counts WHERE run_id = ? ORDER BY year, month`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlyRow
	for rows.Next() {
		var m MonthlyRow
		if err := rows.Scan(&m.Year, &m.Month, &m.Count); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClassSeverityCounts returns the class by severity cells of a run.
func (db *DB) ClassSeverityCounts(ctx context.Context, runID string) ([]ClassSeverityRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT class, severity, count FROM class_severity_counts WHERE run_id = ? ORDER BY class, severity`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClassSeverityRow
	for rows.Next() {
		var c ClassSeverityRow
		if err := rows.Scan(&c.Class, &c.Severity, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Accidents returns the stored rows of a run ordered by row index.
func (db *DB) Accidents(ctx context.Context, runID string) ([]AccidentRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT row_index, accident_date, class, severity, record_json
		FROM accidents WHERE run_id = ? ORDER BY row_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccidentRecord
	for rows.Next() {
		var (
			a                     AccidentRecord
			date, class, severity sql.NullString
			record                string
		)
		if err := rows.Scan(&a.Row, &date, &class, &severity, &record); err != nil {
			return nil, err
		}
		a.Date, a.Class, a.Severity = date.String, class.String, severity.String
		if err := json.Unmarshal([]byte(record), &a.Fields); err != nil {
			return nil, fmt.Errorf("bad record_json for row %d: %w", a.Row, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, through the foreign keys, its rows.
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM report_runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}
