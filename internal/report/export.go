package report

import (
	"context"
	"fmt"

	"github.com/banshee-data/accident.report/internal/db"
	"github.com/banshee-data/accident.report/internal/monitoring"
	"github.com/banshee-data/accident.report/internal/security"
	"github.com/banshee-data/accident.report/internal/workbook"
)

// Export writes res to the sinks the configuration enables: the SQLite run
// store and the XLSX workbook. With neither configured it does nothing.
func (p *Pipeline) Export(ctx context.Context, res *Result) error {
	if path := p.Config.GetDBPath(); path != "" {
		if err := SaveToDB(ctx, path, res, p.Config.GetCutoffYear()); err != nil {
			return err
		}
		p.printf("Ejecución %s guardada en %s\n", res.RunID, path)
	}

	if path := p.Config.GetWorkbookPath(); path != "" {
		if err := security.ValidateExtension(path, ".xlsx"); err != nil {
			return err
		}
		if err := workbook.Export(p.FS, path, WorkbookContents(res, p.Config.GetCutoffYear())); err != nil {
			return fmt.Errorf("failed to export workbook: %w", err)
		}
		p.printf("Libro guardado en %s\n", path)
	}
	return nil
}

// SaveToDB opens (and migrates) the store at path and records res.
func SaveToDB(ctx context.Context, path string, res *Result, cutoffYear int) error {
	store, err := db.NewDB(path)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer store.Close()

	if err := store.SaveRun(ctx, RunData(res, cutoffYear)); err != nil {
		return fmt.Errorf("failed to save run %s: %w", res.RunID, err)
	}
	monitoring.Stagef("export", "saved run %s to %s", res.RunID, path)
	return nil
}

// RunData converts res into the store's records.
func RunData(res *Result, cutoffYear int) db.RunData {
	data := db.RunData{
		Run: db.Run{
			ID:         res.RunID,
			SourcePath: res.Source,
			StartedAt:  res.StartedAt,
			Duration:   res.Duration,
			CutoffYear: cutoffYear,
			ChartDir:   res.RunDir,
		},
		Monthly:       db.MonthlyRowsFrom(res.Monthly),
		ClassSeverity: db.ClassSeverityRowsFrom(res.CrossTab),
	}
	if res.Raw != nil {
		data.Run.RawRows = res.Raw.Len()
	}
	if res.Cleaned != nil {
		data.Run.CleanRows = res.Cleaned.Len()
		data.Accidents = db.AccidentRecordsFrom(res.Cleaned)
	}
	return data
}

// WorkbookContents selects what the workbook shows from res.
func WorkbookContents(res *Result, cutoffYear int) workbook.Contents {
	c := workbook.Contents{
		RunID:         res.RunID,
		Source:        res.Source,
		StartedAt:     res.StartedAt,
		CutoffYear:    cutoffYear,
		Profiles:      res.Profile,
		Monthly:       res.Monthly,
		CrossTab:      res.CrossTab,
		Decomposition: res.Decomposition,
		Cleaned:       res.Cleaned,
	}
	if res.Raw != nil {
		c.RawRows = res.Raw.Len()
	}
	return c
}
