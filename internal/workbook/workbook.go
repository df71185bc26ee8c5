// Package workbook exports a report run as an XLSX workbook.
package workbook

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/accident.report/internal/accidents"
	"github.com/banshee-data/accident.report/internal/decompose"
	"github.com/banshee-data/accident.report/internal/fsutil"
)

// Sheet names, in workbook order.
const (
	SheetSummary       = "Resumen"
	SheetMonthly       = "Mensual"
	SheetClassSeverity = "Clase_Gravedad"
	SheetDecomposition = "Descomposicion"
	SheetData          = "Datos"
)

// Contents is what gets written. Nil or empty parts leave their sheet with
// only a header row.
type Contents struct {
	RunID         string
	Source        string
	StartedAt     time.Time
	CutoffYear    int
	RawRows       int
	Profiles      []accidents.ColumnProfile
	Monthly       []accidents.MonthlyCount
	CrossTab      *accidents.CrossTab
	Decomposition *decompose.Result
	Cleaned       *accidents.Dataset
}

// Build assembles the workbook in memory.
func Build(c Contents) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetMonthly, SheetClassSeverity, SheetDecomposition, SheetData} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	w := &sheetWriter{f: f, bold: bold}
	w.summary(c)
	w.monthly(c.Monthly)
	w.classSeverity(c.CrossTab)
	w.decomposition(c.Decomposition)
	w.data(c.Cleaned)
	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	return f, nil
}

// Export builds the workbook and writes it to path on fs.
func Export(fs fsutil.FileSystem, path string, c Contents) error {
	f, err := Build(c)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	out, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := f.Write(out); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return out.Close()
}

// sheetWriter keeps the first error so the sheet builders stay linear.
type sheetWriter struct {
	f    *excelize.File
	bold int
	err  error
}

func (w *sheetWriter) row(sheet string, n int, values ...interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("%s row %d: %w", sheet, n, err)
	}
}

func (w *sheetWriter) header(sheet string, n int, values ...interface{}) {
	w.row(sheet, n, values...)
	if w.err != nil || len(values) == 0 {
		return
	}
	first, _ := excelize.CoordinatesToCellName(1, n)
	last, _ := excelize.CoordinatesToCellName(len(values), n)
	if err := w.f.SetCellStyle(sheet, first, last, w.bold); err != nil {
		w.err = err
	}
}

func (w *sheetWriter) summary(c Contents) {
	s := SheetSummary
	w.header(s, 1, "Campo", "Valor")
	w.row(s, 2, "Ejecución", c.RunID)
	w.row(s, 3, "Archivo", c.Source)
	w.row(s, 4, "Inicio", c.StartedAt.Format(time.RFC3339))
	w.row(s, 5, "Año de corte", c.CutoffYear)
	w.row(s, 6, "Filas originales", c.RawRows)
	clean := 0
	if c.Cleaned != nil {
		clean = c.Cleaned.Len()
	}
	w.row(s, 7, "Filas depuradas", clean)

	w.header(s, 9, "Columna", "Tipo", "No nulos", "Nulos", "Únicos", "Media", "Desv. estándar", "Mín", "Máx", "Más frecuente", "Frecuencia")
	for i, p := range c.Profiles {
		values := []interface{}{p.Name, string(p.Kind), p.NonNull, p.Null, p.Unique}
		if n := p.Numeric; n != nil {
			values = append(values, cellFloat(n.Mean), cellFloat(n.Std), cellFloat(n.Min), cellFloat(n.Max), "", "")
		} else if t := p.Text; t != nil {
			values = append(values, "", "", "", "", t.Top, t.Freq)
		}
		w.row(s, 10+i, values...)
	}
	if w.err == nil {
		w.err = w.f.SetColWidth(s, "A", "A", 32)
	}
}

func (w *sheetWriter) monthly(counts []accidents.MonthlyCount) {
	w.header(SheetMonthly, 1, "Año", "Mes", "Accidentes")
	for i, c := range counts {
		w.row(SheetMonthly, i+2, c.Year, int(c.Month), c.Count)
	}
}

func (w *sheetWriter) classSeverity(ct *accidents.CrossTab) {
	if ct == nil {
		w.header(SheetClassSeverity, 1, "Clase")
		return
	}
	head := []interface{}{"Clase"}
	for _, s := range ct.Severities {
		head = append(head, s)
	}
	head = append(head, "Total")
	w.header(SheetClassSeverity, 1, head...)

	for i, class := range ct.Classes {
		values := []interface{}{class}
		total := 0
		for _, s := range ct.Severities {
			n := ct.Count(class, s)
			total += n
			values = append(values, n)
		}
		values = append(values, total)
		w.row(SheetClassSeverity, i+2, values...)
	}
}

func (w *sheetWriter) decomposition(res *decompose.Result) {
	w.header(SheetDecomposition, 1, "Mes", "Observado", "Tendencia", "Estacionalidad", "Residuo")
	if res == nil {
		return
	}
	for i, v := range res.Observed.Values {
		w.row(SheetDecomposition, i+2,
			res.Observed.Time(i).Format("2006-01"),
			v, cellFloat(res.Trend[i]), cellFloat(res.Seasonal[i]), cellFloat(res.Residual[i]))
	}
}

func (w *sheetWriter) data(d *accidents.Dataset) {
	if d == nil {
		return
	}
	header, rows := d.Records()
	values := make([]interface{}, len(header))
	for i, h := range header {
		values[i] = h
	}
	w.header(SheetData, 1, values...)
	for i, r := range rows {
		values := make([]interface{}, len(r))
		for j, v := range r {
			values[j] = v
		}
		w.row(SheetData, i+2, values...)
	}
}

// cellFloat leaves NaN cells blank.
func cellFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return math.Round(v*1000) / 1000
}
