// Package report runs the accident analysis end to end: load, explore,
// clean, decompose and plot, then hands the result to the optional sinks.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/accident.report/internal/accidents"
	"github.com/banshee-data/accident.report/internal/charts"
	"github.com/banshee-data/accident.report/internal/config"
	"github.com/banshee-data/accident.report/internal/decompose"
	"github.com/banshee-data/accident.report/internal/fsutil"
	"github.com/banshee-data/accident.report/internal/monitoring"
	"github.com/banshee-data/accident.report/internal/security"
	"github.com/banshee-data/accident.report/internal/timeutil"
)

// Console messages printed when a stage cannot run.
const (
	MsgNoDateColumn     = "No se encontró una columna de 'Fecha_accidente' para realizar el análisis temporal."
	MsgNoConsolidated   = "No se encontró una columna de 'Fecha_accidente' para la gráfica consolidada."
	MsgNoClassSeverity  = "No se encontraron las columnas 'Clase_accidente' o 'Gravedad' en el DataFrame."
	msgSeriesTooShort   = "La serie mensual tiene %d meses; la descomposición necesita al menos %d."
	msgNoRowsBefore     = "No hay accidentes anteriores a %d para graficar."
	msgChartFailed      = "No se pudo generar la gráfica %s: %v"
	msgChartWritten     = "Gráfica guardada en %s"
	msgInteractiveReady = "Reporte interactivo guardado en %s"
)

// ErrInputNotFound is returned when the input CSV does not exist.
var ErrInputNotFound = errors.New("input file not found")

// Stage names recorded in Result.Skipped.
const (
	StageDecompose     = "decompose"
	StageConsolidated  = "consolidated"
	StageClassSeverity = "class-severity"
	StageHTML          = "html"
)

// Pipeline runs one report. Config, FS and Out are required; Clock defaults
// to the real clock.
type Pipeline struct {
	Config *config.ReportConfig
	FS     fsutil.FileSystem
	Out    io.Writer
	Clock  timeutil.Clock
}

// Result is everything a run produced.
type Result struct {
	RunID     string
	Source    string
	RunDir    string
	StartedAt time.Time
	Duration  time.Duration

	Raw           *accidents.Dataset
	Cleaned       *accidents.Dataset
	Profile       []accidents.ColumnProfile
	Monthly       []accidents.MonthlyCount
	CrossTab      *accidents.CrossTab
	Decomposition *decompose.Result

	Charts     []string
	HTMLReport string
	Skipped    []string
}

// RunDir returns <out>/<input base name>/<stamp> for a run started at t.
func RunDir(outputDir, input string, t time.Time) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, security.SanitizeFilename(base), timeutil.RunStamp(t))
}

func (p *Pipeline) clock() timeutil.Clock {
	if p.Clock == nil {
		return timeutil.RealClock{}
	}
	return p.Clock
}

func (p *Pipeline) printf(format string, v ...interface{}) {
	fmt.Fprintf(p.Out, format, v...)
}

// Run executes the five stages in order. Only load and clean failures abort;
// a stage that lacks its columns prints why and is skipped.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.Config
	clock := p.clock()
	res := &Result{
		RunID:     uuid.NewString(),
		Source:    cfg.GetInput(),
		StartedAt: clock.Now(),
	}
	res.RunDir = RunDir(cfg.GetOutputDir(), res.Source, res.StartedAt)
	monitoring.Stagef("run", "%s -> %s", res.RunID, res.RunDir)

	p.printf("\nRecibimos la ruta: %s\n", res.Source)
	if !p.FS.Exists(res.Source) {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, res.Source)
	}
	raw, err := accidents.Load(p.FS, res.Source, accidents.LoadOptions{
		NullValues:  cfg.GetNullValues(),
		DateLayouts: cfg.GetDateLayouts(),
	})
	if err != nil {
		return nil, err
	}
	res.Raw = raw

	if err := accidents.ExploreRows(p.Out, raw, cfg.GetPreviewRows()); err != nil {
		return nil, fmt.Errorf("failed to write exploratory report: %w", err)
	}

	cleaner := &accidents.Cleaner{HourLayouts: cfg.GetHourLayouts()}
	cleaned, err := cleaner.Clean(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to clean %s: %w", res.Source, err)
	}
	res.Cleaned = cleaned
	res.Profile = accidents.Profile(cleaned)

	renderer := charts.NewRenderer(p.FS, res.RunDir, cfg.GetChartFormat(),
		cfg.GetChartWidthInches(), cfg.GetChartHeightInches())

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.decompose(res, renderer)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.consolidated(res, renderer)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.classSeverity(res, renderer)

	p.interactive(res, renderer)

	res.Duration = clock.Since(res.StartedAt)
	monitoring.Stagef("run", "finished in %v, %d charts, skipped %v", res.Duration, len(res.Charts), res.Skipped)
	return res, nil
}

func (p *Pipeline) skip(res *Result, stage string) {
	res.Skipped = append(res.Skipped, stage)
}

func (p *Pipeline) chartWritten(res *Result, stage, path string, err error) {
	if err != nil {
		p.printf(msgChartFailed+"\n", stage, err)
		monitoring.Stagef(stage, "chart failed: %v", err)
		p.skip(res, stage)
		return
	}
	p.printf(msgChartWritten+"\n", path)
	res.Charts = append(res.Charts, path)
}

// decompose runs the additive decomposition over every dated month. The
// cutoff year does not apply here.
func (p *Pipeline) decompose(res *Result, renderer *charts.Renderer) {
	if !res.Cleaned.HasColumn(accidents.ColCleanDate) {
		p.printf("%s\n", MsgNoDateColumn)
		p.skip(res, StageDecompose)
		return
	}
	p.printf("\nRealizando análisis de series temporales con descomposición\n")

	counts, err := accidents.MonthlyCounts(res.Cleaned, 0)
	if err != nil {
		p.printf("%s\n", MsgNoDateColumn)
		p.skip(res, StageDecompose)
		return
	}
	series := decompose.MonthlySeries(counts)
	dec, err := decompose.Additive(series, decompose.MonthsPerYear)
	if errors.Is(err, decompose.ErrSeriesTooShort) {
		p.printf(msgSeriesTooShort+"\n", series.Len(), 2*decompose.MonthsPerYear)
		p.skip(res, StageDecompose)
		return
	}
	if err != nil {
		p.chartWritten(res, StageDecompose, "", err)
		return
	}
	res.Decomposition = dec

	path, err := renderer.DecompositionChart(dec)
	p.chartWritten(res, StageDecompose, path, err)
}

func (p *Pipeline) consolidated(res *Result, renderer *charts.Renderer) {
	if n := p.Config.GetPreviewRows(); n > 0 && res.Cleaned.Len() > 0 {
		if head, err := res.Cleaned.Head(n); err == nil {
			p.printf("\nPrimeras líneas del df depurado\n\n%s\n", head)
		}
	}

	cutoff := p.Config.GetCutoffYear()
	monthly, err := accidents.MonthlyCounts(res.Cleaned, cutoff)
	if errors.Is(err, accidents.ErrMissingColumn) {
		p.printf("%s\n", MsgNoConsolidated)
		p.skip(res, StageConsolidated)
		return
	}
	if err != nil {
		p.chartWritten(res, StageConsolidated, "", err)
		return
	}
	res.Monthly = monthly

	path, err := renderer.ConsolidatedChart(monthly)
	if errors.Is(err, charts.ErrNoData) {
		p.printf(msgNoRowsBefore+"\n", cutoff)
		p.skip(res, StageConsolidated)
		return
	}
	p.chartWritten(res, StageConsolidated, path, err)
}

func (p *Pipeline) classSeverity(res *Result, renderer *charts.Renderer) {
	p.printf("\nGenerando gráfico de barras agrupadas para Clase_accidente y Gravedad\n")

	cutoff := p.Config.GetCutoffYear()
	ct, err := accidents.ClassSeverity(res.Cleaned, cutoff)
	if errors.Is(err, accidents.ErrMissingColumn) {
		p.printf("%s\n", MsgNoClassSeverity)
		p.skip(res, StageClassSeverity)
		return
	}
	if err != nil {
		p.chartWritten(res, StageClassSeverity, "", err)
		return
	}
	res.CrossTab = ct

	first, last, ok := accidents.YearSpan(res.Monthly)
	if !ok {
		first, last = cutoff-1, cutoff-1
	}
	path, err := renderer.ClassSeverityChart(ct, first, last)
	if errors.Is(err, charts.ErrNoData) {
		p.printf(msgNoRowsBefore+"\n", cutoff)
		p.skip(res, StageClassSeverity)
		return
	}
	p.chartWritten(res, StageClassSeverity, path, err)
}

func (p *Pipeline) interactive(res *Result, renderer *charts.Renderer) {
	path, err := renderer.WriteHTML(charts.HTMLReport{
		Monthly:       res.Monthly,
		CrossTab:      res.CrossTab,
		Decomposition: res.Decomposition,
	})
	if errors.Is(err, charts.ErrNoData) {
		p.skip(res, StageHTML)
		return
	}
	if err != nil {
		p.printf(msgChartFailed+"\n", StageHTML, err)
		p.skip(res, StageHTML)
		return
	}
	res.HTMLReport = path
	p.printf(msgInteractiveReady+"\n", path)
}
