package charts

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/accident.report/internal/accidents"
	"github.com/banshee-data/accident.report/internal/decompose"
)

// PageTitle is the browser title of the interactive report.
const PageTitle = "Análisis de Accidentes de Tránsito"

// HTMLReport is the data shown on the interactive page. Nil or empty fields
// leave their chart out.
type HTMLReport struct {
	Monthly       []accidents.MonthlyCount
	CrossTab      *accidents.CrossTab
	Decomposition *decompose.Result
}

// RenderHTML writes the interactive report page to w.
func RenderHTML(w io.Writer, rep HTMLReport) error {
	page := components.NewPage()

	n := 0
	if line := consolidatedLine(rep.Monthly); line != nil {
		page.AddCharts(line)
		n++
	}
	if bar := classSeverityBar(rep.CrossTab, rep.Monthly); bar != nil {
		page.AddCharts(bar)
		n++
	}
	if line := decompositionLine(rep.Decomposition); line != nil {
		page.AddCharts(line)
		n++
	}
	if n == 0 {
		return ErrNoData
	}
	return page.Render(w)
}

// WriteHTML renders the interactive page into the renderer's directory.
func (r *Renderer) WriteHTML(rep HTMLReport) (string, error) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, rep); err != nil {
		return "", err
	}
	path, err := r.outputPath(HTMLFile)
	if err != nil {
		return "", err
	}
	if err := r.FS.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", r.Dir, err)
	}
	f, err := r.FS.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, f.Close()
}

func consolidatedLine(counts []accidents.MonthlyCount) *charts.Line {
	first, last, ok := accidents.YearSpan(counts)
	if !ok {
		return nil
	}
	byYear := make(map[int][12]int)
	for _, c := range counts {
		row := byYear[c.Year]
		row[c.Month-1] = c.Count
		byYear[c.Year] = row
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: PageTitle, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: ConsolidatedTitle(first, last)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Mes"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Accidentalidad"}),
	)
	line.SetXAxis(MonthAbbreviations[:])
	for _, y := range years {
		row := byYear[y]
		data := make([]opts.LineData, len(row))
		for i, v := range row {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(strconv.Itoa(y), data)
	}
	return line
}

func classSeverityBar(ct *accidents.CrossTab, counts []accidents.MonthlyCount) *charts.Bar {
	if ct == nil || ct.Total() == 0 {
		return nil
	}
	title := "Distribución de Accidentes por Clase y Gravedad"
	if first, last, ok := accidents.YearSpan(counts); ok {
		title = ClassSeverityTitle(first, last)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: PageTitle, Width: "100%", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Clase de accidente", AxisLabel: &opts.AxisLabel{Rotate: 30}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Cantidad de accidentes"}),
	)
	bar.SetXAxis(ct.Classes)
	for _, severity := range ct.Severities {
		data := make([]opts.BarData, len(ct.Classes))
		for i, class := range ct.Classes {
			data[i] = opts.BarData{Value: ct.Count(class, severity)}
		}
		bar.AddSeries(severity, data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	}
	return bar
}

func decompositionLine(res *decompose.Result) *charts.Line {
	if res == nil || res.Observed.Len() == 0 {
		return nil
	}
	months := make([]string, res.Observed.Len())
	for i := range months {
		months[i] = res.Observed.Time(i).Format("2006-01")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: PageTitle, Width: "100%", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: DecompositionTitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(months)
	parts := []struct {
		name   string
		values []float64
	}{
		{"Observado", res.Observed.Values},
		{"Tendencia", res.Trend},
		{"Estacionalidad", res.Seasonal},
		{"Residuo", res.Residual},
	}
	for _, c := range parts {
		line.AddSeries(c.name, lineData(c.values))
	}
	return line
}

// lineData converts values for echarts, which draws "-" as a gap.
func lineData(values []float64) []opts.LineData {
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			data[i] = opts.LineData{Value: "-"}
			continue
		}
		data[i] = opts.LineData{Value: math.Round(v*100) / 100}
	}
	return data
}
