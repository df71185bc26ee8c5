package charts

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/accident.report/internal/accidents"
	"github.com/banshee-data/accident.report/internal/decompose"
)

// DecompositionTitle heads the decomposition figure.
const DecompositionTitle = "Descomposición de la serie temporal - Accidentes"

// MonthAbbreviations label the consolidated chart's x axis.
var MonthAbbreviations = [12]string{
	"Ene", "Feb", "Mar", "Abr", "May", "Jun",
	"Jul", "Ago", "Sep", "Oct", "Nov", "Dic",
}

// ConsolidatedTitle is the consolidated chart title for the given year span.
func ConsolidatedTitle(first, last int) string {
	return fmt.Sprintf("Accidentalidad consolidada %d - %d", first, last)
}

// ClassSeverityTitle is the grouped bar chart title for the given year span.
func ClassSeverityTitle(first, last int) string {
	return fmt.Sprintf("Distribución de Accidentes por Clase y Gravedad (%d al %d)", first, last)
}

// seriesXYs pairs each non-NaN value with its month, as Unix seconds.
func seriesXYs(s decompose.Series, values []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(s.Time(i).Unix()), Y: v})
	}
	return xys
}

// DecompositionChart draws observed, trend, seasonal and residual panels
// stacked vertically and returns the written path.
func (r *Renderer) DecompositionChart(res *decompose.Result) (string, error) {
	if res == nil || res.Observed.Len() == 0 {
		return "", ErrNoData
	}

	panels := []struct {
		label   string
		values  []float64
		scatter bool
	}{
		{"Observado", res.Observed.Values, false},
		{"Tendencia", res.Trend, false},
		{"Estacionalidad", res.Seasonal, false},
		{"Residuo", res.Residual, true},
	}
	colors := generateColors(len(panels))

	plots := make([][]*plot.Plot, len(panels))
	for i, panel := range panels {
		p := plot.New()
		if i == 0 {
			p.Title.Text = DecompositionTitle
		}
		p.Y.Label.Text = panel.label
		p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
		p.Add(plotter.NewGrid())

		xys := seriesXYs(res.Observed, panel.values)
		if len(xys) == 0 {
			return "", fmt.Errorf("%s: %w", panel.label, ErrNoData)
		}
		if panel.scatter {
			s, err := plotter.NewScatter(xys)
			if err != nil {
				return "", err
			}
			s.GlyphStyle.Shape = draw.CircleGlyph{}
			s.GlyphStyle.Radius = vg.Points(2)
			s.GlyphStyle.Color = colors[i]
			p.Add(s)
		} else {
			l, err := plotter.NewLine(xys)
			if err != nil {
				return "", err
			}
			l.Color = colors[i]
			l.Width = vg.Points(1.5)
			p.Add(l)
		}
		plots[i] = []*plot.Plot{p}
	}

	height := r.Height * 4 / 3
	c, err := r.newCanvas(r.Width, height)
	if err != nil {
		return "", err
	}
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      1,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(8),
		PadY:      vg.Points(8),
	}
	canvases := plot.Align(plots, tiles, draw.New(c))
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}
	return r.write(DecompositionFile, c)
}

// ConsolidatedChart draws one line per year over the twelve months.
func (r *Renderer) ConsolidatedChart(counts []accidents.MonthlyCount) (string, error) {
	first, last, ok := accidents.YearSpan(counts)
	if !ok {
		return "", ErrNoData
	}

	byYear := make(map[int]plotter.XYs)
	for _, c := range counts {
		byYear[c.Year] = append(byYear[c.Year], plotter.XY{X: float64(c.Month), Y: float64(c.Count)})
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	p := plot.New()
	p.Title.Text = ConsolidatedTitle(first, last)
	p.X.Label.Text = "Mes"
	p.Y.Label.Text = "Accidentalidad"
	p.Add(plotter.NewGrid())

	ticks := make([]plot.Tick, len(MonthAbbreviations))
	for i, name := range MonthAbbreviations {
		ticks[i] = plot.Tick{Value: float64(i + 1), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Min, p.X.Max = 0.5, 12.5

	p.Legend.Add("Año")
	colors := generateColors(len(years))
	for i, y := range years {
		xys := byYear[y]
		sort.Slice(xys, func(a, b int) bool { return xys[a].X < xys[b].X })
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return "", err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)
		points.Shape = draw.CircleGlyph{}
		points.Color = colors[i]
		p.Add(line, points)
		p.Legend.Add(strconv.Itoa(y), line, points)
	}
	styleLegend(p)

	return r.savePlot(p, ConsolidatedFile)
}

// ClassSeverityChart draws grouped bars, one group per class and one hue per
// severity, with the count written over each non-zero bar.
func (r *Renderer) ClassSeverityChart(ct *accidents.CrossTab, first, last int) (string, error) {
	if ct == nil || ct.Total() == 0 {
		return "", ErrNoData
	}

	p := plot.New()
	p.Title.Text = ClassSeverityTitle(first, last)
	p.X.Label.Text = "Clase de accidente"
	p.Y.Label.Text = "Cantidad de accidentes"
	p.Add(plotter.NewGrid())

	groups := float64(len(ct.Classes) * (len(ct.Severities) + 1))
	width := r.Width * 0.8 / vg.Length(groups)
	colors := generateColors(len(ct.Severities))

	for i, severity := range ct.Severities {
		values := make(plotter.Values, len(ct.Classes))
		var xys plotter.XYs
		var labels []string
		for j, class := range ct.Classes {
			n := ct.Count(class, severity)
			values[j] = float64(n)
			if n > 0 {
				xys = append(xys, plotter.XY{X: float64(j), Y: float64(n)})
				labels = append(labels, strconv.Itoa(n))
			}
		}

		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return "", err
		}
		bars.Color = colors[i]
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = width * vg.Length(float64(i)-float64(len(ct.Severities)-1)/2)
		p.Add(bars)
		p.Legend.Add(severity, bars)

		if len(xys) == 0 {
			continue
		}
		l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
		if err != nil {
			return "", err
		}
		for k := range l.TextStyle {
			l.TextStyle[k].XAlign = draw.XCenter
		}
		l.Offset = vg.Point{X: bars.Offset, Y: vg.Points(2)}
		p.Add(l)
	}

	p.NominalX(ct.Classes...)
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	p.Y.Min = 0
	p.Y.Max = float64(ct.Max()) * 1.15
	styleLegend(p)

	return r.savePlot(p, ClassSeverityFile)
}
