// Package charts renders the accident report figures: static PNG/SVG charts
// through gonum/plot and an interactive HTML page through go-echarts.
package charts

import (
	"errors"
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/banshee-data/accident.report/internal/fsutil"
	"github.com/banshee-data/accident.report/internal/security"
)

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = errors.New("no data to plot")

// File names of the static charts, without extension.
const (
	DecompositionFile = "descomposicion"
	ConsolidatedFile  = "accidentalidad_consolidada"
	ClassSeverityFile = "clase_gravedad"
	HTMLFile          = "report.html"
)

// Renderer writes charts into Dir on FS.
type Renderer struct {
	FS     fsutil.FileSystem
	Dir    string
	Format string // "png" or "svg"
	Width  vg.Length
	Height vg.Length
}

// NewRenderer returns a Renderer with sizes given in inches.
func NewRenderer(fs fsutil.FileSystem, dir, format string, widthIn, heightIn float64) *Renderer {
	return &Renderer{
		FS:     fs,
		Dir:    dir,
		Format: format,
		Width:  vg.Length(widthIn) * vg.Inch,
		Height: vg.Length(heightIn) * vg.Inch,
	}
}

func (r *Renderer) newCanvas(w, h vg.Length) (vg.CanvasWriterTo, error) {
	switch r.Format {
	case "png", "":
		return vgimg.PngCanvas{Canvas: vgimg.New(w, h)}, nil
	case "svg":
		return vgsvg.New(w, h), nil
	default:
		return nil, fmt.Errorf("unsupported chart format %q", r.Format)
	}
}

func (r *Renderer) ext() string {
	if r.Format == "" {
		return "png"
	}
	return r.Format
}

// savePlot draws a single plot at the renderer's size.
func (r *Renderer) savePlot(p *plot.Plot, name string) (string, error) {
	c, err := r.newCanvas(r.Width, r.Height)
	if err != nil {
		return "", err
	}
	p.Draw(draw.New(c))
	return r.write(name, c)
}

// outputPath joins file onto Dir and rejects results that leave Dir.
func (r *Renderer) outputPath(file string) (string, error) {
	path := filepath.Join(r.Dir, file)
	if err := security.ValidateWithinDirectory(path, r.Dir); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Renderer) write(name string, c vg.CanvasWriterTo) (string, error) {
	path, err := r.outputPath(name + "." + r.ext())
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
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

func styleLegend(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}
