package accidents

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Kind is the inferred type of a column.
type Kind string

const (
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindDatetime Kind = "datetime"
	KindText     Kind = "text"
)

// PreviewRows is the number of rows Explore prints.
const PreviewRows = 5

// NumericSummary mirrors a describe() row for a numeric column.
type NumericSummary struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Q25   float64
	Q50   float64
	Q75   float64
	Max   float64
}

// TextSummary mirrors a describe() row for a non-numeric column.
type TextSummary struct {
	Count  int
	Unique int
	Top    string
	Freq   int
}

// ColumnProfile holds everything Explore reports about one column.
type ColumnProfile struct {
	Name    string
	Kind    Kind
	NonNull int
	Null    int
	Unique  int
	Numeric *NumericSummary
	Text    *TextSummary
}

// Profile computes per-column statistics without modifying d.
func Profile(d *Dataset) []ColumnProfile {
	names := d.Columns()
	out := make([]ColumnProfile, 0, len(names))
	for _, name := range names {
		col, err := d.Column(name)
		if err != nil {
			continue
		}
		out = append(out, profileColumn(col))
	}
	return out
}

func profileColumn(col Column) ColumnProfile {
	p := ColumnProfile{Name: col.Name}
	var present []string
	for i, v := range col.Values {
		if col.Null[i] {
			p.Null++
			continue
		}
		present = append(present, v)
	}
	p.NonNull = len(present)
	p.Kind = inferKind(present)

	counts := make(map[string]int, len(present))
	var order []string
	for _, v := range present {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	p.Unique = len(counts)

	switch p.Kind {
	case KindInt, KindFloat:
		p.Numeric = describeNumeric(present)
	default:
		ts := &TextSummary{Count: len(present), Unique: len(counts)}
		// Ties resolve to the value seen first.
		for _, v := range order {
			if counts[v] > ts.Freq {
				ts.Top, ts.Freq = v, counts[v]
			}
		}
		p.Text = ts
	}
	return p
}

func inferKind(values []string) Kind {
	if len(values) == 0 {
		return KindText
	}
	kind := KindInt
	for _, v := range values {
		if kind == KindInt {
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			kind = KindFloat
		}
		if kind == KindFloat {
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				continue
			}
			kind = KindDatetime
		}
		if _, ok := parseStoredDate(v); ok {
			continue
		}
		return KindText
	}
	return kind
}

func describeNumeric(values []string) *NumericSummary {
	x := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		x = append(x, f)
	}
	s := &NumericSummary{Count: len(x)}
	if len(x) == 0 {
		s.Mean, s.Std = math.NaN(), math.NaN()
		s.Min, s.Max = math.NaN(), math.NaN()
		s.Q25, s.Q50, s.Q75 = math.NaN(), math.NaN(), math.NaN()
		return s
	}
	sort.Float64s(x)
	s.Mean, s.Std = stat.MeanStdDev(x, nil)
	s.Min, s.Max = floats.Min(x), floats.Max(x)
	s.Q25 = quantile(0.25, x)
	s.Q50 = quantile(0.50, x)
	s.Q75 = quantile(0.75, x)
	return s
}

// quantile returns the p-quantile of the sorted slice x, interpolating
// linearly between the two closest ranks.
func quantile(p float64, x []float64) float64 {
	h := p * float64(len(x)-1)
	lo := int(math.Floor(h))
	hi := lo + 1
	if hi > len(x)-1 {
		hi = len(x) - 1
	}
	return x[lo] + (h-float64(lo))*(x[hi]-x[lo])
}

// Explore writes the exploratory report for d to w, previewing PreviewRows
// rows.
func Explore(w io.Writer, d *Dataset) error {
	return ExploreRows(w, d, PreviewRows)
}

// ExploreRows is Explore with an explicit preview size. A non-positive rows
// leaves the preview out.
func ExploreRows(w io.Writer, d *Dataset, rows int) error {
	fmt.Fprintf(w, "\nAnálisis exploratorio\n")

	fmt.Fprintf(w, "\nPrimeras líneas del archivo\n")
	switch {
	case d.Len() == 0:
		fmt.Fprintln(w, "(sin filas)")
	case rows > 0:
		head, err := d.Head(rows)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, head.String())
	}

	profiles := Profile(d)

	fmt.Fprintf(w, "\nInformación general del archivo\n")
	fmt.Fprintf(w, "Filas: %d, Columnas: %d\n", d.Len(), len(profiles))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, " #\tColumna\tNo nulos\tTipo")
	for i, p := range profiles {
		fmt.Fprintf(tw, " %d\t%s\t%d\t%s\n", i, p.Name, p.NonNull, p.Kind)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nEstadística descriptiva del archivo\n")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Columna\tcount\tmean\tstd\tmin\t25%\t50%\t75%\tmax")
	for _, p := range profiles {
		if n := p.Numeric; n != nil {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", p.Name, n.Count,
				formatStat(n.Mean), formatStat(n.Std), formatStat(n.Min), formatStat(n.Q25),
				formatStat(n.Q50), formatStat(n.Q75), formatStat(n.Max))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Columna\tcount\tunique\ttop\tfreq")
	for _, p := range profiles {
		if t := p.Text; t != nil {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\n", p.Name, t.Count, t.Unique, t.Top, t.Freq)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nValores nulos por columnas del archivo\n")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%d\n", p.Name, p.Null)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nValores únicos por columna:\n")
	for _, p := range profiles {
		fmt.Fprintf(w, "%s: %d valores únicos\n", p.Name, p.Unique)
	}
	return nil
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
