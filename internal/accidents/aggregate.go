package accidents

import (
	"fmt"
	"sort"
	"time"
)

// MonthlyCount is the number of accidents in one calendar month.
type MonthlyCount struct {
	Year  int
	Month time.Month
	Count int
}

// CrossTabCell is one non-zero cell of a CrossTab.
type CrossTabCell struct {
	Class    string
	Severity string
	Count    int
}

// CrossTab counts accidents by class and severity.
type CrossTab struct {
	Classes    []string
	Severities []string
	counts     map[string]map[string]int
}

// Count returns the number of accidents of the given class and severity.
func (c *CrossTab) Count(class, severity string) int {
	return c.counts[class][severity]
}

// Total returns the sum of all cells.
func (c *CrossTab) Total() int {
	total := 0
	for _, bySeverity := range c.counts {
		for _, n := range bySeverity {
			total += n
		}
	}
	return total
}

// Max returns the largest cell.
func (c *CrossTab) Max() int {
	m := 0
	for _, bySeverity := range c.counts {
		for _, n := range bySeverity {
			m = max(m, n)
		}
	}
	return m
}

// Cells returns the non-zero cells ordered by class then severity.
func (c *CrossTab) Cells() []CrossTabCell {
	var cells []CrossTabCell
	for _, class := range c.Classes {
		for _, severity := range c.Severities {
			if n := c.Count(class, severity); n > 0 {
				cells = append(cells, CrossTabCell{Class: class, Severity: severity, Count: n})
			}
		}
	}
	return cells
}

// beforeCutoff reports the parsed date of row i and whether the row passes
// the year filter. cutoffYear <= 0 disables the filter.
func beforeCutoff(dates Column, i, cutoffYear int) (time.Time, bool) {
	if dates.Null[i] {
		return time.Time{}, false
	}
	t, ok := parseStoredDate(dates.Values[i])
	if !ok {
		return time.Time{}, false
	}
	if cutoffYear > 0 && t.Year() >= cutoffYear {
		return t, false
	}
	return t, true
}

// MonthlyCounts counts cleaned rows per (year, month) for years strictly
// before cutoffYear. Rows without a date are excluded.
func MonthlyCounts(d *Dataset, cutoffYear int) ([]MonthlyCount, error) {
	dates, err := d.Column(ColCleanDate)
	if err != nil {
		return nil, err
	}

	type key struct {
		year  int
		month time.Month
	}
	counts := make(map[key]int)
	for i := range dates.Values {
		t, ok := beforeCutoff(dates, i, cutoffYear)
		if !ok {
			continue
		}
		counts[key{t.Year(), t.Month()}]++
	}

	out := make([]MonthlyCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, MonthlyCount{Year: k.year, Month: k.month, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// ClassSeverity builds the class by severity table over the rows that pass
// the same year filter as MonthlyCounts. Rows missing a class or severity are
// excluded. The date column is only required when cutoffYear > 0.
func ClassSeverity(d *Dataset, cutoffYear int) (*CrossTab, error) {
	required := []string{ColCleanClass, ColCleanSeverity}
	if cutoffYear > 0 {
		required = append(required, ColCleanDate)
	}
	if err := RequireColumns(d, required...); err != nil {
		return nil, err
	}

	classes, _ := d.Column(ColCleanClass)
	severities, _ := d.Column(ColCleanSeverity)
	var dates Column
	if cutoffYear > 0 {
		dates, _ = d.Column(ColCleanDate)
	}

	ct := &CrossTab{counts: make(map[string]map[string]int)}
	seenSeverity := make(map[string]bool)
	for i := range classes.Values {
		if classes.Null[i] || severities.Null[i] {
			continue
		}
		if cutoffYear > 0 {
			if _, ok := beforeCutoff(dates, i, cutoffYear); !ok {
				continue
			}
		}
		class, severity := classes.Values[i], severities.Values[i]
		if ct.counts[class] == nil {
			ct.counts[class] = make(map[string]int)
			ct.Classes = append(ct.Classes, class)
		}
		ct.counts[class][severity]++
		if !seenSeverity[severity] {
			seenSeverity[severity] = true
			ct.Severities = append(ct.Severities, severity)
		}
	}
	sort.Strings(ct.Classes)
	sort.Strings(ct.Severities)
	return ct, nil
}

// YearSpan returns the first and last year present in counts.
func YearSpan(counts []MonthlyCount) (first, last int, ok bool) {
	if len(counts) == 0 {
		return 0, 0, false
	}
	first, last = counts[0].Year, counts[0].Year
	for _, c := range counts[1:] {
		first = min(first, c.Year)
		last = max(last, c.Year)
	}
	return first, last, true
}

// Total returns the sum of the monthly counts.
func Total(counts []MonthlyCount) int {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	return total
}

// RequireColumns returns ErrMissingColumn naming the first absent column.
func RequireColumns(d *Dataset, names ...string) error {
	for _, name := range names {
		if !d.HasColumn(name) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return nil
}
