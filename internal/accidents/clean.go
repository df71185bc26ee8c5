package accidents

import (
	"fmt"

	"github.com/banshee-data/accident.report/internal/monitoring"
)

// Cleaner narrows and normalizes a loaded Dataset.
type Cleaner struct {
	// HourLayouts are tried, in order, on the Hora column.
	HourLayouts []string
}

// Clean runs the default Cleaner on d.
func Clean(d *Dataset) (*Dataset, error) {
	return (&Cleaner{}).Clean(d)
}

// Clean drops the unused columns, collapses class and severity variants,
// reformats the date and hour, and renames the columns last. d is not
// modified. Steps whose source column is absent are skipped.
func (c *Cleaner) Clean(d *Dataset) (*Dataset, error) {
	out, dropped, err := d.without(DroppedColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to drop columns: %w", err)
	}
	monitoring.Stagef("clean", "dropped %d columns", len(dropped))

	if out, err = mapColumn(out, ColClass, UnifyClass); err != nil {
		return nil, err
	}
	if out, err = mapColumn(out, ColSeverity, UnifySeverity); err != nil {
		return nil, err
	}

	if out, err = mapColumn(out, ColDate, func(v string) string {
		t, ok := parseStoredDate(v)
		if !ok {
			return ""
		}
		return t.Format(CleanDateLayout)
	}); err != nil {
		return nil, err
	}

	layouts := c.HourLayouts
	if len(layouts) == 0 {
		layouts = DefaultHourLayouts
	}
	if out, err = mapColumn(out, ColHour, func(v string) string {
		t, ok := parseWithLayouts(v, layouts)
		if !ok {
			return ""
		}
		return t.Format(CleanHourLayout)
	}); err != nil {
		return nil, err
	}

	for _, r := range RenamedColumns {
		if !out.HasColumn(r.From) {
			continue
		}
		if out, err = out.renamed(r.From, r.To); err != nil {
			return nil, fmt.Errorf("failed to rename %q: %w", r.From, err)
		}
	}
	return out, nil
}

// mapColumn applies fn to every present value of name. An empty result marks
// the cell missing. A dataset without the column is returned unchanged.
func mapColumn(d *Dataset, name string, fn func(string) string) (*Dataset, error) {
	col, err := d.Column(name)
	if err != nil {
		monitoring.Stagef("clean", "column %q not found, skipping", name)
		return d, nil
	}
	for i, v := range col.Values {
		if col.Null[i] {
			continue
		}
		if col.Values[i] = fn(v); col.Values[i] == "" {
			col.Null[i] = true
		}
	}
	out, err := d.withColumn(col)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite %q: %w", name, err)
	}
	return out, nil
}
