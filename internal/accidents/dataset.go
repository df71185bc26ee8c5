package accidents

import (
	"errors"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/banshee-data/accident.report/internal/monitoring"
)

var (
	// ErrMissingColumn is returned when a stage needs a column the dataset lacks.
	ErrMissingColumn = errors.New("missing column")
	// ErrMalformedCSV is returned when the input cannot be parsed as CSV.
	ErrMalformedCSV = errors.New("malformed csv")
)

// naMarker is how gota spells a missing string cell.
const naMarker = "NaN"

// Dataset is an immutable table of text cells. Every operation that changes
// the table returns a new Dataset.
type Dataset struct {
	df dataframe.DataFrame
}

// Column is a copy of one dataset column. Null[i] reports whether Values[i]
// is missing; missing values are stored as "".
type Column struct {
	Name   string
	Values []string
	Null   []bool
}

func newDataset(df dataframe.DataFrame) (*Dataset, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	return &Dataset{df: df}, nil
}

// FromRecords builds a Dataset from a header and rows. Cells equal to one of
// nullValues are missing. A header with no rows yields an empty Dataset that
// keeps its columns.
func FromRecords(header []string, rows [][]string, nullValues []string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: empty header", ErrMalformedCSV)
	}
	if len(rows) == 0 {
		cols := make([]series.Series, len(header))
		for i, name := range header {
			cols[i] = series.New([]string{}, series.String, name)
		}
		d, err := newDataset(dataframe.New(cols...))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		warnRenamedColumns(header, d.Columns())
		return d, nil
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrMalformedCSV, i+1, len(row), len(header))
		}
		records = append(records, row)
	}
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nullValues),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, df.Err)
	}
	warnRenamedColumns(header, df.Names())
	return &Dataset{df: df}, nil
}

// warnRenamedColumns logs header names that were blank or repeated and so
// were given a generated name.
func warnRenamedColumns(header, got []string) {
	for i, name := range header {
		if i < len(got) && got[i] != name {
			monitoring.Logf("column %d header %q renamed to %q", i+1, name, got[i])
		}
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return d.df.Nrow() }

// Columns returns the column names in order.
func (d *Dataset) Columns() []string { return d.df.Names() }

// HasColumn reports whether name is a column of d.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.df.Names() {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns a copy of the named column.
func (d *Dataset) Column(name string) (Column, error) {
	if !d.HasColumn(name) {
		return Column{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	s := d.df.Col(name)
	values := s.Records()
	nulls := s.IsNaN()
	for i, null := range nulls {
		if null {
			values[i] = ""
		}
	}
	return Column{Name: name, Values: values, Null: nulls}, nil
}

// Records returns the header and the rows with missing cells as "".
func (d *Dataset) Records() ([]string, [][]string) {
	header := d.Columns()
	rows := make([][]string, d.Len())
	for i := range rows {
		rows[i] = make([]string, len(header))
	}
	for j, name := range header {
		col, err := d.Column(name)
		if err != nil {
			continue
		}
		for i, v := range col.Values {
			rows[i][j] = v
		}
	}
	return header, rows
}

// Head returns the first n rows as a new Dataset.
func (d *Dataset) Head(n int) (*Dataset, error) {
	if n >= d.Len() {
		return d, nil
	}
	if n <= 0 {
		return nil, fmt.Errorf("head: row count must be positive, got %d", n)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return newDataset(d.df.Subset(idx))
}

// String renders the table the way gota prints a DataFrame.
func (d *Dataset) String() string { return d.df.String() }

// withColumn returns a copy of d with col replacing the column of the same
// name, or appended when absent.
func (d *Dataset) withColumn(col Column) (*Dataset, error) {
	values := make([]string, len(col.Values))
	for i, v := range col.Values {
		if col.Null[i] {
			values[i] = naMarker
			continue
		}
		values[i] = v
	}
	return newDataset(d.df.Mutate(series.New(values, series.String, col.Name)))
}

// without returns a copy of d minus the named columns. Names that are not
// columns of d are ignored.
func (d *Dataset) without(names []string) (*Dataset, []string, error) {
	var present []string
	for _, name := range names {
		if d.HasColumn(name) {
			present = append(present, name)
		}
	}
	if len(present) == 0 {
		return d, nil, nil
	}
	out, err := newDataset(d.df.Drop(present))
	return out, present, err
}

// renamed returns a copy of d with column from renamed to to.
func (d *Dataset) renamed(from, to string) (*Dataset, error) {
	return newDataset(d.df.Rename(to, from))
}
