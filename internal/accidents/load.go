package accidents

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/banshee-data/accident.report/internal/fsutil"
	"github.com/banshee-data/accident.report/internal/monitoring"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadOptions controls how raw cells are interpreted.
type LoadOptions struct {
	// NullValues are cell values treated as missing.
	NullValues []string
	// DateLayouts are tried, in order, on the accident date column.
	DateLayouts []string
}

// DefaultNullValues are the cells treated as missing when nothing is
// configured.
var DefaultNullValues = []string{"", "NA", "NaN", "nan", "N/A", "null"}

// DefaultLoadOptions returns the options used when nothing is configured.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		NullValues:  DefaultNullValues,
		DateLayouts: DefaultDateLayouts,
	}
}

// Load reads the accident CSV at path.
func Load(fs fsutil.FileSystem, path string, opts LoadOptions) (*Dataset, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	d, err := LoadReader(f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return d, nil
}

// LoadReader parses CSV from r. When the accident date column is present its
// values are parsed and rewritten as DateTimeLayout; values that do not parse
// become missing.
func LoadReader(r io.Reader, opts LoadOptions) (*Dataset, error) {
	if len(opts.DateLayouts) == 0 {
		opts.DateLayouts = DefaultDateLayouts
	}

	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrMalformedCSV)
	}

	d, err := FromRecords(records[0], records[1:], opts.NullValues)
	if err != nil {
		return nil, err
	}

	if !d.HasColumn(ColDate) {
		monitoring.Logf("column %q not found, dates left as-is", ColDate)
		return d, nil
	}
	return coerceDates(d, opts.DateLayouts)
}

func coerceDates(d *Dataset, layouts []string) (*Dataset, error) {
	col, err := d.Column(ColDate)
	if err != nil {
		return nil, err
	}
	failed := 0
	for i, v := range col.Values {
		if col.Null[i] {
			continue
		}
		t, ok := parseWithLayouts(v, layouts)
		if !ok {
			col.Values[i], col.Null[i] = "", true
			failed++
			continue
		}
		col.Values[i] = t.Format(DateTimeLayout)
	}
	if failed > 0 {
		monitoring.Logf("%d values in %q could not be parsed and were set to missing", failed, ColDate)
	}
	out, err := d.withColumn(col)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite %s: %w", ColDate, err)
	}
	return out, nil
}
