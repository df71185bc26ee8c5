package accidents

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/accident.report/internal/fsutil"
	"github.com/banshee-data/accident.report/internal/monitoring"
	"github.com/banshee-data/accident.report/internal/testutil"
)

// captureLogs collects monitoring output for the rest of the test.
func captureLogs(t *testing.T) *[]string {
	t.Helper()
	prev := monitoring.Logf
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })
	return &lines
}

func TestLoadReader_CoercesDates(t *testing.T) {
	text := testutil.CSV([]string{ColDate, ColSeverity},
		[]string{"2020-01-05", "HERIDO"},
		[]string{"01/15/2021", "MUERTO"},
		[]string{"2021/03/09 14:30:00", "HERIDO"},
		[]string{"not a date", "HERIDO"},
		[]string{"", "HERIDO"},
	)

	d, err := LoadReader(strings.NewReader(text), DefaultLoadOptions())
	require.NoError(t, err)
	require.Equal(t, 5, d.Len())

	col, err := d.Column(ColDate)
	require.NoError(t, err)
	want := []string{"2020-01-05 00:00:00", "2021-01-15 00:00:00", "2021-03-09 14:30:00", "", ""}
	if diff := cmp.Diff(want, col.Values); diff != "" {
		t.Errorf("dates mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []bool{false, false, false, true, true}, col.Null)
}

func TestLoadReader_WithoutDateColumn(t *testing.T) {
	text := testutil.CSV([]string{"Barrio", ColSeverity},
		[]string{"CENTRO", "HERIDO"},
		[]string{"NORTE", "NA"},
	)

	d, err := LoadReader(strings.NewReader(text), DefaultLoadOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Barrio", ColSeverity}, d.Columns())
	assert.False(t, d.HasColumn(ColDate))

	col, err := d.Column(ColSeverity)
	require.NoError(t, err)
	assert.Equal(t, []string{"HERIDO", ""}, col.Values)
	assert.Equal(t, []bool{false, true}, col.Null)
}

func TestLoadReader_StripsBOM(t *testing.T) {
	text := "\xEF\xBB\xBF" + testutil.CSV([]string{ColDate, ColClass},
		[]string{"2020-01-05", "CHOQUE"},
	)

	d, err := LoadReader(strings.NewReader(text), DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{ColDate, ColClass}, d.Columns())
}

func TestLoadReader_CustomLayouts(t *testing.T) {
	text := testutil.CSV([]string{ColDate}, []string{"05/01/2020"})

	d, err := LoadReader(strings.NewReader(text), LoadOptions{DateLayouts: []string{"02/01/2006"}})
	require.NoError(t, err)

	col, err := d.Column(ColDate)
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01-05 00:00:00"}, col.Values)
}

func TestLoadReader_HeaderOnly(t *testing.T) {
	text := testutil.CSV(testutil.RawHeader)

	d, err := LoadReader(strings.NewReader(text), DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())
	assert.Equal(t, testutil.RawHeader, d.Columns())

	col, err := d.Column(ColDate)
	require.NoError(t, err)
	assert.Empty(t, col.Values)

	cleaned, err := Clean(d)
	require.NoError(t, err)
	assert.Equal(t, 0, cleaned.Len())
	assert.True(t, cleaned.HasColumn(ColCleanDate))

	head, err := cleaned.Head(PreviewRows)
	require.NoError(t, err)
	assert.Equal(t, 0, head.Len())

	counts, err := MonthlyCounts(cleaned, 0)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestFromRecords_LogsRenamedColumns(t *testing.T) {
	logs := captureLogs(t)

	d, err := FromRecords([]string{ColSeverity, ColSeverity}, [][]string{{"HERIDO", "MUERTO"}}, nil)
	require.NoError(t, err)

	assert.False(t, d.HasColumn(ColSeverity))
	assert.Equal(t, []string{ColSeverity + "_0", ColSeverity + "_1"}, d.Columns())
	require.Len(t, *logs, 2)
	assert.Contains(t, (*logs)[0], `header "Gravedad" renamed to "Gravedad_0"`)
	assert.Contains(t, (*logs)[1], `header "Gravedad" renamed to "Gravedad_1"`)
}

func TestFromRecords_UniqueHeaderIsQuiet(t *testing.T) {
	logs := captureLogs(t)

	_, err := FromRecords([]string{ColClass, ColSeverity}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, *logs)
}

func TestLoadReader_Malformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty input", ""},
		{"ragged rows", "a,b\n1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadReader(strings.NewReader(tt.text), DefaultLoadOptions())
			assert.ErrorIs(t, err, ErrMalformedCSV)
		})
	}
}

func TestLoad_FileSystem(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	fs.WriteFile("data/accidentes.csv", []byte(testutil.AccidentsCSV(
		testutil.Accident{Date: "2020-01-05", Hour: "8:05", Class: "CHOQUE", Severity: "HERIDO"},
		testutil.Accident{Date: "2020-02-10", Hour: "17:45", Class: "OTRO", Severity: "SOLO DAÑOS"},
	)))

	d, err := Load(fs, "data/accidentes.csv", DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, testutil.RawHeader, d.Columns())

	_, err = Load(fs, "data/missing.csv", DefaultLoadOptions())
	assert.Error(t, err)
}

func TestDataset_Records(t *testing.T) {
	d, err := FromRecords([]string{"a", "b"}, [][]string{{"1", "NA"}, {"", "x"}}, []string{"", "NA"})
	require.NoError(t, err)

	header, rows := d.Records()
	assert.Equal(t, []string{"a", "b"}, header)
	assert.Equal(t, [][]string{{"1", ""}, {"", "x"}}, rows)

	_, err = d.Column("c")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestDataset_Head(t *testing.T) {
	d, err := FromRecords([]string{"a"}, [][]string{{"1"}, {"2"}, {"3"}}, nil)
	require.NoError(t, err)

	head, err := d.Head(2)
	require.NoError(t, err)
	assert.Equal(t, 2, head.Len())
	assert.Equal(t, 3, d.Len())

	all, err := d.Head(10)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Len())
}
