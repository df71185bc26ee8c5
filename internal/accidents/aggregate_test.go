package accidents

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/accident.report/internal/testutil"
)

func cleanedFixture(t *testing.T, accidents ...testutil.Accident) *Dataset {
	t.Helper()
	d, err := Clean(loadFixture(t, accidents...))
	require.NoError(t, err)
	return d
}

func TestMonthlyCounts_SumMatchesFilteredRows(t *testing.T) {
	rows := testutil.MonthlyAccidents(2022, 3, func(year int, month time.Month) int {
		return int(month)%3 + 1
	})
	rows = append(rows, testutil.Accident{Date: "", Class: "CHOQUE", Severity: "HERIDO"})
	d := cleanedFixture(t, rows...)

	before := 0
	for _, r := range rows {
		if r.Date != "" && r.Date < "2024" {
			before++
		}
	}

	counts, err := MonthlyCounts(d, 2024)
	require.NoError(t, err)
	assert.Len(t, counts, 24)
	assert.Equal(t, before, Total(counts))
	for _, c := range counts {
		assert.Less(t, c.Year, 2024)
	}

	all, err := MonthlyCounts(d, 0)
	require.NoError(t, err)
	assert.Len(t, all, 36)
	assert.Equal(t, len(rows)-1, Total(all))
}

func TestMonthlyCounts_SortedAndGrouped(t *testing.T) {
	d := cleanedFixture(t,
		testutil.Accident{Date: "2021-03-02"},
		testutil.Accident{Date: "2020-12-31"},
		testutil.Accident{Date: "2021-03-20"},
		testutil.Accident{Date: "2020-01-01"},
	)

	counts, err := MonthlyCounts(d, 2024)
	require.NoError(t, err)

	want := []MonthlyCount{
		{Year: 2020, Month: time.January, Count: 1},
		{Year: 2020, Month: time.December, Count: 1},
		{Year: 2021, Month: time.March, Count: 2},
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("monthly counts mismatch (-want +got):\n%s", diff)
	}

	first, last, ok := YearSpan(counts)
	assert.True(t, ok)
	assert.Equal(t, 2020, first)
	assert.Equal(t, 2021, last)

	_, _, ok = YearSpan(nil)
	assert.False(t, ok)
}

func TestMonthlyCounts_MissingColumn(t *testing.T) {
	d, err := FromRecords([]string{ColCleanClass}, [][]string{{"CHOQUE"}}, nil)
	require.NoError(t, err)

	_, err = MonthlyCounts(d, 2024)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.ErrorContains(t, err, ColCleanDate)
}

func TestClassSeverity(t *testing.T) {
	d := cleanedFixture(t,
		testutil.Accident{Date: "2020-01-05", Class: "CHOQUE", Severity: "HERIDO"},
		testutil.Accident{Date: "2020-02-05", Class: "CHOQUE", Severity: "HERIDOS"},
		testutil.Accident{Date: "2021-02-05", Class: "CAÍDA", Severity: "MUERTO"},
		testutil.Accident{Date: "2021-02-05", Class: "", Severity: "HERIDO"},
		testutil.Accident{Date: "2024-06-01", Class: "CHOQUE", Severity: "MUERTO"},
		testutil.Accident{Date: "", Class: "CHOQUE", Severity: "SOLO DAÑOS"},
	)

	ct, err := ClassSeverity(d, 2024)
	require.NoError(t, err)

	assert.Equal(t, []string{"CAIDA OCUPANTE", "CHOQUE"}, ct.Classes)
	assert.Equal(t, []string{"HERIDOS", "MUERTOS"}, ct.Severities)
	assert.Equal(t, 2, ct.Count("CHOQUE", "HERIDOS"))
	assert.Equal(t, 0, ct.Count("CHOQUE", "MUERTOS"))
	assert.Equal(t, 3, ct.Total())
	assert.Equal(t, 2, ct.Max())

	want := []CrossTabCell{
		{Class: "CAIDA OCUPANTE", Severity: "MUERTOS", Count: 1},
		{Class: "CHOQUE", Severity: "HERIDOS", Count: 2},
	}
	if diff := cmp.Diff(want, ct.Cells()); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}

	unfiltered, err := ClassSeverity(d, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, unfiltered.Total())
}

func TestClassSeverity_MissingColumns(t *testing.T) {
	d, err := FromRecords([]string{ColCleanDate, ColCleanSeverity}, [][]string{{"2020/01/01", "HERIDOS"}}, nil)
	require.NoError(t, err)

	_, err = ClassSeverity(d, 2024)
	assert.ErrorIs(t, err, ErrMissingColumn)

	assert.ErrorIs(t, RequireColumns(d, ColCleanClass, ColCleanSeverity), ErrMissingColumn)
	assert.NoError(t, RequireColumns(d, ColCleanDate, ColCleanSeverity))
}

func TestClassSeverity_DateRequiredOnlyWithCutoff(t *testing.T) {
	d, err := FromRecords([]string{ColCleanClass, ColCleanSeverity}, [][]string{{"CHOQUE", "HERIDOS"}}, nil)
	require.NoError(t, err)

	_, err = ClassSeverity(d, 2024)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), ColCleanDate)

	ct, err := ClassSeverity(d, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, ct.Total())
}
