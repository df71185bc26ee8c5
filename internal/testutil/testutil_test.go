package testutil

import (
	"encoding/csv"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRow_MatchesHeader(t *testing.T) {
	t.Parallel()

	row := RawRow(Accident{Date: "2020-01-01", Class: "CHOQUE", Severity: "HERIDO"})
	require.Len(t, row, len(RawHeader))
	assert.Equal(t, "2020-01-01", row[1])
	assert.Equal(t, "CHOQUE", row[7])
	assert.Equal(t, "HERIDO", row[9])
}

func TestAccidentsCSV_RoundTripsThroughEncodingCSV(t *testing.T) {
	t.Parallel()

	text := AccidentsCSV(
		Accident{Date: "2020-01-01", Class: "CHOQUE"},
		Accident{Date: "2020-02-01", Class: "OTRO, VARIOS"},
	)
	records, err := csv.NewReader(strings.NewReader(text)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, RawHeader, records[0])
	assert.Equal(t, "OTRO, VARIOS", records[2][7])
}

func TestMonthlyAccidents(t *testing.T) {
	t.Parallel()

	got := MonthlyAccidents(2020, 2, func(year int, month time.Month) int {
		if year == 2021 && month == time.March {
			return 3
		}
		return 1
	})
	assert.Len(t, got, 26)
	assert.Equal(t, "2020-01-15", got[0].Date)
	assert.Equal(t, "2021-12-15", got[len(got)-1].Date)
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := WriteFile(t, t.TempDir(), "nested/data.csv", "a,b\n")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodGet, "/api/monthly")
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/monthly", req.URL.Path)
}
