// Package testutil provides shared test utilities and fixtures.
//
// The fixtures build accident CSVs shaped like the municipal dataset so that
// loader, cleaner and pipeline tests share one source of truth for the raw
// column layout.
package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// RawHeader is the column layout of the raw accident CSV.
var RawHeader = []string{
	"Informes Policiales de Accidentes de Tránsito (IPAT) ",
	"Fecha del Accidente",
	"Hora",
	"Dirección",
	"Barrio",
	"Comuna",
	"Corregimiento",
	"Clase de Accidente",
	"Choque Con",
	"Gravedad",
	"Género",
	"Clase de Vehículo 1",
	"Servicio",
	"Gravedad Conductor",
	"Embriaguez",
	"Grado",
	"Clase de Vehículo 2",
	"Servicio 2",
	"Gravedad Conductor 2",
	"Embriaguez 2",
	"Grado 2",
	"Hipótesis",
	"Hipótesis 2",
	"Motocicleta",
	"Mes",
}

// Accident holds the fields tests usually care about. Everything else in a
// raw row is filler.
type Accident struct {
	Date     string
	Hour     string
	Class    string
	Severity string
}

// RawRow lays a out in RawHeader order.
func RawRow(a Accident) []string {
	return []string{
		"A000123",
		a.Date,
		a.Hour,
		"CALLE 10 # 5-20",
		"CENTRO",
		"1",
		"",
		a.Class,
		"VEHICULO",
		a.Severity,
		"MASCULINO",
		"AUTOMOVIL",
		"PARTICULAR",
		"ILESO",
		"NO",
		"0",
		"MOTOCICLETA",
		"PARTICULAR",
		"HERIDO",
		"NO",
		"0",
		"157",
		"",
		"SI",
		"ENERO",
	}
}

// CSV encodes a header and rows as CSV text.
func CSV(header []string, rows ...[]string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(header)
	for _, row := range rows {
		_ = w.Write(row)
	}
	w.Flush()
	return buf.String()
}

// AccidentsCSV encodes accidents as a raw accident CSV.
func AccidentsCSV(accidents ...Accident) string {
	rows := make([][]string, len(accidents))
	for i, a := range accidents {
		rows[i] = RawRow(a)
	}
	return CSV(RawHeader, rows...)
}

// MonthlyAccidents generates perMonth(year, month) accidents for every month
// of years [startYear, startYear+years). Dates fall on the 15th, classes and
// severities rotate through small fixed sets.
func MonthlyAccidents(startYear, years int, perMonth func(year int, month time.Month) int) []Accident {
	classes := []string{"CHOQUE", "ATROPELLO", "CAÍDA"}
	severities := []string{"HERIDO", "SOLO DAÑOS", "MUERTO"}
	var out []Accident
	n := 0
	for y := startYear; y < startYear+years; y++ {
		for m := time.January; m <= time.December; m++ {
			for i := 0; i < perMonth(y, m); i++ {
				out = append(out, Accident{
					Date:     fmt.Sprintf("%04d-%02d-15", y, int(m)),
					Hour:     fmt.Sprintf("%d:%02d", 8+n%12, n%60),
					Class:    classes[n%len(classes)],
					Severity: severities[n%len(severities)],
				})
				n++
			}
		}
	}
	return out
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}
