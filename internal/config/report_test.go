package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/accident.report/internal/accidents"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEmptyReportConfig_Defaults(t *testing.T) {
	cfg := EmptyReportConfig()

	assert.Equal(t, "data/accidentes_transito.csv", cfg.GetInput())
	assert.Equal(t, "reports", cfg.GetOutputDir())
	assert.Equal(t, "png", cfg.GetChartFormat())
	assert.Equal(t, 2024, cfg.GetCutoffYear())
	assert.Equal(t, 5, cfg.GetPreviewRows())
	assert.Equal(t, "", cfg.GetDBPath())
	assert.Equal(t, "", cfg.GetWorkbookPath())
	assert.Equal(t, "localhost:0", cfg.GetListenAddr())
	assert.Contains(t, cfg.GetNullValues(), "")
	assert.Contains(t, cfg.GetDateLayouts(), "2006-01-02")
	assert.Contains(t, cfg.GetHourLayouts(), "15:04")
	assert.Equal(t, 10.0, cfg.GetChartWidthInches())
	assert.Equal(t, 6.0, cfg.GetChartHeightInches())
}

func TestMustLoadDefaultConfig_MatchesGetters(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyReportConfig()

	assert.Equal(t, empty.GetInput(), cfg.GetInput())
	assert.Equal(t, empty.GetOutputDir(), cfg.GetOutputDir())
	assert.Equal(t, empty.GetCutoffYear(), cfg.GetCutoffYear())
	assert.Equal(t, empty.GetPreviewRows(), cfg.GetPreviewRows())
	assert.Equal(t, empty.GetDateLayouts(), cfg.GetDateLayouts())
	assert.Equal(t, empty.GetHourLayouts(), cfg.GetHourLayouts())
	assert.Equal(t, empty.GetNullValues(), cfg.GetNullValues())
}

func TestDefaults_ShareLoaderLists(t *testing.T) {
	cfg := EmptyReportConfig()

	assert.Equal(t, accidents.DefaultDateLayouts, cfg.GetDateLayouts())
	assert.Equal(t, accidents.DefaultHourLayouts, cfg.GetHourLayouts())
	assert.Equal(t, accidents.DefaultNullValues, cfg.GetNullValues())

	layouts := cfg.GetDateLayouts()
	layouts[0] = "changed"
	assert.NotEqual(t, "changed", accidents.DefaultDateLayouts[0])
}

func TestLoadReportConfig_JSON(t *testing.T) {
	path := writeConfig(t, "report.json", `{
  "input": "fixtures/small.csv",
  "cutoff_year": 2022,
  "chart_format": "svg"
}`)

	cfg, err := LoadReportConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "fixtures/small.csv", cfg.GetInput())
	assert.Equal(t, 2022, cfg.GetCutoffYear())
	assert.Equal(t, "svg", cfg.GetChartFormat())
	// Unset fields fall back to defaults.
	assert.Equal(t, "reports", cfg.GetOutputDir())
}

func TestLoadReportConfig_YAML(t *testing.T) {
	path := writeConfig(t, "report.yaml", `
output_dir: out
preview_rows: 10
date_layouts:
  - "02/01/2006"
`)

	cfg, err := LoadReportConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.GetOutputDir())
	assert.Equal(t, 10, cfg.GetPreviewRows())
	assert.Equal(t, []string{"02/01/2006"}, cfg.GetDateLayouts())
}

func TestLoadReportConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"bad extension", "report.toml", `input = "x"`},
		{"bad json", "report.json", `{"input": `},
		{"cutoff out of range", "report.json", `{"cutoff_year": 1200}`},
		{"unknown chart format", "report.json", `{"chart_format": "gif"}`},
		{"negative preview", "report.json", `{"preview_rows": -1}`},
		{"workbook extension", "report.json", `{"workbook_path": "summary.csv"}`},
		{"empty layout", "report.json", `{"date_layouts": [""]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadReportConfig(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadReportConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ACCIDENT_REPORT_INPUT", "env.csv")
	t.Setenv("ACCIDENT_REPORT_CUTOFF_YEAR", "2023")
	t.Setenv("ACCIDENT_REPORT_XLSX", "summary.xlsx")

	cfg := EmptyReportConfig()
	cfg.SetOutputDir("keep")
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "env.csv", cfg.GetInput())
	assert.Equal(t, 2023, cfg.GetCutoffYear())
	assert.Equal(t, "summary.xlsx", cfg.GetWorkbookPath())
	assert.Equal(t, "keep", cfg.GetOutputDir())
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	t.Setenv("ACCIDENT_REPORT_FORMAT", "gif")
	cfg := EmptyReportConfig()
	assert.Error(t, cfg.ApplyEnv())
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := writeConfig(t, ".env", "ACCIDENT_REPORT_OUTPUT_DIR=dotenv-out\n")
	t.Setenv("ACCIDENT_REPORT_OUTPUT_DIR", "")
	os.Unsetenv("ACCIDENT_REPORT_OUTPUT_DIR")
	require.NoError(t, LoadDotEnv(path))

	cfg := EmptyReportConfig()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "dotenv-out", cfg.GetOutputDir())
}

func TestMerge(t *testing.T) {
	base := EmptyReportConfig()
	base.SetInput("a.csv")
	base.SetCutoffYear(2020)

	override := &ReportConfig{
		CutoffYear:       ptrInt(2021),
		ChartWidthInches: ptrFloat64(12),
	}
	base.Merge(override)
	base.Merge(nil)

	assert.Equal(t, "a.csv", base.GetInput())
	assert.Equal(t, 2021, base.GetCutoffYear())
	assert.Equal(t, 12.0, base.GetChartWidthInches())
}
