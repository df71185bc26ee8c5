package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/accident.report/internal/testutil"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "data/accidentes_transito.csv", *input)
	assert.Equal(t, "reports", *outDir)
	assert.Equal(t, "png", *chartFormat)
	assert.Equal(t, 2024, *cutoff)
	assert.Equal(t, "localhost:0", *listen)
	assert.False(t, *serve)
	assert.False(t, *quiet)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("", filepath.Join(t.TempDir(), ".env"), nil)
	require.NoError(t, err)

	assert.Equal(t, "data/accidentes_transito.csv", cfg.GetInput())
	assert.Equal(t, 2024, cfg.GetCutoffYear())
	assert.Equal(t, "", cfg.GetDBPath())
}

func TestLoadConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "report.yaml", "input: from-file.csv\noutput_dir: file-out\ncutoff_year: 2022\nchart_format: svg\n")
	dotenv := testutil.WriteFile(t, dir, ".env", "ACCIDENT_REPORT_OUTPUT_DIR=env-out\n")
	t.Setenv("ACCIDENT_REPORT_CUTOFF_YEAR", "2023")
	// godotenv sets the process environment directly.
	t.Cleanup(func() { os.Unsetenv("ACCIDENT_REPORT_OUTPUT_DIR") })

	cfg, err := loadConfig(path, dotenv, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-file.csv", cfg.GetInput())
	assert.Equal(t, "env-out", cfg.GetOutputDir())
	assert.Equal(t, 2023, cfg.GetCutoffYear())
	assert.Equal(t, "svg", cfg.GetChartFormat())

	// Explicit flags win over everything else.
	*cutoff = 2020
	t.Cleanup(func() { *cutoff = 2024 })
	cfg, err = loadConfig(path, dotenv, map[string]bool{"cutoff": true})
	require.NoError(t, err)
	assert.Equal(t, 2020, cfg.GetCutoffYear())
	assert.Equal(t, "env-out", cfg.GetOutputDir())
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	*chartFormat = "gif"
	t.Cleanup(func() { *chartFormat = "png" })

	_, err := loadConfig("", filepath.Join(t.TempDir(), ".env"), map[string]bool{"format": true})
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.json"), "", nil)
	assert.Error(t, err)
}
