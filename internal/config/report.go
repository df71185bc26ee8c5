package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/accident.report/internal/accidents"
)

// DefaultConfigPath is the path to the canonical report defaults file.
const DefaultConfigPath = "config/report.defaults.json"

// EnvPrefix prefixes every environment override, e.g. ACCIDENT_REPORT_INPUT.
const EnvPrefix = "ACCIDENT_REPORT"

// ReportConfig is the root configuration of a report run. Every field is
// optional; the Get* methods supply the defaults for fields left unset, so
// partial files are safe.
type ReportConfig struct {
	// Input and output
	Input        *string `json:"input,omitempty" yaml:"input,omitempty" validate:"omitempty,min=1"`
	OutputDir    *string `json:"output_dir,omitempty" yaml:"output_dir,omitempty" validate:"omitempty,min=1"`
	ChartFormat  *string `json:"chart_format,omitempty" yaml:"chart_format,omitempty" validate:"omitempty,oneof=png svg"`
	DBPath       *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	WorkbookPath *string `json:"workbook_path,omitempty" yaml:"workbook_path,omitempty"`

	// Analysis
	CutoffYear  *int     `json:"cutoff_year,omitempty" yaml:"cutoff_year,omitempty" validate:"omitempty,gte=1900,lte=2200"`
	PreviewRows *int     `json:"preview_rows,omitempty" yaml:"preview_rows,omitempty" validate:"omitempty,gte=0,lte=100"`
	NullValues  []string `json:"null_values,omitempty" yaml:"null_values,omitempty"`
	DateLayouts []string `json:"date_layouts,omitempty" yaml:"date_layouts,omitempty" validate:"omitempty,dive,required"`
	HourLayouts []string `json:"hour_layouts,omitempty" yaml:"hour_layouts,omitempty" validate:"omitempty,dive,required"`

	// Rendering
	ChartWidthInches  *float64 `json:"chart_width_inches,omitempty" yaml:"chart_width_inches,omitempty" validate:"omitempty,gt=0,lte=60"`
	ChartHeightInches *float64 `json:"chart_height_inches,omitempty" yaml:"chart_height_inches,omitempty" validate:"omitempty,gt=0,lte=60"`

	// Viewer
	ListenAddr *string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// EnvOverrides are read from ACCIDENT_REPORT_* variables (and a .env file).
// Zero values mean "not set".
type EnvOverrides struct {
	Input       string `envconfig:"INPUT"`
	OutputDir   string `envconfig:"OUTPUT_DIR"`
	ChartFormat string `envconfig:"FORMAT"`
	CutoffYear  int    `envconfig:"CUTOFF_YEAR"`
	DBPath      string `envconfig:"DB"`
	Workbook    string `envconfig:"XLSX"`
	ListenAddr  string `envconfig:"LISTEN"`
}

var validate = validator.New()

func ptrString(v string) *string     { return &v }
func ptrInt(v int) *int              { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// EmptyReportConfig returns a ReportConfig with all fields unset.
func EmptyReportConfig() *ReportConfig {
	return &ReportConfig{}
}

// LoadReportConfig loads a ReportConfig from a .json, .yaml or .yml file.
// The file must be under 1MB and pass Validate.
func LoadReportConfig(path string) (*ReportConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyReportConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// one of its parents. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *ReportConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadReportConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the struct tags and the cross-field rules.
func (c *ReportConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.WorkbookPath != nil && *c.WorkbookPath != "" &&
		strings.ToLower(filepath.Ext(*c.WorkbookPath)) != ".xlsx" {
		return fmt.Errorf("workbook_path must end in .xlsx, got %q", *c.WorkbookPath)
	}
	return nil
}

// LoadDotEnv loads variables from a .env file without overriding variables
// already present in the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays ACCIDENT_REPORT_* environment variables onto c.
func (c *ReportConfig) ApplyEnv() error {
	var env EnvOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if env.Input != "" {
		c.Input = ptrString(env.Input)
	}
	if env.OutputDir != "" {
		c.OutputDir = ptrString(env.OutputDir)
	}
	if env.ChartFormat != "" {
		c.ChartFormat = ptrString(env.ChartFormat)
	}
	if env.CutoffYear != 0 {
		c.CutoffYear = ptrInt(env.CutoffYear)
	}
	if env.DBPath != "" {
		c.DBPath = ptrString(env.DBPath)
	}
	if env.Workbook != "" {
		c.WorkbookPath = ptrString(env.Workbook)
	}
	if env.ListenAddr != "" {
		c.ListenAddr = ptrString(env.ListenAddr)
	}
	return c.Validate()
}

// Merge copies every field set in other onto c.
func (c *ReportConfig) Merge(other *ReportConfig) {
	if other == nil {
		return
	}
	if other.Input != nil {
		c.Input = other.Input
	}
	if other.OutputDir != nil {
		c.OutputDir = other.OutputDir
	}
	if other.ChartFormat != nil {
		c.ChartFormat = other.ChartFormat
	}
	if other.DBPath != nil {
		c.DBPath = other.DBPath
	}
	if other.WorkbookPath != nil {
		c.WorkbookPath = other.WorkbookPath
	}
	if other.CutoffYear != nil {
		c.CutoffYear = other.CutoffYear
	}
	if other.PreviewRows != nil {
		c.PreviewRows = other.PreviewRows
	}
	if other.NullValues != nil {
		c.NullValues = other.NullValues
	}
	if other.DateLayouts != nil {
		c.DateLayouts = other.DateLayouts
	}
	if other.HourLayouts != nil {
		c.HourLayouts = other.HourLayouts
	}
	if other.ChartWidthInches != nil {
		c.ChartWidthInches = other.ChartWidthInches
	}
	if other.ChartHeightInches != nil {
		c.ChartHeightInches = other.ChartHeightInches
	}
	if other.ListenAddr != nil {
		c.ListenAddr = other.ListenAddr
	}
}

// SetInput, SetOutputDir and friends let flags override loaded values.
func (c *ReportConfig) SetInput(v string)        { c.Input = ptrString(v) }
func (c *ReportConfig) SetOutputDir(v string)    { c.OutputDir = ptrString(v) }
func (c *ReportConfig) SetChartFormat(v string)  { c.ChartFormat = ptrString(v) }
func (c *ReportConfig) SetCutoffYear(v int)      { c.CutoffYear = ptrInt(v) }
func (c *ReportConfig) SetDBPath(v string)       { c.DBPath = ptrString(v) }
func (c *ReportConfig) SetWorkbookPath(v string) { c.WorkbookPath = ptrString(v) }
func (c *ReportConfig) SetListenAddr(v string)   { c.ListenAddr = ptrString(v) }

// GetInput returns the CSV path or the default.
func (c *ReportConfig) GetInput() string {
	if c.Input == nil || *c.Input == "" {
		return "data/accidentes_transito.csv"
	}
	return *c.Input
}

// GetOutputDir returns the chart output root or the default.
func (c *ReportConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "reports"
	}
	return *c.OutputDir
}

// GetChartFormat returns "png" or "svg".
func (c *ReportConfig) GetChartFormat() string {
	if c.ChartFormat == nil || *c.ChartFormat == "" {
		return "png"
	}
	return *c.ChartFormat
}

// GetDBPath returns the SQLite export path; empty disables the export.
func (c *ReportConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetWorkbookPath returns the XLSX export path; empty disables the export.
func (c *ReportConfig) GetWorkbookPath() string {
	if c.WorkbookPath == nil {
		return ""
	}
	return *c.WorkbookPath
}

// GetCutoffYear returns the exclusive cutoff year for the visualizers.
func (c *ReportConfig) GetCutoffYear() int {
	if c.CutoffYear == nil {
		return 2024
	}
	return *c.CutoffYear
}

// GetPreviewRows returns how many rows the raw and cleaned previews print.
// Zero turns both previews off.
func (c *ReportConfig) GetPreviewRows() int {
	if c.PreviewRows == nil {
		return 5
	}
	return *c.PreviewRows
}

// GetNullValues returns the cell values treated as missing on load.
func (c *ReportConfig) GetNullValues() []string {
	if c.NullValues == nil {
		return slices.Clone(accidents.DefaultNullValues)
	}
	return c.NullValues
}

// GetDateLayouts returns the layouts tried, in order, for the date column.
func (c *ReportConfig) GetDateLayouts() []string {
	if len(c.DateLayouts) == 0 {
		return slices.Clone(accidents.DefaultDateLayouts)
	}
	return c.DateLayouts
}

// GetHourLayouts returns the layouts tried, in order, for the hour column.
func (c *ReportConfig) GetHourLayouts() []string {
	if len(c.HourLayouts) == 0 {
		return slices.Clone(accidents.DefaultHourLayouts)
	}
	return c.HourLayouts
}

// GetChartWidthInches returns the static chart width.
func (c *ReportConfig) GetChartWidthInches() float64 {
	if c.ChartWidthInches == nil {
		return 10
	}
	return *c.ChartWidthInches
}

// GetChartHeightInches returns the static chart height.
func (c *ReportConfig) GetChartHeightInches() float64 {
	if c.ChartHeightInches == nil {
		return 6
	}
	return *c.ChartHeightInches
}

// GetListenAddr returns the viewer listen address.
func (c *ReportConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return "localhost:0"
	}
	return *c.ListenAddr
}
