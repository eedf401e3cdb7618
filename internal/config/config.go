// =============================================================================
// Pay Equity Processor - Configuration Module
// =============================================================================
//
// This module loads the application configuration and the layout profiles.
//
// CONFIGURATION SOURCES (later sources win):
//   1. Built-in defaults (applyMainConfigDefaults)
//   2. The main config file (config.yaml, --config flag)
//   3. A .env file in the working directory
//   4. PAYEQUITY_* environment variables (PAYEQUITY_HTTP_ADDR, ...)
//
// LAYOUT PROFILES:
//   A layout profile maps the headers of one export format onto the
//   canonical employee fields. The "general" and "dated" profiles are
//   embedded in the binary; YAML files in layouts_dir override them by name.
//
// =============================================================================

package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable key.
const EnvPrefix = "PAYEQUITY"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// Env selects the log format: "development" (console) or "production" (JSON).
	Env string `mapstructure:"env" validate:"oneof=development production"`

	// LogLevel controls the verbosity of logging.
	LogLevel string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`

	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned by "process --dir" when no directory is given.
	InputDir string `mapstructure:"input_dir" validate:"required"`

	// OutputDir receives the normalized spreadsheet, the report and error logs.
	OutputDir string `mapstructure:"output_dir" validate:"required"`

	// LayoutsDir holds extra layout profile YAML files. Optional.
	LayoutsDir string `mapstructure:"layouts_dir"`

	// TemplatePath is the report template. A missing file is not an error;
	// the report falls back to the default styling.
	TemplatePath string `mapstructure:"template_path"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines output file names.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {name}      - Input file name without extension
	//   {kind}      - "datos" for the spreadsheet, "informe" for the report
	//   {ext}       - "xlsx" or "pdf"
	OutputNameFormat string `mapstructure:"output_name_format" validate:"required"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// DefaultFormat is the layout profile used when none is requested.
	DefaultFormat string `mapstructure:"default_format" validate:"required"`

	// DefaultReport is the report type used when none is requested.
	DefaultReport string `mapstructure:"default_report" validate:"oneof=consolidated mean median complements"`

	// DefaultPassword is tried for profiles that declare password_required
	// when the caller supplies no password.
	DefaultPassword string `mapstructure:"default_password"`

	// MaxConcurrency bounds how many files "process --dir" handles at once.
	MaxConcurrency int `mapstructure:"max_concurrency" validate:"min=1,max=64"`

	// MinGroupSize is the privacy threshold: smaller groups are blanked.
	MinGroupSize int `mapstructure:"min_group_size" validate:"min=1"`

	HTTP   HTTPConfig   `mapstructure:"http"`
	Update UpdateConfig `mapstructure:"update"`
}

// HTTPConfig configures the web form adapter.
type HTTPConfig struct {
	Addr           string        `mapstructure:"addr" validate:"required"`
	MaxUploadMB    int           `mapstructure:"max_upload_mb" validate:"min=1,max=1024"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps" validate:"gt=0"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst" validate:"min=1"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`

	// FileRetention is how long served artifacts stay in the output
	// directory. Zero keeps them forever.
	FileRetention time.Duration `mapstructure:"file_retention"`
}

// UpdateConfig configures the update check.
type UpdateConfig struct {
	// URL of the JSON version feed. Empty disables the check.
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// =============================================================================
// LOADING
// =============================================================================

// defaults are registered with viper so environment variables can override
// keys that appear in no config file.
var defaults = map[string]any{
	"env":                   "development",
	"log_level":             "info",
	"input_dir":             "./input",
	"output_dir":            "./output",
	"layouts_dir":           "./layouts",
	"template_path":         "./templates/report.yaml",
	"output_name_format":    "{name}_{kind}_{timestamp}.{ext}",
	"default_format":        "general",
	"default_report":        "consolidated",
	"default_password":      "",
	"max_concurrency":       4,
	"min_group_size":        2,
	"http.addr":             ":8080",
	"http.max_upload_mb":    50,
	"http.rate_limit_rps":   5.0,
	"http.rate_limit_burst": 10,
	"http.read_timeout":     "60s",
	"http.write_timeout":    "120s",
	"http.file_retention":   "24h",
	"update.url":            "",
	"update.timeout":        "10s",
}

// NewViper prepares a viper instance reading configPath, .env and the
// environment. A missing config file is not an error.
func NewViper(configPath string) (*viper.Viper, error) {
	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	return v, nil
}

// LoadMainConfig reads the main configuration from configPath and the environment.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file (may not exist).
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be parsed or the values are invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	v, err := NewViper(configPath)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes, completes and validates a configuration.
func FromViper(v *viper.Viper) (*MainConfig, error) {
	var cfg MainConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyMainConfigDefaults(&cfg)

	if err := validateMainConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyMainConfigDefaults fills zero values left by an explicit empty setting.
func applyMainConfigDefaults(cfg *MainConfig) {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.OutputNameFormat == "" {
		cfg.OutputNameFormat = "{name}_{kind}_{timestamp}.{ext}"
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = "general"
	}
	if cfg.DefaultReport == "" {
		cfg.DefaultReport = "consolidated"
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.MinGroupSize == 0 {
		cfg.MinGroupSize = 2
	}
	if cfg.HTTP.MaxUploadMB == 0 {
		cfg.HTTP.MaxUploadMB = 50
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 60 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 120 * time.Second
	}
	if cfg.Update.Timeout == 0 {
		cfg.Update.Timeout = 10 * time.Second
	}
}

var validate = validator.New()

// validateMainConfig checks field constraints.
func validateMainConfig(cfg *MainConfig) error {
	return validate.Struct(cfg)
}

// =============================================================================
// LAYOUT PROFILES
// =============================================================================

// LayoutProfile maps one export format onto the canonical employee fields.
type LayoutProfile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Sheet is the data sheet name.
	Sheet string `yaml:"sheet"`

	// PasswordRequired makes the reader fall back to the configured default
	// password when the caller gave none.
	PasswordRequired bool `yaml:"password_required"`

	// DropColumnsBefore removes every column left of this header when present.
	DropColumnsBefore string `yaml:"drop_columns_before"`

	// TruncateAfterLastID drops trailing rows (totals, notes) after the last
	// row with a non-empty id.
	TruncateAfterLastID bool `yaml:"truncate_after_last_id"`

	Columns ColumnMap `yaml:"columns"`

	// SkipIfBlank lists canonical fields; rows blank in any of them are
	// ignored silently (totals rows in some exports).
	SkipIfBlank []string `yaml:"skip_if_blank"`

	// SupersedeByID excludes every situation of an employee but the latest.
	SupersedeByID bool `yaml:"supersede_by_id"`

	// ComplementPattern is a regular expression matched against headers.
	ComplementPattern string `yaml:"complement_pattern"`

	// ExtraPrefixes mark extra-salary complements when no configuration
	// sheet classifies them.
	ExtraPrefixes []string `yaml:"extra_prefixes"`

	// ExcludeStatus values in the status column exclude a row from statistics.
	ExcludeStatus []string `yaml:"exclude_status"`

	GenderValues GenderValues `yaml:"gender_values"`

	// CategoryLookup rewrites raw category labels.
	CategoryLookup map[string]string `yaml:"category_lookup"`

	// AllowedCategories, when non-empty, sends any other label to the
	// unclassified bucket.
	AllowedCategories []string `yaml:"allowed_categories"`

	TitleCaseCategory bool `yaml:"title_case_category"`

	// Dimensions are extra breakdowns reported next to the category one.
	// A dimension whose columns are all absent from the sheet is skipped.
	Dimensions []Dimension `yaml:"dimensions"`

	// DateLayouts are tried in order for text date cells. Numeric cells are
	// read as spreadsheet serial dates.
	DateLayouts []string `yaml:"date_layouts"`

	CSV CSVSettings `yaml:"csv"`
}

// ColumnMap names the source header for each canonical field.
type ColumnMap struct {
	ID           string `yaml:"id"`
	Category     string `yaml:"category"`
	Gender       string `yaml:"gender"`
	BaseSalary   string `yaml:"base_salary"`
	WorkFraction string `yaml:"work_fraction"`
	MonthsWorked string `yaml:"months_worked"`
	Status       string `yaml:"status"`
	StartDate    string `yaml:"start_date"`
	EndDate      string `yaml:"end_date"`
}

// Field returns the header mapped to a canonical field name.
func (c ColumnMap) Field(name string) string {
	switch name {
	case "id":
		return c.ID
	case "category":
		return c.Category
	case "gender":
		return c.Gender
	case "base_salary":
		return c.BaseSalary
	case "work_fraction":
		return c.WorkFraction
	case "months_worked":
		return c.MonthsWorked
	case "status":
		return c.Status
	case "start_date":
		return c.StartDate
	case "end_date":
		return c.EndDate
	}
	return ""
}

// Dimension is one extra analysis breakdown. With several columns the
// label is their non-blank values joined by " + ", so "Escala 2" and
// "Offside Leader" become "Offside Leader - E2".
type Dimension struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
}

// GenderValues lists the raw labels accepted for each gender.
type GenderValues struct {
	Male   []string `yaml:"male"`
	Female []string `yaml:"female"`
}

// CSVSettings contains settings for parsing CSV exports.
type CSVSettings struct {
	// Delimiter: ",", ";", "tab" or "|".
	Delimiter string `yaml:"delimiter"`

	// Encoding: UTF-8, ISO-8859-1 or Windows-1252.
	Encoding string `yaml:"encoding"`

	// HeaderRows is the number of header rows, merged with a space.
	HeaderRows int `yaml:"header_rows"`

	// DecimalSeparator is the decimal mark of numbers in the export: ","
	// (Spanish locale, "20.000" is twenty thousand) or ".".
	DecimalSeparator string `yaml:"decimal_separator"`
}

// Profiles holds layout profiles keyed by name.
type Profiles map[string]*LayoutProfile

// Get returns the named profile.
func (p Profiles) Get(name string) (*LayoutProfile, error) {
	profile, ok := p[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown layout profile %q (available: %s)", name, strings.Join(p.Names(), ", "))
	}
	return profile, nil
}

// Names lists profile names in sorted order.
func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

//go:embed layouts/*.yaml
var builtinLayouts embed.FS

// LoadLayoutProfiles returns the built-in profiles overlaid with every
// *.yaml / *.yml file in layoutsDir. A missing directory is not an error.
//
// PARAMETERS:
//   - layoutsDir: The directory holding extra profiles, may be empty.
//
// RETURNS:
//   - The profile set, keyed by lower-case profile name.
//   - An error if a profile cannot be parsed.
func LoadLayoutProfiles(layoutsDir string) (Profiles, error) {
	profiles := make(Profiles)

	entries, err := builtinLayouts.ReadDir("layouts")
	if err != nil {
		return nil, fmt.Errorf("failed to list built-in layouts: %w", err)
	}
	for _, entry := range entries {
		data, err := builtinLayouts.ReadFile("layouts/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read built-in layout %s: %w", entry.Name(), err)
		}
		profile, err := ParseLayoutProfile(data)
		if err != nil {
			return nil, fmt.Errorf("failed to load built-in layout %s: %w", entry.Name(), err)
		}
		profiles[profile.Name] = profile
	}

	if layoutsDir == "" {
		return profiles, nil
	}
	if _, err := os.Stat(layoutsDir); errors.Is(err, os.ErrNotExist) {
		return profiles, nil
	}

	files, err := filepath.Glob(filepath.Join(layoutsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list layout files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(layoutsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list layout files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		profile, err := ParseLayoutProfile(data)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		if profile.Name == "" {
			profile.Name = strings.ToLower(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
		}
		profiles[profile.Name] = profile
	}

	return profiles, nil
}

// ParseLayoutProfile decodes one profile and applies its defaults.
func ParseLayoutProfile(data []byte) (*LayoutProfile, error) {
	var profile LayoutProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	applyLayoutDefaults(&profile)
	if err := validateLayout(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// applyLayoutDefaults sets default values for a layout profile.
func applyLayoutDefaults(p *LayoutProfile) {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if p.Sheet == "" {
		p.Sheet = "BASE GENERAL"
	}
	if p.ComplementPattern == "" {
		p.ComplementPattern = `^P[SE]\s*\d+`
	}
	if len(p.ExtraPrefixes) == 0 {
		p.ExtraPrefixes = []string{"PE"}
	}
	if len(p.GenderValues.Male) == 0 {
		p.GenderValues.Male = []string{"Hombres", "Hombre", "Masculino", "H"}
	}
	if len(p.GenderValues.Female) == 0 {
		p.GenderValues.Female = []string{"Mujeres", "Mujer", "Femenino", "M"}
	}
	if len(p.DateLayouts) == 0 {
		p.DateLayouts = []string{"2006-01-02", "02/01/2006"}
	}
	if p.CSV.Delimiter == "" {
		p.CSV.Delimiter = ";"
	}
	if p.CSV.Encoding == "" {
		p.CSV.Encoding = "UTF-8"
	}
	if p.CSV.HeaderRows == 0 {
		p.CSV.HeaderRows = 1
	}
	if p.CSV.DecimalSeparator == "" {
		p.CSV.DecimalSeparator = ","
	}
}

// validateLayout rejects profiles that cannot produce employee records.
func validateLayout(p *LayoutProfile) error {
	if p.Columns.Gender == "" {
		return fmt.Errorf("layout %q: columns.gender is required", p.Name)
	}
	if p.Columns.BaseSalary == "" {
		return fmt.Errorf("layout %q: columns.base_salary is required", p.Name)
	}
	for _, field := range p.SkipIfBlank {
		if p.Columns.Field(field) == "" {
			return fmt.Errorf("layout %q: skip_if_blank names unmapped field %q", p.Name, field)
		}
	}
	if p.SupersedeByID && p.Columns.ID == "" {
		return fmt.Errorf("layout %q: supersede_by_id needs columns.id", p.Name)
	}
	seen := make(map[string]bool, len(p.Dimensions))
	for i, d := range p.Dimensions {
		if strings.TrimSpace(d.Name) == "" || len(d.Columns) == 0 {
			return fmt.Errorf("layout %q: dimensions[%d] needs a name and at least one column", p.Name, i)
		}
		if seen[d.Name] {
			return fmt.Errorf("layout %q: duplicate dimension %q", p.Name, d.Name)
		}
		seen[d.Name] = true
	}
	if p.CSV.DecimalSeparator != "," && p.CSV.DecimalSeparator != "." {
		return fmt.Errorf("layout %q: csv.decimal_separator must be \",\" or \".\"", p.Name)
	}
	return nil
}
