package report

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/johnfercher/maroto/v2/pkg/props"
	"gopkg.in/yaml.v3"
)

// Template holds the presentation settings of the report. Every field has a
// default, so a template file only needs the keys it changes.
type Template struct {
	Title        string `yaml:"title"`
	Organization string `yaml:"organization"`
	Subtitle     string `yaml:"subtitle"`
	Footer       string `yaml:"footer"`

	Colors TemplateColors `yaml:"colors"`
	Labels Labels         `yaml:"labels"`
	Charts ChartToggles   `yaml:"charts"`
}

// TemplateColors are hex colors ("#1e4389").
type TemplateColors struct {
	Female string `yaml:"female"`
	Male   string `yaml:"male"`
	Accent string `yaml:"accent"`
	Muted  string `yaml:"muted"`
}

// Labels are the section and column captions.
type Labels struct {
	Summary     string `yaml:"summary"`
	Categories  string `yaml:"categories"`
	Complements string `yaml:"complements"`
	Totals      string `yaml:"totals"`
	Female      string `yaml:"female"`
	Male        string `yaml:"male"`
	Gap         string `yaml:"gap"`
	Mean        string `yaml:"mean"`
	Median      string `yaml:"median"`
	Headcount   string `yaml:"headcount"`
	Dimension   string `yaml:"dimension"`
	Effective   string `yaml:"effective"`
	Equalized   string `yaml:"equalized"`
}

// ChartToggles switch individual charts off.
type ChartToggles struct {
	Headcount *bool `yaml:"headcount"`
	Salary    *bool `yaml:"salary"`
}

// DefaultTemplate returns the built-in report styling.
func DefaultTemplate() Template {
	return Template{
		Title:    "Informe de Registro Retributivo",
		Subtitle: "Análisis de brecha salarial por género",
		Footer:   "Importes equiparados a jornada completa y año completo; los efectivos son los abonados.",
		Colors: TemplateColors{
			Female: "#1e4389",
			Male:   "#ea5d41",
			Accent: "#1e4389",
			Muted:  "#646464",
		},
		Labels: Labels{
			Summary:     "Resumen general",
			Categories:  "Análisis por grupo profesional",
			Complements: "Análisis de complementos",
			Totals:      "Datos del proceso",
			Female:      "Mujeres",
			Male:        "Hombres",
			Gap:         "Brecha",
			Mean:        "Media",
			Median:      "Mediana",
			Headcount:   "Nº personas",
			Dimension:   "Análisis por",
			Effective:   "efectivo",
			Equalized:   "equiparado",
		},
	}
}

// errTemplateMissing is returned by LoadTemplate for an absent file.
var errTemplateMissing = errors.New("report template not found")

// LoadTemplate reads a YAML template and fills unset keys from the defaults.
//
// RETURNS:
//   - The template. On errTemplateMissing the defaults are returned.
//   - errTemplateMissing when the path is empty or the file does not exist.
//   - A parse or validation error for a malformed template.
func LoadTemplate(path string) (Template, error) {
	tpl := DefaultTemplate()
	if path == "" {
		return tpl, errTemplateMissing
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return tpl, errTemplateMissing
	}
	if err != nil {
		return tpl, fmt.Errorf("failed to read template: %w", err)
	}

	var custom Template
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return tpl, fmt.Errorf("failed to parse template: %w", err)
	}
	merge(&tpl, custom)

	for name, hex := range map[string]string{
		"female": tpl.Colors.Female,
		"male":   tpl.Colors.Male,
		"accent": tpl.Colors.Accent,
		"muted":  tpl.Colors.Muted,
	} {
		if _, err := parseHex(hex); err != nil {
			return tpl, fmt.Errorf("template colors.%s: %w", name, err)
		}
	}
	return tpl, nil
}

func merge(dst *Template, src Template) {
	set := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	set(&dst.Title, src.Title)
	set(&dst.Organization, src.Organization)
	set(&dst.Subtitle, src.Subtitle)
	set(&dst.Footer, src.Footer)

	set(&dst.Colors.Female, src.Colors.Female)
	set(&dst.Colors.Male, src.Colors.Male)
	set(&dst.Colors.Accent, src.Colors.Accent)
	set(&dst.Colors.Muted, src.Colors.Muted)

	set(&dst.Labels.Summary, src.Labels.Summary)
	set(&dst.Labels.Categories, src.Labels.Categories)
	set(&dst.Labels.Complements, src.Labels.Complements)
	set(&dst.Labels.Totals, src.Labels.Totals)
	set(&dst.Labels.Female, src.Labels.Female)
	set(&dst.Labels.Male, src.Labels.Male)
	set(&dst.Labels.Gap, src.Labels.Gap)
	set(&dst.Labels.Mean, src.Labels.Mean)
	set(&dst.Labels.Median, src.Labels.Median)
	set(&dst.Labels.Headcount, src.Labels.Headcount)
	set(&dst.Labels.Dimension, src.Labels.Dimension)
	set(&dst.Labels.Effective, src.Labels.Effective)
	set(&dst.Labels.Equalized, src.Labels.Equalized)

	if src.Charts.Headcount != nil {
		dst.Charts.Headcount = src.Charts.Headcount
	}
	if src.Charts.Salary != nil {
		dst.Charts.Salary = src.Charts.Salary
	}
}

// HeadcountChart reports whether the headcount pie is enabled.
func (t Template) HeadcountChart() bool { return t.Charts.Headcount == nil || *t.Charts.Headcount }

// SalaryChart reports whether the salary bar chart is enabled.
func (t Template) SalaryChart() bool { return t.Charts.Salary == nil || *t.Charts.Salary }

// parseHex converts "#rrggbb" to a maroto color.
func parseHex(hex string) (*props.Color, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return nil, fmt.Errorf("invalid color %q", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", hex)
	}
	return &props.Color{Red: int(v >> 16 & 0xff), Green: int(v >> 8 & 0xff), Blue: int(v & 0xff)}, nil
}

func mustHex(hex string) *props.Color {
	c, err := parseHex(hex)
	if err != nil {
		return &props.Color{}
	}
	return c
}
