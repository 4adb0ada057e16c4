package extract

import (
	"bytes"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"
	"text/template"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const (
	ModeHTML   = "html"
	ModeJSONLD = "jsonld"
)

// Field maps one record field onto the page. Selector is evaluated inside
// the item node; an empty selector reads the item node itself. In jsonld
// mode Selector names the flattened JSON-LD key instead.
type Field struct {
	Selector   string   `yaml:"selector"`
	Attr       string   `yaml:"attr"`
	Const      string   `yaml:"const"`
	Transforms []string `yaml:"transforms"`
	Required   bool     `yaml:"required"`
}

// Schema declares how to query one external site and read its listings.
type Schema struct {
	Name       string            `yaml:"name"`
	Vertical   string            `yaml:"vertical"`
	URL        string            `yaml:"url"`
	BaseURL    string            `yaml:"base_url"`
	Mode       string            `yaml:"mode"`
	Items      string            `yaml:"items"`
	JSONLDType string            `yaml:"jsonld_type"`
	Limit      int               `yaml:"limit"`
	Enabled    *bool             `yaml:"enabled"`
	Headers    map[string]string `yaml:"headers"`
	Requires   []string          `yaml:"requires"`
	Interval   time.Duration     `yaml:"interval"`
	Fields     map[string]Field  `yaml:"fields"`

	tmpl *template.Template
	base *url.URL
}

type schemaFile struct {
	Defaults Schema   `yaml:"defaults"`
	Sources  []Schema `yaml:"sources"`
}

var templateFuncs = template.FuncMap{
	"urlquery":   url.QueryEscape,
	"pathescape": url.PathEscape,
	"lower":      strings.ToLower,
	"slug": func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), "-")
	},
	"default": func(def, v string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	},
}

// IsEnabled reports whether the schema should be registered. Unset means
// enabled.
func (s *Schema) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// RenderURL executes the URL template against data.
func (s *Schema) RenderURL(data any) (string, error) {
	if s.tmpl == nil {
		if err := s.compile(); err != nil {
			return "", err
		}
	}
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render url for %s: %w", s.Name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Base returns the URL relative links are resolved against.
func (s *Schema) Base() *url.URL {
	return s.base
}

func (s *Schema) compile() error {
	tmpl, err := template.New(s.Name).Funcs(templateFuncs).Option("missingkey=zero").Parse(s.URL)
	if err != nil {
		return fmt.Errorf("schema %s: bad url template: %w", s.Name, err)
	}
	s.tmpl = tmpl
	if s.BaseURL != "" {
		base, err := url.Parse(s.BaseURL)
		if err != nil {
			return fmt.Errorf("schema %s: bad base_url: %w", s.Name, err)
		}
		s.base = base
	}
	return nil
}

func (s *Schema) validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name is required")
	}
	if s.Vertical == "" {
		return fmt.Errorf("schema %s: vertical is required", s.Name)
	}
	if s.URL == "" {
		return fmt.Errorf("schema %s: url is required", s.Name)
	}
	switch s.Mode {
	case ModeHTML:
		if s.Items == "" {
			return fmt.Errorf("schema %s: items selector is required in html mode", s.Name)
		}
		if len(s.Fields) == 0 {
			return fmt.Errorf("schema %s: at least one field is required", s.Name)
		}
	case ModeJSONLD:
		if s.JSONLDType == "" {
			return fmt.Errorf("schema %s: jsonld_type is required in jsonld mode", s.Name)
		}
	default:
		return fmt.Errorf("schema %s: unknown mode %q", s.Name, s.Mode)
	}
	if s.Limit < 0 {
		return fmt.Errorf("schema %s: limit must be non-negative", s.Name)
	}
	if s.Interval < 0 {
		return fmt.Errorf("schema %s: interval must be non-negative", s.Name)
	}
	for name, f := range s.Fields {
		for _, tr := range f.Transforms {
			if _, ok := transforms[tr]; !ok {
				return fmt.Errorf("schema %s: field %s: unknown transform %q", s.Name, name, tr)
			}
		}
	}
	return nil
}

// Parse decodes one schema document and applies its defaults block to every
// source in it.
func Parse(data []byte) ([]Schema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if file.Defaults.Mode == "" {
		file.Defaults.Mode = ModeHTML
	}

	out := make([]Schema, 0, len(file.Sources))
	for _, s := range file.Sources {
		if err := mergo.Merge(&s, file.Defaults); err != nil {
			return nil, fmt.Errorf("schema %s: apply defaults: %w", s.Name, err)
		}
		if err := s.validate(); err != nil {
			return nil, err
		}
		if err := s.compile(); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Load reads every *.yaml file under dir in fsys. Source names must be
// unique across files.
func Load(fsys fs.FS, dir string) ([]Schema, error) {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find schema files: %w", err)
	}
	sort.Strings(matches)

	seen := map[string]string{}
	var out []Schema
	for _, file := range matches {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		schemas, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}
		for _, s := range schemas {
			if prev, dup := seen[s.Name]; dup {
				return nil, fmt.Errorf("duplicate source %q in %s and %s", s.Name, prev, file)
			}
			seen[s.Name] = file
			out = append(out, s)
		}
	}
	return out, nil
}
