package site

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"termprobe/browser"
)

// Spec is a site variant described in YAML instead of Go.
type Spec struct {
	Name           string        `yaml:"name"`
	StartURL       string        `yaml:"start_url"`
	InputSelector  string        `yaml:"input_selector"`
	SubmitSelector string        `yaml:"submit_selector"`
	ResultSelector string        `yaml:"results_selector"`
	Found          string        `yaml:"found"`
	NotFound       string        `yaml:"not_found"`
	MinDelay       time.Duration `yaml:"min_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	// WaitBefore, if set, is waited on before the search input is touched.
	WaitBefore string `yaml:"wait_before"`
}

type specSite struct {
	spec     Spec
	found    *regexp.Regexp
	notFound *regexp.Regexp
	pacing   Pacing
}

// FromSpec builds a Definition from s. Missing fields and bad patterns are
// reported as a ConfigurationError naming the first offending field.
func FromSpec(s Spec) (Definition, error) {
	name := s.Name
	if name == "" {
		name = "<unnamed>"
	}
	required := []struct {
		field string
		value string
	}{
		{"Name", s.Name},
		{"StartURL", s.StartURL},
		{"SearchInputSelector", s.InputSelector},
		{"SearchSubmitSelector", s.SubmitSelector},
		{"ResultsSelector", s.ResultSelector},
		{"FoundPattern", s.Found},
		{"NotFoundPattern", s.NotFound},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &ConfigurationError{Site: name, Field: r.field}
		}
	}

	if err := checkStartURL(s.StartURL); err != nil {
		return nil, &ConfigurationError{Site: name, Field: "StartURL", Err: err}
	}

	found, err := regexp.Compile(s.Found)
	if err != nil {
		return nil, &ConfigurationError{Site: name, Field: "FoundPattern", Err: err}
	}
	notFound, err := regexp.Compile(s.NotFound)
	if err != nil {
		return nil, &ConfigurationError{Site: name, Field: "NotFoundPattern", Err: err}
	}

	pacing := DefaultPacing()
	if s.MinDelay > 0 {
		pacing.Min = s.MinDelay
	}
	if s.MaxDelay > 0 {
		pacing.Max = s.MaxDelay
	}
	if !pacing.Valid() {
		return nil, &ConfigurationError{
			Site:  name,
			Field: "Pacing",
			Err:   fmt.Errorf("invalid window [%s, %s]", pacing.Min, pacing.Max),
		}
	}

	return &specSite{spec: s, found: found, notFound: notFound, pacing: pacing}, nil
}

var allowedSchemes = []string{"http", "https"}

// checkStartURL accepts absolute http(s) URLs with a host.
func checkStartURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !slices.Contains(allowedSchemes, u.Scheme) {
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func (s *specSite) Name() string                    { return s.spec.Name }
func (s *specSite) StartURL() string                { return s.spec.StartURL }
func (s *specSite) SearchInputSelector() string     { return s.spec.InputSelector }
func (s *specSite) SearchSubmitSelector() string    { return s.spec.SubmitSelector }
func (s *specSite) ResultsSelector() string         { return s.spec.ResultSelector }
func (s *specSite) FoundPattern() *regexp.Regexp    { return s.found }
func (s *specSite) NotFoundPattern() *regexp.Regexp { return s.notFound }
func (s *specSite) Pacing() Pacing                  { return s.pacing }

func (s *specSite) BeforeSearch(ctx context.Context, tab browser.Tab, term string) error {
	if s.spec.WaitBefore == "" {
		return nil
	}
	return tab.WaitReady(ctx, s.spec.WaitBefore)
}

func (s *specSite) AfterSearch(ctx context.Context, tab browser.Tab, term string) error {
	return nil
}

// LoadSpecs reads a YAML list of site specs from path.
func LoadSpecs(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site specs: %w", err)
	}
	return ParseSpecs(data)
}

func ParseSpecs(data []byte) ([]Definition, error) {
	var doc struct {
		Sites []Spec `yaml:"sites"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse site specs: %w", err)
	}
	defs := make([]Definition, 0, len(doc.Sites))
	for _, s := range doc.Sites {
		def, err := FromSpec(s)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
