package site

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"termprobe/browser"
)

const (
	DefaultMinDelay = 500 * time.Millisecond
	DefaultMaxDelay = 1000 * time.Millisecond
)

// Pacing bounds the randomized wait between two searched terms.
type Pacing struct {
	Min time.Duration
	Max time.Duration
}

func DefaultPacing() Pacing {
	return Pacing{Min: DefaultMinDelay, Max: DefaultMaxDelay}
}

func (p Pacing) Valid() bool {
	return p.Min >= 0 && p.Max >= p.Min
}

// Definition describes how to drive one site's search UI. Accessors must be
// pure; the hooks run around every attempt on the session's tab.
type Definition interface {
	Name() string
	StartURL() string
	SearchInputSelector() string
	SearchSubmitSelector() string
	ResultsSelector() string
	FoundPattern() *regexp.Regexp
	NotFoundPattern() *regexp.Regexp
	Pacing() Pacing
	BeforeSearch(ctx context.Context, tab browser.Tab, term string) error
	AfterSearch(ctx context.Context, tab browser.Tab, term string) error
}

// Base carries the optional parts of a Definition. Embed it in a variant and
// implement the remaining accessors; Base alone is not a Definition.
type Base struct{}

func (Base) Pacing() Pacing { return DefaultPacing() }

func (Base) BeforeSearch(ctx context.Context, tab browser.Tab, term string) error { return nil }

func (Base) AfterSearch(ctx context.Context, tab browser.Tab, term string) error { return nil }

// ConfigurationError reports a variant that does not supply a required
// accessor. It is a programming error and never worth retrying.
type ConfigurationError struct {
	Site  string
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("site %q: %s: %v", e.Site, e.Field, e.Err)
	}
	return fmt.Sprintf("site %q: %s not implemented", e.Site, e.Field)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Validate calls every required accessor once and rejects empty answers.
func Validate(def Definition) error {
	if def == nil {
		return &ConfigurationError{Site: "<nil>", Field: "Definition"}
	}
	name := def.Name()
	if name == "" {
		name = fmt.Sprintf("%T", def)
	}

	strs := []struct {
		field string
		value string
	}{
		{"Name", def.Name()},
		{"StartURL", def.StartURL()},
		{"SearchInputSelector", def.SearchInputSelector()},
		{"SearchSubmitSelector", def.SearchSubmitSelector()},
		{"ResultsSelector", def.ResultsSelector()},
	}
	for _, s := range strs {
		if s.value == "" {
			return &ConfigurationError{Site: name, Field: s.field}
		}
	}
	if def.FoundPattern() == nil {
		return &ConfigurationError{Site: name, Field: "FoundPattern"}
	}
	if def.NotFoundPattern() == nil {
		return &ConfigurationError{Site: name, Field: "NotFoundPattern"}
	}
	if p := def.Pacing(); !p.Valid() {
		return &ConfigurationError{
			Site:  name,
			Field: "Pacing",
			Err:   fmt.Errorf("invalid window [%s, %s]", p.Min, p.Max),
		}
	}
	return nil
}
