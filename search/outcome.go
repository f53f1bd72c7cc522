package search

import (
	"fmt"
	"regexp"
)

type Outcome int

const (
	Unknown Outcome = iota
	Found
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "found":
		*o = Found
	case "not_found":
		*o = NotFound
	case "unknown":
		*o = Unknown
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

// Classify reports Found only when text matches found and does not match
// notFound. A not-found match always wins.
func Classify(text string, found, notFound *regexp.Regexp) Outcome {
	if found.MatchString(text) && !notFound.MatchString(text) {
		return Found
	}
	return NotFound
}
