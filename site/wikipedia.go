package site

import "regexp"

var (
	wikipediaFound    = regexp.MustCompile(`.*`)
	wikipediaNotFound = regexp.MustCompile(`The page ".*" does not exist. You can ask for it to be created.`)
)

// Wikipedia searches English Wikipedia. It is only an example target: all of
// its data is downloadable.
type Wikipedia struct {
	Base
}

func (Wikipedia) Name() string { return "wikipedia" }

func (Wikipedia) StartURL() string { return "https://en.wikipedia.org/wiki/Main_Page" }

func (Wikipedia) SearchInputSelector() string { return "#searchInput" }

func (Wikipedia) SearchSubmitSelector() string { return "#searchform" }

func (Wikipedia) ResultsSelector() string { return "#mw-content-text p" }

// FoundPattern accepts anything; a result counts as found whenever the
// not-found message is absent.
func (Wikipedia) FoundPattern() *regexp.Regexp { return wikipediaFound }

func (Wikipedia) NotFoundPattern() *regexp.Regexp { return wikipediaNotFound }
