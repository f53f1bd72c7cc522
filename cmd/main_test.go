package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"termprobe/batch"
	"termprobe/browser/browsertest"
	"termprobe/config"
	"termprobe/metrics"
	"termprobe/search"
	"termprobe/site"
	"termprobe/terms"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.HumanDelay = 0
	cfg.MinDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	return cfg
}

func wikipediaEngine() *browsertest.Engine {
	return &browsertest.Engine{
		Pages: map[string]string{
			site.Wikipedia{}.StartURL(): `<form id="searchform"><input id="searchInput"></form>`,
		},
		OnSubmit: func(query string) string {
			if query == "test" {
				return `<div id="mw-content-text"><p>Test may refer to:</p></div>`
			}
			return `<div id="mw-content-text"><p>The page "` + query + `" does not exist. You can ask for it to be created.</p></div>`
		},
	}
}

func TestProbeSampleTerms(t *testing.T) {
	engine := wikipediaEngine()
	recorder := metrics.NewRecorder()

	results, err := probe(context.Background(), fastConfig(), site.Wikipedia{}, engine, recorder,
		zaptest.NewLogger(t), terms.Strings(terms.Sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `[{"term":"test","outcome":"found"},{"term":"077ba9e8c0e6d177f74ccc1cd42aa08a","outcome":"not_found"}]`
	if got := results.JSON(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if tabs := engine.Tabs(); len(tabs) != 1 || !tabs[0].IsClosed() {
		t.Error("expected a single tab closed after the batch")
	}
	if !strings.HasPrefix(engine.Tabs()[0].UserAgent(), "Mozilla/5.0") {
		t.Errorf("unexpected user agent %q", engine.Tabs()[0].UserAgent())
	}
}

func TestProbeOpenFailure(t *testing.T) {
	engine := wikipediaEngine()
	engine.NewTabErr = errors.New("target closed")

	_, err := probe(context.Background(), fastConfig(), site.Wikipedia{}, engine, nil,
		zaptest.NewLogger(t), []string{"test"})
	var initErr *search.SessionInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected SessionInitError, got %v", err)
	}
}

func TestProbeCancelledKeepsResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := probe(ctx, fastConfig(), site.Wikipedia{}, wikipediaEngine(), nil,
		zaptest.NewLogger(t), []string{"a", "b"})
	if err != nil {
		t.Fatalf("expected interrupted batch to succeed, got %v", err)
	}
	if got := results.Summary(); got != (batch.Summary{Total: 2, Unknown: 2}) {
		t.Errorf("unexpected summary %+v", got)
	}
}

func TestBuildRegistryWithSitesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	data := `sites:
  - name: docs
    start_url: https://docs.example.com/
    input_selector: "#q"
    submit_selector: "#search"
    results_selector: ".results"
    found: "result"
    not_found: "No results"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := fastConfig()
	cfg.SitesPath = path
	registry, err := buildRegistry(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := registry.Names(); !slices.Equal(got, []string{"docs", "wikipedia"}) {
		t.Errorf("unexpected sites %v", got)
	}
}

func TestTermSource(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"None", config.Config{}, "<nil>"},
		{"File", config.Config{TermsPath: filepath.Join(dir, "terms.yaml")}, "terms.FileSource"},
		{"BoltWins", config.Config{TermsPath: "x.yaml", TermsDB: filepath.Join(dir, "terms.db")}, "*terms.BoltSource"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src, closeSrc, err := termSource(&tc.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer closeSrc()
			if got := typeName(src); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func typeName(src terms.Source) string {
	switch src.(type) {
	case nil:
		return "<nil>"
	case terms.FileSource:
		return "terms.FileSource"
	case *terms.BoltSource:
		return "*terms.BoltSource"
	default:
		return "other"
	}
}

func TestImportCommand(t *testing.T) {
	t.Setenv("TERMPROBE_CONFIG", "")
	dir := t.TempDir()
	file := filepath.Join(dir, "terms.yaml")
	if err := os.WriteFile(file, []byte("- alpha\n- beta\n"), 0644); err != nil {
		t.Fatal(err)
	}
	db := filepath.Join(dir, "terms.db")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"terms", "import", file, "--terms-db", db})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out.String(), "imported 2 terms") {
		t.Errorf("unexpected output %q", out.String())
	}

	store := &terms.BoltSource{DBPath: db}
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	records, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := terms.Strings(records); !slices.Equal(got, []string{"alpha", "beta"}) {
		t.Errorf("unexpected stored terms %v", got)
	}
}

func TestSitesCommand(t *testing.T) {
	t.Setenv("TERMPROBE_CONFIG", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"sites"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sites: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "wikipedia" {
		t.Errorf("expected wikipedia, got %q", got)
	}
}

func TestImportCommandReplace(t *testing.T) {
	t.Setenv("TERMPROBE_CONFIG", "")
	dir := t.TempDir()
	db := filepath.Join(dir, "terms.db")
	first := filepath.Join(dir, "first.yaml")
	second := filepath.Join(dir, "second.yaml")
	if err := os.WriteFile(first, []byte("- alpha\n- beta\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("- gamma\n"), 0644); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name string
		args []string
		want []string
	}{
		{"Seed", []string{"terms", "import", first, "--terms-db", db}, []string{"alpha", "beta"}},
		{"Append", []string{"terms", "import", second, "--terms-db", db}, []string{"alpha", "beta", "gamma"}},
		{"Replace", []string{"terms", "import", second, "--terms-db", db, "--replace"}, []string{"gamma"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs(tc.args)
			if err := cmd.ExecuteContext(context.Background()); err != nil {
				t.Fatalf("import: %v", err)
			}

			store := &terms.BoltSource{DBPath: db}
			if err := store.Init(); err != nil {
				t.Fatal(err)
			}
			defer store.Close()
			records, err := store.Load(context.Background())
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got := terms.Strings(records); !slices.Equal(got, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
