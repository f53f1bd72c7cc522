package terms

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want []string
	}{
		{"StringList", "- test\n- abc\n", []string{"test", "abc"}},
		{"RecordList", "- term: test\n  comment: probably will find this\n- term: abc\n", []string{"test", "abc"}},
		{"WrappedTerms", "terms:\n  - term: test\n  - term: ad1e173036d90f78b94213e21cb4109d\n    state: probably will not find this\n",
			[]string{"test", "ad1e173036d90f78b94213e21cb4109d"}},
		{"JSON", `{"terms": [{"term": "test", "comment": "x"}, {"term": "abc"}]}`, []string{"test", "abc"}},
		{"Empty", "", []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			records, err := Parse([]byte(tc.data))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := Strings(records); !slices.Equal(got, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestParseRejectsScalarDocument(t *testing.T) {
	if _, err := Parse([]byte("just a string")); err == nil {
		t.Error("expected error for scalar document")
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.yaml")
	if err := os.WriteFile(path, []byte("- one\n- two\n- three\n"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := FileSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Strings(records); !slices.Equal(got, []string{"one", "two", "three"}) {
		t.Errorf("unexpected terms %v", got)
	}
}

func TestLoadOrSample(t *testing.T) {
	sample := Strings(Sample)
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("terms: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("terms: [\n"), 0644); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name    string
		src     Source
		want    []string
		wantErr bool
	}{
		{"NilSource", nil, sample, false},
		{"MissingFile", FileSource{Path: filepath.Join(dir, "nope.yaml")}, sample, false},
		{"EmptyFile", FileSource{Path: empty}, sample, false},
		{"Static", StaticSource{{Term: "a"}, {Term: ""}, {Term: "b"}}, []string{"a", "b"}, false},
		{"BrokenFile", FileSource{Path: broken}, nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LoadOrSample(context.Background(), tc.src, zaptest.NewLogger(t))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestLoadOrSampleWarnsOnEmptyTerm(t *testing.T) {
	records, err := Parse([]byte("- a\n- term: \"\"\n  id: 7\n- b\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	core, logs := observer.New(zapcore.WarnLevel)
	got, err := LoadOrSample(context.Background(), StaticSource(records), zap.New(core))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("unexpected terms %v", got)
	}

	skipped := logs.FilterMessage("skipping term record without a term").All()
	if len(skipped) != 1 {
		t.Fatalf("expected one skip warning, got %d", len(skipped))
	}
	if idx := skipped[0].ContextMap()["index"]; idx != int64(1) {
		t.Errorf("expected index 1, got %v", idx)
	}
}

func TestSampleHasTwoTerms(t *testing.T) {
	if got := Strings(Sample); !slices.Equal(got, []string{"test", "077ba9e8c0e6d177f74ccc1cd42aa08a"}) {
		t.Errorf("unexpected sample %v", got)
	}
}

func TestBoltSource(t *testing.T) {
	ctx := context.Background()
	src := &BoltSource{DBPath: filepath.Join(t.TempDir(), "db", "terms.db")}
	if err := src.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer src.Close()

	if _, err := src.Load(ctx); err != ErrNoTerms {
		t.Fatalf("expected ErrNoTerms on empty store, got %v", err)
	}
	got, err := LoadOrSample(ctx, src, zaptest.NewLogger(t))
	if err != nil || !slices.Equal(got, Strings(Sample)) {
		t.Fatalf("expected sample fallback, got %v (%v)", got, err)
	}

	if err := src.Append(ctx, []Record{{Term: "b"}, {Term: "a"}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := src.Append(ctx, []Record{{Term: "c"}}); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := src.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := Strings(records); !slices.Equal(got, []string{"b", "a", "c"}) {
		t.Errorf("expected insertion order, got %v", got)
	}

	if err := src.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := src.Load(ctx); err != ErrNoTerms {
		t.Errorf("expected ErrNoTerms after clear, got %v", err)
	}
}

func TestBoltSourceNotInitialised(t *testing.T) {
	src := &BoltSource{DBPath: "unused.db"}

	testCases := []struct {
		name string
		call func() error
	}{
		{"Load", func() error {
			_, err := src.Load(context.Background())
			return err
		}},
		{"Append", func() error { return src.Append(context.Background(), []Record{{Term: "a"}}) }},
		{"Clear", src.Clear},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); err == nil {
				t.Error("expected error before Init")
			}
		})
	}
}
