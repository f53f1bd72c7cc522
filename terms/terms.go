package terms

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrNoTerms = errors.New("no terms available")

// Sample is used when no term source is configured or it yields nothing.
var Sample = []Record{
	{Term: "test"},
	{Term: "077ba9e8c0e6d177f74ccc1cd42aa08a"},
}

// Record is one entry of a term list. Only Term is used; other fields in the
// source document are ignored.
type Record struct {
	Term string `yaml:"term" json:"term"`
}

// UnmarshalYAML accepts either a bare string or a mapping with a term key.
func (r *Record) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Term = node.Value
		return nil
	}
	var raw struct {
		Term string `yaml:"term"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	r.Term = raw.Term
	return nil
}

type Source interface {
	Load(ctx context.Context) ([]Record, error)
}

// Strings returns the terms of records in order, skipping empty ones.
func Strings(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		if r.Term == "" {
			continue
		}
		out = append(out, r.Term)
	}
	return out
}

type StaticSource []Record

func (s StaticSource) Load(ctx context.Context) ([]Record, error) {
	return append([]Record(nil), s...), nil
}

// FileSource reads a YAML or JSON term file. The document is either a list of
// records or a mapping with a "terms" list.
type FileSource struct {
	Path string
}

func (f FileSource) Load(ctx context.Context) ([]Record, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read terms file: %w", err)
	}
	records, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return records, nil
}

func Parse(data []byte) ([]Record, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse terms: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	var records []Record
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&records); err != nil {
			return nil, fmt.Errorf("parse terms: %w", err)
		}
	case yaml.MappingNode:
		var wrapped struct {
			Terms []Record `yaml:"terms"`
		}
		if err := doc.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("parse terms: %w", err)
		}
		records = wrapped.Terms
	default:
		return nil, fmt.Errorf("parse terms: unexpected document kind %v", doc.Kind)
	}
	return records, nil
}

// LoadOrSample loads src and falls back to Sample when src is nil, missing or
// empty. Parse errors in an existing source are returned. Records without a
// term are skipped with a warning naming their index.
func LoadOrSample(ctx context.Context, src Source, logger *zap.Logger) ([]string, error) {
	if src == nil {
		logger.Info("no term source configured, using sample terms")
		return Strings(Sample), nil
	}

	records, err := src.Load(ctx)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrNoTerms) {
		logger.Warn("term source unavailable, using sample terms", zap.Error(err))
		return Strings(Sample), nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(records))
	for i, r := range records {
		if r.Term == "" {
			logger.Warn("skipping term record without a term", zap.Int("index", i))
			continue
		}
		out = append(out, r.Term)
	}
	if len(out) == 0 {
		logger.Warn("term source is empty, using sample terms")
		return Strings(Sample), nil
	}
	logger.Info("loaded terms",
		zap.Int("count", len(out)),
		zap.Int("skipped", len(records)-len(out)))
	return out, nil
}
