// Package evidence reads evidence documents produced by the external
// extractor and validates them against the embedded JSON Schema.
package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/riskgate/assets"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/ports"
)

const schemaURL = "https://riskgate.dev/schemas/evidence.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(assets.EvidenceSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("evidence schema load failed: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("evidence schema compile failed: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

type wirePerf struct {
	ExecMs      uint64 `json:"exec_ms"`
	MemoryBytes uint64 `json:"memory_bytes"`
	OutputBytes uint64 `json:"output_bytes"`
}

type wireDocument struct {
	Command  string                `json:"command"`
	Version  string                `json:"version"`
	Family   string                `json:"family"`
	Perf     wirePerf              `json:"perf"`
	Evidence []domain.EvidenceItem `json:"evidence"`
}

// Format selects the document syntax.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes one document or a list of documents. Every document is
// schema-validated; a violation is reported as *domain.MalformedEvidenceError.
func Parse(data []byte, format Format) ([]domain.EvidenceDocument, error) {
	raw, err := toJSON(data, format)
	if err != nil {
		return nil, &domain.MalformedEvidenceError{Index: -1, Field: "document", Reason: err.Error()}
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, &domain.MalformedEvidenceError{Index: -1, Field: "document", Reason: err.Error()}
	}

	var elements []interface{}
	var rawElements []json.RawMessage
	if list, ok := generic.([]interface{}); ok {
		elements = list
		if err := json.Unmarshal(raw, &rawElements); err != nil {
			return nil, &domain.MalformedEvidenceError{Index: -1, Field: "document", Reason: err.Error()}
		}
	} else {
		elements = []interface{}{generic}
		rawElements = []json.RawMessage{raw}
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	docs := make([]domain.EvidenceDocument, 0, len(elements))
	for i, element := range elements {
		if err := sch.Validate(element); err != nil {
			return nil, &domain.MalformedEvidenceError{
				Command: commandOf(element),
				Index:   -1,
				Field:   fmt.Sprintf("document[%d]", i),
				Reason:  err.Error(),
			}
		}
		var wire wireDocument
		if err := json.Unmarshal(rawElements[i], &wire); err != nil {
			return nil, &domain.MalformedEvidenceError{Command: commandOf(element), Index: -1, Field: fmt.Sprintf("document[%d]", i), Reason: err.Error()}
		}
		docs = append(docs, wire.document())
	}
	return docs, nil
}

func (w wireDocument) document() domain.EvidenceDocument {
	return domain.EvidenceDocument{
		Command:     domain.NormalizeCommand(w.Command),
		ToolVersion: w.Version,
		Family:      domain.NormalizeCommand(w.Family),
		Perf: domain.PerfEstimate{
			ExecTime:    time.Duration(w.Perf.ExecMs) * time.Millisecond,
			MemoryBytes: w.Perf.MemoryBytes,
			OutputBytes: w.Perf.OutputBytes,
		},
		Evidence: w.Evidence,
	}
}

func commandOf(element interface{}) string {
	if m, ok := element.(map[string]interface{}); ok {
		if s, ok := m["command"].(string); ok {
			return s
		}
	}
	return ""
}

func toJSON(data []byte, format Format) ([]byte, error) {
	if format == FormatJSON {
		return data, nil
	}
	var v interface{}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return json.Marshal(v)
}

// ReadFile loads every document in path.
func ReadFile(path string) ([]domain.EvidenceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence %s: %w", path, err)
	}
	docs, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// FileSource implements ports.EvidenceSource over a list of files.
type FileSource struct {
	Paths []string
}

// Documents reads every file in order.
func (s FileSource) Documents(ctx context.Context) ([]domain.EvidenceDocument, error) {
	var out []domain.EvidenceDocument
	for _, p := range s.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docs, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

var _ ports.EvidenceSource = FileSource{}
