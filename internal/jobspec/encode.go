// Package jobspec builds, loads, encodes and validates the job specification
// handed to the volt-test engine.
//
// The engine receives a single document: test settings, the list of
// scenarios and their weights. The process orchestrator treats the document
// as opaque; it only needs Encode to turn it into bytes.
package jobspec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Format is a wire encoding of a job specification.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// Ext returns the file extension used for temporary spec files.
func (f Format) Ext() string {
	if f == YAML {
		return ".yaml"
	}
	return ".json"
}

// Encode serializes v into f. JSON output is indented with four spaces,
// keeps struct field order and does not escape HTML characters, so URLs stay
// readable when the spec is dumped for debugging.
func Encode(v any, f Format) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case "", JSON:
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("encoding json: %w", err)
		}
	case YAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
	return buf.Bytes(), nil
}
