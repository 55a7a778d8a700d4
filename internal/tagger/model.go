package tagger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultBeamSize is used when a model does not set one.
const DefaultBeamSize = 3

// Model is a log-linear model over the start/cont/other outcomes.
type Model struct {
	Name     string                        `json:"name,omitempty"`
	BeamSize int                           `json:"beam_size,omitempty"`
	Bias     map[string]float64            `json:"bias,omitempty"`
	Weights  map[string]map[string]float64 `json:"weights"`
}

const modelSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["weights"],
	"additionalProperties": false,
	"properties": {
		"name": {"type": "string"},
		"beam_size": {"type": "integer", "minimum": 1},
		"bias": {"$ref": "#/$defs/scores"},
		"weights": {
			"type": "object",
			"additionalProperties": {"$ref": "#/$defs/scores"}
		}
	},
	"$defs": {
		"scores": {
			"type": "object",
			"propertyNames": {"enum": ["start", "cont", "other"]},
			"additionalProperties": {"type": "number"}
		}
	}
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("model.json", bytes.NewReader([]byte(modelSchema))); err != nil {
			schemaErr = fmt.Errorf("failed to load model schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("model.json")
	})
	return schema, schemaErr
}

// Parse validates and decodes a model artifact.
func Parse(data []byte) (*Model, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid model JSON: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("model does not match schema: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if m.BeamSize <= 0 {
		m.BeamSize = DefaultBeamSize
	}
	return &m, nil
}

// LoadModel reads and parses a model file.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// eval returns the outcome distribution for a feature context, indexed like Outcomes.
func (m *Model) eval(features []string) [3]float64 {
	var scores [3]float64
	for i, o := range Outcomes {
		scores[i] = m.Bias[o]
	}
	for _, f := range features {
		w, ok := m.Weights[f]
		if !ok {
			continue
		}
		for i, o := range Outcomes {
			scores[i] += w[o]
		}
	}

	top := scores[0]
	for _, s := range scores[1:] {
		if s > top {
			top = s
		}
	}
	var sum float64
	for i := range scores {
		scores[i] = math.Exp(scores[i] - top)
		sum += scores[i]
	}
	for i := range scores {
		scores[i] /= sum
	}
	return scores
}
