package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/docuglot/docuglot/internal/common"
	"github.com/docuglot/docuglot/internal/entity"
)

// BuildResultJSONSchema returns the JSON-Schema (draft 2020-12 subset) an
// assembled AnalysisResult must satisfy before it may be persisted.
func BuildResultJSONSchema() map[string]any {
	langProp := map[string]any{"type": "string", "minLength": 2, "maxLength": 8}
	confProp := map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
	boxProp := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x":      map[string]any{"type": "integer", "minimum": 0},
			"y":      map[string]any{"type": "integer", "minimum": 0},
			"width":  map[string]any{"type": "integer", "minimum": 1},
			"height": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"x", "y", "width", "height"},
	}
	blockProp := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":              map[string]any{"type": "string", "minLength": 1},
			"original_text":   map[string]any{"type": "string", "minLength": 1},
			"translated_text": map[string]any{"type": "string", "minLength": 1},
			"confidence":      confProp,
			"box":             boxProp,
		},
		"required": []string{"id", "original_text", "translated_text", "confidence", "box"},
	}
	metaProp := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ocr_engine":         map[string]any{"type": "string", "minLength": 1},
			"translation_engine": map[string]any{"type": "string", "minLength": 1},
			"elapsed_ms":         map[string]any{"type": "integer", "minimum": 0},
			"page_count":         map[string]any{"type": "integer", "minimum": 1},
			"block_count":        map[string]any{"type": "integer", "minimum": 1},
			"document_type":      map[string]any{"type": "string"},
			"filename":           map[string]any{"type": "string"},
		},
		"required": []string{"ocr_engine", "translation_engine", "page_count", "block_count"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"original_text":     map[string]any{"type": "string", "minLength": 1},
			"translated_text":   map[string]any{"type": "string", "minLength": 1},
			"source_language":   langProp,
			"target_language":   langProp,
			"confidence":        confProp,
			"detected_language": map[string]any{"type": "string"},
			"text_blocks":       map[string]any{"type": "array", "minItems": 1, "items": blockProp},
			"metadata":          metaProp,
		},
		"required": []string{"original_text", "translated_text", "source_language",
			"target_language", "confidence", "text_blocks", "metadata"},
	}
}

// Validator checks assembled results against the schema. The schema is
// compiled once at construction.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	b, err := json.Marshal(BuildResultJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analysis_result.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("analysis_result.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate rejects a malformed result before persistence. Failures wrap
// ErrValidationFailure so the orchestrator records them as job failures.
func (v *Validator) Validate(res *entity.AnalysisResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("%w: encode result: %v", common.ErrValidationFailure, err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("%w: decode result: %v", common.ErrValidationFailure, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidationFailure, err)
	}
	return nil
}
