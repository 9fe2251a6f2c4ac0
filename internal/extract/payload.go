package extract

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
)

// payloadSchema constrains raw engine output: a flat object whose values
// are either bare strings or {value, confidence} pairs with confidence in
// [0,1]. Anything shaped differently is a malformed provider response.
const payloadSchema = `{
	"type": "object",
	"additionalProperties": {
		"oneOf": [
			{"type": "string"},
			{
				"type": "object",
				"properties": {
					"value": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1}
				},
				"required": ["value"],
				"additionalProperties": false
			}
		]
	}
}`

var compiledPayloadSchema = jsonschema.MustCompileString("payload.json", payloadSchema)

// DefaultConfidence is assumed when a provider reports a bare string with
// no confidence of its own.
const DefaultConfidence = 0.5

// ParsePayload validates raw engine JSON against the payload schema and
// maps it onto the field registry. Keys outside the enumerated schema land
// in the unmapped bucket: kept, but excluded from aggregation.
func ParsePayload(raw []byte, registry *model.FieldRegistry) (*Result, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, eris.Wrap(err, "extract: parse engine payload")
	}
	if err := compiledPayloadSchema.Validate(generic); err != nil {
		return nil, eris.Wrap(err, "extract: invalid engine payload")
	}

	obj := generic.(map[string]any)
	res := &Result{
		Fields:   make(map[string]model.FieldValue),
		Unmapped: make(map[string]model.FieldValue),
	}
	for key, v := range obj {
		fv := toFieldValue(v)
		if strings.TrimSpace(fv.Value) == "" {
			continue
		}
		if registry.Known(key) {
			res.Fields[key] = fv
		} else {
			res.Unmapped[key] = fv
		}
	}
	return res, nil
}

func toFieldValue(v any) model.FieldValue {
	switch val := v.(type) {
	case string:
		return model.FieldValue{Value: val, Confidence: DefaultConfidence}
	case map[string]any:
		fv := model.FieldValue{Confidence: DefaultConfidence}
		if s, ok := val["value"].(string); ok {
			fv.Value = s
		}
		if c, ok := val["confidence"].(float64); ok {
			fv.Confidence = c
		}
		return fv
	default:
		return model.FieldValue{}
	}
}
