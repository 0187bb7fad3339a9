package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/academic-crs/internal/model"
)

// ErrMalformedOutput marks reasoning-service output that is not a JSON object.
var ErrMalformedOutput = eris.New("extract: malformed structured output")

// Keys the extractor prompt may return that are not profile fields.
const (
	keyMissingInfo  = "missing_info"
	keyNextQuestion = "next_question"
	keyValidation   = "validation"
)

// StructuredResult is the outcome of decoding a structured extraction: either
// a validated fragment or a parse error, never both.
type StructuredResult struct {
	Fragment model.Profile
	// FollowUp is the service's clarifying question, if it asked one.
	FollowUp string
	Err      error
}

// OK reports whether the output decoded into a fragment.
func (r StructuredResult) OK() bool {
	return r.Err == nil
}

// ParseStructured strictly decodes the reasoning service's response. The
// top-level value must be a single JSON object; markdown fences and prose
// around it are tolerated. Empty values are dropped from the fragment.
func ParseStructured(text string) StructuredResult {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return StructuredResult{Err: eris.Wrap(ErrMalformedOutput, "empty response")}
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return StructuredResult{Err: eris.Wrapf(ErrMalformedOutput, "decode: %v", err)}
	}
	if raw == nil {
		return StructuredResult{Err: eris.Wrap(ErrMalformedOutput, "top-level value is null")}
	}
	if dec.More() {
		return StructuredResult{Err: eris.Wrap(ErrMalformedOutput, "trailing data after object")}
	}

	res := StructuredResult{Fragment: model.Profile{}}
	if s, ok := raw[keyMissingInfo].(string); ok {
		res.FollowUp = strings.TrimSpace(s)
	}
	if res.FollowUp == "" {
		if s, ok := raw[keyNextQuestion].(string); ok {
			res.FollowUp = strings.TrimSpace(s)
		}
	}
	delete(raw, keyMissingInfo)
	delete(raw, keyNextQuestion)
	delete(raw, keyValidation)

	for k, v := range raw {
		if k == model.FieldPreferredLocations {
			v = model.CleanLocations(v)
		}
		res.Fragment.Set(k, v)
	}
	return res
}

// cleanJSON extracts the outermost JSON object from text that may carry
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") {
		return text
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// DecodeStageOutput turns a stage's raw text into a JSON value when the text
// holds a JSON object or array, and returns the trimmed text otherwise.
func DecodeStageOutput(raw string) any {
	trimmed := strings.TrimSpace(raw)
	candidate := trimmed
	if strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimPrefix(candidate, "```json")
		candidate = strings.TrimPrefix(candidate, "```")
		if idx := strings.LastIndex(candidate, "```"); idx >= 0 {
			candidate = candidate[:idx]
		}
		candidate = strings.TrimSpace(candidate)
	}
	if strings.HasPrefix(candidate, "{") || strings.HasPrefix(candidate, "[") {
		var v any
		dec := json.NewDecoder(bytes.NewReader([]byte(candidate)))
		dec.UseNumber()
		if err := dec.Decode(&v); err == nil && !dec.More() {
			return v
		}
	}
	return trimmed
}
