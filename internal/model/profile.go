package model

import (
	"bytes"
	"encoding/json"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Well-known profile field keys.
const (
	FieldStudentName        = "student_name"
	FieldAcademicLevel      = "academic_level"
	FieldCurrentDegree      = "current_degree"
	FieldGraduationYear     = "graduation_year"
	FieldCGPA               = "cgpa"
	FieldBoard              = "board"
	FieldClass12Score       = "class12_score"
	FieldCompetitiveExams   = "competitive_exams"
	FieldCareerGoal         = "career_goal"
	FieldPreferredLocations = "preferred_locations"
	FieldBudget             = "budget"
	FieldSpecialization     = "specialization"
	FieldUserFeedback       = "user_feedback"
	FieldRawUserText        = "raw_user_text"

	FieldNormalizedProfile = "normalized_profile"
	FieldMatchedPrograms   = "matched_programs"
	FieldRankedPrograms    = "ranked_programs"
	FieldScholarships      = "scholarships"
	FieldReviews           = "reviews"
)

// Academic levels recognized by the extractor and validator.
const (
	LevelHighSchool          = "high_school"
	LevelUndergraduate       = "undergraduate"
	LevelPostgraduate        = "postgraduate"
	LevelWorkingProfessional = "working_professional"
)

// ExamRecord is a single competitive exam mention.
type ExamRecord struct {
	ExamName string `json:"exam_name"`
	Details  string `json:"details"`
}

// Profile is the evolving student profile document. A key is either absent
// or holds a non-empty value; use Set to keep that invariant.
type Profile map[string]any

// IsEmptyValue reports whether v must never be stored in a Profile: nil,
// blank strings, and lists, maps or records holding nothing but empty values.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		for _, s := range t {
			if strings.TrimSpace(s) != "" {
				return false
			}
		}
		return true
	case []ExamRecord:
		for _, r := range t {
			if !IsEmptyValue(r) {
				return false
			}
		}
		return true
	case ExamRecord:
		return strings.TrimSpace(t.ExamName) == "" && strings.TrimSpace(t.Details) == ""
	case []any:
		for _, item := range t {
			if !IsEmptyValue(item) {
				return false
			}
		}
		return true
	case map[string]any:
		return allEmpty(t)
	case Profile:
		return allEmpty(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.IsNil() || rv.Len() == 0
	case reflect.Array:
		return rv.Len() == 0
	}
	return false
}

func allEmpty(m map[string]any) bool {
	for _, v := range m {
		if !IsEmptyValue(v) {
			return false
		}
	}
	return true
}

// Set stores value under key, or removes key when value is empty.
// It reports whether the value was stored.
func (p Profile) Set(key string, value any) bool {
	if IsEmptyValue(value) {
		delete(p, key)
		return false
	}
	p[key] = value
	return true
}

// Has reports whether key holds a non-empty value.
func (p Profile) Has(key string) bool {
	v, ok := p[key]
	return ok && !IsEmptyValue(v)
}

// String returns the value under key when it is a string, otherwise "".
func (p Profile) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Clone returns a shallow copy of p.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Compact returns a copy of p without empty values.
func (p Profile) Compact() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out.Set(k, v)
	}
	return out
}

// fieldOrder is the order known fields are written in: extracted facts as
// the extractor finds them, then the stage outputs in pipeline order.
var fieldOrder = []string{
	FieldStudentName,
	FieldCurrentDegree,
	FieldGraduationYear,
	FieldCGPA,
	FieldCareerGoal,
	FieldBudget,
	FieldPreferredLocations,
	FieldSpecialization,
	FieldAcademicLevel,
	FieldBoard,
	FieldClass12Score,
	FieldCompetitiveExams,
	FieldUserFeedback,
	FieldRawUserText,
	FieldNormalizedProfile,
	FieldMatchedPrograms,
	FieldRankedPrograms,
	FieldScholarships,
	FieldReviews,
}

var fieldRank = func() map[string]int {
	m := make(map[string]int, len(fieldOrder))
	for i, f := range fieldOrder {
		m[f] = i
	}
	return m
}()

// Keys returns the profile keys: known fields in document order, then any
// other keys sorted.
func (p Profile) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iKnown := fieldRank[keys[i]]
		rj, jKnown := fieldRank[keys[j]]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		}
		return keys[i] < keys[j]
	})
	return keys
}

// MarshalJSON writes the profile with its keys in Keys order.
func (p Profile) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Provenance tags where an extraction fragment came from.
type Provenance string

const (
	ProvenanceHeuristic Provenance = "heuristic"
	ProvenanceReasoning Provenance = "reasoning"
)

// ExtractionResult is a profile fragment tagged with its provenance. It only
// lives for the duration of a merge.
type ExtractionResult struct {
	Provenance Provenance `json:"provenance"`
	Fields     Profile    `json:"fields"`
}

// MissingFieldReport maps a missing field to the question that asks for it.
type MissingFieldReport map[string]string

var locationSplit = regexp.MustCompile(`(?i),|\band\b`)

// CleanLocations coerces a preferred_locations value into a list of names.
// Strings are split on commas and "and". Returns nil for empty input.
func CleanLocations(value any) []string {
	switch v := value.(type) {
	case []string:
		if len(v) == 0 {
			return nil
		}
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		var out []string
		for _, part := range locationSplit.Split(v, -1) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}
