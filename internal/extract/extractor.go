package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/academic-crs/internal/credential"
	"github.com/sells-group/academic-crs/internal/model"
	"github.com/sells-group/academic-crs/internal/reasoning"
	"github.com/sells-group/academic-crs/internal/validate"
)

const extractorGoal = `Turn a student's free-form description of themselves into structured profile
fields, whatever their level: high school, undergraduate, postgraduate or
working professional. Capture background, scores, goals and preferences as
stated. Never invent a value.

When the text does not reveal at least an academic level and a subject or
career goal, put one follow-up question in "missing_info".

Reply with exactly one JSON object. Allowed keys: student_name, academic_level,
current_degree, graduation_year, board, class12_score, cgpa,
competitive_exams (a list of strings such as "JEE Main: 97 percentile"),
career_goal, preferred_locations, budget, specialization,
intended_degree_level, missing_info.

Leave out every key the student gave no information for. No null, "unknown"
or empty values. No markdown.`

const extractorBackstory = `You read student profiles for a living. You pick out academic history, test
results, career plans, budget limits and country or subject preferences, and
you record them faithfully.`

const extractorTask = `Read the student's text below and return only the JSON profile object.

TEXT:
{text}`

// Result is the outcome of one extraction.
type Result struct {
	Profile       model.Profile            `json:"profile"`
	MissingFields model.MissingFieldReport `json:"missing_fields"`
	// FollowUp is the reasoning service's clarifying question, if any.
	FollowUp string `json:"follow_up,omitempty"`
	// Degraded is set when the structured extraction could not be decoded
	// and the profile holds heuristic fields only.
	Degraded bool `json:"degraded,omitempty"`
}

// Extractor combines the heuristic pass with a structured extraction from
// the reasoning service.
type Extractor struct {
	factory reasoning.Factory
	models  *reasoning.ModelResolver
}

// NewExtractor returns an Extractor.
func NewExtractor(factory reasoning.Factory, models *reasoning.ModelResolver) *Extractor {
	return &Extractor{factory: factory, models: models}
}

// Extract builds a profile from text. Structured fields win over heuristic
// ones. A service failure on both credentials is returned; an undecodable
// reply is logged and the heuristic profile is used on its own.
func (e *Extractor) Extract(ctx context.Context, text string, pair credential.Pair) (*Result, error) {
	heuristic := model.ExtractionResult{
		Provenance: model.ProvenanceHeuristic,
		Fields:     Heuristic(text),
	}

	modelName, err := e.models.Resolve(ctx, reasoning.PurposeExtract)
	if err != nil {
		return nil, eris.Wrap(err, "extract: resolve model")
	}

	req := reasoning.Request{
		Purpose:        reasoning.PurposeExtract,
		Role:           "Profile Information Extractor",
		Goal:           extractorGoal,
		Backstory:      extractorBackstory,
		Task:           extractorTask,
		ExpectedOutput: "One JSON object holding the profile fields described in your goal.",
		Inputs:         map[string]string{"text": text},
	}

	raw, err := credential.WithFallback(ctx, pair, func(ctx context.Context, lease *credential.Lease) (string, error) {
		creds, err := lease.Credentials()
		if err != nil {
			return "", err
		}
		r, err := e.factory.New(creds, modelName)
		if err != nil {
			return "", err
		}
		return r.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	parsed := ParseStructured(raw)
	res := &Result{FollowUp: parsed.FollowUp}
	results := []model.ExtractionResult{heuristic}
	if parsed.OK() {
		results = append(results, model.ExtractionResult{
			Provenance: model.ProvenanceReasoning,
			Fields:     parsed.Fragment,
		})
	} else {
		zap.L().Warn("structured extraction unreadable, using heuristic fields",
			zap.String("model", modelName),
			zap.Error(parsed.Err),
		)
		res.Degraded = true
	}

	res.Profile = finish(MergeResults(results...), text)
	res.MissingFields = validate.ForProfile(res.Profile)
	return res, nil
}

// Offline builds a profile from the heuristic pass alone.
func Offline(text string) *Result {
	p := finish(Heuristic(text), text)
	return &Result{Profile: p, MissingFields: validate.ForProfile(p)}
}

func finish(p model.Profile, text string) model.Profile {
	p.Set(model.FieldRawUserText, strings.TrimSpace(text))
	return p
}
