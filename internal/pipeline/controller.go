package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/academic-crs/internal/credential"
	"github.com/sells-group/academic-crs/internal/extract"
	"github.com/sells-group/academic-crs/internal/model"
	"github.com/sells-group/academic-crs/internal/reasoning"
)

// NoFeedback is passed to stages when the user gave none.
const NoFeedback = "None"

// ErrEmptyQuestion is returned by Answer for a blank question.
var ErrEmptyQuestion = eris.New("pipeline: question is required")

// StageRequest is one stage invocation.
type StageRequest struct {
	Index       int
	Profile     model.Profile
	Feedback    string
	Credentials credential.Pair
}

// StageResult is the unprocessed output of one stage. Merging it into the
// profile is the caller's job; see Apply.
type StageResult struct {
	Stage      Stage         `json:"stage"`
	Output     string        `json:"result"`
	Model      string        `json:"model"`
	Credential string        `json:"credential"`
	Duration   time.Duration `json:"duration_ns"`
}

// Controller dispatches stages and questions to the reasoning service. It
// keeps no state between calls.
type Controller struct {
	factory reasoning.Factory
	models  *reasoning.ModelResolver
}

// NewController returns a Controller.
func NewController(factory reasoning.Factory, models *reasoning.ModelResolver) *Controller {
	return &Controller{factory: factory, models: models}
}

// RunStage runs the stage at req.Index against a read-only view of
// req.Profile.
func (c *Controller) RunStage(ctx context.Context, req StageRequest) (*StageResult, error) {
	stage, err := StageAt(req.Index)
	if err != nil {
		return nil, err
	}

	profileJSON, err := json.Marshal(req.Profile)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: encode profile for %s", stage.Name)
	}

	modelName, err := c.models.Resolve(ctx, reasoning.PurposeStage)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: resolve model for %s", stage.Name)
	}

	inputs := map[string]string{
		"profile":       string(profileJSON),
		"user_feedback": ResolveFeedback(req.Feedback, req.Profile),
		"upstream":      upstream(req.Profile, stage.Reads),
	}

	log := zap.L().With(
		zap.String("op_id", uuid.NewString()),
		zap.String("stage", stage.Name),
		zap.String("model", modelName),
	)
	log.Info("running stage", zap.Strings("profile_keys", req.Profile.Keys()))

	start := time.Now()
	var label string
	out, err := credential.WithFallback(ctx, req.Credentials, func(ctx context.Context, lease *credential.Lease) (string, error) {
		label = lease.Label()
		return c.complete(ctx, lease, modelName, reasoning.Request{
			Purpose:        reasoning.PurposeStage,
			Role:           stage.Role,
			Goal:           stage.Goal,
			Backstory:      stage.Backstory,
			Task:           stage.Task,
			ExpectedOutput: stage.ExpectedOutput,
			Inputs:         inputs,
			UseSearch:      stage.UseSearch,
		})
	})
	if err != nil {
		log.Error("stage failed", zap.Error(err))
		return nil, err
	}

	res := &StageResult{
		Stage:      stage,
		Output:     out,
		Model:      modelName,
		Credential: label,
		Duration:   time.Since(start),
	}
	log.Info("stage complete",
		zap.String("credential", label),
		zap.Int("output_len", len(out)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// Question is a free-form question about a context document.
type Question struct {
	Question    string
	Context     any
	Credentials credential.Pair
}

// Answer is the consultant's reply.
type Answer struct {
	Text  string `json:"answer"`
	Model string `json:"model"`
}

const qaGoal = `Answer students' questions clearly and professionally from the research you
are given.

- Markdown only: "##" headers and "-" bullets.
- A blank line before and after every header and list.
- Short paragraphs.
- Lead with the direct answer.
- No "Thought:", "Action:" or other narration.
- Prefer the supplied context; search when it lacks the answer.`

const qaTask = `A student asks:
"{question}"

What we already know:
{context}

Answer from the context where you can and search for the rest. Lay the reply
out exactly as:

## Summary
(the direct answer)

## Key Details
- **Point**: detail

## Recommendation
(what the student should do next)

Never mention the context or JSON, and keep real newlines between headers and
lists.`

// Answer replies to q using the application consultant role.
func (c *Controller) Answer(ctx context.Context, q Question) (*Answer, error) {
	if strings.TrimSpace(q.Question) == "" {
		return nil, ErrEmptyQuestion
	}
	contextJSON, err := json.Marshal(q.Context)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: encode question context")
	}
	modelName, err := c.models.Resolve(ctx, reasoning.PurposeQA)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve model for qa")
	}

	req := reasoning.Request{
		Purpose:        reasoning.PurposeQA,
		Role:           "Application Guide & Consultant",
		Goal:           qaGoal,
		Backstory:      "You are a friendly academic counsellor who explains university details in plain, well-structured language.",
		Task:           qaTask,
		ExpectedOutput: "A well-structured markdown answer with headers, bullets and spacing.",
		Inputs:         map[string]string{"question": q.Question, "context": string(contextJSON)},
		UseSearch:      true,
	}
	text, err := credential.WithFallback(ctx, q.Credentials, func(ctx context.Context, lease *credential.Lease) (string, error) {
		return c.complete(ctx, lease, modelName, req)
	})
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Model: modelName}, nil
}

func (c *Controller) complete(ctx context.Context, lease *credential.Lease, modelName string, req reasoning.Request) (string, error) {
	creds, err := lease.Credentials()
	if err != nil {
		return "", err
	}
	r, err := c.factory.New(creds, modelName)
	if err != nil {
		return "", err
	}
	return r.Complete(ctx, req)
}

// ResolveFeedback picks the explicit feedback, else the profile's
// user_feedback, else NoFeedback.
func ResolveFeedback(explicit string, profile model.Profile) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	if s := strings.TrimSpace(profile.String(model.FieldUserFeedback)); s != "" {
		return s
	}
	return NoFeedback
}

func upstream(profile model.Profile, key string) string {
	if key == "" || !profile.Has(key) {
		return NoFeedback
	}
	if s, ok := profile[key].(string); ok {
		return s
	}
	b, err := json.Marshal(profile[key])
	if err != nil {
		return NoFeedback
	}
	return string(b)
}

// Apply merges the stage output into a copy of profile under the stage's
// output key. JSON output is stored decoded; empty output changes nothing.
func Apply(profile model.Profile, res *StageResult) model.Profile {
	return extract.Merge(profile, model.Profile{
		res.Stage.Output: extract.DecodeStageOutput(res.Output),
	})
}
