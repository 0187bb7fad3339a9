// Package reasoning is the boundary to the external language-model service.
// A Reasoner answers one role-and-task prompt; a Factory builds Reasoners
// bound to a single credential set and model.
package reasoning

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/academic-crs/internal/credential"
)

// ErrService marks a failure reported by the reasoning service.
var ErrService = eris.New("reasoning service failed")

// ServiceError carries the provider's failure message unchanged.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string { return e.Err.Error() }

func (e *ServiceError) Unwrap() error { return e.Err }

// Is matches ErrService.
func (e *ServiceError) Is(target error) bool { return target == ErrService }

// Purpose selects the default model for a request.
type Purpose string

const (
	PurposeStage   Purpose = "stage"
	PurposeExtract Purpose = "extract"
	PurposeQA      Purpose = "qa"
)

// Request is one role-and-task prompt. Task may reference inputs as {name}.
type Request struct {
	Purpose        Purpose
	Role           string
	Goal           string
	Backstory      string
	Task           string
	ExpectedOutput string
	Inputs         map[string]string
	// UseSearch offers the web_search and scrape_page tools when the
	// provider and credentials support them.
	UseSearch bool
}

// Reasoner completes requests against one model with one credential set.
type Reasoner interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Factory builds Reasoners.
type Factory interface {
	New(creds credential.Credentials, model string) (Reasoner, error)
	DefaultModel(p Purpose) string
}

// ReasonerFunc adapts a function to Reasoner.
type ReasonerFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ReasonerFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Render substitutes {name} placeholders in tmpl from inputs in a single
// pass; substituted text is never rescanned. Unknown placeholders are left.
func Render(tmpl string, inputs map[string]string) string {
	if len(inputs) == 0 {
		return tmpl
	}
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	// Longest first so {profile_x} is not shadowed by {profile}.
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", inputs[k])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// SystemPrompt renders the role, goal and backstory of req.
func SystemPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("You are ")
	sb.WriteString(req.Role)
	sb.WriteString(".\n")
	if req.Backstory != "" {
		sb.WriteString("\n")
		sb.WriteString(strings.TrimSpace(req.Backstory))
		sb.WriteString("\n")
	}
	if req.Goal != "" {
		sb.WriteString("\nYour goal:\n")
		sb.WriteString(strings.TrimSpace(req.Goal))
		sb.WriteString("\n")
	}
	return sb.String()
}

// UserPrompt renders the task with its inputs and the expected output.
func UserPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(Render(req.Task, req.Inputs)))
	if req.ExpectedOutput != "" {
		sb.WriteString("\n\nExpected output: ")
		sb.WriteString(strings.TrimSpace(req.ExpectedOutput))
	}
	return sb.String()
}
