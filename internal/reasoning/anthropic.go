package reasoning

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/academic-crs/internal/config"
	"github.com/sells-group/academic-crs/internal/credential"
	"github.com/sells-group/academic-crs/pkg/anthropic"
)

// AnthropicFactory builds Reasoners on the Anthropic Messages API. It has no
// search tools; search-enabled requests are answered from the prompt alone.
type AnthropicFactory struct {
	cfg       config.AnthropicConfig
	newClient func(apiKey string) anthropic.Client
}

// NewAnthropicFactory returns a factory using the SDK client.
func NewAnthropicFactory(cfg config.AnthropicConfig) *AnthropicFactory {
	return &AnthropicFactory{
		cfg: cfg,
		newClient: func(apiKey string) anthropic.Client {
			return anthropic.NewClient(apiKey)
		},
	}
}

// DefaultModel returns the configured model for every purpose.
func (f *AnthropicFactory) DefaultModel(Purpose) string {
	return f.cfg.Model
}

// New binds a Reasoner to creds and model.
func (f *AnthropicFactory) New(creds credential.Credentials, model string) (Reasoner, error) {
	if strings.TrimSpace(creds.ReasoningKey) == "" {
		return nil, credential.ErrNoCredentials
	}
	if model == "" {
		model = f.cfg.Model
	}
	maxTokens := int64(f.cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &anthropicReasoner{
		client:      f.newClient(creds.ReasoningKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: f.cfg.Temperature,
	}, nil
}

type anthropicReasoner struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

func (r *anthropicReasoner) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		System:      SystemPrompt(req),
		Messages:    []anthropic.Message{{Role: "user", Content: UserPrompt(req)}},
		Temperature: &r.temperature,
	})
	if err != nil {
		return "", &ServiceError{Provider: "anthropic", Err: err}
	}
	resp.Usage.LogCost(r.model, string(req.Purpose))

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &ServiceError{Provider: "anthropic", Err: eris.New("anthropic: empty response")}
	}
	return text, nil
}
