package reasoning

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/academic-crs/internal/config"
	"github.com/sells-group/academic-crs/internal/credential"
	"github.com/sells-group/academic-crs/internal/resilience"
	"github.com/sells-group/academic-crs/pkg/jina"
	"github.com/sells-group/academic-crs/pkg/openrouter"
)

// OpenRouterFactory builds OpenRouter-backed Reasoners. One factory is
// shared by the process so its breaker sees every call.
type OpenRouterFactory struct {
	cfg       config.OpenRouterConfig
	jinaCfg   config.JinaConfig
	breaker   *resilience.Breaker
	retry     resilience.Policy
	newChat   func(apiKey string) openrouter.Client
	newSearch func(apiKey string) jina.Client
}

// OpenRouterOption configures an OpenRouterFactory.
type OpenRouterOption func(*OpenRouterFactory)

// WithChatClient overrides how chat clients are built.
func WithChatClient(fn func(apiKey string) openrouter.Client) OpenRouterOption {
	return func(f *OpenRouterFactory) { f.newChat = fn }
}

// WithSearchClient overrides how search clients are built.
func WithSearchClient(fn func(apiKey string) jina.Client) OpenRouterOption {
	return func(f *OpenRouterFactory) { f.newSearch = fn }
}

// NewOpenRouterFactory returns a factory for the configured endpoint.
func NewOpenRouterFactory(cfg config.OpenRouterConfig, jinaCfg config.JinaConfig, rcfg config.ReasoningConfig, opts ...OpenRouterOption) *OpenRouterFactory {
	f := &OpenRouterFactory{
		cfg:     cfg,
		jinaCfg: jinaCfg,
		breaker: resilience.NewBreaker("openrouter", rcfg.BreakerThreshold, time.Duration(rcfg.BreakerCooldownSec)*time.Second),
		retry:   resilience.DefaultPolicy("openrouter"),
	}
	if rcfg.RetryAttempts > 0 {
		f.retry.Attempts = rcfg.RetryAttempts
	}
	f.newChat = func(apiKey string) openrouter.Client {
		opts := []openrouter.Option{
			openrouter.WithBreaker(f.breaker),
			openrouter.WithRetryPolicy(f.retry),
			openrouter.WithAppInfo(f.cfg.Referer, f.cfg.Title),
		}
		if f.cfg.BaseURL != "" {
			opts = append(opts, openrouter.WithBaseURL(f.cfg.BaseURL))
		}
		return openrouter.NewClient(apiKey, opts...)
	}
	f.newSearch = func(apiKey string) jina.Client {
		var opts []jina.Option
		if f.jinaCfg.BaseURL != "" {
			opts = append(opts, jina.WithBaseURL(f.jinaCfg.BaseURL))
		}
		if f.jinaCfg.SearchBaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(f.jinaCfg.SearchBaseURL))
		}
		if f.jinaCfg.SearchRPS > 0 {
			opts = append(opts, jina.WithRateLimit(f.jinaCfg.SearchRPS))
		}
		return jina.NewClient(apiKey, opts...)
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// DefaultModel returns the configured model for p.
func (f *OpenRouterFactory) DefaultModel(p Purpose) string {
	if p == PurposeExtract && f.cfg.ExtractorModel != "" {
		return f.cfg.ExtractorModel
	}
	return f.cfg.DefaultModel
}

// New binds a Reasoner to creds and model. Search tools are only offered
// when creds carry a search key.
func (f *OpenRouterFactory) New(creds credential.Credentials, model string) (Reasoner, error) {
	if strings.TrimSpace(creds.ReasoningKey) == "" {
		return nil, credential.ErrNoCredentials
	}
	model = NormalizeModel(model)
	if model == "" {
		return nil, eris.New("reasoning: model is required")
	}

	r := &openRouterReasoner{
		client:      f.newChat(creds.ReasoningKey),
		model:       model,
		temperature: f.cfg.Temperature,
		maxTokens:   f.cfg.MaxTokens,
		maxRounds:   f.cfg.MaxToolRounds,
	}
	if strings.TrimSpace(creds.SearchKey) != "" {
		r.tools = NewToolbox(f.newSearch(creds.SearchKey), f.jinaCfg.MaxPageChars)
	}
	return r, nil
}

type openRouterReasoner struct {
	client      openrouter.Client
	tools       *Toolbox
	model       string
	temperature float64
	maxTokens   int
	maxRounds   int
}

// Complete runs a bounded tool loop: while rounds remain the model may call
// tools, after which it must answer.
func (r *openRouterReasoner) Complete(ctx context.Context, req Request) (string, error) {
	msgs := []openrouter.Message{
		{Role: "system", Content: SystemPrompt(req)},
		{Role: "user", Content: UserPrompt(req)},
	}

	var tools []openrouter.Tool
	if req.UseSearch && r.tools != nil {
		tools = r.tools.Definitions()
	}

	for round := 0; ; round++ {
		chat := openrouter.ChatCompletionRequest{
			Model:       r.model,
			Messages:    msgs,
			Temperature: &r.temperature,
		}
		if r.maxTokens > 0 {
			chat.MaxTokens = &r.maxTokens
		}
		lastRound := round >= r.maxRounds
		if len(tools) > 0 {
			chat.Tools = tools
			if lastRound {
				chat.ToolChoice = "none"
			}
		}

		resp, err := r.client.ChatCompletion(ctx, chat)
		if err != nil {
			return "", &ServiceError{Provider: "openrouter", Err: err}
		}
		zap.L().Debug("openrouter completion",
			zap.String("model", r.model),
			zap.String("purpose", string(req.Purpose)),
			zap.Int("round", round),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)

		msg := resp.Choices[0].Message
		if len(tools) == 0 || lastRound || len(msg.ToolCalls) == 0 {
			if strings.TrimSpace(msg.Content) == "" {
				return "", &ServiceError{Provider: "openrouter", Err: eris.New("openrouter: empty response")}
			}
			return msg.Content, nil
		}

		msgs = append(msgs, msg)
		for _, call := range msg.ToolCalls {
			msgs = append(msgs, openrouter.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    r.tools.Run(ctx, call),
			})
		}
	}
}
