package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/academic-crs/internal/config"
	"github.com/sells-group/academic-crs/internal/credential"
	"github.com/sells-group/academic-crs/pkg/jina"
	"github.com/sells-group/academic-crs/pkg/openrouter"
)

type mockChat struct {
	mock.Mock
}

func (m *mockChat) ChatCompletion(ctx context.Context, req openrouter.ChatCompletionRequest) (*openrouter.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openrouter.ChatCompletionResponse), args.Error(1)
}

type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) Search(ctx context.Context, query string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.SearchResponse), args.Error(1)
}

func (m *mockSearch) Read(ctx context.Context, targetURL string) (*jina.ReadResponse, error) {
	args := m.Called(ctx, targetURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.ReadResponse), args.Error(1)
}

func reply(content string, calls ...openrouter.ToolCall) *openrouter.ChatCompletionResponse {
	return &openrouter.ChatCompletionResponse{
		Choices: []openrouter.Choice{{
			Message: openrouter.Message{Role: "assistant", Content: content, ToolCalls: calls},
		}},
	}
}

func testFactory(chat *mockChat, search *mockSearch, keys *[]string) *OpenRouterFactory {
	return NewOpenRouterFactory(
		config.OpenRouterConfig{
			DefaultModel:   "mistralai/devstral-2512:free",
			ExtractorModel: "meta-llama/llama-3.3-70b-instruct:free",
			Temperature:    0.1,
			MaxTokens:      1024,
			MaxToolRounds:  2,
		},
		config.JinaConfig{MaxPageChars: 10},
		config.ReasoningConfig{BreakerThreshold: 5, BreakerCooldownSec: 30},
		WithChatClient(func(apiKey string) openrouter.Client {
			if keys != nil {
				*keys = append(*keys, apiKey)
			}
			return chat
		}),
		WithSearchClient(func(string) jina.Client { return search }),
	)
}

func TestOpenRouterFactory_DefaultModel(t *testing.T) {
	f := testFactory(&mockChat{}, &mockSearch{}, nil)
	assert.Equal(t, "meta-llama/llama-3.3-70b-instruct:free", f.DefaultModel(PurposeExtract))
	assert.Equal(t, "mistralai/devstral-2512:free", f.DefaultModel(PurposeStage))
	assert.Equal(t, "mistralai/devstral-2512:free", f.DefaultModel(PurposeQA))
}

func TestOpenRouterFactory_New(t *testing.T) {
	f := testFactory(&mockChat{}, &mockSearch{}, nil)

	_, err := f.New(credential.Credentials{}, "x/y")
	assert.ErrorIs(t, err, credential.ErrNoCredentials)

	_, err = f.New(credential.Credentials{ReasoningKey: "k"}, "  ")
	assert.Error(t, err)
}

func TestOpenRouterReasoner_PlainCompletion(t *testing.T) {
	chat := &mockChat{}
	var keys []string
	f := testFactory(chat, &mockSearch{}, &keys)

	chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req openrouter.ChatCompletionRequest) bool {
		return req.Model == "mistralai/devstral-2512:free" &&
			len(req.Messages) == 2 &&
			req.Messages[0].Role == "system" &&
			req.Messages[1].Content == "Say hi to Ana." &&
			len(req.Tools) == 0 &&
			*req.Temperature == 0.1
	})).Return(reply("hi Ana"), nil).Once()

	r, err := f.New(credential.Credentials{ReasoningKey: "sk-1"}, "openrouter/mistralai/devstral-2512:free")
	require.NoError(t, err)

	out, err := r.Complete(context.Background(), Request{
		Role:   "Greeter",
		Task:   "Say hi to {name}.",
		Inputs: map[string]string{"name": "Ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi Ana", out)
	assert.Equal(t, []string{"sk-1"}, keys)
	chat.AssertExpectations(t)
}

func TestOpenRouterReasoner_NoToolsWithoutSearchKey(t *testing.T) {
	chat := &mockChat{}
	f := testFactory(chat, &mockSearch{}, nil)

	chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req openrouter.ChatCompletionRequest) bool {
		return len(req.Tools) == 0
	})).Return(reply("answer"), nil).Once()

	r, err := f.New(credential.Credentials{ReasoningKey: "sk"}, "m/x")
	require.NoError(t, err)

	out, err := r.Complete(context.Background(), Request{Role: "r", Task: "t", UseSearch: true})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	chat.AssertExpectations(t)
}

func TestOpenRouterReasoner_ToolLoop(t *testing.T) {
	chat := &mockChat{}
	search := &mockSearch{}
	f := testFactory(chat, search, nil)

	searchCall := openrouter.ToolCall{
		ID:   "call_1",
		Type: "function",
		Function: openrouter.FunctionCall{
			Name:      ToolWebSearch,
			Arguments: `{"query":"TU Munich MS informatics"}`,
		},
	}
	scrapeCall := openrouter.ToolCall{
		ID:   "call_2",
		Type: "function",
		Function: openrouter.FunctionCall{
			Name:      ToolScrapePage,
			Arguments: `{"url":"https://www.tum.de/informatics"}`,
		},
	}

	chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req openrouter.ChatCompletionRequest) bool {
		return len(req.Messages) == 2 && len(req.Tools) == 2 && req.ToolChoice == ""
	})).Return(reply("", searchCall), nil).Once()

	chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req openrouter.ChatCompletionRequest) bool {
		return len(req.Messages) == 4 &&
			req.Messages[3].Role == "tool" &&
			req.Messages[3].ToolCallID == "call_1"
	})).Return(reply("", scrapeCall), nil).Once()

	// Final round: tools stay declared but calling them is disabled.
	chat.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req openrouter.ChatCompletionRequest) bool {
		return len(req.Messages) == 6 && req.ToolChoice == "none" &&
			req.Messages[5].Content == "0123456789…"
	})).Return(reply(`[{"university_name":"TUM"}]`), nil).Once()

	search.On("Search", mock.Anything, "TU Munich MS informatics").Return(&jina.SearchResponse{
		Data: []jina.SearchResult{{Title: "TUM", URL: "https://www.tum.de", Description: "Informatics"}},
	}, nil).Once()
	search.On("Read", mock.Anything, "https://www.tum.de/informatics").Return(&jina.ReadResponse{
		Data: jina.ReadData{Content: "0123456789abcdef"},
	}, nil).Once()

	r, err := f.New(credential.Credentials{ReasoningKey: "sk", SearchKey: "jina"}, "m/x")
	require.NoError(t, err)

	out, err := r.Complete(context.Background(), Request{Role: "Matcher", Task: "match", UseSearch: true})
	require.NoError(t, err)
	assert.Equal(t, `[{"university_name":"TUM"}]`, out)
	chat.AssertExpectations(t)
	search.AssertExpectations(t)
}

func TestOpenRouterReasoner_Errors(t *testing.T) {
	t.Run("client failure is a service error", func(t *testing.T) {
		chat := &mockChat{}
		f := testFactory(chat, &mockSearch{}, nil)
		chat.On("ChatCompletion", mock.Anything, mock.Anything).
			Return(nil, eris.New("openrouter: status 401: invalid key")).Once()

		r, err := f.New(credential.Credentials{ReasoningKey: "sk"}, "m/x")
		require.NoError(t, err)

		_, err = r.Complete(context.Background(), Request{Role: "r", Task: "t"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrService))
		assert.Contains(t, err.Error(), "invalid key")
	})

	t.Run("empty content", func(t *testing.T) {
		chat := &mockChat{}
		f := testFactory(chat, &mockSearch{}, nil)
		chat.On("ChatCompletion", mock.Anything, mock.Anything).Return(reply("  "), nil).Once()

		r, err := f.New(credential.Credentials{ReasoningKey: "sk"}, "m/x")
		require.NoError(t, err)

		_, err = r.Complete(context.Background(), Request{Role: "r", Task: "t"})
		assert.ErrorIs(t, err, ErrService)
	})
}
