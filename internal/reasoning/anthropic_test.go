package reasoning

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/academic-crs/internal/config"
	"github.com/sells-group/academic-crs/internal/credential"
	"github.com/sells-group/academic-crs/pkg/anthropic"
)

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func anthropicFactory(client anthropic.Client) *AnthropicFactory {
	f := NewAnthropicFactory(config.AnthropicConfig{Model: "claude-sonnet-4-5-20250929", MaxTokens: 2048, Temperature: 0.1})
	f.newClient = func(string) anthropic.Client { return client }
	return f
}

func TestAnthropicReasoner_Complete(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" &&
			req.MaxTokens == 2048 &&
			req.System != "" &&
			len(req.Messages) == 1 &&
			req.Messages[0].Content == "Answer: what is GRE?"
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "A graduate exam."}},
	}, nil).Once()

	f := anthropicFactory(client)
	assert.Equal(t, "claude-sonnet-4-5-20250929", f.DefaultModel(PurposeQA))

	r, err := f.New(credential.Credentials{ReasoningKey: "sk-ant"}, "")
	require.NoError(t, err)

	out, err := r.Complete(context.Background(), Request{
		Purpose:   PurposeQA,
		Role:      "Consultant",
		Task:      "Answer: {question}",
		Inputs:    map[string]string{"question": "what is GRE?"},
		UseSearch: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "A graduate exam.", out)
	client.AssertExpectations(t)
}

func TestAnthropicReasoner_Errors(t *testing.T) {
	f := anthropicFactory(&mockAnthropic{})
	_, err := f.New(credential.Credentials{}, "")
	assert.ErrorIs(t, err, credential.ErrNoCredentials)

	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, eris.New("overloaded")).Once()
	r, err := anthropicFactory(client).New(credential.Credentials{ReasoningKey: "k"}, "")
	require.NoError(t, err)

	_, err = r.Complete(context.Background(), Request{Role: "r", Task: "t"})
	assert.ErrorIs(t, err, ErrService)
	assert.EqualError(t, err, "overloaded")
}
