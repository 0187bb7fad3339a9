package reasoning

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/academic-crs/pkg/jina"
	"github.com/sells-group/academic-crs/pkg/openrouter"
)

func toolCall(name, args string) openrouter.ToolCall {
	return openrouter.ToolCall{
		ID:       "c",
		Type:     "function",
		Function: openrouter.FunctionCall{Name: name, Arguments: args},
	}
}

func TestToolbox_Definitions(t *testing.T) {
	tb := NewToolbox(&mockSearch{}, 0)
	defs := tb.Definitions()
	assert.Len(t, defs, 2)
	assert.Equal(t, ToolWebSearch, defs[0].Function.Name)
	assert.Equal(t, ToolScrapePage, defs[1].Function.Name)
	assert.Equal(t, 8000, tb.maxChars)
}

func TestToolbox_SearchCapsResults(t *testing.T) {
	search := &mockSearch{}
	var results []jina.SearchResult
	for i := 0; i < 8; i++ {
		results = append(results, jina.SearchResult{Title: "T", URL: "https://u", Content: "body"})
	}
	search.On("Search", mock.Anything, "scholarships germany").
		Return(&jina.SearchResponse{Data: results}, nil).Once()

	out := NewToolbox(search, 100).Run(context.Background(), toolCall(ToolWebSearch, `{"query":"scholarships germany"}`))
	assert.Contains(t, out, "5. T")
	assert.NotContains(t, out, "6. T")
	assert.Contains(t, out, "body")
}

func TestToolbox_Errors(t *testing.T) {
	search := &mockSearch{}
	search.On("Read", mock.Anything, "https://down.example").
		Return(nil, eris.New("jina: status 503")).Once()
	tb := NewToolbox(search, 100)
	ctx := context.Background()

	tests := []struct {
		name string
		call openrouter.ToolCall
		want string
	}{
		{"bad arguments", toolCall(ToolWebSearch, `{"query":`), "decode arguments"},
		{"missing query", toolCall(ToolWebSearch, `{}`), "query is required"},
		{"missing url", toolCall(ToolScrapePage, ``), "url is required"},
		{"unknown tool", toolCall("delete_everything", `{}`), "unknown tool"},
		{"upstream failure", toolCall(ToolScrapePage, `{"url":"https://down.example"}`), "status 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tb.Run(ctx, tt.call)
			assert.True(t, strings.HasPrefix(out, "error: "), out)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestFormatResults_Empty(t *testing.T) {
	assert.Equal(t, "no results", formatResults(nil))
}
