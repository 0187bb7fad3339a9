package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/academic-crs/pkg/jina"
	"github.com/sells-group/academic-crs/pkg/openrouter"
)

// Tool names offered to search-enabled requests.
const (
	ToolWebSearch  = "web_search"
	ToolScrapePage = "scrape_page"
)

const maxSearchResults = 5

var toolDefinitions = []openrouter.Tool{
	{
		Type: "function",
		Function: openrouter.FunctionDef{
			Name:        ToolWebSearch,
			Description: "Search the web. Returns the top results with title, URL and snippet.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Search query"}},"required":["query"]}`),
		},
	},
	{
		Type: "function",
		Function: openrouter.FunctionDef{
			Name:        ToolScrapePage,
			Description: "Fetch a web page and return its main content as markdown.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"Absolute URL"}},"required":["url"]}`),
		},
	},
}

// Toolbox runs the search tools against Jina.
type Toolbox struct {
	client   jina.Client
	maxChars int
}

// NewToolbox returns a Toolbox that truncates page content to maxChars.
func NewToolbox(client jina.Client, maxChars int) *Toolbox {
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &Toolbox{client: client, maxChars: maxChars}
}

// Definitions lists the tools for a chat request.
func (t *Toolbox) Definitions() []openrouter.Tool {
	return toolDefinitions
}

// Run executes one tool call. Failures are reported to the model as text so
// it can carry on without the result.
func (t *Toolbox) Run(ctx context.Context, call openrouter.ToolCall) string {
	out, err := t.run(ctx, call)
	if err != nil {
		zap.L().Warn("tool call failed",
			zap.String("tool", call.Function.Name),
			zap.Error(err),
		)
		return "error: " + err.Error()
	}
	return out
}

func (t *Toolbox) run(ctx context.Context, call openrouter.ToolCall) (string, error) {
	var args struct {
		Query string `json:"query"`
		URL   string `json:"url"`
	}
	if strings.TrimSpace(call.Function.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return "", eris.Wrapf(err, "tool %s: decode arguments", call.Function.Name)
		}
	}

	switch call.Function.Name {
	case ToolWebSearch:
		if strings.TrimSpace(args.Query) == "" {
			return "", eris.New("web_search: query is required")
		}
		resp, err := t.client.Search(ctx, args.Query)
		if err != nil {
			return "", err
		}
		return formatResults(resp.Data), nil

	case ToolScrapePage:
		if strings.TrimSpace(args.URL) == "" {
			return "", eris.New("scrape_page: url is required")
		}
		resp, err := t.client.Read(ctx, args.URL)
		if err != nil {
			return "", err
		}
		return truncate(resp.Data.Content, t.maxChars), nil
	}
	return "", eris.Errorf("unknown tool %q", call.Function.Name)
}

func formatResults(results []jina.SearchResult) string {
	if len(results) == 0 {
		return "no results"
	}
	var sb strings.Builder
	for i, r := range results {
		if i == maxSearchResults {
			break
		}
		snippet := r.Description
		if snippet == "" {
			snippet = truncate(r.Content, 300)
		}
		fmt.Fprintf(&sb, "%d. %s\n%s\n%s\n\n", i+1, r.Title, r.URL, snippet)
	}
	return strings.TrimSpace(sb.String())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
