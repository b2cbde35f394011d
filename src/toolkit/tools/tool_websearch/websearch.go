package tool_websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/parley-chat/parley/src/toolkit"
)

// Tool name constant
const Name = "web_search"

const description = `Searches the web and returns the top results.

WHEN TO USE THIS TOOL:
- Use when you need current information that may postdate your training
- Helpful for looking up documentation, news, or facts to verify

HOW TO USE:
- Provide the search query
- Optionally set max_results (default 5, max 10)

LIMITATIONS:
- Returns titles, URLs, and short snippets, not full page content
- Some queries may return no results`

const searchEndpoint = "https://html.duckduckgo.com/html/"

const maxResults = 10

// WebSearchInput represents the parameters for web_search
type WebSearchInput struct {
	Query      string `json:"query" required:"true" description:"The search query"`
	MaxResults int    `json:"max_results,omitempty" description:"Maximum number of results (default 5, max 10)"`
}

type searchTool struct {
	client    *http.Client
	converter *md.Converter
	schema    *jsonschema.Schema
}

// New creates the web_search tool.
func New() (toolkit.Tool, error) {
	reflector := jsonschema.Reflector{}
	schema, err := reflector.Reflect(WebSearchInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}
	return &searchTool{
		client:    &http.Client{Timeout: 20 * time.Second},
		converter: md.NewConverter("", true, nil),
		schema:    &schema,
	}, nil
}

func (t *searchTool) GetName() string { return Name }

func (t *searchTool) GetDescription() string { return description }

func (t *searchTool) GetParameters() *jsonschema.Schema { return t.schema }

// Execute runs the search. Failures are reported as text so the model
// can apologize or rephrase rather than the turn aborting.
func (t *searchTool) Execute(ctx context.Context, input map[string]any) toolkit.Result {
	query := toolkit.StringField(input, "query", "")
	if query == "" {
		return toolkit.Result{Text: "The query parameter is required, e.g. {\"query\": \"golang sqlite driver\"}."}
	}

	limit := toolkit.IntField(input, "max_results", 5)
	if limit < 1 {
		limit = 1
	}
	if limit > maxResults {
		limit = maxResults
	}

	results, err := t.search(ctx, query, limit)
	if err != nil {
		return toolkit.Result{Text: fmt.Sprintf("Web search for %q failed: %v", query, err)}
	}
	if len(results) == 0 {
		return toolkit.Result{Text: fmt.Sprintf("No results found for %q.", query)}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for %q:\n", query)
	for i, result := range results {
		fmt.Fprintf(&sb, "\n%d. %s\n   %s\n   %s\n", i+1, result.title, result.url, result.snippet)
	}
	return toolkit.Result{Text: sb.String()}
}

type searchResult struct {
	title   string
	url     string
	snippet string
}

func (t *searchTool) search(ctx context.Context, query string, limit int) ([]searchResult, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "parley/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	var results []searchResult
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a")
		href, _ := link.Attr("href")
		if href == "" {
			return true
		}

		snippetHTML, err := sel.Find(".result__snippet").Html()
		snippet := ""
		if err == nil {
			// Snippets carry <b> highlighting; markdown keeps the
			// emphasis without leaking HTML to the model.
			if converted, err := t.converter.ConvertString(snippetHTML); err == nil {
				snippet = strings.TrimSpace(converted)
			}
		}

		results = append(results, searchResult{
			title:   strings.TrimSpace(link.Text()),
			url:     resolveRedirect(href),
			snippet: snippet,
		})
		return len(results) < limit
	})

	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect URLs.
func resolveRedirect(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
