package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/fetch"
)

const (
	maxSearchResults = 8
	maxPageContent   = 6000
)

// SearchResult is one hit from the keyword search.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearch provides keyword search, page fetch and the research helper
// queries the researcher agent exposes as tools.
type WebSearch struct {
	client   *fetch.Client
	rankings *KenpomSource
	logger   *slog.Logger
}

// NewWebSearch creates the web research component. rankings may be nil
// when the rankings source is disabled.
func NewWebSearch(client *fetch.Client, rankings *KenpomSource, logger *slog.Logger) *WebSearch {
	return &WebSearch{client: client, rankings: rankings, logger: logger}
}

// SearchWeb runs a keyword search and returns cleaned results.
func (w *WebSearch) SearchWeb(ctx context.Context, query string) ([]SearchResult, error) {
	reqURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	body, err := w.client.Get(ctx, reqURL, nil)
	if err != nil {
		return nil, domain.ErrUpstream("web search", err)
	}

	results := parseSearchResults(string(body))
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	w.logger.Debug("web search", "query", query, "results", len(results))
	return results, nil
}

// FetchURL retrieves a page and returns its cleaned visible text, capped.
func (w *WebSearch) FetchURL(ctx context.Context, pageURL string) (string, error) {
	body, err := w.client.Get(ctx, pageURL, nil)
	if err != nil {
		return "", domain.ErrUpstream("page fetch", err)
	}
	text := CleanHTML(string(body))
	if len(text) > maxPageContent {
		text = text[:maxPageContent] + " …[truncated]"
	}
	return text, nil
}

// SearchGamePredictions looks for expert picks on one matchup.
func (w *WebSearch) SearchGamePredictions(ctx context.Context, awayTeam, homeTeam string) ([]SearchResult, error) {
	q := fmt.Sprintf("%s vs %s prediction pick college basketball", awayTeam, homeTeam)
	return w.SearchWeb(ctx, q)
}

// SearchTeamStats looks for season statistics for one team.
func (w *WebSearch) SearchTeamStats(ctx context.Context, team string) ([]SearchResult, error) {
	return w.SearchWeb(ctx, team+" college basketball team stats this season")
}

// SearchInjuries looks for current injury reports for one team.
func (w *WebSearch) SearchInjuries(ctx context.Context, team string) ([]SearchResult, error) {
	return w.SearchWeb(ctx, team+" college basketball injury report")
}

// AdvancedStatsResult carries rankings-table metrics when available and
// web results as the fallback. HasAdvanced marks the preferred payload for
// dispatcher result trimming.
type AdvancedStatsResult struct {
	Team        string               `json:"team"`
	HasAdvanced bool                 `json:"has_advanced_stats"`
	Advanced    *domain.TeamAdvanced `json:"advanced,omitempty"`
	WebResults  []SearchResult       `json:"web_results,omitempty"`
}

// SearchAdvancedStats prefers the rankings table and falls back to the
// open web when the team is not in it.
func (w *WebSearch) SearchAdvancedStats(ctx context.Context, team, targetDate string) (*AdvancedStatsResult, error) {
	result := &AdvancedStatsResult{Team: team}
	if w.rankings != nil {
		stats, err := w.rankings.GetTeamStats(ctx, team, targetDate)
		if err != nil {
			w.logger.Warn("rankings lookup failed", "team", team, "error", err)
		} else if stats != nil {
			result.HasAdvanced = true
			result.Advanced = stats
			return result, nil
		}
	}
	hits, err := w.SearchWeb(ctx, team+" adjusted efficiency tempo net rating")
	if err != nil {
		return result, nil // advanced miss plus web failure is still a usable (empty) result
	}
	result.WebResults = hits
	return result, nil
}

// ── HTML cleaning ──

// CleanHTML strips scripts, styles and markup, returning collapsed
// visible text.
func CleanHTML(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg", "nav", "footer":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(b.String()), " ")
}

func parseSearchResults(page string) []SearchResult {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			r := SearchResult{
				Title: strings.TrimSpace(textContent(n)),
				URL:   cleanResultURL(attr(n, "href")),
			}
			if r.Title != "" && r.URL != "" {
				results = append(results, r)
			}
		}
		if n.Type == html.ElementNode && hasClass(n, "result__snippet") && len(results) > 0 {
			if results[len(results)-1].Snippet == "" {
				results[len(results)-1].Snippet = strings.TrimSpace(textContent(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// cleanResultURL unwraps the search engine's redirect parameter.
func cleanResultURL(raw string) string {
	if strings.HasPrefix(raw, "//duckduckgo.com/l/") || strings.Contains(raw, "uddg=") {
		if u, err := url.Parse(raw); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				if decoded, err := url.QueryUnescape(target); err == nil {
					return decoded
				}
			}
		}
	}
	return raw
}
