// Package websearch queries Google Custom Search and extracts readable text
// from the pages it returns. It backs the /search command.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/glyphchat/internal/config"
)

// DefaultEndpoint is the Custom Search JSON API.
const DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"

// MaxPageText caps the text kept per scraped page, in runes.
const MaxPageText = 2000

const defaultUserAgent = "Mozilla/5.0 (compatible; glyphchat/1.0; +https://github.com/MrWong99/glyphchat)"

// maxBody bounds how much of any response is read.
const maxBody = 4 << 20

var (
	// ErrDisabled is returned when no API key or engine ID is configured.
	ErrDisabled = errors.New("websearch: not configured")

	// ErrNoContent is returned when a page has no readable text.
	ErrNoContent = errors.New("websearch: no readable content")
)

// stripped lists elements removed before text extraction.
const stripped = "script, style, nav, footer, header, aside, form, noscript"

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Source is a hit with the text that will be shown to the model. Text is
// the scraped page when that worked and the snippet otherwise.
type Source struct {
	Result
	Text    string
	Scraped bool
}

// Client talks to the search API and fetches result pages.
type Client struct {
	apiKey      string
	engineID    string
	endpoint    string
	userAgent   string
	results     int
	scrapePages int
	http        *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithEndpoint overrides the search API URL.
func WithEndpoint(u string) Option { return func(c *Client) { c.endpoint = u } }

// WithHTTPClient replaces the HTTP client used for both search and scraping.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithUserAgent sets the User-Agent sent when fetching pages.
func WithUserAgent(ua string) Option { return func(c *Client) { c.userAgent = ua } }

// New returns a Client for cfg. It fails with [ErrDisabled] when cfg lacks
// credentials.
func New(cfg config.WebSearchConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultWebSearchTimeout
	}
	c := &Client{
		apiKey:      cfg.APIKey,
		engineID:    cfg.EngineID,
		endpoint:    DefaultEndpoint,
		userAgent:   defaultUserAgent,
		results:     max(cfg.Results, 1),
		scrapePages: max(cfg.ScrapePages, 0),
		http:        &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Search returns up to the configured number of hits for query.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.engineID)
	q.Set("q", query)
	q.Set("num", fmt.Sprint(min(c.results, 10)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("websearch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("websearch: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("websearch: search failed: status=%d body=%s", resp.StatusCode, truncate(strings.TrimSpace(string(body)), 200))
	}

	var parsed struct {
		Items []Result `json:"items"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("websearch: decode response: %w", err)
	}
	if len(parsed.Items) > c.results {
		parsed.Items = parsed.Items[:c.results]
	}
	for i := range parsed.Items {
		it := &parsed.Items[i]
		it.Title = strings.TrimSpace(it.Title)
		it.Link = strings.TrimSpace(it.Link)
		it.Snippet = collapse(it.Snippet)
	}
	return parsed.Items, nil
}

// Scrape fetches pageURL and returns its main text. The first of main,
// article and body is used, with navigation, scripts and forms removed and
// whitespace collapsed. The result is capped at [MaxPageText] runes.
func (c *Client) Scrape(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("websearch: build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("websearch: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("websearch: fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("websearch: parse %s: %w", pageURL, err)
	}
	text := ExtractText(doc)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrNoContent, pageURL)
	}
	return text, nil
}

// ExtractText returns the readable text of doc's main content.
func ExtractText(doc *goquery.Document) string {
	var main *goquery.Selection
	for _, sel := range []string{"main", "article", "body"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			main = s
			break
		}
	}
	if main == nil {
		return ""
	}
	main.Find(stripped).Remove()

	var b strings.Builder
	for _, n := range main.Nodes {
		appendText(&b, n)
	}
	return truncate(collapse(b.String()), MaxPageText)
}

// appendText writes every text node below n, separated by spaces so that
// adjacent block elements do not run together.
func appendText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendText(b, c)
	}
}

// Sources searches for query and scrapes the top hits concurrently. Pages
// that cannot be scraped keep their snippet.
func (c *Client) Sources(ctx context.Context, query string) ([]Source, error) {
	hits, err := c.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = Source{Result: h, Text: h.Snippet}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range min(c.scrapePages, len(sources)) {
		g.Go(func() error {
			text, err := c.Scrape(gctx, sources[i].Link)
			if err != nil {
				slog.Debug("websearch: scrape failed, using snippet", "url", sources[i].Link, "err", err)
				return nil
			}
			sources[i].Text = text
			sources[i].Scraped = true
			return nil
		})
	}
	_ = g.Wait()
	return sources, nil
}

// FormatSources renders sources as numbered blocks for the search prompt.
func FormatSources(sources []Source) string {
	var b strings.Builder
	for i, s := range sources {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s", i+1, s.Title, s.Link, s.Text)
	}
	return b.String()
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
