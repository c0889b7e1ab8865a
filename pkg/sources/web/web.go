// Package web collects articles found through a DuckDuckGo HTML search,
// extracting readable text from each result page.
package web

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/driftwatch/driftwatch/pkg/sources"
)

const searchEndpoint = "https://html.duckduckgo.com/html/"

// Body text kept per article; readability output can be entire pages.
const maxBodyRunes = 2000

type Source struct {
	client  *http.Client
	limiter *rate.Limiter
	results int

	// extract is swappable for tests; defaults to readability.FromURL.
	extract func(pageURL string, timeout time.Duration) (title, text string, err error)
}

// New builds a web source. results caps how many search hits are visited
// per query (default 10).
func New(rps float64, burst int, results int) *Source {
	if rps <= 0 {
		rps = 0.5
	}
	if burst <= 0 {
		burst = 1
	}
	if results <= 0 {
		results = 10
	}
	return &Source{
		client:  sources.NewHTTPClient(20 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		results: results,
		extract: extractArticle,
	}
}

func (s *Source) Name() string { return "web" }

func (s *Source) Fetch(ctx context.Context, query string, maxItems int) ([]sources.Item, error) {
	if maxItems <= 0 || maxItems > s.results {
		maxItems = s.results
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	hits, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}

	seenSites := make(map[string]bool)
	items := make([]sources.Item, 0, maxItems)
	for _, hit := range hits {
		if len(items) >= maxItems {
			break
		}
		site := sources.SiteOf(hit.url)
		// One article per registrable domain keeps a single outlet from
		// dominating the corpus.
		if site != "" && seenSites[site] {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return items, err
		}
		item := s.fetchArticle(hit, site)
		if site != "" {
			seenSites[site] = true
		}
		items = append(items, item)
	}
	return items, nil
}

type searchHit struct {
	title   string
	url     string
	snippet string
}

func (s *Source) search(ctx context.Context, query string) ([]searchHit, error) {
	q := url.Values{}
	q.Set("q", query)
	req, err := sources.NewRequest(ctx, searchEndpoint+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, res.Body)
		return nil, &sources.StatusError{Code: res.StatusCode, Message: "web search failed"}
	}
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, err
	}
	return parseResults(doc), nil
}

func parseResults(doc *goquery.Document) []searchHit {
	var hits []searchHit
	doc.Find(".result").Each(func(_ int, sel *goquery.Selection) {
		anchor := sel.Find(".result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}
		target := decodeRedirect(href)
		if target == "" {
			return
		}
		hits = append(hits, searchHit{
			title:   strings.TrimSpace(anchor.Text()),
			url:     target,
			snippet: strings.TrimSpace(sel.Find(".result__snippet").Text()),
		})
	})
	return hits
}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg=<encoded> result links.
func decodeRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return href
	}
	return ""
}

func (s *Source) fetchArticle(hit searchHit, site string) sources.Item {
	item := sources.Item{
		Source: "web",
		Title:  hit.title,
		Body:   hit.snippet,
		URL:    hit.url,
		Site:   site,
	}
	title, text, err := s.extract(hit.url, 15*time.Second)
	if err != nil {
		// Keep the search snippet; the run should not lose a result
		// because one page refused extraction.
		return item
	}
	if title != "" && item.Title == "" {
		item.Title = title
	}
	if text != "" {
		item.Body = truncateRunes(text, maxBodyRunes)
	}
	return item
}

func extractArticle(pageURL string, timeout time.Duration) (string, string, error) {
	article, err := readability.FromURL(pageURL, timeout)
	if err != nil {
		return fallbackTitle(pageURL, timeout)
	}
	return article.Title, strings.TrimSpace(article.TextContent), nil
}

// fallbackTitle grabs just the <title> of pages readability cannot handle.
func fallbackTitle(pageURL string, timeout time.Duration) (string, string, error) {
	client := sources.NewHTTPClient(timeout)
	req, err := sources.NewRequest(context.Background(), pageURL)
	if err != nil {
		return "", "", err
	}
	res, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer res.Body.Close()
	doc, err := html.Parse(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", "", err
	}
	title, _ := findTitle(doc)
	return strings.TrimSpace(title), "", nil
}

func findTitle(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title, ok := findTitle(c); ok {
			return title, ok
		}
	}
	return "", false
}

func truncateRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
