// Package hackernews collects stories from the Hacker News Algolia search API.
package hackernews

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/driftwatch/driftwatch/pkg/sources"
)

const searchURL = "https://hn.algolia.com/api/v1/search"

// Algolia caps hitsPerPage at 1000; we never need more than a page.
const maxPerPage = 100

type Source struct {
	client  *http.Client
	limiter *rate.Limiter
}

// New builds a Hacker News source. rps <= 0 falls back to 1 request/second.
func New(rps float64, burst int) *Source {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Source{
		client:  sources.NewHTTPClient(15 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (s *Source) Name() string { return "hackernews" }

func (s *Source) Fetch(ctx context.Context, query string, maxItems int) ([]sources.Item, error) {
	if maxItems <= 0 || maxItems > maxPerPage {
		maxItems = maxPerPage
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("tags", "story")
	q.Set("hitsPerPage", fmt.Sprint(maxItems))

	req, err := sources.NewRequest(ctx, searchURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, &sources.StatusError{Code: res.StatusCode, Message: "hn search failed"}
	}

	return parseHits(body, maxItems), nil
}

func parseHits(body []byte, maxItems int) []sources.Item {
	hits := gjson.GetBytes(body, "hits").Array()
	items := make([]sources.Item, 0, len(hits))
	for _, hit := range hits {
		if len(items) >= maxItems {
			break
		}
		title := hit.Get("title").Str
		if title == "" {
			continue
		}
		storyURL := hit.Get("url").Str
		if storyURL == "" {
			// Ask HN / Show HN text posts live on HN itself.
			storyURL = "https://news.ycombinator.com/item?id=" + hit.Get("objectID").Str
		}
		published, _ := time.Parse(time.RFC3339, hit.Get("created_at").Str)
		items = append(items, sources.Item{
			Source:      "hackernews",
			Title:       title,
			Body:        hit.Get("story_text").Str,
			Author:      hit.Get("author").Str,
			URL:         storyURL,
			Site:        sources.SiteOf(storyURL),
			PublishedAt: published,
			Engagement:  int(hit.Get("points").Int()),
		})
	}
	return items
}
