// Package xapi collects recent posts from the X API v2 search endpoint.
package xapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/driftwatch/driftwatch/pkg/sources"
)

const searchURL = "https://api.x.com/2/tweets/search/recent"

// The recent search endpoint rejects max_results outside 10..100.
const (
	minResults = 10
	maxResults = 100
)

type Source struct {
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// New builds an X source. An empty token is allowed at construction time;
// the first Fetch then fails with a 401 StatusError so the collection layer
// classifies it as an auth failure instead of retrying.
func New(token string, rps float64, burst int) *Source {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Source{
		token:   token,
		client:  sources.NewHTTPClient(15 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (s *Source) Name() string { return "x" }

func (s *Source) Fetch(ctx context.Context, query string, maxItems int) ([]sources.Item, error) {
	if s.token == "" {
		return nil, &sources.StatusError{Code: http.StatusUnauthorized, Message: "no bearer token configured"}
	}
	if maxItems < minResults {
		maxItems = minResults
	}
	if maxItems > maxResults {
		maxItems = maxResults
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("query", query+" -is:retweet lang:en")
	q.Set("max_results", fmt.Sprint(maxItems))
	q.Set("tweet.fields", "created_at,public_metrics,author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")

	req, err := sources.NewRequest(ctx, searchURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

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
		return nil, &sources.StatusError{Code: res.StatusCode, Message: gjson.GetBytes(body, "title").Str}
	}

	return parseTweets(body), nil
}

func parseTweets(body []byte) []sources.Item {
	// author_id -> username from the expansion block.
	usernames := make(map[string]string)
	for _, u := range gjson.GetBytes(body, "includes.users").Array() {
		usernames[u.Get("id").Str] = u.Get("username").Str
	}

	data := gjson.GetBytes(body, "data").Array()
	items := make([]sources.Item, 0, len(data))
	for _, tw := range data {
		text := tw.Get("text").Str
		if text == "" {
			continue
		}
		published, _ := time.Parse(time.RFC3339, tw.Get("created_at").Str)
		metrics := tw.Get("public_metrics")
		engagement := int(metrics.Get("like_count").Int() +
			metrics.Get("retweet_count").Int() +
			metrics.Get("reply_count").Int())
		id := tw.Get("id").Str
		author := usernames[tw.Get("author_id").Str]
		items = append(items, sources.Item{
			Source:      "x",
			Title:       firstLine(text),
			Body:        text,
			Author:      author,
			URL:         "https://x.com/i/status/" + id,
			Site:        "x.com",
			PublishedAt: published,
			Engagement:  engagement,
		})
	}
	return items
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > 120 {
		return string(runes[:120])
	}
	return text
}
