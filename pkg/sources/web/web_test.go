package web

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func parseFixture(t *testing.T, html string) []searchHit {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return parseResults(doc)
}

func TestParseResults(t *testing.T) {
	html := `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpost&amp;rut=abc">  Example post  </a>
  <a class="result__snippet"> A snippet about the post. </a>
</div>
<div class="result">
  <a class="result__a" href="https://direct.example.org/article">Direct link</a>
</div>
<div class="result">
  <span>no anchor here</span>
</div>
</body></html>`

	hits := parseFixture(t, html)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits (anchorless result skipped), got %d", len(hits))
	}
	if hits[0].url != "https://example.com/post" {
		t.Errorf("redirect not decoded: %q", hits[0].url)
	}
	if hits[0].title != "Example post" {
		t.Errorf("title not trimmed: %q", hits[0].title)
	}
	if hits[0].snippet != "A snippet about the post." {
		t.Errorf("snippet not trimmed: %q", hits[0].snippet)
	}
	if hits[1].url != "https://direct.example.org/article" {
		t.Errorf("plain link should pass through: %q", hits[1].url)
	}
}

func TestDecodeRedirect(t *testing.T) {
	cases := []struct {
		href string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpost&rut=abc", "https://example.com/post"},
		{"https://direct.example.org/article", "https://direct.example.org/article"},
		{"javascript:void(0)", ""},
		{"/html/?q=next", ""},
	}
	for _, c := range cases {
		if got := decodeRedirect(c.href); got != c.want {
			t.Errorf("decodeRedirect(%q) = %q, want %q", c.href, got, c.want)
		}
	}
}

func TestFetchArticleUsesExtractedText(t *testing.T) {
	s := New(1, 1, 5)
	s.extract = func(pageURL string, timeout time.Duration) (string, string, error) {
		return "Extracted Title", "Full readable article text.", nil
	}

	hit := searchHit{title: "Hit title", url: "https://example.com/post", snippet: "snip"}
	item := s.fetchArticle(hit, "example.com")
	if item.Title != "Hit title" {
		t.Errorf("search title should win when present, got %q", item.Title)
	}
	if item.Body != "Full readable article text." {
		t.Errorf("body should be the extracted text, got %q", item.Body)
	}
	if item.Site != "example.com" || item.Source != "web" {
		t.Errorf("metadata lost: %+v", item)
	}

	item = s.fetchArticle(searchHit{url: "https://example.com/post"}, "example.com")
	if item.Title != "Extracted Title" {
		t.Errorf("extracted title should fill an empty hit title, got %q", item.Title)
	}
}

func TestFetchArticleKeepsSnippetOnFailure(t *testing.T) {
	s := New(1, 1, 5)
	s.extract = func(pageURL string, timeout time.Duration) (string, string, error) {
		return "", "", errors.New("paywalled")
	}

	hit := searchHit{title: "Hit title", url: "https://example.com/post", snippet: "the snippet"}
	item := s.fetchArticle(hit, "example.com")
	if item.Body != "the snippet" {
		t.Errorf("failed extraction should keep the snippet, got %q", item.Body)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("short", 100); got != "short" {
		t.Errorf("short text should pass through, got %q", got)
	}
	got := truncateRunes("日本語のテスト", 3)
	if got != "日本語…" {
		t.Errorf("truncation should respect rune boundaries, got %q", got)
	}
}
