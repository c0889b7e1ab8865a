package sources

import "testing"

func TestSiteOf(t *testing.T) {
	cases := []struct {
		rawURL string
		want   string
	}{
		{"https://blog.sub.example.co.uk/post", "example.co.uk"},
		{"https://news.ycombinator.com/item?id=1", "ycombinator.com"},
		{"https://x.com/i/status/17", "x.com"},
		{"example.com/page", "example.com"},
		{"localhost:8080", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := SiteOf(c.rawURL); got != c.want {
			t.Errorf("SiteOf(%q) = %q, want %q", c.rawURL, got, c.want)
		}
	}
}

func TestItemText(t *testing.T) {
	it := Item{Title: "Title only"}
	if got := it.Text(); got != "Title only" {
		t.Fatalf("expected title, got %q", got)
	}
	it.Body = "And a body"
	if got := it.Text(); got != "Title only\nAnd a body" {
		t.Fatalf("expected title and body joined, got %q", got)
	}
}

func TestStatusError(t *testing.T) {
	e := &StatusError{Code: 429}
	if got := e.Error(); got != "status 429" {
		t.Fatalf("unexpected error string %q", got)
	}
	e.Message = "rate limited"
	if got := e.Error(); got != "status 429: rate limited" {
		t.Fatalf("unexpected error string %q", got)
	}
}
