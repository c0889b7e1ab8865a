package sources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCanonical(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hn", "hackernews"},
		{"Hacker-News", "hackernews"},
		{"twitter", "x"},
		{"WWW", "web"},
		{" search ", "web"},
		{"reddit", "reddit"},
	}
	for _, c := range cases {
		if got := Canonical(c.in); got != c.want {
			t.Errorf("Canonical(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	if len(reg.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(reg.Sources))
	}
	x, ok := reg.Lookup("x")
	if !ok {
		t.Fatal("x missing from default registry")
	}
	if !x.Disabled {
		t.Error("x should be disabled until a token is configured")
	}
	if x.TokenEnv != "DRIFTWATCH_X_TOKEN" {
		t.Errorf("unexpected token env %q", x.TokenEnv)
	}

	enabled := reg.Enabled()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled sources, got %d", len(enabled))
	}
	if enabled[0].Name != "hackernews" || enabled[1].Name != "web" {
		t.Errorf("enabled order changed: %v", reg.Names())
	}
}

func TestLoadRegistryMissingFile(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("empty path should fall back to defaults: %v", err)
	}
	if len(reg.Sources) != len(DefaultRegistry().Sources) {
		t.Fatalf("expected default registry, got %v", reg.Names())
	}
}

func TestLoadRegistryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	yaml := `sources:
  - name: hn
    rate: 2
  - name: twitter
    disabled: true
    token_env: MY_TOKEN
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(reg.Sources))
	}
	if reg.Sources[0].Name != "hackernews" {
		t.Errorf("alias not canonicalized: %q", reg.Sources[0].Name)
	}
	if reg.Sources[0].Rate != 2 {
		t.Errorf("rate not kept: %v", reg.Sources[0].Rate)
	}
	if reg.Sources[0].Burst != 1 {
		t.Errorf("burst should default to 1, got %d", reg.Sources[0].Burst)
	}
	x, ok := reg.Lookup("x")
	if !ok || !x.Disabled || x.TokenEnv != "MY_TOKEN" {
		t.Errorf("unexpected x config: %+v (found=%v)", x, ok)
	}
}

func TestLoadRegistryRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("sources: ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRegistry(bad); err == nil {
		t.Error("expected a parse error for invalid yaml")
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("sources: []"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadRegistry(empty)
	if err == nil || !strings.Contains(err.Error(), "no sources") {
		t.Errorf("expected a no-sources error, got %v", err)
	}
}

func TestLookupAlias(t *testing.T) {
	reg := DefaultRegistry()
	sc, ok := reg.Lookup("HN")
	if !ok || sc.Name != "hackernews" {
		t.Fatalf("alias lookup failed: %+v (found=%v)", sc, ok)
	}
	if _, ok := reg.Lookup("reddit"); ok {
		t.Error("unknown source should not resolve")
	}
}
