package sources

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceConfig is one entry of the sources.yaml registry.
type SourceConfig struct {
	Name     string  `yaml:"name"`
	Disabled bool    `yaml:"disabled,omitempty"`
	Rate     float64 `yaml:"rate,omitempty"`  // requests per second against the provider
	Burst    int     `yaml:"burst,omitempty"` // limiter burst, defaults to 1
	TokenEnv string  `yaml:"token_env,omitempty"`
	Results  int     `yaml:"results,omitempty"` // web: search results to visit
}

// Registry is the parsed sources.yaml. Order is the declaration order and
// is preserved all the way into collection reports.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// aliases maps the spellings people actually type to canonical source names.
var aliases = map[string]string{
	"hackernews":  "hackernews",
	"hacker-news": "hackernews",
	"hn":          "hackernews",
	"ycombinator": "hackernews",
	"x":           "x",
	"xapi":        "x",
	"twitter":     "x",
	"tweets":      "x",
	"web":         "web",
	"www":         "web",
	"search":      "web",
}

// Canonical normalizes a user-supplied source name. Unknown names are
// returned lowercased so the caller can report them verbatim.
func Canonical(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if c, ok := aliases[n]; ok {
		return c
	}
	return n
}

// DefaultRegistry is what an installation without a sources.yaml gets:
// the keyless providers enabled, x present but disabled until a token
// env is configured.
func DefaultRegistry() *Registry {
	return &Registry{Sources: []SourceConfig{
		{Name: "hackernews", Rate: 1, Burst: 2},
		{Name: "web", Rate: 0.5, Burst: 1, Results: 10},
		{Name: "x", Disabled: true, Rate: 1, Burst: 1, TokenEnv: "DRIFTWATCH_X_TOKEN"},
	}}
}

// LoadRegistry reads a sources.yaml. A missing file yields the default
// registry; a present but invalid file is an error.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRegistry(), nil
		}
		return nil, fmt.Errorf("read sources registry: %w", err)
	}
	var reg Registry
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("parse sources registry %s: %w", path, err)
	}
	if len(reg.Sources) == 0 {
		return nil, fmt.Errorf("sources registry %s declares no sources", path)
	}
	for i := range reg.Sources {
		reg.Sources[i].Name = Canonical(reg.Sources[i].Name)
		if reg.Sources[i].Burst <= 0 {
			reg.Sources[i].Burst = 1
		}
	}
	return &reg, nil
}

// Lookup finds the config for a (possibly aliased) source name.
func (r *Registry) Lookup(name string) (SourceConfig, bool) {
	canon := Canonical(name)
	for _, sc := range r.Sources {
		if sc.Name == canon {
			return sc, true
		}
	}
	return SourceConfig{}, false
}

// Enabled returns the configs not marked disabled, in declaration order.
func (r *Registry) Enabled() []SourceConfig {
	out := make([]SourceConfig, 0, len(r.Sources))
	for _, sc := range r.Sources {
		if !sc.Disabled {
			out = append(out, sc)
		}
	}
	return out
}

// Names returns the canonical names of all declared sources.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.Sources))
	for _, sc := range r.Sources {
		out = append(out, sc.Name)
	}
	return out
}
