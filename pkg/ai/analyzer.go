// Package ai produces the optional model-written analysis section of a
// report: collected items are summarized in chunks, concurrently, and the
// partial summaries are merged in a final pass.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/driftwatch/driftwatch/internal/utils"
	"github.com/driftwatch/driftwatch/pkg/sources"
)

// Depth selects how thorough the analysis is.
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthDetailed Depth = "detailed"
)

// ParseDepth validates a depth flag value. Empty means quick.
func ParseDepth(s string) (Depth, error) {
	switch Depth(strings.ToLower(strings.TrimSpace(s))) {
	case DepthQuick, "":
		return DepthQuick, nil
	case DepthDetailed:
		return DepthDetailed, nil
	}
	return "", fmt.Errorf("unknown analysis depth %q (want quick or detailed)", s)
}

// ErrModelError marks any failure while talking to the model. Callers
// degrade to a report without the analysis section.
var ErrModelError = errors.New("model analysis failed")

// Analysis is the model's read on one topic.
type Analysis struct {
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"key_findings"`
	TokensUsed  int      `json:"tokens_used"`
}

// Text renders the analysis as the report's free-form analysis block.
func (a *Analysis) Text() string {
	if a == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.Summary))
	if len(a.KeyFindings) > 0 {
		b.WriteString("\n\n**Key Findings**:\n")
		for _, f := range a.KeyFindings {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return strings.TrimSpace(b.String())
}

// Analyzer produces an Analysis for a topic from its collected items.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, topic string, items []sources.Item, depth Depth) (*Analysis, error)
}

// Config controls how the analyzer behaves.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	Endpoint       string
	Temperature    float64
	MaxBatch       int
	MaxConcurrency int
	HTTPClient     *http.Client
}

const (
	defaultProvider       = "openai"
	defaultModel          = "gpt-4o-mini"
	defaultEndpoint       = "https://api.openai.com/v1/chat/completions"
	defaultTemperature    = 0.2
	defaultMaxBatchSize   = 25
	defaultMaxConcurrency = 4

	// Item bodies are clipped before they enter a prompt.
	maxPromptBodyRunes = 600
)

// NewAnalyzer builds a concrete Analyzer based on the provided config.
func NewAnalyzer(cfg Config) (Analyzer, error) {
	cfg.Provider = strings.TrimSpace(strings.ToLower(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}

	switch cfg.Provider {
	case "openai":
		return newOpenAIAnalyzer(cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type openAIAnalyzer struct {
	apiKey         string
	model          string
	endpoint       string
	temperature    float64
	maxBatchSize   int
	maxConcurrency int
	client         httpClient
}

func newOpenAIAnalyzer(cfg Config) (*openAIAnalyzer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("ai analysis requires an API key (set ai.api_key in config or OPENAI_API_KEY)")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatchSize
	}

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}

	client := cfg.HTTPClient
	if client == nil {
		// The model endpoint is the one place transport-level retries
		// belong: 429s and 5xxs here are not collection failures.
		rc := retryablehttp.NewClient()
		rc.RetryMax = 3
		rc.HTTPClient.Timeout = 90 * time.Second
		rc.Logger = nil
		client = rc.StandardClient()
	}

	return &openAIAnalyzer{
		apiKey:         apiKey,
		model:          model,
		endpoint:       endpoint,
		temperature:    temperature,
		maxBatchSize:   maxBatch,
		maxConcurrency: maxConcurrency,
		client:         client,
	}, nil
}

func (n *openAIAnalyzer) Name() string { return n.model }

// Analyze summarizes the items in chunks of maxBatchSize, bounded by
// maxConcurrency, then merges the partial analyses into one.
func (n *openAIAnalyzer) Analyze(ctx context.Context, topic string, items []sources.Item, depth Depth) (*Analysis, error) {
	if len(items) == 0 {
		return nil, nil
	}

	utils.Log.Debugf("[ai] starting %s analysis for %q over %d items", depth, topic, len(items))

	type chunkWork struct {
		index int
		start int
		items []sources.Item
	}

	var chunks []chunkWork
	for start := 0; start < len(items); start += n.maxBatchSize {
		end := start + n.maxBatchSize
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, chunkWork{index: len(chunks), start: start, items: items[start:end]})
	}

	partials := make([]*Analysis, len(chunks))
	sem := make(chan struct{}, n.maxConcurrency)

	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for _, chunk := range chunks {
		wg.Add(1)
		go func(c chunkWork) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := n.analyzeChunk(ctx, topic, depth, c.start, c.items)
			if err != nil {
				utils.Log.Debugf("[ai] chunk at %d failed: %v", c.start, err)
				errOnce.Do(func() { firstErr = err })
				return
			}
			partials[c.index] = result
		}(chunk)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	if len(partials) == 1 {
		utils.Log.Debugf("[ai] finished analysis for %q (%d tokens)", topic, partials[0].TokensUsed)
		return partials[0], nil
	}

	merged, err := n.merge(ctx, topic, partials)
	if err != nil {
		return nil, err
	}
	utils.Log.Debugf("[ai] finished analysis for %q over %d chunks (%d tokens)", topic, len(partials), merged.TokensUsed)
	return merged, nil
}

func (n *openAIAnalyzer) analyzeChunk(ctx context.Context, topic string, depth Depth, baseID int, items []sources.Item) (*Analysis, error) {
	payload := chunkPayload{Topic: topic}
	for idx, item := range items {
		entry := promptItem{
			ID:     baseID + idx,
			Source: item.Source,
			Title:  item.Title,
			Body:   clipRunes(item.Body, maxPromptBodyRunes),
		}
		if !item.PublishedAt.IsZero() {
			entry.Date = item.PublishedAt.Format("2006-01-02")
		}
		payload.Items = append(payload.Items, entry)
	}

	user, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelError, err)
	}
	content, tokens, err := n.complete(ctx, chunkPrompt(depth), string(user))
	if err != nil {
		return nil, err
	}
	return parseAnalysis(content, tokens)
}

func (n *openAIAnalyzer) merge(ctx context.Context, topic string, partials []*Analysis) (*Analysis, error) {
	payload := mergePayload{Topic: topic}
	tokens := 0
	for _, p := range partials {
		payload.Summaries = append(payload.Summaries, p.Summary)
		payload.Findings = append(payload.Findings, p.KeyFindings...)
		tokens += p.TokensUsed
	}

	user, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelError, err)
	}
	content, mergeTokens, err := n.complete(ctx, mergeSystemPrompt, string(user))
	if err != nil {
		return nil, err
	}
	return parseAnalysis(content, tokens+mergeTokens)
}

func (n *openAIAnalyzer) complete(ctx context.Context, system, user string) (string, int, error) {
	reqBody := chatRequest{
		Model: n.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    n.temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrModelError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrModelError, err)
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrModelError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErrResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErrResp)
		if apiErrResp.Error.Message != "" {
			return "", 0, fmt.Errorf("%w: %s", ErrModelError, apiErrResp.Error.Message)
		}
		return "", 0, fmt.Errorf("%w: HTTP %d", ErrModelError, resp.StatusCode)
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrModelError, err)
	}
	if len(apiResp.Choices) == 0 || strings.TrimSpace(apiResp.Choices[0].Message.Content) == "" {
		return "", 0, fmt.Errorf("%w: empty response", ErrModelError)
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), apiResp.Usage.TotalTokens, nil
}

func parseAnalysis(content string, tokens int) (*Analysis, error) {
	var out Analysis
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("%w: unable to parse response: %v", ErrModelError, err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return nil, fmt.Errorf("%w: response carries no summary", ErrModelError)
	}
	out.TokensUsed = tokens
	return &out, nil
}

func clipRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

func chunkPrompt(depth Depth) string {
	if depth == DepthDetailed {
		return chunkSystemPromptDetailed
	}
	return chunkSystemPromptQuick
}

const chunkSystemPromptQuick = `You analyze research items collected about one topic.

Summarize what the items collectively say: the main developments, points of
agreement or disagreement, and anything notable. Be concrete and neutral;
never invent facts that are not in the items.

Return ONLY JSON following this schema:
{"summary": "3-4 sentences", "key_findings": ["up to 3 short findings"]}`

const chunkSystemPromptDetailed = `You analyze research items collected about one topic.

Write a thorough summary of what the items collectively say: the main
developments, points of agreement or disagreement, open questions, and
anything notable. Be concrete and neutral; never invent facts that are not
in the items.

Return ONLY JSON following this schema:
{"summary": "2-3 paragraphs", "key_findings": ["up to 8 short findings"]}`

const mergeSystemPrompt = `You merge partial analyses of research about the same topic into one.

Preserve concrete facts, drop repetition, and keep the tone neutral.

Return ONLY JSON following this schema:
{"summary": "merged summary", "key_findings": ["deduplicated findings"]}`

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type chunkPayload struct {
	Topic string       `json:"topic"`
	Items []promptItem `json:"items"`
}

type promptItem struct {
	ID     int    `json:"id"`
	Source string `json:"source"`
	Title  string `json:"title"`
	Body   string `json:"body,omitempty"`
	Date   string `json:"date,omitempty"`
}

type mergePayload struct {
	Topic     string   `json:"topic"`
	Summaries []string `json:"summaries"`
	Findings  []string `json:"key_findings"`
}
