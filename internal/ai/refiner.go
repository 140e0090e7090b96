// Package ai implements the network-backed budget suggestion refiner
// against an Anthropic-compatible messages API. Every failure here is
// recoverable: the engine falls back to its statistical suggestions.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cuentas/internal/log"
	"cuentas/internal/services"
)

const maxResponseTokens = 4096

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.WithComponent(log.ComponentAI),
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

const systemPrompt = `You are a personal finance advisor. You receive a household's ` +
	`spending statistics, demographic benchmarks and income allocation, and refine ` +
	`per-category monthly budget suggestions. Respond with a single JSON object ` +
	`matching the requested schema, inside a fenced json code block.`

// Refine implements services.Refiner.
func (c *Client) Refine(ctx context.Context, in services.RefinerInput) (*services.RefinerOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode refiner input: %w", err)
	}

	reqBody, err := json.Marshal(messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxResponseTokens,
		System:    systemPrompt,
		Messages: []message{{
			Role: "user",
			Content: "Refine these budget suggestions. Context:\n" + string(payload) +
				"\n\nReturn JSON with this shape: {\"categories\": [{\"name\", \"suggestedBudget\", " +
				"\"rangeMin\", \"rangeMax\", \"reasoning\", \"confidence\", \"insights\"}], " +
				"\"overallInsights\": {\"totalSuggested\", \"savingsRate\", \"topRecommendations\", " +
				"\"warnings\", \"strengths\"}}",
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode messages request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build messages request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call messages API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read messages response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("messages API returned status %d", resp.StatusCode)
	}

	var mr messagesResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("decode messages response: %w", err)
	}

	var text string
	for _, block := range mr.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("messages response contains no text")
	}

	out, err := parseRefinement(text)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("refinement received",
		log.FieldOperation, log.OpRefine,
		log.FieldDuration, time.Since(start).Milliseconds(),
		log.FieldCount, len(out.Categories))

	return out, nil
}

// parseRefinement extracts the JSON object from the model's reply. The model
// is asked for a fenced block but replies with bare JSON often enough that
// both forms are accepted.
func parseRefinement(text string) (*services.RefinerOutput, error) {
	raw := extractFencedJSON(text)
	if raw == "" {
		raw = extractBareJSON(text)
	}
	if raw == "" {
		return nil, fmt.Errorf("no JSON object found in model reply")
	}

	var out services.RefinerOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode refinement: %w", err)
	}
	if len(out.Categories) == 0 {
		return nil, fmt.Errorf("refinement contains no categories")
	}
	return &out, nil
}

func extractFencedJSON(text string) string {
	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(text, fence)
		if start < 0 {
			continue
		}
		rest := text[start+len(fence):]
		end := strings.Index(rest, "```")
		if end < 0 {
			continue
		}
		candidate := strings.TrimSpace(rest[:end])
		if strings.HasPrefix(candidate, "{") {
			return candidate
		}
	}
	return ""
}

func extractBareJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
