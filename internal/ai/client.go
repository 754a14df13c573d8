// Package ai talks to the Gemini generateContent endpoint and turns replies into chat messages.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"moodguard/internal/apperr"
	"moodguard/internal/config"
)

const maxReplyRunes = 200

var ErrEmptyReply = errors.New("ai: empty reply")

type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Generator produces a single completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Client struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	limiter    *rate.Limiter
	HTTPClient *http.Client
}

func NewClient(cfg config.AIConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate performs one attempt. The reply is trimmed and capped at 200 characters.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", apperr.New(apperr.ExternalService, "ai.generate", "api key not configured")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", apperr.E(apperr.ExternalService, "ai.generate", err)
	}

	payload, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens},
	})
	if err != nil {
		return "", apperr.E(apperr.Internal, "ai.generate", err)
	}

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return "", apperr.E(apperr.Internal, "ai.generate", err)
	}
	q := endpoint.Query()
	q.Set("key", c.apiKey)
	endpoint.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return "", apperr.E(apperr.Internal, "ai.generate", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http().Do(httpReq)
	if err != nil {
		return "", apperr.E(apperr.ExternalService, "ai.generate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", apperr.E(apperr.ExternalService, "ai.generate", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperr.E(apperr.ExternalService, "ai.generate", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", apperr.E(apperr.ExternalService, "ai.generate", ErrEmptyReply)
	}
	text := strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", apperr.E(apperr.ExternalService, "ai.generate", ErrEmptyReply)
	}
	return truncate(text, maxReplyRunes), nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
