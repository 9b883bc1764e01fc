package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// Gemini calls the Google generative language REST API.
type Gemini struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	http    *http.Client
}

type GeminiConfig struct {
	Name    string
	Model   string
	APIKey  string
	BaseURL string // override for tests
	Timeout time.Duration
}

func NewGemini(cfg GeminiConfig) *Gemini {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultGeminiBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "gemini:" + cfg.Model
	}
	return &Gemini{
		name:    name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (g *Gemini) Name() string { return g.name }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Gemini) Pick(ctx context.Context, req PickRequest) (string, error) {
	if g.apiKey == "" {
		return "", permanent(fmt.Errorf("gemini: api key is empty"))
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: BuildPrompt(req)}}}},
	})
	if err != nil {
		return "", permanent(err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", permanent(err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.http.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var gr geminiResponse
		msg := strings.TrimSpace(string(rb))
		if json.Unmarshal(rb, &gr) == nil && gr.Error.Message != "" {
			msg = gr.Error.Message
		}
		err := fmt.Errorf("gemini: status %d: %s", resp.StatusCode, msg)
		// Rate limits and server hiccups are worth retrying; the rest are not.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", err
		}
		return "", permanent(err)
	}

	var gr geminiResponse
	if err := json.Unmarshal(rb, &gr); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}
