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

const defaultOpenAIBaseURL = "https://api.groq.com/openai/v1"

// OpenAI calls any OpenAI-compatible chat completions endpoint.
// The default base URL points at Groq, which serves the backup tier.
type OpenAI struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	http    *http.Client
}

type OpenAIConfig struct {
	Name    string
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "openai:" + cfg.Model
	}
	return &OpenAI{
		name:    name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (o *OpenAI) Name() string { return o.name }

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (o *OpenAI) Pick(ctx context.Context, req PickRequest) (string, error) {
	if o.apiKey == "" {
		return "", permanent(fmt.Errorf("openai: api key is empty"))
	}

	body, err := json.Marshal(chatRequest{
		Model:          o.model,
		Messages:       []chatMessage{{Role: "user", Content: BuildPrompt(req)}},
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", permanent(err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", permanent(err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.http.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var cr chatResponse
		msg := strings.TrimSpace(string(rb))
		if json.Unmarshal(rb, &cr) == nil && cr.Error.Message != "" {
			msg = cr.Error.Message
		}
		err := fmt.Errorf("openai: status %d: %s", resp.StatusCode, msg)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", err
		}
		return "", permanent(err)
	}

	var cr chatResponse
	if err := json.Unmarshal(rb, &cr); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices")
	}
	return cr.Choices[0].Message.Content, nil
}
