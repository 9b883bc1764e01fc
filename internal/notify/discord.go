package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"otdbot/internal/selector"
)

// Discord posts the selection as a webhook embed.
type Discord struct {
	webhookURL string
	username   string
	color      int
	http       *http.Client
}

type DiscordConfig struct {
	WebhookURL string
	Username   string
	Color      int
	Timeout    time.Duration
}

func NewDiscord(cfg DiscordConfig) (*Discord, error) {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, errors.New("discord webhook url is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	color := cfg.Color
	if color == 0 {
		color = 0xe67e22
	}
	return &Discord{
		webhookURL: cfg.WebhookURL,
		username:   cfg.Username,
		color:      color,
		http:       &http.Client{Timeout: timeout},
	}, nil
}

func (d *Discord) Name() string { return "discord" }

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Color       int           `json:"color"`
	Thumbnail   *discordThumb `json:"thumbnail,omitempty"`
}

type discordThumb struct {
	URL string `json:"url"`
}

func (d *Discord) Deliver(ctx context.Context, sel selector.Selection) error {
	embed := discordEmbed{
		Title:       "On This Day - " + sel.DateKey,
		Description: fmt.Sprintf("**[%s](%s)** — %s", sel.Year, sel.Link, sel.Event),
		Color:       d.color,
	}
	if strings.HasPrefix(sel.Thumbnail, "http") {
		embed.Thumbnail = &discordThumb{URL: sel.Thumbnail}
	}

	body, err := json.Marshal(discordPayload{Username: d.username, Embeds: []discordEmbed{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status %d", resp.StatusCode)
	}
	return nil
}
