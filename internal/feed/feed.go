// Package feed retrieves the day's candidate events from the Wikipedia
// "on this day" REST feed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"
	"time"

	logx "otdbot/pkg/logx"
)

// Candidate is one raw dated event offered to a provider for selection.
// Link and Thumbnail come from an external feed and are untrusted/optional.
type Candidate struct {
	Year      string `json:"year"`
	Text      string `json:"text"`
	Link      string `json:"link,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	// Identity is the stable dedup key: the page link when present,
	// otherwise a hash of the normalized text.
	Identity string `json:"-"`
}

type Config struct {
	BaseURL   string
	UserAgent string
	Limit     int
	Timeout   time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.Limit <= 0 {
		cfg.Limit = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://en.wikipedia.org"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}
}

// Wire shape of the onthisday feed; only the fields we read.
type feedResponse struct {
	Events []feedEvent `json:"events"`
}

type feedEvent struct {
	Year  json.Number `json:"year"`
	Text  string      `json:"text"`
	Pages []struct {
		ContentURLs struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
		Thumbnail struct {
			Source string `json:"source"`
		} `json:"thumbnail"`
	} `json:"pages"`
}

// Today fetches candidates for the given month/day (1-based).
// The returned list is bounded by cfg.Limit.
func (c *Client) Today(ctx context.Context, month, day int) ([]Candidate, error) {
	url := fmt.Sprintf("%s/api/rest_v1/feed/onthisday/events/%02d/%02d",
		strings.TrimRight(c.cfg.BaseURL, "/"), month, day)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed fetch: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed fetch: unexpected status %d", resp.StatusCode)
	}

	var fr feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("feed decode: %w", err)
	}

	out := make([]Candidate, 0, c.cfg.Limit)
	for _, e := range fr.Events {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		cand := Candidate{Year: e.Year.String(), Text: text}
		if len(e.Pages) > 0 {
			cand.Link = strings.TrimSpace(e.Pages[0].ContentURLs.Desktop.Page)
			cand.Thumbnail = strings.TrimSpace(e.Pages[0].Thumbnail.Source)
		}
		cand.Identity = Identity(cand.Link, cand.Text)
		out = append(out, cand)
		if len(out) >= c.cfg.Limit {
			break
		}
	}
	c.log.Debug("candidates fetched", logx.Int("count", len(out)), logx.String("url", url))
	return out, nil
}

// Identity derives the stable dedup key for a candidate: the link when
// present, otherwise an fnv-64a hash of the lowercased text.
func Identity(link, text string) string {
	link = strings.TrimSpace(link)
	if link != "" {
		return link
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(text))))
	return fmt.Sprintf("text:%x", h.Sum64())
}
