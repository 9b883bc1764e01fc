package selector

import (
	"context"
	"fmt"
	"strings"

	"otdbot/internal/feed"
	"otdbot/internal/provider"
)

// ValidationError marks a structurally invalid provider response. For control
// flow it behaves like any transient failure (retried, then tier-advanced);
// it exists so logs can tell "model returned garbage" from "network flaked".
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid response: " + e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// validate turns a raw provider response into an accepted Selection, or
// explains why it cannot.
//
// The novelty check here is the hard, post-hoc one: a response naming an
// excluded identity is rejected regardless of how the prompt was phrased.
func (s *Selector) validate(ctx context.Context, raw string, in Input, excluded map[string]bool) (Selection, error) {
	pick, err := provider.ExtractPick(raw)
	if err != nil {
		return Selection{}, invalid("unparseable body: %v", err)
	}

	year := strings.TrimSpace(pick.Year)
	event := strings.TrimSpace(pick.Event)
	link := strings.TrimSpace(pick.Link)

	if year == "" {
		return Selection{}, invalid("missing year")
	}
	if event == "" {
		return Selection{}, invalid("missing event")
	}
	if link == "" {
		return Selection{}, invalid("missing link")
	}
	if max := s.constraints.MaxEventChars; max > 0 && len(event) > max {
		return Selection{}, invalid("event text too long (%d > %d chars)", len(event), max)
	}
	if pick.DateKey != "" && pick.DateKey != in.DateKey {
		return Selection{}, invalid("date mismatch: got %q, want %q", pick.DateKey, in.DateKey)
	}

	identity := feed.Identity(link, event)
	if excluded[identity] {
		return Selection{}, invalid("identity already posted: %s", identity)
	}

	// Optional best-effort liveness probe. A dead link is a validation
	// failure like any other; the probe itself never errors.
	if s.isLive != nil && !s.isLive(ctx, link) {
		return Selection{}, invalid("link not live: %s", link)
	}

	// Thumbnails are untrusted; keep only plausible URLs.
	thumb := strings.TrimSpace(pick.Thumbnail)
	if !strings.HasPrefix(thumb, "http") {
		thumb = ""
	}

	return Selection{
		Year:      year,
		Event:     event,
		Link:      link,
		Thumbnail: thumb,
		Identity:  identity,
		DateKey:   in.DateKey,
	}, nil
}
