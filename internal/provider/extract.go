package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// RawPick is the structured object a provider response must contain.
type RawPick struct {
	Year      string `json:"year"`
	Event     string `json:"event"`
	Link      string `json:"link"`
	Thumbnail string `json:"thumbnail,omitempty"`
	// DateKey is optional in provider output; when present it must match
	// the run's day.
	DateKey string `json:"date_key,omitempty"`
}

// ErrNoJSON means no JSON object could be located in the response text.
var ErrNoJSON = errors.New("no JSON object in response")

// ExtractPick pulls one RawPick out of free-form model text.
//
// Models wrap their answer in incidental formatting (markdown fences,
// prose before/after the object); this strips fences, then parses the
// outermost brace-delimited region. It returns a typed failure, never
// panics, and never retries on its own.
func ExtractPick(raw string) (RawPick, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return RawPick{}, ErrNoJSON
	}

	// Strip markdown code fences the way the upstream responses arrive:
	// ```json ... ``` or bare ``` ... ```.
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return RawPick{}, ErrNoJSON
	}

	var p RawPick
	if err := json.Unmarshal([]byte(s[start:end+1]), &p); err != nil {
		// Numbers for year are common; retry with a loose decode.
		var loose map[string]any
		if err2 := json.Unmarshal([]byte(s[start:end+1]), &loose); err2 != nil {
			return RawPick{}, fmt.Errorf("parse pick: %w", err)
		}
		p = pickFromLoose(loose)
	}
	return p, nil
}

func pickFromLoose(m map[string]any) RawPick {
	str := func(k string) string {
		switch v := m[k].(type) {
		case string:
			return v
		case float64:
			return strings.TrimSuffix(fmt.Sprintf("%.0f", v), ".0")
		default:
			return ""
		}
	}
	return RawPick{
		Year:      str("year"),
		Event:     str("event"),
		Link:      str("link"),
		Thumbnail: str("thumbnail"),
		DateKey:   str("date_key"),
	}
}
