package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildPrompt renders the selection instructions for a tier.
//
// The constraints here are deliberate product policy, not filler: topic
// variety (the feed over-represents the Space Race), a sensitive-topic
// exclusion, a thumbnail preference, and a strict JSON-only output shape.
func BuildPrompt(req PickRequest) string {
	events, _ := json.Marshal(req.Candidates)

	recent := strings.Join(req.Recent, " | ")
	if recent == "" {
		recent = "none yet"
	}

	maxWords := req.Constraints.MaxWords
	if maxWords <= 0 {
		maxWords = 40
	}

	var b strings.Builder
	b.WriteString("From the provided list, pick ONE interesting historical event.\n\n")
	fmt.Fprintf(&b, "CRITICAL - PREVIOUS POSTS: %s\n\n", recent)
	b.WriteString("VIBE: You have been very focused on the Space Race lately. PLEASE VARY THE TOPIC.\n")
	b.WriteString("Try to pick something from Pop Culture, Music, Sports, Art, or a unique Invention.\n")
	b.WriteString("Only pick a Space event if it is the ONLY high-quality option with a thumbnail.\n\n")
	b.WriteString("STRICT: Avoid events involving war crimes, dictators, or heavy tragedies.\n")
	b.WriteString("PRIORITY: Prefer events that have a thumbnail URL.\n\n")
	b.WriteString("STRICT FORMATTING:\n")
	b.WriteString("- Summarize the event in exactly TWO short, punchy sentences.\n")
	fmt.Fprintf(&b, "- Maximum %d words total.\n", maxWords)
	b.WriteString(`- JSON ONLY: {"year": "YYYY", "event": "Two sentence summary", "link": "Wiki link", "thumbnail": "URL"}.` + "\n\n")
	if len(req.Exclusions) > 0 {
		fmt.Fprintf(&b, "STRICT: DO NOT PICK THESE URLS: %s.\n", strings.Join(req.Exclusions, ", "))
	}
	fmt.Fprintf(&b, "Events: %s", events)
	return b.String()
}
