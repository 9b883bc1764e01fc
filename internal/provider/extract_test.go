package provider

import (
	"errors"
	"testing"
)

func TestExtractPickVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want RawPick
	}{
		{
			name: "bare json",
			raw:  `{"year":"1990","event":"A","link":"http://x"}`,
			want: RawPick{Year: "1990", Event: "A", Link: "http://x"},
		},
		{
			name: "json fence",
			raw:  "```json\n{\"year\":\"1990\",\"event\":\"A\",\"link\":\"http://x\"}\n```",
			want: RawPick{Year: "1990", Event: "A", Link: "http://x"},
		},
		{
			name: "plain fence with prose",
			raw:  "Sure! Here is the pick:\n```\n{\"year\":\"1815\",\"event\":\"B\",\"link\":\"http://y\",\"thumbnail\":\"http://t\"}\n```\nHope that helps.",
			want: RawPick{Year: "1815", Event: "B", Link: "http://y", Thumbnail: "http://t"},
		},
		{
			name: "numeric year",
			raw:  `{"year":1990,"event":"A","link":"http://x"}`,
			want: RawPick{Year: "1990", Event: "A", Link: "http://x"},
		},
		{
			name: "surrounding prose without fences",
			raw:  `The answer is {"year":"2001","event":"C","link":"http://z"} as requested.`,
			want: RawPick{Year: "2001", Event: "C", Link: "http://z"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractPick(tt.raw)
			if err != nil {
				t.Fatalf("ExtractPick(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractPickFailures(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "   ", "no json here", "```json\n```"} {
		if _, err := ExtractPick(raw); !errors.Is(err, ErrNoJSON) {
			t.Fatalf("ExtractPick(%q) err = %v, want ErrNoJSON", raw, err)
		}
	}

	// Braces but hopeless content: typed parse failure, not ErrNoJSON.
	if _, err := ExtractPick(`{"year": }`); err == nil || errors.Is(err, ErrNoJSON) {
		t.Fatalf("broken JSON should yield a parse error, got %v", err)
	}
}
