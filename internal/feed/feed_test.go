package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	logx "otdbot/pkg/logx"
)

const sampleFeed = `{
  "events": [
    {
      "year": 1990,
      "text": "Something notable happened.",
      "pages": [
        {
          "content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Thing"}},
          "thumbnail": {"source": "https://upload.wikimedia.org/thing.jpg"}
        }
      ]
    },
    {
      "year": 1815,
      "text": "An event with no pages."
    },
    {
      "year": 2001,
      "text": ""
    }
  ]
}`

func TestTodayParsesAndBounds(t *testing.T) {
	t.Parallel()
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, UserAgent: "otdbot-test/1.0", Limit: 30}, logx.Nop())
	cands, err := c.Today(context.Background(), 3, 1)
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if gotPath != "/api/rest_v1/feed/onthisday/events/03/01" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotUA != "otdbot-test/1.0" {
		t.Fatalf("user agent = %q", gotUA)
	}
	// Empty-text event dropped.
	if len(cands) != 2 {
		t.Fatalf("len = %d, want 2", len(cands))
	}
	if cands[0].Year != "1990" || cands[0].Link != "https://en.wikipedia.org/wiki/Thing" {
		t.Fatalf("first candidate: %+v", cands[0])
	}
	if cands[0].Identity != cands[0].Link {
		t.Fatalf("identity should be the link: %q", cands[0].Identity)
	}
	// No link: identity falls back to a text hash.
	if cands[1].Link != "" || cands[1].Identity == "" || cands[1].Identity == cands[0].Identity {
		t.Fatalf("second candidate identity: %+v", cands[1])
	}
}

func TestTodayLimit(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Limit: 1}, logx.Nop())
	cands, err := c.Today(context.Background(), 12, 31)
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("len = %d, want limit 1", len(cands))
	}
}

func TestTodayHTTPError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, logx.Nop())
	if _, err := c.Today(context.Background(), 1, 1); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestIdentityStable(t *testing.T) {
	t.Parallel()
	a := Identity("", "The  Same Text")
	b := Identity("", "the  same text")
	if a != b {
		t.Fatalf("identity not case-stable: %q vs %q", a, b)
	}
	if Identity("https://x", "ignored") != "https://x" {
		t.Fatal("link must win over text hash")
	}
}
