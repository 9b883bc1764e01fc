package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
timezone: America/Los_Angeles
logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
  discord:
    enabled: false
    min_level: warn
    rate_per_sec: 1
schedule:
  enabled: true
  spec: "0 9 * * *"
feed:
  limit: 25
history:
  driver: file
  path: ./testdata/history.json
tiers:
  - name: primary
    kind: gemini
    model: gemini-2.5-flash
    api_key_env: GEMINI_API_KEY
  - name: backup
    kind: openai
    model: llama-3.3-70b-versatile
    base_url: https://api.groq.com/openai/v1
    api_key_env: GROQ_API_KEY
  - name: emergency
    kind: emergency
selection:
  exclude_window: 50
link_check:
  enabled: true
notify:
  discord:
    enabled: true
  telegram:
    enabled: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAMLWithDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.Limit != 25 {
		t.Fatalf("Feed.Limit = %d, want 25", cfg.Feed.Limit)
	}
	// Defaults fill what the file omits.
	if cfg.History.Retention != 100 {
		t.Fatalf("History.Retention = %d, want default 100", cfg.History.Retention)
	}
	if cfg.Tiers[0].Attempts != 3 {
		t.Fatalf("Tiers[0].Attempts = %d, want default 3", cfg.Tiers[0].Attempts)
	}
	if cfg.Tiers[0].RetryDelay != "5s" {
		t.Fatalf("Tiers[0].RetryDelay = %q, want default 5s", cfg.Tiers[0].RetryDelay)
	}
	if cfg.Notify.Discord.Color != 0xe67e22 {
		t.Fatalf("Discord.Color = %#x, want default 0xe67e22", cfg.Notify.Discord.Color)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get() should return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, sampleYAML+"\nnot_a_real_key: 1\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestValidateRejectsBadTier(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		tier TierConfig
	}{
		{name: "unknown kind", tier: TierConfig{Name: "x", Kind: "oracle"}},
		{name: "missing model", tier: TierConfig{Name: "x", Kind: "gemini", APIKeyEnv: "K"}},
		{name: "missing key env", tier: TierConfig{Name: "x", Kind: "openai", Model: "m"}},
		{name: "bad retry delay", tier: TierConfig{Name: "x", Kind: "emergency", RetryDelay: "soon"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Tiers: []TierConfig{tt.tier}}
			cfg.ApplyDefaults()
			cfg.Tiers = []TierConfig{tt.tier} // keep the broken tier as written
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateRequiresTiers(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty tier list")
	}
}
