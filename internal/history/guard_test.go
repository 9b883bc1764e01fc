package history

import (
	"context"
	"path/filepath"
	"testing"

	logx "otdbot/pkg/logx"
)

func TestShouldRun(t *testing.T) {
	t.Parallel()
	today := "March 1, 2026"

	tests := []struct {
		name    string
		lastKey string // "" means empty history
		want    bool
	}{
		{name: "empty history", lastKey: "", want: true},
		{name: "ran yesterday", lastKey: "February 28, 2026", want: true},
		{name: "already ran today", lastKey: today, want: false},
		{name: "future marker still runs", lastKey: "March 2, 2026", want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "history_log.json")
			st, err := Open(Config{Driver: "file", Path: path, Retention: 10}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer st.Close()

			ctx := context.Background()
			if tt.lastKey != "" {
				if err := st.Append(ctx, Record{DateKey: tt.lastKey, Identity: "x", Year: "1990", Event: "e"}); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}
			if got := ShouldRun(ctx, st, today, logx.Nop()); got != tt.want {
				t.Fatalf("ShouldRun = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRunNilStore(t *testing.T) {
	t.Parallel()
	if !ShouldRun(context.Background(), nil, "March 1, 2026", logx.Nop()) {
		t.Fatal("nil store must not block a run")
	}
}
