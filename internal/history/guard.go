package history

import (
	"context"

	logx "otdbot/pkg/logx"
)

// ShouldRun reports whether a selection run should be attempted for todayKey.
// It returns false only when the newest record shows today already ran.
//
// Read-only. Unreadable state counts as "never ran": losing the marker must
// never block future runs.
func ShouldRun(ctx context.Context, st Store, todayKey string, log logx.Logger) bool {
	if st == nil {
		return true
	}
	last, err := st.LastDateKey(ctx)
	if err != nil {
		if !log.IsZero() {
			log.Warn("last run marker unreadable; assuming never ran", logx.Err(err))
		}
		return true
	}
	return last == "" || last != todayKey
}
