// Package linkcheck provides a best-effort URL liveness probe.
package linkcheck

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	logx "otdbot/pkg/logx"
)

type Checker struct {
	http *http.Client
	log  logx.Logger
}

func New(timeout time.Duration, log logx.Logger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Checker{http: &http.Client{Timeout: timeout}, log: log}
}

// IsLive reports whether url answers with a non-error status. HEAD is tried
// first; some wikis reject it, so a GET follows. Any failure or timeout is
// simply false; this probe never propagates errors.
func (c *Checker) IsLive(ctx context.Context, url string) bool {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http") {
		return false
	}
	if ok, decided := c.probe(ctx, http.MethodHead, url); decided {
		return ok
	}
	ok, _ := c.probe(ctx, http.MethodGet, url)
	return ok
}

// probe returns (alive, decided). decided=false means the method itself was
// rejected (405) and another method is worth trying.
func (c *Checker) probe(ctx context.Context, method, url string) (bool, bool) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return false, true
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("liveness probe failed", logx.String("url", url), logx.String("method", method), logx.Err(err))
		return false, true
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		return false, false
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 400, true
}
