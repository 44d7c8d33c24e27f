// Package probe performs the HTTP request behind a check and classifies the
// outcome into a check record.
package probe

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NordCoder/Upwatch/internal/domain"
	"github.com/NordCoder/Upwatch/internal/domain/check"
	"github.com/NordCoder/Upwatch/internal/domain/monitor"
)

// maxBodyBytes bounds how much of a response body is drained per probe.
const maxBodyBytes = 1 << 20

type Executor struct {
	client    *http.Client
	userAgent string
	clock     domain.Clock
}

func NewExecutor(client *http.Client, userAgent string, clock domain.Clock) *Executor {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Executor{client: client, userAgent: userAgent, clock: clock}
}

// Execute probes the snapshot's target. Every outcome, including transport
// failures, is returned as a check; it never fails.
func (e *Executor) Execute(ctx context.Context, s monitor.Snapshot) (c check.Check) {
	c = check.Check{MonitorID: s.MonitorID, Status: check.StatusDown}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	method := string(s.Method)
	if method == "" {
		method = http.MethodGet
	}

	start := e.clock.Now()
	defer func() {
		c.CheckedAt = e.clock.Now()
		probesTotal.WithLabelValues(string(c.Status)).Inc()
		probeDuration.Observe(c.CheckedAt.Sub(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, method, normalizeURL(s.URL), nil)
	if err != nil {
		c.ErrorMessage = strPtr(truncate("invalid request: " + err.Error()))
		return c
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		c.ResponseTimeMs = elapsedMs(start, e.clock.Now())
		c.ErrorMessage = strPtr(describe(err, s.Timeout))
		return c
	}
	defer resp.Body.Close()

	_, readErr := io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	c.ResponseTimeMs = elapsedMs(start, e.clock.Now())
	code := resp.StatusCode
	c.StatusCode = &code

	if readErr != nil {
		c.ErrorMessage = strPtr(describe(readErr, s.Timeout))
		return c
	}
	if code == s.ExpectedStatusCode {
		c.Status = check.StatusUp
	}
	return c
}

func normalizeURL(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return t
	}
	if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
		return t
	}
	return "http://" + t
}

func elapsedMs(start, end time.Time) *int {
	ms := int(end.Sub(start).Milliseconds())
	if ms < 0 {
		ms = 0
	}
	return &ms
}

func strPtr(s string) *string { return &s }
