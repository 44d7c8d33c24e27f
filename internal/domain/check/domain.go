package check

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Check is one executed probe. Rows are append-only.
type Check struct {
	ID             int64     `json:"id"`
	MonitorID      int64     `json:"monitor_id"`
	Status         Status    `json:"status"`
	StatusCode     *int      `json:"status_code"`
	ResponseTimeMs *int      `json:"response_time_ms"`
	ErrorMessage   *string   `json:"error_message"`
	CheckedAt      time.Time `json:"checked_at"`
}

func (c Check) Up() bool { return c.Status == StatusUp }

// Cause describes why a down check failed: the transport error when there is
// one, the received status code otherwise.
func (c Check) Cause() string {
	if c.ErrorMessage != nil && *c.ErrorMessage != "" {
		return *c.ErrorMessage
	}
	if c.StatusCode != nil {
		return fmt.Sprintf("HTTP %d", *c.StatusCode)
	}
	return "unknown error"
}
