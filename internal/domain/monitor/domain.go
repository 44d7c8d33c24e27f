package monitor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Method string

const (
	MethodGet  Method = "GET"
	MethodHead Method = "HEAD"
)

var (
	ErrInvalidURL       = errors.New("url must be an absolute http(s) url")
	ErrInvalidMethod    = errors.New("method must be GET or HEAD")
	ErrInvalidInterval  = errors.New("interval must be >= 10s")
	ErrInvalidTimeout   = errors.New("timeout must be > 0 and <= interval")
	ErrInvalidStatus    = errors.New("expected status code must be within 100-599")
	ErrInvalidThreshold = errors.New("confirmation thresholds must be >= 1")
)

const MinInterval = 10 * time.Second

type Monitor struct {
	ID                 int64         `json:"id"`
	OwnerID            int64         `json:"owner_id"`
	URL                string        `json:"url"`
	Method             Method        `json:"method"`
	Interval           time.Duration `json:"interval"`
	Timeout            time.Duration `json:"timeout"`
	ExpectedStatusCode int           `json:"expected_status_code"`
	Active             bool          `json:"is_active"`
	FailureThreshold   int           `json:"failure_confirmation_threshold"`
	RecoveryThreshold  int           `json:"recovery_confirmation_threshold"`
	NextCheckAt        *time.Time    `json:"next_check_at"`
	ConfigVersion      int64         `json:"config_version"`

	// streak counters of the incident detector, persisted with the monitor row
	ConsecutiveFailures  int `json:"consecutive_failures"`
	ConsecutiveSuccesses int `json:"consecutive_successes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Monitor) Validate() error {
	u, err := url.Parse(strings.TrimSpace(m.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}
	if m.Method != MethodGet && m.Method != MethodHead {
		return ErrInvalidMethod
	}
	if m.Interval < MinInterval {
		return ErrInvalidInterval
	}
	if m.Timeout <= 0 || m.Timeout > m.Interval {
		return ErrInvalidTimeout
	}
	if m.ExpectedStatusCode < 100 || m.ExpectedStatusCode > 599 {
		return ErrInvalidStatus
	}
	if m.FailureThreshold < 1 || m.RecoveryThreshold < 1 {
		return ErrInvalidThreshold
	}
	return nil
}

// ApplyDefaults fills zero-valued optional fields.
func (m *Monitor) ApplyDefaults() {
	if m.Method == "" {
		m.Method = MethodGet
	}
	m.Method = Method(strings.ToUpper(string(m.Method)))
	if m.ExpectedStatusCode == 0 {
		m.ExpectedStatusCode = 200
	}
	if m.FailureThreshold == 0 {
		m.FailureThreshold = 1
	}
	if m.RecoveryThreshold == 0 {
		m.RecoveryThreshold = 1
	}
	if m.Timeout == 0 {
		m.Timeout = 10 * time.Second
		if m.Interval > 0 && m.Timeout > m.Interval {
			m.Timeout = m.Interval
		}
	}
}

// Snapshot is the probe configuration captured when a check is dispatched.
type Snapshot struct {
	MonitorID          int64         `json:"monitor_id"`
	ConfigVersion      int64         `json:"config_version"`
	URL                string        `json:"url"`
	Method             Method        `json:"method"`
	Timeout            time.Duration `json:"timeout"`
	ExpectedStatusCode int           `json:"expected_status_code"`
	LeaseToken         string        `json:"lease_token"`
	DispatchedAt       time.Time     `json:"dispatched_at"`
}

func (s Snapshot) Validate() error {
	if s.MonitorID <= 0 {
		return fmt.Errorf("snapshot: bad monitor id %d", s.MonitorID)
	}
	if s.LeaseToken == "" {
		return errors.New("snapshot: empty lease token")
	}
	return nil
}

// Claim is a monitor marked in-flight by the scheduler.
type Claim struct {
	Monitor    Monitor
	LeaseToken string
}

func (c Claim) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		MonitorID:          c.Monitor.ID,
		ConfigVersion:      c.Monitor.ConfigVersion,
		URL:                c.Monitor.URL,
		Method:             c.Monitor.Method,
		Timeout:            c.Monitor.Timeout,
		ExpectedStatusCode: c.Monitor.ExpectedStatusCode,
		LeaseToken:         c.LeaseToken,
		DispatchedAt:       now,
	}
}
