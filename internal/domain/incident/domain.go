package incident

import "time"

// Incident is a debounced span of downtime. EndedAt is nil while it is open.
type Incident struct {
	ID        int64      `json:"id"`
	MonitorID int64      `json:"monitor_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Cause     *string    `json:"cause"`
}

func (i *Incident) Open() bool { return i != nil && i.EndedAt == nil }
