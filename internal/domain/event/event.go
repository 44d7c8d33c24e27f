package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/Upwatch/internal/domain/check"
	"github.com/NordCoder/Upwatch/internal/domain/incident"
)

type Kind string

const (
	KindMonitorChecked   Kind = "monitor.checked"
	KindIncidentOpened   Kind = "incident.opened"
	KindIncidentResolved Kind = "incident.resolved"
)

// Event is a state change produced by the incident detector. Check and
// Incident point at the records the handler persists, so ids assigned on
// insert are visible when the event is encoded.
type Event struct {
	Kind      Kind
	MonitorID int64
	Check     *check.Check
	Incident  *incident.Incident
}

type CheckPayload struct {
	ID             int64        `json:"id"`
	Status         check.Status `json:"status"`
	StatusCode     *int         `json:"status_code"`
	ResponseTimeMs *int         `json:"response_time_ms"`
	ErrorMessage   *string      `json:"error_message"`
	CheckedAt      time.Time    `json:"checked_at"`
}

type IncidentPayload struct {
	ID        int64      `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Cause     *string    `json:"cause"`
}

// Envelope is the wire form published on the domain events topic.
type Envelope struct {
	ID         string           `json:"id"`
	Kind       Kind             `json:"kind"`
	MonitorID  int64            `json:"monitor_id"`
	OccurredAt time.Time        `json:"occurred_at"`
	Check      *CheckPayload    `json:"check,omitempty"`
	Incident   *IncidentPayload `json:"incident,omitempty"`
}

func NewEnvelope(id string, e Event, at time.Time) Envelope {
	env := Envelope{ID: id, Kind: e.Kind, MonitorID: e.MonitorID, OccurredAt: at.UTC()}
	switch e.Kind {
	case KindMonitorChecked:
		if c := e.Check; c != nil {
			env.Check = &CheckPayload{
				ID:             c.ID,
				Status:         c.Status,
				StatusCode:     c.StatusCode,
				ResponseTimeMs: c.ResponseTimeMs,
				ErrorMessage:   c.ErrorMessage,
				CheckedAt:      c.CheckedAt.UTC(),
			}
		}
	case KindIncidentOpened, KindIncidentResolved:
		if i := e.Incident; i != nil {
			env.Incident = &IncidentPayload{
				ID:        i.ID,
				StartedAt: i.StartedAt.UTC(),
				Cause:     i.Cause,
			}
			if e.Kind == KindIncidentResolved {
				env.Incident.EndedAt = i.EndedAt
			}
		}
	}
	return env
}

func (e Envelope) Marshal() ([]byte, error) { return json.Marshal(e) }

func Unmarshal(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode event: %w", err)
	}
	if env.Kind == "" || env.MonitorID <= 0 {
		return Envelope{}, fmt.Errorf("decode event: missing kind or monitor_id")
	}
	return env, nil
}

// ToCheck rebuilds the check carried by a monitor.checked envelope.
func (e Envelope) ToCheck() (check.Check, bool) {
	if e.Kind != KindMonitorChecked || e.Check == nil {
		return check.Check{}, false
	}
	return check.Check{
		ID:             e.Check.ID,
		MonitorID:      e.MonitorID,
		Status:         e.Check.Status,
		StatusCode:     e.Check.StatusCode,
		ResponseTimeMs: e.Check.ResponseTimeMs,
		ErrorMessage:   e.Check.ErrorMessage,
		CheckedAt:      e.Check.CheckedAt,
	}, true
}
