// Package detector turns a monitor's stream of checks into incident open and
// close decisions, debounced by confirmation thresholds.
package detector

import (
	"github.com/NordCoder/Upwatch/internal/domain/check"
	"github.com/NordCoder/Upwatch/internal/domain/event"
	"github.com/NordCoder/Upwatch/internal/domain/incident"
)

// State is everything the detector needs to know about one monitor.
type State struct {
	FailingStreak    int
	SucceedingStreak int
	OpenIncident     *incident.Incident
}

// Thresholds are the confirmation thresholds of a monitor. Values below 1
// behave as 1.
type Thresholds struct {
	Failure  int
	Recovery int
}

func (t Thresholds) normalized() Thresholds {
	if t.Failure < 1 {
		t.Failure = 1
	}
	if t.Recovery < 1 {
		t.Recovery = 1
	}
	return t
}

// Evaluate applies one new check to s. It never mutates s or the incident
// s points at. A streak at or past its threshold triggers the transition, so a
// threshold lowered below the running streak applies on the next check. Returned events are ordered: incident transition first, then
// monitor.checked.
func Evaluate(s State, c *check.Check, th Thresholds) (State, []event.Event) {
	th = th.normalized()
	next := s
	var events []event.Event

	if c.Up() {
		next.SucceedingStreak++
		next.FailingStreak = 0
		if s.OpenIncident.Open() && next.SucceedingStreak >= th.Recovery {
			closed := *s.OpenIncident
			endedAt := c.CheckedAt
			closed.EndedAt = &endedAt
			next.OpenIncident = nil
			events = append(events, event.Event{
				Kind:      event.KindIncidentResolved,
				MonitorID: c.MonitorID,
				Incident:  &closed,
			})
		}
	} else {
		next.FailingStreak++
		next.SucceedingStreak = 0
		if !s.OpenIncident.Open() && next.FailingStreak >= th.Failure {
			cause := c.Cause()
			opened := &incident.Incident{
				MonitorID: c.MonitorID,
				StartedAt: c.CheckedAt,
				Cause:     &cause,
			}
			next.OpenIncident = opened
			events = append(events, event.Event{
				Kind:      event.KindIncidentOpened,
				MonitorID: c.MonitorID,
				Incident:  opened,
			})
		}
	}

	events = append(events, event.Event{
		Kind:      event.KindMonitorChecked,
		MonitorID: c.MonitorID,
		Check:     c,
	})
	return next, events
}
