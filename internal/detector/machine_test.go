package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Upwatch/internal/domain/check"
	"github.com/NordCoder/Upwatch/internal/domain/event"
	"github.com/NordCoder/Upwatch/internal/domain/incident"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mkCheck(i int, up bool) *check.Check {
	c := &check.Check{ID: int64(i + 1), MonitorID: 7, CheckedAt: t0.Add(time.Duration(i) * time.Minute)}
	if up {
		c.Status = check.StatusUp
		code := 200
		c.StatusCode = &code
	} else {
		c.Status = check.StatusDown
		code := 503
		c.StatusCode = &code
	}
	return c
}

func kinds(evs []event.Event) []event.Kind {
	out := make([]event.Kind, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Kind)
	}
	return out
}

// run feeds the pattern through Evaluate and returns the final state plus the
// indexes at which incident events fired.
func run(t *testing.T, s State, pattern []bool, th Thresholds) (State, map[int]event.Kind) {
	t.Helper()
	fired := map[int]event.Kind{}
	for i, up := range pattern {
		var evs []event.Event
		s, evs = Evaluate(s, mkCheck(i, up), th)
		require.NotEmpty(t, evs)
		require.Equal(t, event.KindMonitorChecked, evs[len(evs)-1].Kind)
		for _, e := range evs[:len(evs)-1] {
			fired[i] = e.Kind
		}
	}
	return s, fired
}

func TestEvaluate_ScenarioA_BelowThresholdResets(t *testing.T) {
	s, fired := run(t, State{}, []bool{false, false, true}, Thresholds{Failure: 3, Recovery: 1})

	assert.Empty(t, fired)
	assert.Nil(t, s.OpenIncident)
	assert.Equal(t, 0, s.FailingStreak)
	assert.Equal(t, 1, s.SucceedingStreak)
}

func TestEvaluate_ScenarioA_OpensAtThirdDown(t *testing.T) {
	s, fired := run(t, State{}, []bool{false, false, false}, Thresholds{Failure: 3, Recovery: 1})

	require.Equal(t, map[int]event.Kind{2: event.KindIncidentOpened}, fired)
	require.NotNil(t, s.OpenIncident)
	assert.Equal(t, t0.Add(2*time.Minute), s.OpenIncident.StartedAt)
	assert.Equal(t, "HTTP 503", *s.OpenIncident.Cause)
	assert.Nil(t, s.OpenIncident.EndedAt)
}

func TestEvaluate_NoSecondIncidentWhileDown(t *testing.T) {
	_, fired := run(t, State{}, []bool{false, false, false, false, false, false, false}, Thresholds{Failure: 2, Recovery: 1})
	assert.Equal(t, map[int]event.Kind{1: event.KindIncidentOpened}, fired)
}

func TestEvaluate_RecoveryClosesAtMthUp(t *testing.T) {
	cause := "connection refused"
	open := &incident.Incident{ID: 42, MonitorID: 7, StartedAt: t0.Add(-time.Hour), Cause: &cause}
	s := State{FailingStreak: 5, OpenIncident: open}

	var resolved *incident.Incident
	for i, up := range []bool{true, true, false, true, true, true} {
		var evs []event.Event
		s, evs = Evaluate(s, mkCheck(i, up), Thresholds{Failure: 1, Recovery: 3})
		for _, e := range evs {
			if e.Kind == event.KindIncidentResolved {
				require.Nil(t, resolved, "resolved twice")
				require.Equal(t, 5, i)
				resolved = e.Incident
			}
		}
	}

	require.NotNil(t, resolved)
	assert.Equal(t, int64(42), resolved.ID)
	require.NotNil(t, resolved.EndedAt)
	assert.Equal(t, t0.Add(5*time.Minute), *resolved.EndedAt)
	assert.Nil(t, s.OpenIncident)
	assert.Nil(t, open.EndedAt, "input incident must not be mutated")
}

func TestEvaluate_ThresholdOneIsImmediate(t *testing.T) {
	_, fired := run(t, State{}, []bool{false, true, false, true}, Thresholds{Failure: 1, Recovery: 1})
	assert.Equal(t, map[int]event.Kind{
		0: event.KindIncidentOpened,
		1: event.KindIncidentResolved,
		2: event.KindIncidentOpened,
		3: event.KindIncidentResolved,
	}, fired)
}

func TestEvaluate_SingleBlipNeverTransitions(t *testing.T) {
	_, fired := run(t, State{}, []bool{true, true, false, true, true, false, true}, Thresholds{Failure: 2, Recovery: 2})
	assert.Empty(t, fired)
}

func TestEvaluate_TransportErrorIsCause(t *testing.T) {
	msg := "timeout after 5s"
	c := &check.Check{ID: 1, MonitorID: 7, Status: check.StatusDown, ErrorMessage: &msg, CheckedAt: t0}

	s, evs := Evaluate(State{}, c, Thresholds{Failure: 1, Recovery: 1})

	assert.Equal(t, []event.Kind{event.KindIncidentOpened, event.KindMonitorChecked}, kinds(evs))
	assert.Equal(t, msg, *s.OpenIncident.Cause)
	assert.Same(t, s.OpenIncident, evs[0].Incident)
	assert.Same(t, c, evs[1].Check)
}

func TestEvaluate_FailureThresholdLoweredMidStreak(t *testing.T) {
	s, fired := run(t, State{}, []bool{false, false}, Thresholds{Failure: 3, Recovery: 1})
	require.Empty(t, fired)
	require.Equal(t, 2, s.FailingStreak)

	// the next down check opens with the lowered threshold
	s, evs := Evaluate(s, mkCheck(2, false), Thresholds{Failure: 1, Recovery: 1})
	assert.Equal(t, []event.Kind{event.KindIncidentOpened, event.KindMonitorChecked}, kinds(evs))
	require.NotNil(t, s.OpenIncident)

	// and only once
	_, evs = Evaluate(s, mkCheck(3, false), Thresholds{Failure: 1, Recovery: 1})
	assert.Equal(t, []event.Kind{event.KindMonitorChecked}, kinds(evs))
}

func TestEvaluate_RecoveryThresholdLoweredMidStreak(t *testing.T) {
	open := &incident.Incident{ID: 4, MonitorID: 7, StartedAt: t0}
	s := State{SucceedingStreak: 2, OpenIncident: open}

	s, evs := Evaluate(s, mkCheck(0, true), Thresholds{Failure: 1, Recovery: 1})
	assert.Equal(t, []event.Kind{event.KindIncidentResolved, event.KindMonitorChecked}, kinds(evs))
	assert.Nil(t, s.OpenIncident)
	assert.Equal(t, 3, s.SucceedingStreak)

	_, evs = Evaluate(s, mkCheck(1, true), Thresholds{Failure: 1, Recovery: 1})
	assert.Equal(t, []event.Kind{event.KindMonitorChecked}, kinds(evs))
}

func TestEvaluate_ThresholdRaisedMidStreakWaits(t *testing.T) {
	s, fired := run(t, State{}, []bool{false}, Thresholds{Failure: 2, Recovery: 1})
	require.Empty(t, fired)

	s, evs := Evaluate(s, mkCheck(1, false), Thresholds{Failure: 3, Recovery: 1})
	assert.Equal(t, []event.Kind{event.KindMonitorChecked}, kinds(evs))
	_, evs = Evaluate(s, mkCheck(2, false), Thresholds{Failure: 3, Recovery: 1})
	assert.Equal(t, []event.Kind{event.KindIncidentOpened, event.KindMonitorChecked}, kinds(evs))
}

func TestEvaluate_ZeroThresholdsActAsOne(t *testing.T) {
	s, evs := Evaluate(State{}, mkCheck(0, false), Thresholds{})
	assert.Equal(t, []event.Kind{event.KindIncidentOpened, event.KindMonitorChecked}, kinds(evs))
	assert.NotNil(t, s.OpenIncident)
}
