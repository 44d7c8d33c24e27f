package monitor

import "time"

// SchedulingChanged reports whether an edit touches a field that requires an
// immediate recheck of an active monitor.
func SchedulingChanged(prev, next Monitor) bool {
	return prev.URL != next.URL ||
		prev.Method != next.Method ||
		prev.Interval != next.Interval ||
		prev.Timeout != next.Timeout ||
		prev.ExpectedStatusCode != next.ExpectedStatusCode ||
		prev.FailureThreshold != next.FailureThreshold ||
		prev.RecoveryThreshold != next.RecoveryThreshold
}

// OnCreate derives next_check_at for a new monitor. The returned flag is true
// when the monitor must be dispatched right away.
func OnCreate(m *Monitor, now time.Time) bool {
	m.ConfigVersion = 1
	m.ConsecutiveFailures, m.ConsecutiveSuccesses = 0, 0
	if !m.Active {
		m.NextCheckAt = nil
		return false
	}
	m.NextCheckAt = timePtr(now)
	return true
}

// OnUpdate merges engine bookkeeping from prev into next and derives the new
// schedule. Pause and resume expressed through an edit follow the same rules
// as Pause and Resume.
func OnUpdate(prev Monitor, next *Monitor, now time.Time) bool {
	next.ID = prev.ID
	next.OwnerID = prev.OwnerID
	next.CreatedAt = prev.CreatedAt
	next.ConsecutiveFailures = prev.ConsecutiveFailures
	next.ConsecutiveSuccesses = prev.ConsecutiveSuccesses
	next.ConfigVersion = prev.ConfigVersion

	changed := SchedulingChanged(prev, *next)
	switch {
	case !next.Active:
		if changed {
			next.ConfigVersion++
		}
		next.NextCheckAt = nil
		return false
	case !prev.Active || changed:
		next.ConfigVersion++
		next.NextCheckAt = timePtr(now)
		return true
	case prev.NextCheckAt == nil:
		// active row without a schedule breaks the invariant; repair it
		next.NextCheckAt = timePtr(now)
		return true
	default:
		next.NextCheckAt = timePtr(*prev.NextCheckAt)
		return false
	}
}

// Pause deactivates the monitor. It reports false if it was already paused.
func Pause(m *Monitor) bool {
	if !m.Active {
		return false
	}
	m.Active = false
	m.NextCheckAt = nil
	return true
}

// Resume reactivates the monitor for an immediate check. It reports false if
// the monitor was already active.
func Resume(m *Monitor, now time.Time) bool {
	if m.Active {
		return false
	}
	m.Active = true
	m.ConfigVersion++
	m.NextCheckAt = timePtr(now)
	return true
}

// NextAfterCheck returns next_check_at once a check dispatched with
// snapshotVersion has completed. Up and down checks share the same cadence.
func NextAfterCheck(m Monitor, snapshotVersion int64, checkedAt, now time.Time) *time.Time {
	if !m.Active {
		return nil
	}
	if m.ConfigVersion != snapshotVersion {
		return timePtr(now)
	}
	return timePtr(checkedAt.Add(m.Interval))
}

func timePtr(t time.Time) *time.Time { return &t }
