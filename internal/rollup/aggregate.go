// Package rollup folds checks into per-day aggregates and summarizes a range
// of days for reporting.
package rollup

import (
	"math"
	"time"

	"github.com/NordCoder/Upwatch/internal/domain/check"
	"github.com/NordCoder/Upwatch/internal/domain/rollup"
)

// DayOf returns the calendar day of at in loc, encoded as midnight UTC.
func DayOf(at time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := at.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Delta is the increment a single check contributes to its day's rollup.
func Delta(c check.Check, loc *time.Location) rollup.Daily {
	d := rollup.Daily{
		MonitorID:   c.MonitorID,
		Date:        DayOf(c.CheckedAt, loc),
		TotalChecks: 1,
	}
	if c.Up() {
		d.SuccessfulChecks = 1
	}
	if c.ResponseTimeMs != nil {
		rt := *c.ResponseTimeMs
		d.ResponseTimeSumMs = int64(rt)
		d.ResponseTimeCount = 1
		d.MinResponseTimeMs = &rt
		rtMax := rt
		d.MaxResponseTimeMs = &rtMax
	}
	return d
}

// Merge adds delta into acc the same way the store does on upsert.
func Merge(acc, delta rollup.Daily) rollup.Daily {
	acc.TotalChecks += delta.TotalChecks
	acc.SuccessfulChecks += delta.SuccessfulChecks
	acc.ResponseTimeSumMs += delta.ResponseTimeSumMs
	acc.ResponseTimeCount += delta.ResponseTimeCount
	acc.MinResponseTimeMs = pick(acc.MinResponseTimeMs, delta.MinResponseTimeMs, func(a, b int) bool { return b < a })
	acc.MaxResponseTimeMs = pick(acc.MaxResponseTimeMs, delta.MaxResponseTimeMs, func(a, b int) bool { return b > a })
	return acc
}

func pick(cur, cand *int, better func(a, b int) bool) *int {
	switch {
	case cand == nil:
		return cur
	case cur == nil || better(*cur, *cand):
		v := *cand
		return &v
	default:
		return cur
	}
}

// DayView is a rollup row as served to readers.
type DayView struct {
	Date              string   `json:"date"`
	TotalChecks       int      `json:"total_checks"`
	SuccessfulChecks  int      `json:"successful_checks"`
	UptimePercentage  *float64 `json:"uptime_percentage"`
	AvgResponseTimeMs *float64 `json:"avg_response_time_ms"`
	MinResponseTimeMs *int     `json:"min_response_time_ms"`
	MaxResponseTimeMs *int     `json:"max_response_time_ms"`
}

func View(d rollup.Daily) DayView {
	v := DayView{
		Date:              d.Date.Format(time.DateOnly),
		TotalChecks:       d.TotalChecks,
		SuccessfulChecks:  d.SuccessfulChecks,
		UptimePercentage:  d.UptimePercentage(),
		MinResponseTimeMs: d.MinResponseTimeMs,
		MaxResponseTimeMs: d.MaxResponseTimeMs,
	}
	if avg := d.AvgResponseTimeMs(); avg != nil {
		r := rollup.Round2(*avg)
		v.AvgResponseTimeMs = &r
	}
	return v
}

// Summary aggregates a range of days.
type Summary struct {
	TotalChecks       int      `json:"total_checks"`
	SuccessfulChecks  int      `json:"successful_checks"`
	UptimePercentage  *float64 `json:"uptime_percentage"`
	AvgResponseTimeMs *int64   `json:"avg_response_time_ms"`
}

// Summarize weights each day's average by its total check count. A day with
// no recorded response time adds to the denominator only.
func Summarize(days []rollup.Daily) Summary {
	var s Summary
	var weighted float64
	for _, d := range days {
		s.TotalChecks += d.TotalChecks
		s.SuccessfulChecks += d.SuccessfulChecks
		if avg := d.AvgResponseTimeMs(); avg != nil {
			weighted += *avg * float64(d.TotalChecks)
		}
	}
	if s.TotalChecks == 0 {
		return s
	}
	up := rollup.Round2(float64(s.SuccessfulChecks) / float64(s.TotalChecks) * 100)
	s.UptimePercentage = &up
	avg := int64(math.Round(weighted / float64(s.TotalChecks)))
	s.AvgResponseTimeMs = &avg
	return s
}

// Report is the reporting read model for one monitor.
type Report struct {
	MonitorID int64     `json:"monitor_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Days      []DayView `json:"days"`
	Summary   Summary   `json:"summary"`
}

func NewReport(monitorID int64, from, to time.Time, days []rollup.Daily) Report {
	r := Report{
		MonitorID: monitorID,
		From:      from.Format(time.DateOnly),
		To:        to.Format(time.DateOnly),
		Days:      make([]DayView, 0, len(days)),
		Summary:   Summarize(days),
	}
	for _, d := range days {
		r.Days = append(r.Days, View(d))
	}
	return r
}

// Window returns the first and last calendar day of the trailing n-day window
// ending on the day containing now.
func Window(now time.Time, loc *time.Location, n int) (from, to time.Time) {
	if n < 1 {
		n = 1
	}
	to = DayOf(now, loc)
	from = to.AddDate(0, 0, -(n - 1))
	return from, to
}
