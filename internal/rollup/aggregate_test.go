package rollup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Upwatch/internal/domain/check"
	"github.com/NordCoder/Upwatch/internal/domain/rollup"
)

func intPtr(v int) *int { return &v }

func TestDelta_FoldsADay(t *testing.T) {
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	rts := []int{100, 110, 120, 130, 140, 100, 120, 140}

	var acc rollup.Daily
	for i, rt := range rts {
		c := check.Check{ID: int64(i + 1), MonitorID: 3, Status: check.StatusUp, ResponseTimeMs: intPtr(rt), CheckedAt: day.Add(time.Duration(i) * time.Hour)}
		acc = Merge(acc, Delta(c, time.UTC))
	}
	for i := 0; i < 2; i++ {
		c := check.Check{ID: int64(100 + i), MonitorID: 3, Status: check.StatusDown, CheckedAt: day.Add(time.Duration(20+i) * time.Hour)}
		acc = Merge(acc, Delta(c, time.UTC))
	}

	assert.Equal(t, 10, acc.TotalChecks)
	assert.Equal(t, 8, acc.SuccessfulChecks)
	require.NotNil(t, acc.UptimePercentage())
	assert.Equal(t, 80.00, *acc.UptimePercentage())
	require.NotNil(t, acc.AvgResponseTimeMs())
	assert.Equal(t, 120.0, *acc.AvgResponseTimeMs())
	assert.Equal(t, 100, *acc.MinResponseTimeMs)
	assert.Equal(t, 140, *acc.MaxResponseTimeMs)
}

func TestDelta_NullResponseTimeSkipsStats(t *testing.T) {
	c := check.Check{MonitorID: 1, Status: check.StatusDown, CheckedAt: time.Now()}
	d := Delta(c, nil)

	assert.Equal(t, 1, d.TotalChecks)
	assert.Equal(t, 0, d.SuccessfulChecks)
	assert.Zero(t, d.ResponseTimeCount)
	assert.Nil(t, d.MinResponseTimeMs)
	assert.Nil(t, d.AvgResponseTimeMs())
}

func TestDayOf_UsesReportingZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	at := time.Date(2026, 5, 4, 20, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), DayOf(at, time.UTC))
	assert.Equal(t, time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC), DayOf(at, tokyo))
}

func TestUptimePercentage_RoundTrip(t *testing.T) {
	for total := 1; total <= 40; total++ {
		for ok := 0; ok <= total; ok++ {
			d := rollup.Daily{TotalChecks: total, SuccessfulChecks: ok}
			want := rollup.Round2(float64(ok) / float64(total) * 100)
			require.Equal(t, want, *d.UptimePercentage(), "%d/%d", ok, total)
		}
	}
	assert.Nil(t, rollup.Daily{}.UptimePercentage())
}

func TestSummarize_WeightedByChecks(t *testing.T) {
	days := []rollup.Daily{
		{TotalChecks: 10, SuccessfulChecks: 10, ResponseTimeSumMs: 1000, ResponseTimeCount: 10},
		{TotalChecks: 30, SuccessfulChecks: 27, ResponseTimeSumMs: 6000, ResponseTimeCount: 30},
	}

	s := Summarize(days)

	assert.Equal(t, 40, s.TotalChecks)
	assert.Equal(t, 37, s.SuccessfulChecks)
	assert.Equal(t, 92.5, *s.UptimePercentage)
	// (100*10 + 200*30) / 40
	assert.Equal(t, int64(175), *s.AvgResponseTimeMs)
}

func TestSummarize_DayWithoutLatencyDilutesAverage(t *testing.T) {
	days := []rollup.Daily{
		{TotalChecks: 2, SuccessfulChecks: 2, ResponseTimeSumMs: 200, ResponseTimeCount: 2},
		{TotalChecks: 2, SuccessfulChecks: 0},
	}

	s := Summarize(days)
	assert.Equal(t, int64(50), *s.AvgResponseTimeMs)
	assert.Equal(t, 50.0, *s.UptimePercentage)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalChecks)
	assert.Nil(t, s.UptimePercentage)
	assert.Nil(t, s.AvgResponseTimeMs)
}

func TestWindow(t *testing.T) {
	now := time.Date(2026, 5, 30, 23, 0, 0, 0, time.UTC)
	from, to := Window(now, time.UTC, 30)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC), to)
}

func TestNewReport(t *testing.T) {
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	r := NewReport(3, day, day, []rollup.Daily{{MonitorID: 3, Date: day, TotalChecks: 3, SuccessfulChecks: 2, ResponseTimeSumMs: 100, ResponseTimeCount: 3}})

	require.Len(t, r.Days, 1)
	assert.Equal(t, "2026-05-04", r.Days[0].Date)
	assert.Equal(t, 66.67, *r.Days[0].UptimePercentage)
	assert.Equal(t, 33.33, *r.Days[0].AvgResponseTimeMs)
	assert.Equal(t, int64(33), *r.Summary.AvgResponseTimeMs)
}
