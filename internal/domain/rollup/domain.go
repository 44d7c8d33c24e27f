package rollup

import (
	"math"
	"time"
)

// Daily aggregates one monitor's checks over one calendar day of the
// reporting timezone. Date is stored as midnight UTC of that calendar day.
type Daily struct {
	MonitorID         int64     `json:"monitor_id"`
	Date              time.Time `json:"date"`
	TotalChecks       int       `json:"total_checks"`
	SuccessfulChecks  int       `json:"successful_checks"`
	ResponseTimeSumMs int64     `json:"-"`
	ResponseTimeCount int       `json:"-"`
	MinResponseTimeMs *int      `json:"min_response_time_ms"`
	MaxResponseTimeMs *int      `json:"max_response_time_ms"`
}

// UptimePercentage is successful/total*100 rounded to 2 decimals, nil for an empty day.
func (d Daily) UptimePercentage() *float64 {
	if d.TotalChecks <= 0 {
		return nil
	}
	v := Round2(float64(d.SuccessfulChecks) / float64(d.TotalChecks) * 100)
	return &v
}

// AvgResponseTimeMs is the mean over checks that recorded a response time.
func (d Daily) AvgResponseTimeMs() *float64 {
	if d.ResponseTimeCount <= 0 {
		return nil
	}
	v := float64(d.ResponseTimeSumMs) / float64(d.ResponseTimeCount)
	return &v
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
