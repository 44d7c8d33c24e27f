package api

import (
	"time"

	"github.com/NordCoder/Upwatch/internal/domain/monitor"
)

// MonitorInput is the body of create and update requests. Durations are in
// seconds.
type MonitorInput struct {
	OwnerID                       int64  `json:"owner_id"`
	URL                           string `json:"url"`
	Method                        string `json:"method"`
	Interval                      int    `json:"interval"`
	Timeout                       int    `json:"timeout"`
	ExpectedStatusCode            int    `json:"expected_status_code"`
	IsActive                      *bool  `json:"is_active"`
	FailureConfirmationThreshold  int    `json:"failure_confirmation_threshold"`
	RecoveryConfirmationThreshold int    `json:"recovery_confirmation_threshold"`
}

func (in MonitorInput) toDomain() monitor.Monitor {
	m := monitor.Monitor{
		OwnerID:            in.OwnerID,
		URL:                in.URL,
		Method:             monitor.Method(in.Method),
		Interval:           time.Duration(in.Interval) * time.Second,
		Timeout:            time.Duration(in.Timeout) * time.Second,
		ExpectedStatusCode: in.ExpectedStatusCode,
		Active:             true,
		FailureThreshold:   in.FailureConfirmationThreshold,
		RecoveryThreshold:  in.RecoveryConfirmationThreshold,
	}
	if in.IsActive != nil {
		m.Active = *in.IsActive
	}
	return m
}

type MonitorView struct {
	ID                            int64      `json:"id"`
	OwnerID                       int64      `json:"owner_id"`
	URL                           string     `json:"url"`
	Method                        string     `json:"method"`
	Interval                      int        `json:"interval"`
	Timeout                       int        `json:"timeout"`
	ExpectedStatusCode            int        `json:"expected_status_code"`
	IsActive                      bool       `json:"is_active"`
	FailureConfirmationThreshold  int        `json:"failure_confirmation_threshold"`
	RecoveryConfirmationThreshold int        `json:"recovery_confirmation_threshold"`
	NextCheckAt                   *time.Time `json:"next_check_at"`
	CreatedAt                     time.Time  `json:"created_at"`
	UpdatedAt                     time.Time  `json:"updated_at"`
}

func toView(m *monitor.Monitor) MonitorView {
	return MonitorView{
		ID:                            m.ID,
		OwnerID:                       m.OwnerID,
		URL:                           m.URL,
		Method:                        string(m.Method),
		Interval:                      int(m.Interval / time.Second),
		Timeout:                       int(m.Timeout / time.Second),
		ExpectedStatusCode:            m.ExpectedStatusCode,
		IsActive:                      m.Active,
		FailureConfirmationThreshold:  m.FailureThreshold,
		RecoveryConfirmationThreshold: m.RecoveryThreshold,
		NextCheckAt:                   m.NextCheckAt,
		CreatedAt:                     m.CreatedAt,
		UpdatedAt:                     m.UpdatedAt,
	}
}
