//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Upwatch/internal/domain/check"
	"github.com/NordCoder/Upwatch/internal/domain/event"
)

// TestCreatedMonitorIsCheckedAndReported drives the whole pipeline: the api
// dispatches the new monitor, the check-worker probes it and publishes the
// result, and the rollup-aggregator folds it into today's uptime.
func TestCreatedMonitorIsCheckedAndReported(t *testing.T) {
	cfg := LoadCfg()
	WaitTCP(t, "kafka", cfg.KafkaBootstrap, 60*time.Second)
	WaitHealthz(t, cfg.APIHealthURL, 90*time.Second)

	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	body := HTTPDoJSON(t, http.MethodPost, cfg.APIBaseURL+"/v1/monitors", map[string]any{
		"owner_id": RandOwner(),
		"url":      cfg.TargetURL,
		"interval": 60,
		"timeout":  5,
	}, http.StatusCreated)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	base := fmt.Sprintf("%s/v1/monitors/%d", cfg.APIBaseURL, created.ID)
	defer HTTPDoJSON(t, http.MethodDelete, base, nil, http.StatusNoContent)

	env, ok := ReadEnvelope(t, cfg.KafkaBootstrap, cfg.EventsTopic, fmt.Sprintf("it-%d", created.ID),
		created.ID, event.KindMonitorChecked, 60*time.Second)
	require.True(t, ok, "no monitor.checked event")
	require.NotNil(t, env.Check)
	assert.Equal(t, check.StatusUp, env.Check.Status)

	var latest *check.Check
	require.NoError(t, json.Unmarshal(HTTPDoJSON(t, http.MethodGet, base+"/checks/latest", nil, http.StatusOK), &latest))
	require.NotNil(t, latest)
	assert.Equal(t, env.Check.ID, latest.ID)

	// a second check must not be dispatched before the interval elapses
	assert.Equal(t, 1, CountChecks(t, db, created.ID))

	require.Eventually(t, func() bool {
		var rep struct {
			Summary struct {
				TotalChecks int `json:"total_checks"`
			} `json:"summary"`
		}
		b := HTTPDoJSON(t, http.MethodGet, base+"/uptime?days=1", nil, http.StatusOK)
		return json.Unmarshal(b, &rep) == nil && rep.Summary.TotalChecks == 1
	}, 30*time.Second, 500*time.Millisecond, "rollup not updated")

	HTTPDoJSON(t, http.MethodPost, base+"/pause", nil, http.StatusOK)
	var view struct {
		IsActive    bool       `json:"is_active"`
		NextCheckAt *time.Time `json:"next_check_at"`
	}
	require.NoError(t, json.Unmarshal(HTTPDoJSON(t, http.MethodGet, base, nil, http.StatusOK), &view))
	assert.False(t, view.IsActive)
	assert.Nil(t, view.NextCheckAt)
}

func TestUnknownMonitorIsNotFound(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.APIHealthURL, 90*time.Second)

	HTTPDoJSON(t, http.MethodGet, cfg.APIBaseURL+"/v1/monitors/999999999", nil, http.StatusNotFound)
	HTTPDoJSON(t, http.MethodGet, cfg.APIBaseURL+"/v1/monitors/999999999/uptime", nil, http.StatusNotFound)
}
