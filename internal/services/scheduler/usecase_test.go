package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUC(s *store, r *requests) *Usecase {
	return NewUC(s, r, 2*time.Minute, fixedClock{now: t0}, zap.NewNop())
}

func TestTick_ClaimsOnlyDueIdleActive(t *testing.T) {
	s := newStore()
	due := seed(s, true, at(t0.Add(-time.Second)))
	seed(s, true, at(t0.Add(time.Minute)))
	seed(s, false, nil)
	r := &requests{}

	claimed, sent, errs, err := newUC(s, r).Tick(t.Context(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 0, errs)
	require.Len(t, r.sent, 1)
	snap := r.sent[0]
	assert.Equal(t, due, snap.MonitorID)
	assert.Equal(t, int64(1), snap.ConfigVersion)
	assert.Equal(t, s.leases[due], snap.LeaseToken)
	assert.Equal(t, 5*time.Second, snap.Timeout)
	assert.Equal(t, t0, snap.DispatchedAt)
}

func TestTick_SkipsMonitorInFlight(t *testing.T) {
	s := newStore()
	seed(s, true, at(t0))
	r := &requests{}
	uc := newUC(s, r)

	_, sent, _, err := uc.Tick(t.Context(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	claimed, sent, _, err := uc.Tick(t.Context(), 10)
	require.NoError(t, err)
	assert.Zero(t, claimed)
	assert.Zero(t, sent)
	assert.Len(t, r.sent, 1)
}

func TestTick_PublishFailureReleasesLease(t *testing.T) {
	s := newStore()
	ok := seed(s, true, at(t0))
	bad := seed(s, true, at(t0))
	r := &requests{failOn: map[int64]bool{bad: true}}
	uc := newUC(s, r)

	claimed, sent, errs, err := uc.Tick(t.Context(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, claimed)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, errs)
	assert.Equal(t, []int64{bad}, s.released)
	assert.Contains(t, s.leases, ok)
	assert.NotContains(t, s.leases, bad)

	r.failOn = nil
	claimed, sent, _, err = uc.Tick(t.Context(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Equal(t, 1, sent)
	assert.Equal(t, bad, r.sent[len(r.sent)-1].MonitorID)
}

func TestTick_ClaimError(t *testing.T) {
	s := newStore()
	s.claimErr = errors.New("db down")

	_, _, errs, err := newUC(s, &requests{}).Tick(t.Context(), 10)

	require.Error(t, err)
	assert.Equal(t, 1, errs)
}

func TestTick_RespectsLimit(t *testing.T) {
	s := newStore()
	for range 5 {
		seed(s, true, at(t0))
	}
	r := &requests{}

	claimed, _, _, err := newUC(s, r).Tick(t.Context(), 3)

	require.NoError(t, err)
	assert.Equal(t, 3, claimed)
	assert.Len(t, r.sent, 3)
}

func TestDispatch_NotClaimable(t *testing.T) {
	s := newStore()
	id := seed(s, false, nil)

	ok, err := newUC(s, &requests{}).Dispatch(t.Context(), id)

	require.NoError(t, err)
	assert.False(t, ok)
}
