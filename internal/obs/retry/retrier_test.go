package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPermanent = errors.New("permanent")

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(t.Context(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, PersistPolicy(nil, 5, time.Millisecond, 5*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	var exhausted error
	p := PersistPolicy(nil, 5, time.Millisecond, 5*time.Millisecond, errPermanent)
	p.OnExhaust = func(err error) { exhausted = err }

	err := Do(t.Context(), func() error {
		calls++
		return errPermanent
	}, p)

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, exhausted, errPermanent)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(t.Context(), func() error {
		calls++
		return errors.New("boom")
	}, PersistPolicy(nil, 3, time.Millisecond, time.Millisecond))

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 3, calls)
}

func TestDo_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("boom")
	}, PersistPolicy(nil, 5, time.Second, time.Second))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExpoJitter_Capped(t *testing.T) {
	b := ExpoJitter{Base: 100 * time.Millisecond, Max: time.Second}
	assert.Equal(t, 100*time.Millisecond, b.Next(0))
	assert.Equal(t, 400*time.Millisecond, b.Next(2))
	assert.Equal(t, time.Second, b.Next(10))
}
