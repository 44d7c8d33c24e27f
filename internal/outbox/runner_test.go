package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/domain/event"
	"github.com/NordCoder/Upwatch/internal/domain/outbox"
	"github.com/NordCoder/Upwatch/internal/obs/retry"
)

type fakeRepo struct {
	mu      sync.Mutex
	pending []outbox.Message
	done    []string
}

func (f *fakeRepo) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, outbox.Message{IdempotencyKey: key, Kind: kind, Data: data})
	return nil
}

func (f *fakeRepo) PickBatch(_ context.Context, batch int, _ time.Duration) ([]outbox.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := min(batch, len(f.pending))
	out := f.pending[:n]
	f.pending = f.pending[n:]
	return out, nil
}

func (f *fakeRepo) MarkSuccess(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = append(f.done, keys...)
	return nil
}

type fakeEvents struct {
	fail      map[int64]bool
	published []int64
}

func (f *fakeEvents) PublishEvent(_ context.Context, monitorID int64, _ []byte) error {
	if f.fail[monitorID] {
		return errors.New("broker down")
	}
	f.published = append(f.published, monitorID)
	return nil
}

func envelope(t *testing.T, monitorID int64) []byte {
	t.Helper()
	b, err := event.NewEnvelope("id", event.Event{Kind: event.KindMonitorChecked, MonitorID: monitorID}, time.Now()).Marshal()
	require.NoError(t, err)
	return b
}

func TestRunner_TickPublishesAndMarks(t *testing.T) {
	repo := &fakeRepo{}
	ctx := t.Context()
	require.NoError(t, repo.Enqueue(ctx, "a", outbox.KindDomainEvent, envelope(t, 1)))
	require.NoError(t, repo.Enqueue(ctx, "b", outbox.KindDomainEvent, envelope(t, 2)))

	pub := &fakeEvents{}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(pub, retry.Policy{Attempts: 1}), 1, 10, time.Second, time.Minute)

	r.Tick(ctx)

	assert.Equal(t, []int64{1, 2}, pub.published)
	assert.Equal(t, []string{"a", "b"}, repo.done)
}

func TestRunner_TickStopsAtFirstFailure(t *testing.T) {
	repo := &fakeRepo{}
	ctx := t.Context()
	require.NoError(t, repo.Enqueue(ctx, "a", outbox.KindDomainEvent, envelope(t, 1)))
	require.NoError(t, repo.Enqueue(ctx, "b", outbox.KindDomainEvent, envelope(t, 2)))
	require.NoError(t, repo.Enqueue(ctx, "c", outbox.KindDomainEvent, envelope(t, 3)))

	pub := &fakeEvents{fail: map[int64]bool{2: true}}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(pub, retry.Policy{Attempts: 1}), 1, 10, time.Second, time.Minute)

	r.Tick(ctx)

	// c waits behind b so events keep their enqueue order
	assert.Equal(t, []int64{1}, pub.published)
	assert.Equal(t, []string{"a"}, repo.done)
}

func TestRunner_UnknownKindIsNotMarked(t *testing.T) {
	repo := &fakeRepo{}
	require.NoError(t, repo.Enqueue(t.Context(), "x", outbox.Kind(99), []byte("{}")))

	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(&fakeEvents{}, retry.Policy{Attempts: 1}), 1, 10, time.Second, time.Minute)
	r.Tick(t.Context())

	assert.Empty(t, repo.done)
}

func TestRunner_StartStopsWithContext(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakeEvents{}
	require.NoError(t, repo.Enqueue(t.Context(), "a", outbox.KindDomainEvent, envelope(t, 1)))

	ctx, cancel := context.WithCancel(t.Context())
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(pub, retry.Policy{Attempts: 1}), 2, 10, 10*time.Millisecond, time.Minute)
	r.Start(ctx)

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.done) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	r.Wait()
}
