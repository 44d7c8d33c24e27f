package scheduler

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/NordCoder/Upwatch/internal/domain/monitor"
	"github.com/NordCoder/Upwatch/internal/repository/postgres"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// store is an in-memory monitor table with leases.
type store struct {
	mu       sync.Mutex
	rows     map[int64]*monitor.Monitor
	leases   map[int64]string
	nextID   int64
	seq      int
	claimErr error
	released []int64
}

func newStore() *store {
	return &store{rows: map[int64]*monitor.Monitor{}, leases: map[int64]string{}}
}

func (s *store) token() string {
	s.seq++
	return "lease-" + strconv.Itoa(s.seq)
}

func (s *store) Create(_ context.Context, m *monitor.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	cp := *m
	s.rows[m.ID] = &cp
	return nil
}

func (s *store) Lock(_ context.Context, id int64) (*monitor.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *store) Update(_ context.Context, m *monitor.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[m.ID]; !ok {
		return postgres.ErrNotFound
	}
	cp := *m
	s.rows[m.ID] = &cp
	return nil
}

func (s *store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return postgres.ErrNotFound
	}
	delete(s.rows, id)
	delete(s.leases, id)
	return nil
}

func (s *store) claimable(m *monitor.Monitor) bool {
	_, leased := s.leases[m.ID]
	return m.Active && !leased
}

func (s *store) ClaimDue(_ context.Context, limit int, _ time.Duration) ([]monitor.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	var out []monitor.Claim
	for id := int64(1); id <= s.nextID && len(out) < limit; id++ {
		m, ok := s.rows[id]
		if !ok || !s.claimable(m) || m.NextCheckAt == nil || m.NextCheckAt.After(t0) {
			continue
		}
		tok := s.token()
		s.leases[id] = tok
		out = append(out, monitor.Claim{Monitor: *m, LeaseToken: tok})
	}
	return out, nil
}

func (s *store) ClaimByID(_ context.Context, id int64, _ time.Duration) (*monitor.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok || !s.claimable(m) {
		return nil, nil
	}
	tok := s.token()
	s.leases[id] = tok
	return &monitor.Claim{Monitor: *m, LeaseToken: tok}, nil
}

func (s *store) Release(_ context.Context, id int64, tok string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leases[id] == tok {
		delete(s.leases, id)
		s.released = append(s.released, id)
	}
	return nil
}

type requests struct {
	mu     sync.Mutex
	sent   []monitor.Snapshot
	failOn map[int64]bool
}

func (r *requests) PublishCheckRequested(_ context.Context, snap monitor.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[snap.MonitorID] {
		return errors.New("broker unavailable")
	}
	r.sent = append(r.sent, snap)
	return nil
}

type inlineTx struct{}

func (inlineTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func seed(s *store, active bool, next *time.Time) int64 {
	m := &monitor.Monitor{
		OwnerID:            1,
		URL:                "https://example.com",
		Method:             monitor.MethodGet,
		Interval:           time.Minute,
		Timeout:            5 * time.Second,
		ExpectedStatusCode: 200,
		Active:             active,
		FailureThreshold:   1,
		RecoveryThreshold:  1,
		NextCheckAt:        next,
		ConfigVersion:      1,
	}
	_ = s.Create(context.Background(), m)
	return m.ID
}

func at(t time.Time) *time.Time { return &t }
