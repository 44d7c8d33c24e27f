package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/domain/event"
	"github.com/NordCoder/Upwatch/internal/domain/incident"
	"github.com/NordCoder/Upwatch/internal/domain/notification"
	"github.com/NordCoder/Upwatch/internal/repository/postgres"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type key struct {
	incident, channel int64
	typ               string
}

type store struct {
	rc   *notification.Recipients
	log  map[key]notification.Notification
	fail error
}

func (s *store) Recipients(context.Context, int64) (*notification.Recipients, error) {
	if s.rc == nil {
		return nil, postgres.ErrNotFound
	}
	return s.rc, nil
}

func (s *store) Sent(_ context.Context, incidentID, channelID int64, typ string) (bool, error) {
	if s.fail != nil {
		return false, s.fail
	}
	_, ok := s.log[key{incidentID, channelID, typ}]
	return ok, nil
}

func (s *store) Create(_ context.Context, n *notification.Notification) error {
	k := key{n.IncidentID, n.ChannelID, n.Type}
	if _, ok := s.log[k]; ok {
		return postgres.ErrConflict
	}
	s.log[k] = *n
	return nil
}

type delivery struct {
	target string
	msg    notification.Message
}

type sender struct {
	got []delivery
	err error
}

func (s *sender) Send(_ context.Context, target string, msg notification.Message) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, delivery{target, msg})
	return nil
}

func recipients() *notification.Recipients {
	return &notification.Recipients{
		MonitorID:  3,
		OwnerID:    1,
		MonitorURL: "https://example.com",
		Channels: []notification.Channel{
			{ID: 10, Kind: notification.ChannelEmail, Target: "ops@example.com", Enabled: true},
			{ID: 11, Kind: notification.ChannelDiscord, Target: "https://discord.test/hook", Enabled: true},
			{ID: 12, Kind: notification.ChannelEmail, Target: "off@example.com", Enabled: false},
		},
	}
}

func opened() event.Envelope {
	cause := "HTTP 503"
	return event.NewEnvelope("e1", event.Event{
		Kind:      event.KindIncidentOpened,
		MonitorID: 3,
		Incident:  &incident.Incident{ID: 5, MonitorID: 3, StartedAt: t0, Cause: &cause},
	}, t0)
}

func newHandler(s *store, mail, discord *sender) *Handler {
	return &Handler{
		Log:   zap.NewNop(),
		Store: s,
		Senders: map[notification.ChannelKind]notification.Sender{
			notification.ChannelEmail:   mail,
			notification.ChannelDiscord: discord,
		},
		Clock: fixedClock{now: t0},
	}
}

func TestHandleEvent_NotifiesEnabledChannels(t *testing.T) {
	s := &store{rc: recipients(), log: map[key]notification.Notification{}}
	mail, discord := &sender{}, &sender{}

	require.NoError(t, newHandler(s, mail, discord).HandleEvent(t.Context(), opened()))

	require.Len(t, mail.got, 1)
	assert.Equal(t, "ops@example.com", mail.got[0].target)
	assert.Equal(t, "DOWN: https://example.com", mail.got[0].msg.Subject)
	assert.Contains(t, mail.got[0].msg.Body, "HTTP 503")
	require.Len(t, discord.got, 1)
	assert.Len(t, s.log, 2)
	assert.Contains(t, s.log, key{5, 10, "incident.opened"})
}

func TestHandleEvent_RedeliveryDoesNotRepeat(t *testing.T) {
	s := &store{rc: recipients(), log: map[key]notification.Notification{}}
	mail, discord := &sender{}, &sender{}
	h := newHandler(s, mail, discord)

	require.NoError(t, h.HandleEvent(t.Context(), opened()))
	require.NoError(t, h.HandleEvent(t.Context(), opened()))

	assert.Len(t, mail.got, 1)
	assert.Len(t, discord.got, 1)
}

func TestHandleEvent_OneChannelFailingDoesNotBlockOthers(t *testing.T) {
	s := &store{rc: recipients(), log: map[key]notification.Notification{}}
	mail, discord := &sender{err: errors.New("smtp down")}, &sender{}

	err := newHandler(s, mail, discord).HandleEvent(t.Context(), opened())

	require.Error(t, err)
	assert.Len(t, discord.got, 1)
	assert.NotContains(t, s.log, key{5, 10, "incident.opened"})
}

func TestHandleEvent_IgnoresChecksAndMissingMonitors(t *testing.T) {
	mail, discord := &sender{}, &sender{}
	h := newHandler(&store{log: map[key]notification.Notification{}}, mail, discord)

	checked := event.Envelope{ID: "e2", Kind: event.KindMonitorChecked, MonitorID: 3}
	require.NoError(t, h.HandleEvent(t.Context(), checked))
	require.NoError(t, h.HandleEvent(t.Context(), opened()))

	assert.Empty(t, mail.got)
	assert.Empty(t, discord.got)
}

func TestCompose_Resolved(t *testing.T) {
	cause := "connection refused"
	ended := t0.Add(90 * time.Second)
	env := event.NewEnvelope("e3", event.Event{
		Kind:      event.KindIncidentResolved,
		MonitorID: 3,
		Incident:  &incident.Incident{ID: 5, StartedAt: t0, EndedAt: &ended, Cause: &cause},
	}, ended)

	msg := Compose(env, "https://example.com")

	assert.Equal(t, "RESOLVED: https://example.com", msg.Subject)
	assert.Contains(t, msg.Body, "1m30s")
	assert.Contains(t, msg.Body, "connection refused")
}
