package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/domain"
	"github.com/NordCoder/Upwatch/internal/domain/event"
	"github.com/NordCoder/Upwatch/internal/domain/notification"
	"github.com/NordCoder/Upwatch/internal/obs"
	"github.com/NordCoder/Upwatch/internal/repository/postgres"
)

var mDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notifier_deliveries_total", Help: "Notification deliveries by channel kind and outcome",
}, []string{"kind", "outcome"})

type Store interface {
	Recipients(ctx context.Context, monitorID int64) (*notification.Recipients, error)
	Sent(ctx context.Context, incidentID, channelID int64, typ string) (bool, error)
	Create(ctx context.Context, n *notification.Notification) error
}

// Handler notifies a monitor owner's enabled channels about incident
// transitions. A channel already notified about a transition is skipped, so
// redelivered events do not repeat messages.
type Handler struct {
	Log     *zap.Logger
	Store   Store
	Senders map[notification.ChannelKind]notification.Sender
	Clock   domain.Clock
}

func (h *Handler) HandleEvent(ctx context.Context, env event.Envelope) error {
	if env.Kind != event.KindIncidentOpened && env.Kind != event.KindIncidentResolved {
		return nil
	}
	log := obs.WithTrace(ctx, h.Log).With(zap.Int64("monitor_id", env.MonitorID), zap.String("kind", string(env.Kind)))
	if env.Incident == nil || env.Incident.ID <= 0 {
		log.Warn("incident event without incident")
		return nil
	}

	rc, err := h.Store.Recipients(ctx, env.MonitorID)
	if errors.Is(err, postgres.ErrNotFound) {
		log.Info("monitor gone, nothing to notify")
		return nil
	}
	if err != nil {
		return fmt.Errorf("recipients: %w", err)
	}

	msg := Compose(env, rc.MonitorURL)
	typ := string(env.Kind)

	var errs []error
	for _, ch := range rc.Channels {
		if !ch.Enabled {
			continue
		}
		clog := log.With(zap.Int64("notifier_id", ch.ID), zap.String("channel", string(ch.Kind)))
		sender, ok := h.Senders[ch.Kind]
		if !ok {
			mDeliveries.WithLabelValues(string(ch.Kind), "unsupported").Inc()
			clog.Warn("no sender for channel kind")
			continue
		}

		sent, err := h.Store.Sent(ctx, env.Incident.ID, ch.ID, typ)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if sent {
			mDeliveries.WithLabelValues(string(ch.Kind), "duplicate").Inc()
			continue
		}

		if err := sender.Send(ctx, ch.Target, msg); err != nil {
			mDeliveries.WithLabelValues(string(ch.Kind), "error").Inc()
			clog.Warn("delivery failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("notifier %d: %w", ch.ID, err))
			continue
		}
		mDeliveries.WithLabelValues(string(ch.Kind), "sent").Inc()

		n := &notification.Notification{
			MonitorID:  env.MonitorID,
			IncidentID: env.Incident.ID,
			ChannelID:  ch.ID,
			Type:       typ,
			SentAt:     h.Clock.Now(),
			Payload:    msg.Subject + "\n" + msg.Body,
		}
		if err := h.Store.Create(ctx, n); err != nil && !errors.Is(err, postgres.ErrConflict) {
			errs = append(errs, fmt.Errorf("log notification: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Compose renders the channel-neutral text for an incident event.
func Compose(env event.Envelope, monitorURL string) notification.Message {
	in := env.Incident
	cause := "unknown"
	if in.Cause != nil && *in.Cause != "" {
		cause = *in.Cause
	}
	if env.Kind == event.KindIncidentResolved && in.EndedAt != nil {
		return notification.Message{
			Subject: "RESOLVED: " + monitorURL,
			Body: fmt.Sprintf("%s is back up since %s.\nDowntime: %s (cause: %s).",
				monitorURL,
				in.EndedAt.UTC().Format(time.RFC3339),
				in.EndedAt.Sub(in.StartedAt).Round(time.Second),
				cause),
		}
	}
	return notification.Message{
		Subject: "DOWN: " + monitorURL,
		Body: fmt.Sprintf("%s is down since %s.\nCause: %s.",
			monitorURL, in.StartedAt.UTC().Format(time.RFC3339), cause),
	}
}
