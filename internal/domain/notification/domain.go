package notification

import (
	"context"
	"time"
)

type ChannelKind string

const (
	ChannelEmail   ChannelKind = "email"
	ChannelDiscord ChannelKind = "discord"
)

// Channel is a notifier configured by a monitor owner. Target is an email
// address or a Discord webhook url depending on Kind.
type Channel struct {
	ID      int64       `json:"id"`
	OwnerID int64       `json:"owner_id"`
	Kind    ChannelKind `json:"kind"`
	Name    string      `json:"name"`
	Target  string      `json:"target"`
	Enabled bool        `json:"enabled"`
}

// Recipients is what a dispatcher needs to notify about one monitor.
type Recipients struct {
	MonitorID  int64
	OwnerID    int64
	MonitorURL string
	Channels   []Channel
}

type Notification struct {
	ID         int64     `json:"id"`
	MonitorID  int64     `json:"monitor_id"`
	IncidentID int64     `json:"incident_id"`
	ChannelID  int64     `json:"channel_id"`
	Type       string    `json:"type"`
	SentAt     time.Time `json:"sent_at"`
	Payload    string    `json:"payload"`
}

// Message is the channel-neutral text of a notification.
type Message struct {
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, target string, msg Message) error
}
