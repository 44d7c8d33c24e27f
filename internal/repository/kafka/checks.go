package kafka

import (
	"context"

	"github.com/NordCoder/Upwatch/internal/domain/kafka"
	"github.com/NordCoder/Upwatch/internal/domain/monitor"
)

// CheckRequestsKafka publishes check requests keyed by monitor id, so a
// monitor's requests stay on one partition.
type CheckRequestsKafka struct {
	p *Producer
}

func NewCheckRequestsKafka(p *Producer) *CheckRequestsKafka { return &CheckRequestsKafka{p: p} }

var _ kafka.CheckRequests = (*CheckRequestsKafka)(nil)

func (c *CheckRequestsKafka) PublishCheckRequested(ctx context.Context, snap monitor.Snapshot) error {
	return c.p.PublishJSON(ctx, KeyFromInt64(snap.MonitorID), snap)
}

// DomainEventsKafka publishes encoded event envelopes.
type DomainEventsKafka struct {
	p *Producer
}

func NewDomainEventsKafka(p *Producer) *DomainEventsKafka { return &DomainEventsKafka{p: p} }

var _ kafka.DomainEvents = (*DomainEventsKafka)(nil)

func (d *DomainEventsKafka) PublishEvent(ctx context.Context, monitorID int64, payload []byte) error {
	return d.p.Publish(ctx, KeyFromInt64(monitorID), payload)
}
