package kafka

import (
	"context"

	"github.com/NordCoder/Upwatch/internal/domain/monitor"
)

type CheckRequests interface {
	PublishCheckRequested(ctx context.Context, snap monitor.Snapshot) error
}

type DomainEvents interface {
	PublishEvent(ctx context.Context, monitorID int64, payload []byte) error
}
