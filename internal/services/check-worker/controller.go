package check_worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/domain/monitor"
	kafkax "github.com/NordCoder/Upwatch/internal/repository/kafka"
)

type Subscriber interface {
	Consume(ctx context.Context, h kafkax.Handler) error
}

type Controller struct {
	Log *zap.Logger
	Sub Subscriber
	UC  *Handler
}

func (c *Controller) Run(ctx context.Context) error {
	handler := kafkax.JSONHandler(func(ctx context.Context, _ []byte, snap *monitor.Snapshot) error {
		c.Log.Debug("check-request",
			zap.Int64("monitor_id", snap.MonitorID),
			zap.Int64("config_version", snap.ConfigVersion))
		return c.UC.HandleCheck(ctx, *snap)
	})
	return c.Sub.Consume(ctx, handler)
}
