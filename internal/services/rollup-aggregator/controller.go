package rollup_aggregator

import (
	"context"

	"go.uber.org/zap"

	"github.com/NordCoder/Upwatch/internal/domain/event"
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
	return c.Sub.Consume(ctx, func(ctx context.Context, _ []byte, value []byte) error {
		env, err := event.Unmarshal(value)
		if err != nil {
			c.Log.Warn("skip undecodable event", zap.Error(err))
			return nil
		}
		return c.UC.HandleEvent(ctx, env)
	})
}
