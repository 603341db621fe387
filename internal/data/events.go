package data

import (
	"context"
	"encoding/json"
	"fmt"

	"sellersync/internal/biz"
	"sellersync/internal/conf"
	"sellersync/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// eventPublisher implements biz.EventPublisher on Redis pub/sub. With a nil
// client publishing is a silent no-op.
type eventPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *log.Helper
}

// NewEventPublisher creates the sync event publisher. rdb may be nil.
func NewEventPublisher(rdb *redis.Client, nc *conf.Notify, logger log.Logger) biz.EventPublisher {
	return &eventPublisher{
		rdb:     rdb,
		channel: nc.EventChannel,
		logger:  log.NewHelper(logger),
	}
}

// PublishSyncCompleted pushes the event onto the configured pub/sub channel.
func (p *eventPublisher) PublishSyncCompleted(ctx context.Context, ev *model.SyncCompletedEvent) error {
	if p.rdb == nil || p.channel == "" {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal sync event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish sync event: %w", err)
	}
	return nil
}
