package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/domain"
)

// LogSink пишет уведомление в структурированный лог. Всегда включен —
// это минимальный видимый след даже без внешних интеграций.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("notify-log")}
}

func (s *LogSink) Deliver(_ context.Context, n domain.Notification) error {
	s.logger.Info("notification",
		zap.String("id", n.ID),
		zap.String("severity", string(n.Severity)),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
		zap.String("source", string(n.SourceKind)))
	return nil
}

// RedisSink транслирует уведомления в Pub/Sub канал — внешние потребители
// (боты, пейджеры) подписываются на него, не трогая наш API.
type RedisSink struct {
	rdb     *redis.Client
	channel string
}

func NewRedisSink(rdb *redis.Client, channel string) *RedisSink {
	return &RedisSink{rdb: rdb, channel: channel}
}

func (s *RedisSink) Deliver(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
