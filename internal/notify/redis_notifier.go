package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisNotifier publishes transition announcements to a Redis Stream via
// XADD. The external delivery system consumes the stream; this service makes
// no delivery guarantee beyond the publish.
type RedisNotifier struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

func NewRedisNotifier(client *redis.Client, stream string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (n *RedisNotifier) Notify(ctx context.Context, schoolID string, targetPersonIDs []string, kind Kind, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	id, err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]interface{}{
			"school_id": schoolID,
			"targets":   strings.Join(targetPersonIDs, ","),
			"kind":      string(kind),
			"data":      string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	n.logger.Debug("Published notification",
		zap.String("stream", n.stream),
		zap.String("message_id", id),
		zap.String("kind", string(kind)),
		zap.Int("target_count", len(targetPersonIDs)),
	)
	return nil
}
