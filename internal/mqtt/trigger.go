package mqtt

import (
	"context"
	"fmt"

	"punchsync/internal/poller"

	"go.uber.org/zap"
)

// Runner 轮询入口（由 poller.Orchestrator 实现）
type Runner interface {
	Run(ctx context.Context) (*poller.RunSummary, error)
}

// TriggerConsumer fires a poll run when a message arrives on the trigger
// topic. Alternative entry point for deployments whose scheduler speaks MQTT
// instead of HTTP; any payload triggers, the content is ignored.
type TriggerConsumer struct {
	client *Client
	runner Runner
	topic  string
	logger *zap.Logger

	runs chan struct{}
}

func NewTriggerConsumer(client *Client, runner Runner, topic string, logger *zap.Logger) *TriggerConsumer {
	return &TriggerConsumer{
		client: client,
		runner: runner,
		topic:  topic,
		logger: logger,
		// A trigger that lands during a run collapses into one pending run.
		runs: make(chan struct{}, 1),
	}
}

// Start subscribes and serves trigger messages until ctx is cancelled.
func (c *TriggerConsumer) Start(ctx context.Context) error {
	if c.topic == "" {
		return fmt.Errorf("mqtt trigger topic not configured")
	}

	if err := c.client.Subscribe(c.topic, 1, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to trigger topic: %w", err)
	}

	c.logger.Info("MQTT trigger consumer started", zap.String("topic", c.topic))

	for {
		select {
		case <-ctx.Done():
			if err := c.client.Unsubscribe(c.topic); err != nil {
				c.logger.Error("Failed to unsubscribe", zap.Error(err))
			}
			c.logger.Info("MQTT trigger consumer stopped")
			return nil
		case <-c.runs:
			if _, err := c.runner.Run(ctx); err != nil {
				c.logger.Error("MQTT-triggered poll run failed", zap.Error(err))
				// next trigger retries, nothing to do here
			}
		}
	}
}

func (c *TriggerConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received poll trigger",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)
	select {
	case c.runs <- struct{}{}:
	default:
		// a run is already pending
	}
	return nil
}
