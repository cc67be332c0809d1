package device

import (
	"context"
	"fmt"
	"time"

	"punchsync/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// fetchRequest 终端桥接服务的查询请求
type fetchRequest struct {
	Since    int64 `json:"since"`     // unix seconds, inclusive lower bound
	MaxCount int   `json:"max_count"`
}

// fetchResponse 终端桥接服务的查询响应
type fetchResponse struct {
	Status  int                 `json:"status"`
	Msg     string              `json:"msg"`
	Events  []wireEvent         `json:"events"`
	HasMore bool                `json:"has_more"`
}

type wireEvent struct {
	DeviceUserID string `json:"device_user_id"`
	EventType    string `json:"event_type"`
	Timestamp    int64  `json:"timestamp"` // unix seconds, device-reported
}

// HTTPClient talks to the HTTP bridge that fronts one biometric terminal.
// The bridge owns the vendor wire protocol; this client only carries the
// "events since timestamp, capped, has-more" capability. The per-request
// timeout lives here so one unreachable terminal cannot stall a poll run
// beyond that bound.
type HTTPClient struct {
	httpClient *resty.Client
	deviceID   string
	logger     *zap.Logger
}

// NewHTTPClient 创建终端桥接客户端
func NewHTTPClient(dev domain.Device, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	client := resty.New().
		SetBaseURL(fmt.Sprintf("http://%s:%d", dev.Host, dev.Port)).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPClient{
		httpClient: client,
		deviceID:   dev.DeviceID,
		logger:     logger,
	}
}

// NewFactory returns a ClientFactory producing HTTP bridge clients with the
// given per-request timeout.
func NewFactory(timeout time.Duration, logger *zap.Logger) ClientFactory {
	return func(dev domain.Device) Client {
		return NewHTTPClient(dev, timeout, logger)
	}
}

func (c *HTTPClient) FetchEvents(ctx context.Context, since time.Time, maxCount int) ([]domain.PunchEvent, bool, error) {
	request := fetchRequest{
		Since:    since.UTC().Unix(),
		MaxCount: maxCount,
	}

	c.logger.Debug("Fetching events from device bridge",
		zap.String("device_id", c.deviceID),
		zap.Time("since", since),
		zap.Int("max_count", maxCount),
	)

	var response fetchResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/bridge/v1/events/query")

	if err != nil {
		return nil, false, fmt.Errorf("failed to call device bridge: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, false, fmt.Errorf("device bridge returned HTTP %d", resp.StatusCode())
	}
	if response.Status != 0 {
		return nil, false, fmt.Errorf("device bridge error: %s (status: %d)", response.Msg, response.Status)
	}

	events := make([]domain.PunchEvent, 0, len(response.Events))
	for _, w := range response.Events {
		events = append(events, domain.PunchEvent{
			DeviceUserID: w.DeviceUserID,
			EventType:    domain.EventType(w.EventType),
			EventTime:    time.Unix(w.Timestamp, 0).UTC(),
		})
	}

	c.logger.Debug("Fetched events from device bridge",
		zap.String("device_id", c.deviceID),
		zap.Int("event_count", len(events)),
		zap.Bool("has_more", response.HasMore),
	)

	return events, response.HasMore, nil
}
