package device

import (
	"context"
	"time"

	"punchsync/internal/domain"
)

// Client is the capability contract against one physical terminal: list punch
// events at or after a timestamp, capped at maxCount, with a has-more flag.
// The since bound is inclusive: re-delivering the boundary event is expected
// and the ingest dedup key absorbs it, so same-second events split across
// pages are never skipped. Events must come back in non-decreasing event-time
// order. Any error is a whole-device failure for the current run.
type Client interface {
	FetchEvents(ctx context.Context, since time.Time, maxCount int) ([]domain.PunchEvent, bool, error)
}

// ClientFactory builds a protocol client for one device's connection config.
// The poll orchestrator holds a factory rather than clients so that device
// rows can change between runs.
type ClientFactory func(dev domain.Device) Client
