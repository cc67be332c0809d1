package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"punchsync/internal/config"
	"punchsync/internal/device"
	"punchsync/internal/domain"
	"punchsync/internal/ingest"
	"punchsync/internal/repository"

	"go.uber.org/zap"
)

// DeviceOutcome 单台设备的轮询结果
type DeviceOutcome struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	New        int    `json:"new_events"`
	Duplicates int    `json:"duplicate_events"`
	Skipped    int    `json:"skipped_events"`
	Unmapped   int    `json:"unmapped_events"`
}

// RunSummary 一次轮询的汇总结果
type RunSummary struct {
	DevicesPolled   int             `json:"devices_polled"`
	EventsProcessed int             `json:"events_processed"`
	NewEvents       int             `json:"new_events"`
	DuplicateEvents int             `json:"duplicate_events"`
	Errors          int             `json:"errors"`
	ElapsedMs       int64           `json:"elapsed_ms"`
	Devices         []DeviceOutcome `json:"devices"`
}

// Orchestrator runs one poll pass over all pollable devices: bounded fan-out
// across devices, strictly sequential event processing within each device,
// settle-all result collection. One device's failure never aborts or delays
// the others.
type Orchestrator struct {
	devices  repository.DevicesRepo
	ingestor *ingest.Ingestor
	clients  device.ClientFactory
	logger   *zap.Logger

	workers        int
	batchSize      int
	maxPages       int
	bootstrapHours int

	now func() time.Time
}

func NewOrchestrator(
	devices repository.DevicesRepo,
	ingestor *ingest.Ingestor,
	clients device.ClientFactory,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *Orchestrator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		devices:        devices,
		ingestor:       ingestor,
		clients:        clients,
		logger:         logger,
		workers:        workers,
		batchSize:      cfg.BatchSize,
		maxPages:       cfg.MaxPages,
		bootstrapHours: cfg.BootstrapHours,
		now:            time.Now,
	}
}

// Run executes one poll pass. The returned error covers only the device
// enumeration itself; per-device failures are reported inside the summary.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	started := o.now()

	devices, err := o.devices.ListPollable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pollable devices: %w", err)
	}

	o.logger.Info("Starting attendance poll run",
		zap.Int("device_count", len(devices)),
		zap.Int("workers", o.workers),
	)

	jobs := make(chan domain.Device)
	results := make(chan DeviceOutcome, len(devices))

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dev := range jobs {
				results <- o.pollDevice(ctx, dev)
			}
		}()
	}

	for _, dev := range devices {
		jobs <- dev
	}
	close(jobs)
	wg.Wait()
	close(results)

	summary := &RunSummary{Devices: []DeviceOutcome{}}
	for out := range results {
		summary.Devices = append(summary.Devices, out)
		summary.DevicesPolled++
		summary.EventsProcessed += out.New + out.Duplicates + out.Skipped + out.Unmapped
		summary.NewEvents += out.New
		summary.DuplicateEvents += out.Duplicates
		if !out.Success {
			summary.Errors++
		}
	}
	summary.ElapsedMs = o.now().Sub(started).Milliseconds()

	o.logger.Info("Completed attendance poll run",
		zap.Int("devices_polled", summary.DevicesPolled),
		zap.Int("events_processed", summary.EventsProcessed),
		zap.Int("new_events", summary.NewEvents),
		zap.Int("duplicate_events", summary.DuplicateEvents),
		zap.Int("error_count", summary.Errors),
		zap.Int64("elapsed_ms", summary.ElapsedMs),
	)

	return summary, nil
}

// pollDevice fetches and ingests one device's window. It catches its own
// failure and reports it as an outcome rather than propagating.
func (o *Orchestrator) pollDevice(ctx context.Context, dev domain.Device) (outcome DeviceOutcome) {
	outcome = DeviceOutcome{DeviceID: dev.DeviceID, DeviceName: dev.DeviceName}

	defer func() {
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Error = fmt.Sprintf("panic: %v", r)
			o.recordFailure(ctx, dev, outcome.Error)
		}
	}()

	since := o.windowStart(dev)
	client := o.clients(dev)

	for page := 0; ; page++ {
		if page >= o.maxPages {
			// A bridge that never clears has_more must not spin a run forever.
			outcome.Success = false
			outcome.Error = fmt.Sprintf("page cap reached (%d pages)", o.maxPages)
			o.recordFailure(ctx, dev, outcome.Error)
			return outcome
		}

		events, hasMore, err := client.FetchEvents(ctx, since, o.batchSize)
		if err != nil {
			outcome.Success = false
			outcome.Error = err.Error()
			o.recordFailure(ctx, dev, outcome.Error)
			return outcome
		}

		res, err := o.ingestor.ProcessBatch(ctx, dev, events)
		outcome.New += res.New
		outcome.Duplicates += res.Duplicates
		outcome.Skipped += res.Skipped
		outcome.Unmapped += res.Unmapped
		if err != nil {
			// Events already persisted before the failure stay committed;
			// the dedup key absorbs them on the retry run.
			outcome.Success = false
			outcome.Error = err.Error()
			o.recordFailure(ctx, dev, outcome.Error)
			return outcome
		}

		if !hasMore {
			break
		}
		if len(events) > 0 {
			// since is inclusive, so the boundary event comes back on the
			// next page and the fingerprint dedup drops it. Resuming past it
			// would lose a same-second sibling cut off by the page size.
			since = events[len(events)-1].EventTime
		}
	}

	outcome.Success = true
	if err := o.devices.MarkSyncSuccess(ctx, dev.DeviceID, o.now().UTC()); err != nil {
		o.logger.Error("Failed to advance device watermark",
			zap.String("device_id", dev.DeviceID),
			zap.Error(err),
		)
	}
	return outcome
}

// windowStart returns the poll window's lower bound: the watermark when one
// exists, otherwise a bootstrap window of the last N hours.
func (o *Orchestrator) windowStart(dev domain.Device) time.Time {
	if dev.LastSyncedAt.Valid {
		return dev.LastSyncedAt.Time
	}
	return o.now().UTC().Add(-time.Duration(o.bootstrapHours) * time.Hour)
}

func (o *Orchestrator) recordFailure(ctx context.Context, dev domain.Device, message string) {
	o.logger.Error("Device poll failed",
		zap.String("device_id", dev.DeviceID),
		zap.String("device_name", dev.DeviceName),
		zap.String("error", message),
	)
	if err := o.devices.MarkSyncFailure(ctx, dev.DeviceID, message); err != nil {
		o.logger.Error("Failed to record device sync failure",
			zap.String("device_id", dev.DeviceID),
			zap.Error(err),
		)
	}
}
