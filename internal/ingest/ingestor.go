package ingest

import (
	"context"
	"database/sql"
	"fmt"

	"punchsync/internal/domain"
	"punchsync/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Applier consumes resolved events, one at a time, in event-time order.
// Implemented by the attendance state machine.
type Applier interface {
	Apply(ctx context.Context, ev domain.ResolvedEvent) error
}

// BatchResult counts outcomes of one device batch.
type BatchResult struct {
	New        int // raw events persisted this run
	Duplicates int // already ingested by an earlier or concurrent run
	Skipped    int // malformed (no device user id)
	Unmapped   int // persisted with a terminal "user not mapped" error
}

// Ingestor turns a device's ordered punch batch into raw-event facts and
// feeds resolved events to the attendance state machine strictly one at a
// time. Attendance transitions depend on punch order within a person's day,
// so events are never batched or reordered here.
type Ingestor struct {
	rawEvents repository.RawEventsRepo
	resolver  *Resolver
	applier   Applier
	logger    *zap.Logger
}

func NewIngestor(rawEvents repository.RawEventsRepo, resolver *Resolver, applier Applier, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		rawEvents: rawEvents,
		resolver:  resolver,
		applier:   applier,
		logger:    logger,
	}
}

// ProcessBatch ingests events in the given order. A storage error aborts the
// batch and fails the device's run (the watermark then stays put and the
// window is retried); everything already committed stays committed, which the
// fingerprint key makes safe. Unmapped identities and attendance failures are
// per-event outcomes and never abort the batch.
func (i *Ingestor) ProcessBatch(ctx context.Context, dev domain.Device, events []domain.PunchEvent) (BatchResult, error) {
	var res BatchResult
	for _, ev := range events {
		if ev.DeviceUserID == "" {
			res.Skipped++
			continue
		}
		if err := i.processOne(ctx, dev, ev, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (i *Ingestor) processOne(ctx context.Context, dev domain.Device, ev domain.PunchEvent, res *BatchResult) error {
	fp := Fingerprint(dev.DeviceID, ev.DeviceUserID, ev.EventTime)

	exists, err := i.rawEvents.ExistsByFingerprint(ctx, fp)
	if err != nil {
		return fmt.Errorf("failed to check fingerprint: %w", err)
	}
	if exists {
		res.Duplicates++
		return nil
	}

	person, err := i.resolver.Resolve(ctx, dev.DeviceID, ev.DeviceUserID)
	if err != nil {
		return err
	}

	raw := &domain.RawEvent{
		RawEventID:   uuid.NewString(),
		SchoolID:     dev.SchoolID,
		DeviceID:     dev.DeviceID,
		DeviceUserID: ev.DeviceUserID,
		EventType:    ev.EventType,
		EventTime:    ev.EventTime,
		Fingerprint:  fp,
	}
	if person != nil {
		raw.ResolvedPersonID = sql.NullString{String: person.PersonID, Valid: true}
	} else {
		raw.ProcessingError = sql.NullString{String: domain.ProcessingErrUnmapped, Valid: true}
	}

	if err := i.rawEvents.Insert(ctx, raw); err != nil {
		if err == repository.ErrAlreadyExists {
			// Lost the race against a concurrent run; same punch, same key.
			res.Duplicates++
			return nil
		}
		return fmt.Errorf("failed to persist raw event: %w", err)
	}

	if person == nil {
		i.logger.Warn("Punch from unmapped device user",
			zap.String("device_id", dev.DeviceID),
			zap.String("device_user_id", ev.DeviceUserID),
		)
		res.Unmapped++
		return nil
	}

	res.New++

	// The raw fact is durable at this point. A failed live-state update is
	// logged and left for downstream reconciliation, never retried here.
	if err := i.applier.Apply(ctx, domain.ResolvedEvent{
		SchoolID:  dev.SchoolID,
		DeviceID:  dev.DeviceID,
		Person:    *person,
		EventType: ev.EventType,
		EventTime: ev.EventTime,
	}); err != nil {
		i.logger.Error("Failed to apply attendance transition",
			zap.String("device_id", dev.DeviceID),
			zap.String("person_id", person.PersonID),
			zap.Error(err),
		)
	}
	return nil
}
