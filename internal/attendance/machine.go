package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"punchsync/internal/domain"
	"punchsync/internal/notify"
	"punchsync/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const liveMarkRemark = "Marked present via live biometric punch"

// Machine applies resolved punch events to the day's attendance record.
//
// Per (person, school, civil date) the record moves NONE → MARKED →
// (CHECKED_OUT, staff only) → FINALIZED, where finalization is done by an
// end-of-day job outside this service. Events must arrive in event-time
// order per device; the machine does not reorder and out-of-order input is
// unsupported.
type Machine struct {
	attendance repository.AttendanceRepo
	people     repository.PeopleRepo
	notifier   notify.Notifier
	logger     *zap.Logger

	tzOffsetSeconds int
}

func NewMachine(
	attendance repository.AttendanceRepo,
	people repository.PeopleRepo,
	notifier notify.Notifier,
	tzOffsetSeconds int,
	logger *zap.Logger,
) *Machine {
	return &Machine{
		attendance:      attendance,
		people:          people,
		notifier:        notifier,
		tzOffsetSeconds: tzOffsetSeconds,
		logger:          logger,
	}
}

// Apply mutates the attendance record for ev's person and civil day. Student
// days are single-state: the first punch marks present, later punches are
// no-ops. Staff days record check-in on the first punch and check-out on
// every later punch, last punch wins; check-in is immutable once set.
// Finalized records are never touched.
func (m *Machine) Apply(ctx context.Context, ev domain.ResolvedEvent) error {
	attDate := CivilDate(ev.EventTime, m.tzOffsetSeconds)

	rec, err := m.attendance.GetForDay(ctx, ev.Person.PersonID, ev.SchoolID, attDate)
	if err != nil {
		return fmt.Errorf("failed to load attendance record: %w", err)
	}

	if rec == nil {
		return m.markPresent(ctx, ev, attDate)
	}
	if rec.Finalized {
		// Day is closed; the raw event stays on record, the derived state
		// does not move.
		m.logger.Debug("Ignoring punch for finalized day",
			zap.String("person_id", ev.Person.PersonID),
			zap.Time("att_date", attDate),
		)
		return nil
	}
	if ev.Person.Kind == domain.StudentLike {
		// First punch was authoritative.
		return nil
	}
	return m.checkOut(ctx, ev, rec)
}

func (m *Machine) markPresent(ctx context.Context, ev domain.ResolvedEvent, attDate time.Time) error {
	rec := &domain.AttendanceRecord{
		RecordID: uuid.NewString(),
		PersonID: ev.Person.PersonID,
		SchoolID: ev.SchoolID,
		AttDate:  attDate,
		Status:   domain.StatusPresent,
	}

	if ev.Person.Kind == domain.StaffLike {
		rec.CheckInTime = sql.NullTime{Time: ev.EventTime, Valid: true}
	} else {
		rec.Remarks = sql.NullString{String: liveMarkRemark, Valid: true}
	}

	if err := m.attendance.Create(ctx, rec); err != nil {
		if err == repository.ErrAlreadyExists {
			// A concurrent run won the create; this punch was already
			// represented by its duplicate on the other run.
			return nil
		}
		return fmt.Errorf("failed to create attendance record: %w", err)
	}

	if ev.Person.Kind == domain.StaffLike {
		m.notify(ctx, ev.SchoolID, []string{ev.Person.PersonID}, notify.KindCheckedIn, map[string]any{
			"person_id":     ev.Person.PersonID,
			"check_in_time": ev.EventTime.UTC().Format(timeFormat),
		})
		return nil
	}

	targets := []string{ev.Person.PersonID}
	guardians, err := m.people.ListGuardians(ctx, ev.Person.PersonID)
	if err != nil {
		// Guardians are a notification concern only; the mark already stands.
		m.logger.Warn("Failed to list guardians",
			zap.String("person_id", ev.Person.PersonID),
			zap.Error(err),
		)
	} else {
		targets = append(targets, guardians...)
	}
	m.notify(ctx, ev.SchoolID, targets, notify.KindMarkedPresent, map[string]any{
		"person_id": ev.Person.PersonID,
		"att_date":  attDate.Format(dateFormat),
	})
	return nil
}

func (m *Machine) checkOut(ctx context.Context, ev domain.ResolvedEvent, rec *domain.AttendanceRecord) error {
	if !rec.CheckInTime.Valid {
		// Staff record without a check-in should not exist; refuse to invent
		// working hours from nothing.
		m.logger.Warn("Staff attendance record has no check-in time, skipping check-out",
			zap.String("record_id", rec.RecordID),
		)
		return nil
	}
	if ev.EventTime.Before(rec.CheckInTime.Time) {
		// Out-of-order delivery is unsupported; whatever produced this event
		// must not be allowed to place check-out before check-in.
		m.logger.Warn("Punch predates check-in, skipping check-out",
			zap.String("record_id", rec.RecordID),
			zap.Time("event_time", ev.EventTime),
			zap.Time("check_in_time", rec.CheckInTime.Time),
		)
		return nil
	}

	hours := RoundHours(ev.EventTime.Sub(rec.CheckInTime.Time))

	if err := m.attendance.SetCheckOut(ctx, rec.RecordID, ev.EventTime, hours); err != nil {
		return fmt.Errorf("failed to set check-out: %w", err)
	}

	m.notify(ctx, ev.SchoolID, []string{ev.Person.PersonID}, notify.KindCheckedOut, map[string]any{
		"person_id":      ev.Person.PersonID,
		"check_out_time": ev.EventTime.UTC().Format(timeFormat),
		"working_hours":  hours,
	})
	return nil
}

// notify dispatches best-effort: a failed or panicking dispatcher never undoes
// the attendance mutation it announces.
func (m *Machine) notify(ctx context.Context, schoolID string, targets []string, kind notify.Kind, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Notifier panicked", zap.Any("panic", r))
		}
	}()
	if err := m.notifier.Notify(ctx, schoolID, targets, kind, data); err != nil {
		m.logger.Warn("Failed to dispatch notification",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

// RoundHours converts a duration to hours rounded to 2 decimals.
func RoundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}

const (
	timeFormat = "2006-01-02T15:04:05Z07:00"
	dateFormat = "2006-01-02"
)
