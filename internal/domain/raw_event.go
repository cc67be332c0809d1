package domain

import (
	"database/sql"
	"time"
)

// ProcessingErrUnmapped terminal, non-retryable outcome for events whose
// device user id has no active identity mapping.
const ProcessingErrUnmapped = "user not mapped"

// RawEvent 原始打卡事实（对应 raw_events 表）
// Immutable once written; Fingerprint carries the uniqueness constraint that
// makes at-least-once device delivery safe to re-ingest.
type RawEvent struct {
	RawEventID       string         `db:"raw_event_id"`
	SchoolID         string         `db:"school_id"`
	DeviceID         string         `db:"device_id"`
	DeviceUserID     string         `db:"device_user_id"`
	EventType        EventType      `db:"event_type"`
	EventTime        time.Time      `db:"event_time"`
	Fingerprint      string         `db:"fingerprint"` // UNIQUE
	ResolvedPersonID sql.NullString `db:"resolved_person_id"`
	ProcessingError  sql.NullString `db:"processing_error"`
	CreatedAt        time.Time      `db:"created_at"`
}
