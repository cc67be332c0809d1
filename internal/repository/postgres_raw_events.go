package repository

import (
	"context"
	"database/sql"

	"punchsync/internal/domain"

	"github.com/lib/pq"
)

const uniqueViolation = pq.ErrorCode("23505")

type PostgresRawEventsRepo struct {
	db *sql.DB
}

func NewPostgresRawEventsRepo(db *sql.DB) *PostgresRawEventsRepo {
	return &PostgresRawEventsRepo{db: db}
}

func (r *PostgresRawEventsRepo) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM raw_events WHERE fingerprint = $1`, fingerprint,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PostgresRawEventsRepo) Insert(ctx context.Context, ev *domain.RawEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO raw_events (
			raw_event_id,
			school_id,
			device_id,
			device_user_id,
			event_type,
			event_time,
			fingerprint,
			resolved_person_id,
			processing_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		ev.RawEventID,
		ev.SchoolID,
		ev.DeviceID,
		ev.DeviceUserID,
		string(ev.EventType),
		ev.EventTime,
		ev.Fingerprint,
		ev.ResolvedPersonID,
		ev.ProcessingError,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		// Concurrent run ingested the same punch between our lookup and this
		// insert. The unique fingerprint is what keeps overlapping runs safe.
		return ErrAlreadyExists
	}
	return err
}
