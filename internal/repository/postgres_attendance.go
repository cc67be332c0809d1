package repository

import (
	"context"
	"database/sql"
	"time"

	"punchsync/internal/domain"

	"github.com/lib/pq"
)

type PostgresAttendanceRepo struct {
	db *sql.DB
}

func NewPostgresAttendanceRepo(db *sql.DB) *PostgresAttendanceRepo {
	return &PostgresAttendanceRepo{db: db}
}

func (r *PostgresAttendanceRepo) GetForDay(ctx context.Context, personID, schoolID string, attDate time.Time) (*domain.AttendanceRecord, error) {
	q := `
		SELECT
			record_id::text,
			person_id::text,
			school_id::text,
			att_date,
			status,
			check_in_time,
			check_out_time,
			working_hours,
			remarks,
			finalized
		FROM attendance_records
		WHERE person_id = $1 AND school_id = $2 AND att_date = $3
	`
	var rec domain.AttendanceRecord
	err := r.db.QueryRowContext(ctx, q, personID, schoolID, attDate).Scan(
		&rec.RecordID,
		&rec.PersonID,
		&rec.SchoolID,
		&rec.AttDate,
		&rec.Status,
		&rec.CheckInTime,
		&rec.CheckOutTime,
		&rec.WorkingHours,
		&rec.Remarks,
		&rec.Finalized,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PostgresAttendanceRepo) Create(ctx context.Context, rec *domain.AttendanceRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (
			record_id,
			person_id,
			school_id,
			att_date,
			status,
			check_in_time,
			check_out_time,
			working_hours,
			remarks,
			finalized
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		rec.RecordID,
		rec.PersonID,
		rec.SchoolID,
		rec.AttDate,
		rec.Status,
		rec.CheckInTime,
		rec.CheckOutTime,
		rec.WorkingHours,
		rec.Remarks,
		rec.Finalized,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		// The (person_id, school_id, att_date) constraint fired: a concurrent
		// run created today's record first.
		return ErrAlreadyExists
	}
	return err
}

func (r *PostgresAttendanceRepo) SetCheckOut(ctx context.Context, recordID string, checkOut time.Time, workingHours float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET check_out_time = $2, working_hours = $3
		WHERE record_id = $1 AND finalized = FALSE
	`, recordID, checkOut, workingHours)
	return err
}
