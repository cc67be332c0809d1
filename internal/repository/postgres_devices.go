package repository

import (
	"context"
	"database/sql"
	"time"

	"punchsync/internal/domain"
)

type PostgresDevicesRepo struct {
	db *sql.DB
}

func NewPostgresDevicesRepo(db *sql.DB) *PostgresDevicesRepo {
	return &PostgresDevicesRepo{db: db}
}

func (r *PostgresDevicesRepo) ListPollable(ctx context.Context) ([]domain.Device, error) {
	q := `
		SELECT
			d.device_id::text,
			d.school_id::text,
			d.device_name,
			d.host,
			d.port,
			d.enabled,
			d.last_synced_at,
			d.last_sync_status,
			d.last_error_message
		FROM devices d
		JOIN schools s ON d.school_id = s.school_id
		WHERE d.enabled = TRUE AND s.biometric_enabled = TRUE
		ORDER BY d.device_name
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Device{}
	for rows.Next() {
		var d domain.Device
		if err := rows.Scan(
			&d.DeviceID,
			&d.SchoolID,
			&d.DeviceName,
			&d.Host,
			&d.Port,
			&d.Enabled,
			&d.LastSyncedAt,
			&d.LastSyncStatus,
			&d.LastErrorMessage,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkSyncSuccess advances the watermark and clears any previous error.
func (r *PostgresDevicesRepo) MarkSyncSuccess(ctx context.Context, deviceID string, syncedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET last_synced_at = $2, last_sync_status = 'success', last_error_message = NULL
		WHERE device_id = $1
	`, deviceID, syncedAt)
	return err
}

// MarkSyncFailure records the error; the watermark stays where it was so the
// next run retries the same window.
func (r *PostgresDevicesRepo) MarkSyncFailure(ctx context.Context, deviceID string, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET last_sync_status = 'failed', last_error_message = $2
		WHERE device_id = $1
	`, deviceID, message)
	return err
}
