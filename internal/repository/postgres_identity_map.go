package repository

import (
	"context"
	"database/sql"

	"punchsync/internal/domain"
)

type PostgresIdentityRepo struct {
	db *sql.DB
}

func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

func (r *PostgresIdentityRepo) FindActiveMapping(ctx context.Context, deviceID, deviceUserID string) (*domain.IdentityMap, error) {
	q := `
		SELECT
			mapping_id::text,
			device_id::text,
			device_user_id,
			person_id::text,
			person_kind,
			is_active
		FROM identity_maps
		WHERE device_id = $1 AND device_user_id = $2 AND is_active = TRUE
		LIMIT 1
	`
	var m domain.IdentityMap
	err := r.db.QueryRowContext(ctx, q, deviceID, deviceUserID).Scan(
		&m.MappingID,
		&m.DeviceID,
		&m.DeviceUserID,
		&m.PersonID,
		&m.PersonKind,
		&m.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
