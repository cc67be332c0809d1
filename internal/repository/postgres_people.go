package repository

import (
	"context"
	"database/sql"
)

type PostgresPeopleRepo struct {
	db *sql.DB
}

func NewPostgresPeopleRepo(db *sql.DB) *PostgresPeopleRepo {
	return &PostgresPeopleRepo{db: db}
}

func (r *PostgresPeopleRepo) ListGuardians(ctx context.Context, personID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT guardian_person_id::text
		FROM guardian_links
		WHERE ward_person_id = $1
	`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
