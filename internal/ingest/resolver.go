package ingest

import (
	"context"
	"fmt"

	"punchsync/internal/domain"
	"punchsync/internal/repository"
)

// Resolver maps a device-local user id onto a platform person, scoped to the
// device. The person's kind (student-like vs staff-like) is resolved here,
// once, and carried with the event; the state machine never re-derives it.
type Resolver struct {
	identity repository.IdentityRepo
}

func NewResolver(identity repository.IdentityRepo) *Resolver {
	return &Resolver{identity: identity}
}

// Resolve returns nil, nil when no active mapping exists. A mapping created
// later does not retroactively reprocess events that were stored unresolved.
func (r *Resolver) Resolve(ctx context.Context, deviceID, deviceUserID string) (*domain.PersonRef, error) {
	m, err := r.identity.FindActiveMapping(ctx, deviceID, deviceUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity mapping: %w", err)
	}
	if m == nil {
		return nil, nil
	}
	return &domain.PersonRef{
		PersonID: m.PersonID,
		Kind:     m.PersonKind,
	}, nil
}
