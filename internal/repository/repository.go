package repository

import (
	"context"
	"errors"
	"time"

	"punchsync/internal/domain"
)

// ErrAlreadyExists is returned when an insert hits a uniqueness constraint.
// Callers treat it as "someone else committed the same fact first".
var ErrAlreadyExists = errors.New("row already exists")

// DevicesRepo 设备同步状态访问接口
type DevicesRepo interface {
	// ListPollable returns enabled devices whose school has the biometric
	// attendance feature enabled.
	ListPollable(ctx context.Context) ([]domain.Device, error)
	MarkSyncSuccess(ctx context.Context, deviceID string, syncedAt time.Time) error
	MarkSyncFailure(ctx context.Context, deviceID string, message string) error
}

// IdentityRepo 身份映射访问接口（read-only in this service）
type IdentityRepo interface {
	// FindActiveMapping returns nil, nil when no active mapping exists.
	FindActiveMapping(ctx context.Context, deviceID, deviceUserID string) (*domain.IdentityMap, error)
}

// RawEventsRepo 原始打卡事实访问接口
type RawEventsRepo interface {
	ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error)
	// Insert persists a raw event exactly once. A concurrent duplicate insert
	// returns ErrAlreadyExists instead of a second row.
	Insert(ctx context.Context, ev *domain.RawEvent) error
}

// AttendanceRepo 考勤记录访问接口
type AttendanceRepo interface {
	// GetForDay returns nil, nil when the person has no record for that day.
	GetForDay(ctx context.Context, personID, schoolID string, attDate time.Time) (*domain.AttendanceRecord, error)
	Create(ctx context.Context, rec *domain.AttendanceRecord) error
	// SetCheckOut overwrites check-out time and working hours; check-in and
	// finalized records are never touched.
	SetCheckOut(ctx context.Context, recordID string, checkOut time.Time, workingHours float64) error
}

// PeopleRepo 人员关联访问接口
type PeopleRepo interface {
	// ListGuardians returns person ids of a student's linked guardians.
	ListGuardians(ctx context.Context, personID string) ([]string, error)
}
