package domain

import (
	"database/sql"
	"time"
)

// Sync status values stored on the devices table.
const (
	SyncStatusNever   = "never"
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// Device 生物识别考勤终端（对应 devices 表）
// One physical fingerprint/card/face terminal installed at a school.
type Device struct {
	DeviceID   string `db:"device_id"`
	SchoolID   string `db:"school_id"` // NOT NULL
	DeviceName string `db:"device_name"`

	// Connection config for the HTTP bridge in front of the terminal.
	Host string `db:"host"`
	Port int    `db:"port"`

	Enabled bool `db:"enabled"` // disabled devices are never polled

	// Sync health. LastSyncedAt is the watermark: it only advances on a run
	// that completed without a fatal per-device error.
	LastSyncedAt     sql.NullTime   `db:"last_synced_at"`
	LastSyncStatus   string         `db:"last_sync_status"` // never/success/failed
	LastErrorMessage sql.NullString `db:"last_error_message"`
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (d *Device) ToJSON() map[string]any {
	m := map[string]any{
		"device_id":        d.DeviceID,
		"school_id":        d.SchoolID,
		"device_name":      d.DeviceName,
		"host":             d.Host,
		"port":             d.Port,
		"enabled":          d.Enabled,
		"last_sync_status": d.LastSyncStatus,
	}
	if d.LastSyncedAt.Valid {
		m["last_synced_at"] = d.LastSyncedAt.Time.UTC().Format(time.RFC3339)
	} else {
		m["last_synced_at"] = nil
	}
	if d.LastErrorMessage.Valid {
		m["last_error_message"] = d.LastErrorMessage.String
	} else {
		m["last_error_message"] = nil
	}
	return m
}
