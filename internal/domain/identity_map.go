package domain

// IdentityMap 设备内用户号与平台人员的绑定（对应 identity_maps 表）
// At most one active mapping per (device_id, device_user_id); inactive rows
// are kept for audit and never matched.
type IdentityMap struct {
	MappingID    string     `db:"mapping_id"`
	DeviceID     string     `db:"device_id"`
	DeviceUserID string     `db:"device_user_id"`
	PersonID     string     `db:"person_id"`
	PersonKind   PersonKind `db:"person_kind"`
	IsActive     bool       `db:"is_active"`
}
