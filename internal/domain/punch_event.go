package domain

import "time"

// EventType 打卡方式
type EventType string

const (
	EventFingerprint EventType = "fingerprint"
	EventCard        EventType = "card"
	EventFace        EventType = "face"
)

// PunchEvent 设备上报的一次打卡（wire-level, before ingestion）
// DeviceUserID is the terminal's own numeric user slot, not a platform person.
type PunchEvent struct {
	DeviceUserID string    `json:"device_user_id"`
	EventType    EventType `json:"event_type"`
	EventTime    time.Time `json:"event_time"` // device-reported instant
}

// PersonKind 人员类别（解析身份时确定一次，随事件携带）
type PersonKind string

const (
	StudentLike PersonKind = "student"
	StaffLike   PersonKind = "staff"
)

// PersonRef 身份解析结果
type PersonRef struct {
	PersonID string
	Kind     PersonKind
}

// ResolvedEvent 已完成身份解析、可进入考勤状态机的事件
type ResolvedEvent struct {
	SchoolID  string
	DeviceID  string
	Person    PersonRef
	EventType EventType
	EventTime time.Time
}
