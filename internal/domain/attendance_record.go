package domain

import (
	"database/sql"
	"time"
)

// Attendance status values.
const (
	StatusPresent = "PRESENT"
	StatusAbsent  = "ABSENT"
)

// AttendanceRecord 某人某校某天的考勤记录（对应 attendance_records 表）
// Unique per (person_id, school_id, att_date). Once Finalized no event may
// mutate it; finalization itself happens in an end-of-day job outside this
// service.
type AttendanceRecord struct {
	RecordID string `db:"record_id"`
	PersonID string `db:"person_id"`
	SchoolID string `db:"school_id"`

	// AttDate is a civil date: year/month/day only, bucketed by the configured
	// UTC offset, never by the device clock's idea of local time.
	AttDate time.Time `db:"att_date"`

	Status       string          `db:"status"`
	CheckInTime  sql.NullTime    `db:"check_in_time"`
	CheckOutTime sql.NullTime    `db:"check_out_time"`
	WorkingHours sql.NullFloat64 `db:"working_hours"`
	Remarks      sql.NullString  `db:"remarks"`
	Finalized    bool            `db:"finalized"`
}
