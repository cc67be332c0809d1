package attendance

import "time"

// CivilDate buckets an instant into the school's calendar day using a fixed
// UTC offset in seconds. The device's own clock zone is never consulted, so a
// punch at 23:58 local and one at 00:02 local land on different days even if
// the terminal's zone setting is wrong. The result is midnight UTC of the
// civil day, carrying no time-of-day information.
func CivilDate(instant time.Time, tzOffsetSeconds int) time.Time {
	shifted := instant.UTC().Add(time.Duration(tzOffsetSeconds) * time.Second)
	y, m, d := shifted.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
