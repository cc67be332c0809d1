package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Fingerprint computes the dedup key of one physical punch: a SHA-256 digest
// of (deviceID, deviceUserID, eventTime). The same triple always yields the
// same key, so a punch redelivered by an overlapping poll window maps onto
// the existing raw_events row instead of a second one. Sub-second precision
// is dropped because terminals report whole seconds.
func Fingerprint(deviceID, deviceUserID string, eventTime time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", deviceID, deviceUserID, eventTime.UTC().Unix())))
	return hex.EncodeToString(sum[:])
}
