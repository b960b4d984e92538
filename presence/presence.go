// Package presence derives the online/offline classification of a device.
// Status is never stored: it is recomputed against the server clock at the
// moment of each query, so no background sweep or expiry job is needed.
package presence

import "time"

// Status is the derived liveness classification of a device.
type Status string

const (
	Online  Status = "online"
	Offline Status = "offline"
)

// Of classifies a device from its last accepted report time. A device is
// online while now - lastSeen <= timeout, inclusive at the boundary.
func Of(lastSeen, now time.Time, timeout time.Duration) Status {
	if now.Sub(lastSeen) <= timeout {
		return Online
	}
	return Offline
}

// IsOnline reports whether a device with the given last seen time counts as
// online at the given instant.
func IsOnline(lastSeen, now time.Time, timeout time.Duration) bool {
	return Of(lastSeen, now, timeout) == Online
}
