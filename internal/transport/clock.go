package transport

import "time"

// MonotonicClock implements iface.Clock against the process start time.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock constructs a clock zeroed at the current instant.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// NowUS implements iface.Clock.
func (c *MonotonicClock) NowUS() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}

// SystemWallClock implements iface.WallClock against the system clock.
// Always reports synced: true, since there is no separate NTP reference
// tracked here.
type SystemWallClock struct{}

// EpochNowUS implements iface.WallClock.
func (SystemWallClock) EpochNowUS() (int64, bool) {
	return time.Now().UnixMicro(), true
}
