package tf

import (
	"fmt"
	"math"
	"time"
)

const nanosPerSecond = int64(time.Second)

// Stamp is a logical timestamp split into whole seconds and nanoseconds.
// Stamps order by (Sec, Nsec). The zero Stamp is the epoch.
type Stamp struct {
	Sec  uint32
	Nsec uint32
}

// NewStamp returns a Stamp with any nanosecond overflow carried into Sec,
// saturating at the largest representable stamp.
func NewStamp(sec, nsec uint32) Stamp {
	carry := nsec / uint32(nanosPerSecond)
	if carry > math.MaxUint32-sec {
		return Stamp{Sec: math.MaxUint32, Nsec: uint32(nanosPerSecond - 1)}
	}
	return Stamp{Sec: sec + carry, Nsec: nsec % uint32(nanosPerSecond)}
}

// StampFromNanos converts nanoseconds since the epoch. Negative values
// saturate at the epoch and values past the uint32 seconds range saturate
// at the largest representable stamp.
func StampFromNanos(n int64) Stamp {
	if n <= 0 {
		return Stamp{}
	}
	sec := n / nanosPerSecond
	if sec > math.MaxUint32 {
		return Stamp{Sec: math.MaxUint32, Nsec: uint32(nanosPerSecond - 1)}
	}
	return Stamp{Sec: uint32(sec), Nsec: uint32(n % nanosPerSecond)}
}

// StampFromSeconds converts fractional seconds since the epoch.
func StampFromSeconds(s float64) Stamp {
	if math.IsNaN(s) || s <= 0 {
		return Stamp{}
	}
	return StampFromNanos(int64(math.Round(s * float64(nanosPerSecond))))
}

// StampFromTime converts a wall-clock time.
func StampFromTime(t time.Time) Stamp {
	return StampFromNanos(t.UnixNano())
}

// Nanos returns the stamp as nanoseconds since the epoch.
func (s Stamp) Nanos() int64 {
	return int64(s.Sec)*nanosPerSecond + int64(s.Nsec)
}

// Seconds returns the stamp as fractional seconds since the epoch.
func (s Stamp) Seconds() float64 {
	return float64(s.Sec) + float64(s.Nsec)/1e9
}

// Time returns the stamp as a UTC wall-clock time.
func (s Stamp) Time() time.Time {
	return time.Unix(int64(s.Sec), int64(s.Nsec)).UTC()
}

// IsZero reports whether s is the epoch.
func (s Stamp) IsZero() bool {
	return s.Sec == 0 && s.Nsec == 0
}

// Compare returns -1, 0 or +1 depending on whether s is before, equal to
// or after o.
func (s Stamp) Compare(o Stamp) int {
	switch {
	case s.Sec < o.Sec:
		return -1
	case s.Sec > o.Sec:
		return 1
	case s.Nsec < o.Nsec:
		return -1
	case s.Nsec > o.Nsec:
		return 1
	default:
		return 0
	}
}

// Before reports whether s is strictly earlier than o.
func (s Stamp) Before(o Stamp) bool { return s.Compare(o) < 0 }

// After reports whether s is strictly later than o.
func (s Stamp) After(o Stamp) bool { return s.Compare(o) > 0 }

// Sub returns the duration s-o.
func (s Stamp) Sub(o Stamp) time.Duration {
	return time.Duration(s.Nanos() - o.Nanos())
}

// Add returns s+d, saturating at the epoch.
func (s Stamp) Add(d time.Duration) Stamp {
	return StampFromNanos(s.Nanos() + int64(d))
}

func (s Stamp) String() string {
	return fmt.Sprintf("%d.%09d", s.Sec, s.Nsec)
}
