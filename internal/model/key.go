package model

import (
	"fmt"
	"strings"
	"time"
)

// Key identifies an observation. It is comparable and safe to use as a map key.
type Key struct {
	millis    int64
	suspicion string
}

// NewKey normalizes t to millisecond precision. A blank suspicion is rejected.
func NewKey(t time.Time, suspicion string) (Key, error) {
	if t.IsZero() {
		return Key{}, invalid("time", "must be set")
	}
	return KeyFromMillis(t.UnixMilli(), suspicion)
}

// KeyFromMillis builds a key from the stored representation.
func KeyFromMillis(millis int64, suspicion string) (Key, error) {
	if strings.TrimSpace(suspicion) == "" {
		return Key{}, invalid("suspicion", "must not be empty")
	}
	return Key{millis: millis, suspicion: suspicion}, nil
}

// Time returns the key time in UTC.
func (k Key) Time() time.Time {
	return time.UnixMilli(k.millis).UTC()
}

// Millis returns the key time as unix milliseconds.
func (k Key) Millis() int64 {
	return k.millis
}

func (k Key) Suspicion() string {
	return k.suspicion
}

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool {
	return k.suspicion == ""
}

// WithSuspicion returns the key an observation carries after a rename.
func (k Key) WithSuspicion(suspicion string) (Key, error) {
	return KeyFromMillis(k.millis, suspicion)
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.suspicion, k.Time().Format(time.RFC3339Nano))
}

// Less orders keys by time, then suspicion.
func (k Key) Less(other Key) bool {
	if k.millis != other.millis {
		return k.millis < other.millis
	}
	return k.suspicion < other.suspicion
}

// ParseKey reads the form produced by String, "suspicion@RFC3339 time".
// The suspicion may itself contain '@'; the last one separates the time.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndex(s, "@")
	if i < 0 {
		return Key{}, invalid("key", "%q is not of the form suspicion@time", s)
	}
	t, err := time.Parse(time.RFC3339Nano, s[i+1:])
	if err != nil {
		return Key{}, invalid("key", "bad time in %q: %v", s, err)
	}
	return NewKey(t, s[:i])
}
