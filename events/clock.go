package events

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

var (
	clockLock   sync.RWMutex
	eventClock  clock.Clock = clock.New()
	clockOrigin             = eventClock.Now()
)

// SetClock replaces the clock used for event timestamps. Tests use it with clock.NewMock().
func SetClock(c clock.Clock) {
	clockLock.Lock()
	defer clockLock.Unlock()

	eventClock = c
	clockOrigin = c.Now()
}

// Now returns the current time in UTC.
func Now() time.Time {
	clockLock.RLock()
	defer clockLock.RUnlock()

	return eventClock.Now().UTC()
}

// Monotonic returns nanoseconds elapsed on the monotonic clock since the clock was set.
// Successive calls never decrease.
func Monotonic() int64 {
	clockLock.RLock()
	defer clockLock.RUnlock()

	return eventClock.Since(clockOrigin).Nanoseconds()
}

// Timestamp formats the current time the way the Timestamp header carries it.
func Timestamp() string {
	return Now().Format(time.RFC3339)
}
