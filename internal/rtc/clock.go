package rtc

import "time"

// Epoch is the calendar base a new Clock starts from.
var Epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// Clock maps the RTC counter onto wall-clock time.
type Clock struct {
	rtc   *RTC
	base  time.Time
	start uint64
}

// NewClock resets r, selects the crystal, scales rtcs to seconds and starts
// counting from Epoch.
func NewClock(r *RTC) *Clock {
	r.Reset()
	r.SelectExternalClock()
	// SecondsScale is in range.
	_ = r.SetScale(SecondsScale)
	r.Enable()
	return &Clock{rtc: r, base: Epoch}
}

// Set makes Now report t from this instant.
func (c *Clock) Set(t time.Time) {
	c.base = t
	c.start = c.rtc.Counter()
}

// Now returns the current calendar time.
func (c *Clock) Now() time.Time {
	return c.base.Add(TicksToDuration(c.rtc.Counter() - c.start))
}

// Uptime returns the time counted since the clock was started or set.
func (c *Clock) Uptime() time.Duration {
	return TicksToDuration(c.rtc.Counter() - c.start)
}

// Sleep busy-waits for whole seconds using the comparator.
func (c *Clock) Sleep(seconds uint32) {
	c.rtc.WaitScaled(seconds)
}

// TicksToDuration converts counter ticks to a duration without overflowing
// for any 48-bit count.
func TicksToDuration(ticks uint64) time.Duration {
	secs := ticks / TicksPerSecond
	frac := ticks % TicksPerSecond
	return time.Duration(secs)*time.Second + time.Duration(frac*uint64(time.Second)/TicksPerSecond)
}
