package campaign

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default working hours applied when a campaign has no window configured:
// standard business hours, Monday through Friday. The scheduler logs a
// warning whenever this fallback is used.
const (
	DefaultWindowStart = "09:00"
	DefaultWindowEnd   = "17:00"
)

var defaultWorkingDays = WeekdayMask(
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
)

// CallWindow is the resolved working-hours gate for one campaign.
type CallWindow struct {
	Start    string // "HH:MM"
	End      string // "HH:MM"
	Days     int    // weekday bitmask, bit 0 = Sunday
	Timezone string // IANA name

	// Defaulted marks that one or more fields came from the documented
	// fallback rather than campaign configuration.
	Defaulted bool
}

// Window resolves the campaign's working-hours configuration, applying
// defaults for anything missing.
func (c Campaign) Window() CallWindow {
	w := CallWindow{
		Start:    c.CallWindowStart,
		End:      c.CallWindowEnd,
		Days:     c.WorkingDays,
		Timezone: c.Timezone,
	}
	if w.Start == "" || w.End == "" {
		w.Start = DefaultWindowStart
		w.End = DefaultWindowEnd
		w.Defaulted = true
	}
	if w.Days == 0 {
		w.Days = defaultWorkingDays
		w.Defaulted = true
	}
	if w.Timezone == "" {
		w.Timezone = "UTC"
		w.Defaulted = true
	}
	return w
}

// Contains reports whether now falls inside the window.
//
// Boundary rule: the start minute is inclusive and the end minute is
// exclusive — a call at exactly Start is permitted, one at exactly End is
// not.
func (w CallWindow) Contains(now time.Time) (bool, error) {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return false, fmt.Errorf("campaign: invalid timezone %q: %w", w.Timezone, err)
	}
	local := now.In(loc)

	if w.Days&(1<<uint(local.Weekday())) == 0 {
		return false, nil
	}

	startMin, err := parseClock(w.Start)
	if err != nil {
		return false, err
	}
	endMin, err := parseClock(w.End)
	if err != nil {
		return false, err
	}

	cur := local.Hour()*60 + local.Minute()
	return cur >= startMin && cur < endMin, nil
}

// NextOpen returns the next instant at or after now when the window opens.
// Used by compliance to compute blocked_until for out-of-hours calls.
func (w CallWindow) NextOpen(now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("campaign: invalid timezone %q: %w", w.Timezone, err)
	}
	startMin, err := parseClock(w.Start)
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	for i := 0; i < 8; i++ {
		day := local.AddDate(0, 0, i)
		if w.Days&(1<<uint(day.Weekday())) == 0 {
			continue
		}
		open := time.Date(day.Year(), day.Month(), day.Day(), startMin/60, startMin%60, 0, 0, loc)
		if !open.Before(local) {
			return open, nil
		}
		// Today already past the start minute; if still inside the window,
		// "now" is the next open instant.
		if ok, _ := w.Contains(now); ok && i == 0 {
			return local, nil
		}
	}
	return time.Time{}, fmt.Errorf("campaign: window has no enabled days")
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("campaign: invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("campaign: invalid clock value %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("campaign: invalid clock value %q", s)
	}
	return h*60 + m, nil
}
