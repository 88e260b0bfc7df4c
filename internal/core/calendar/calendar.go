// Package calendar maps absolute calendar dates to compact day indices and
// decomposes UTC instants into (day, local-seconds) pairs across timezones.
package calendar

import (
	"fmt"
	"time"
)

// MaxDays bounds the span a single Calendar can represent.
const MaxDays = 36_600

// maxTimezoneOffset is the largest UTC offset the decomposition logic needs
// to account for on either side of a calendar date.
const maxTimezoneOffset = 24 * time.Hour

// maxSecondsInDay bounds how far local_seconds may range from a day's
// midnight (stop-times past midnight are common in transit data).
const maxSecondsInDay = 48 * time.Hour

// Day is a zero-based index into a Calendar's date range.
type Day uint16

// Seconds is a signed offset in seconds, used both for local-day offsets
// (which may be negative or exceed 24h for past-midnight trips) and for
// UTC offsets since a Calendar's first_datetime.
type Seconds int64

// Calendar represents the inclusive date range [firstDate, lastDate] a
// dataset is valid over, plus the derived UTC instant bounds used to
// validate compose/decompose operations.
type Calendar struct {
	firstDate time.Time // UTC midnight marker for day 0
	lastDate  time.Time // UTC midnight marker for the last day
	nbOfDays  int
}

// New constructs a Calendar covering [firstDate, lastDate] inclusive. Both
// arguments are truncated to their date component; lastDate must not
// precede firstDate, and the resulting span must not exceed MaxDays.
func New(firstDate, lastDate time.Time) (*Calendar, error) {
	first := truncateToDate(firstDate)
	last := truncateToDate(lastDate)
	if last.Before(first) {
		return nil, fmt.Errorf("calendar: last_date %s precedes first_date %s", last, first)
	}
	nbOfDays := int(last.Sub(first).Hours()/24) + 1
	if nbOfDays > MaxDays {
		return nil, fmt.Errorf("calendar: nb_of_days %d exceeds maximum %d", nbOfDays, MaxDays)
	}
	return &Calendar{firstDate: first, lastDate: last, nbOfDays: nbOfDays}, nil
}

func truncateToDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NbOfDays returns the number of days this Calendar spans.
func (c *Calendar) NbOfDays() int { return c.nbOfDays }

// FirstDatetime is the earliest UTC instant this Calendar can represent:
// the start of day 0, minus the maximum timezone offset and the maximum
// seconds-in-day margin.
func (c *Calendar) FirstDatetime() time.Time {
	return c.firstDate.Add(-maxTimezoneOffset - maxSecondsInDay)
}

// LastDatetime is the latest UTC instant this Calendar can represent: the
// start of the day after the last day, plus the same margins.
func (c *Calendar) LastDatetime() time.Time {
	return c.lastDate.AddDate(0, 0, 1).Add(maxTimezoneOffset + maxSecondsInDay)
}

// ContainsDatetime reports whether t falls within [FirstDatetime,
// LastDatetime).
func (c *Calendar) ContainsDatetime(t time.Time) bool {
	return !t.Before(c.FirstDatetime()) && t.Before(c.LastDatetime())
}

// DateToDay maps a calendar date to its zero-based day index, or false if
// the date falls outside [firstDate, lastDate].
func (c *Calendar) DateToDay(date time.Time) (Day, bool) {
	d := truncateToDate(date)
	if d.Before(c.firstDate) || d.After(c.lastDate) {
		return 0, false
	}
	offset := int(d.Sub(c.firstDate).Hours() / 24)
	return Day(offset), true
}

// DayToDate returns the calendar date (UTC midnight) of the given day
// index. Panics if day is out of range: this is an internal invariant, the
// caller must have validated the day already.
func (c *Calendar) DayToDate(day Day) time.Time {
	if int(day) >= c.nbOfDays {
		panic(fmt.Sprintf("calendar: day %d out of range [0,%d)", day, c.nbOfDays))
	}
	return c.firstDate.AddDate(0, 0, int(day))
}

// localMidnight returns the wall-clock midnight of the given day, expressed
// in loc.
func (c *Calendar) localMidnight(day Day, loc *time.Location) time.Time {
	date := c.DayToDate(day)
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
}

// Compose interprets localSeconds as an offset from local midnight of day
// (in timezone loc) and returns the corresponding UTC instant expressed as
// seconds since FirstDatetime. Panics if day is out of range: this is a
// caller error, only reachable from trusted code per the component
// contract.
func (c *Calendar) Compose(day Day, localSeconds Seconds, loc *time.Location) Seconds {
	midnight := c.localMidnight(day, loc)
	instant := midnight.Add(time.Duration(localSeconds) * time.Second)
	return Seconds(instant.Sub(c.FirstDatetime()) / time.Second)
}

// ToTime converts a UTC-seconds-since-FirstDatetime value back to an
// absolute time.Time.
func (c *Calendar) ToTime(utcSeconds Seconds) time.Time {
	return c.FirstDatetime().Add(time.Duration(utcSeconds) * time.Second)
}

// Decomposition is one (day, local_seconds) solution of Compose.
type Decomposition struct {
	Day          Day
	LocalSeconds Seconds
}

// Decompositions returns every (day, local_seconds) pair such that
// Compose(day, local_seconds, loc) == utcSeconds and minLocal <=
// local_seconds <= maxLocal. The result is finite because local_seconds is
// bounded; it is built by a forward scan from the "natural" day (the local
// calendar date of the instant) and a backward scan, with the shared pivot
// day de-duplicated.
func (c *Calendar) Decompositions(utcSeconds Seconds, loc *time.Location, minLocal, maxLocal Seconds) []Decomposition {
	instant := c.ToTime(utcSeconds)
	local := instant.In(loc)
	naturalDate := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	naturalDay, ok := c.DateToDay(naturalDate)
	if !ok {
		// The natural day itself may lie outside the calendar's date range
		// (e.g. near a boundary); still attempt forward/backward scans from
		// the nearest in-range day so boundary-adjacent past-midnight trips
		// are found.
		if naturalDate.Before(c.firstDate) {
			naturalDay = 0
		} else {
			naturalDay = Day(c.nbOfDays - 1)
		}
	}

	var results []Decomposition
	seen := make(map[Day]bool)

	localSecondsAt := func(day Day) Seconds {
		midnight := c.localMidnight(day, loc)
		return Seconds(instant.Sub(midnight) / time.Second)
	}

	// Forward scan: day increasing from naturalDay, local_seconds
	// decreasing (each day's midnight is ~24h later).
	for d := int(naturalDay); d < c.nbOfDays; d++ {
		day := Day(d)
		ls := localSecondsAt(day)
		if ls < minLocal {
			break
		}
		if ls <= maxLocal && !seen[day] {
			results = append(results, Decomposition{Day: day, LocalSeconds: ls})
			seen[day] = true
		}
	}
	// Backward scan: day decreasing from naturalDay-1, local_seconds
	// increasing.
	for d := int(naturalDay) - 1; d >= 0; d-- {
		day := Day(d)
		ls := localSecondsAt(day)
		if ls > maxLocal {
			break
		}
		if ls >= minLocal && !seen[day] {
			results = append(results, Decomposition{Day: day, LocalSeconds: ls})
			seen[day] = true
		}
	}
	return results
}
