package calendar_test

import (
	"testing"
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
)

func mustCalendar(t *testing.T, first, last string) *calendar.Calendar {
	t.Helper()
	f, err := time.Parse("2006-01-02", first)
	if err != nil {
		t.Fatalf("parse first: %v", err)
	}
	l, err := time.Parse("2006-01-02", last)
	if err != nil {
		t.Fatalf("parse last: %v", err)
	}
	c, err := calendar.New(f, l)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCalendar_NbOfDays(t *testing.T) {
	c := mustCalendar(t, "2021-01-01", "2021-01-03")
	if c.NbOfDays() != 3 {
		t.Errorf("expected 3 days, got %d", c.NbOfDays())
	}
}

func TestCalendar_DateToDay(t *testing.T) {
	c := mustCalendar(t, "2021-01-01", "2021-01-10")

	day, ok := c.DateToDay(time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC))
	if !ok || day != 4 {
		t.Fatalf("expected day 4, got %d ok=%v", day, ok)
	}

	_, ok = c.DateToDay(time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC))
	if ok {
		t.Error("expected date before range to be absent")
	}
	_, ok = c.DateToDay(time.Date(2021, 1, 11, 0, 0, 0, 0, time.UTC))
	if ok {
		t.Error("expected date after range to be absent")
	}
}

func TestCalendar_ExceedsMaxDays(t *testing.T) {
	first := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(200, 0, 0) // far beyond MaxDays
	if _, err := calendar.New(first, last); err == nil {
		t.Error("expected error for range exceeding MaxDays")
	}
}

func TestCalendar_ComposeOutOfRangePanics(t *testing.T) {
	c := mustCalendar(t, "2021-01-01", "2021-01-03")
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for out-of-range day")
		}
	}()
	c.Compose(10, 0, time.UTC)
}

func TestCalendar_ComposeDecomposeRoundTrip(t *testing.T) {
	c := mustCalendar(t, "2021-01-01", "2021-01-05")
	loc := time.UTC

	for day := calendar.Day(0); day < calendar.Day(c.NbOfDays()); day++ {
		for _, localSeconds := range []calendar.Seconds{-48 * 3600, -100, 0, 8 * 3600, 48 * 3600} {
			utc := c.Compose(day, localSeconds, loc)
			decomps := c.Decompositions(utc, loc, -48*3600, 48*3600)
			found := false
			for _, d := range decomps {
				if d.Day == day && d.LocalSeconds == localSeconds {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("day=%d localSeconds=%d not found in decompositions %+v", day, localSeconds, decomps)
			}
		}
	}
}

func TestCalendar_PastMidnightDecomposition(t *testing.T) {
	// S6: trip stop-time 24:10 on 2021-01-01 (i.e. 00:10 on 2021-01-02 UTC).
	c := mustCalendar(t, "2021-01-01", "2021-01-02")
	loc := time.UTC

	day, ok := c.DateToDay(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("expected 2021-01-01 in range")
	}
	localSeconds := calendar.Seconds(24*3600 + 10*60) // 24:10
	utc := c.Compose(day, localSeconds, loc)

	wantInstant := time.Date(2021, 1, 2, 0, 10, 0, 0, time.UTC)
	gotInstant := c.ToTime(utc)
	if !gotInstant.Equal(wantInstant) {
		t.Errorf("expected instant %s, got %s", wantInstant, gotInstant)
	}

	decomps := c.Decompositions(utc, loc, -48*3600, 48*3600)
	found := false
	for _, d := range decomps {
		if d.Day == day && d.LocalSeconds == localSeconds {
			found = true
		}
	}
	if !found {
		t.Errorf("expected past-midnight decomposition to include day=%d localSeconds=%d, got %+v", day, localSeconds, decomps)
	}
}
