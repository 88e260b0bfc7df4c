package realtime_test

import (
	"testing"
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/realtime"
	"github.com/samirrijal/transitplanner/internal/core/timetable"
	"github.com/samirrijal/transitplanner/internal/core/transitdata"
)

func mustCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.New(
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("unexpected error building calendar: %v", err)
	}
	return cal
}

func loadSimpleTrip(t *testing.T, td *transitdata.TransitData, vjID string, day time.Time) {
	t.Helper()
	cal := td.Calendar()
	d, ok := cal.DateToDay(day)
	if !ok {
		t.Fatalf("day %v not in calendar", day)
	}
	pattern := td.Pool().Singleton(d)
	_, err := td.LoadBaseTrip(
		vjID,
		[]string{"A", "B"},
		[]timetable.FlowDirection{timetable.BoardAndDebark, timetable.BoardAndDebark},
		[]calendar.Seconds{8 * 3600, 8*3600 + 600},
		[]calendar.Seconds{8 * 3600, 8*3600 + 600},
		pattern,
		"UTC",
	)
	if err != nil {
		t.Fatalf("LoadBaseTrip failed: %v", err)
	}
}

func TestApplier_NoServiceDeletesTrip(t *testing.T) {
	cal := mustCalendar(t)
	td := transitdata.New(cal)
	day := time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC)
	loadSimpleTrip(t, td, "VJ1", day)

	applier := realtime.New(td, nil, nil)
	applier.Apply(realtime.Disruption{
		ID: "d1",
		Impacts: []realtime.Impact{{
			ApplicationPeriods: []realtime.TimeRange{{Start: day, End: day.AddDate(0, 0, 1)}},
			PtObjects:          []realtime.PtObject{{Kind: realtime.Trip, ID: "VJ1"}},
			Effect:             realtime.NoService,
		}},
	})

	dayIdx, _ := cal.DateToDay(day)
	waitingTime := cal.Compose(dayIdx, 7*3600, time.UTC)
	if _, _, ok := td.EarliestTripToBoardAt(waitingTime, 0, 0, transitdata.RealTime, nil); ok {
		t.Error("expected NoService to remove the real-time view of the trip")
	}
	if _, _, ok := td.EarliestTripToBoardAt(waitingTime, 0, 0, transitdata.Base, nil); !ok {
		t.Error("expected base schedule to remain visible")
	}
}

func TestApplier_AdditionalServiceOnUnknownVehicleJourney(t *testing.T) {
	cal := mustCalendar(t)
	td := transitdata.New(cal)
	day := time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC)

	applier := realtime.New(td, nil, nil)
	applier.Apply(realtime.Disruption{
		ID: "d2",
		Impacts: []realtime.Impact{{
			ApplicationPeriods: []realtime.TimeRange{{Start: day, End: day.AddDate(0, 0, 1)}},
			PtObjects:          []realtime.PtObject{{Kind: realtime.Trip, ID: "VJ2"}},
			Effect:             realtime.AdditionalService,
			StopTimeUpdates: []realtime.StopTimeUpdate{
				{StopID: "A", Flow: timetable.BoardAndDebark, BoardLocal: 10 * 3600, DebarkLocal: 10 * 3600},
				{StopID: "B", Flow: timetable.BoardAndDebark, BoardLocal: 10*3600 + 600, DebarkLocal: 10*3600 + 600},
			},
			Timezone: "UTC",
		}},
	})

	dayIdx, _ := cal.DateToDay(day)
	waitingTime := cal.Compose(dayIdx, 9*3600, time.UTC)
	if _, _, ok := td.EarliestTripToBoardAt(waitingTime, 0, 0, transitdata.RealTime, nil); !ok {
		t.Error("expected additional service trip to become visible at RealTime level")
	}
}

func TestApplier_UnresolvedNonTripObjectIsSkipped(t *testing.T) {
	cal := mustCalendar(t)
	td := transitdata.New(cal)
	day := time.Date(2021, 1, 12, 0, 0, 0, 0, time.UTC)
	loadSimpleTrip(t, td, "VJ3", day)

	applier := realtime.New(td, nil, nil)
	// No resolver configured: a Line-level impact must be silently
	// discarded rather than panicking.
	applier.Apply(realtime.Disruption{
		ID: "d3",
		Impacts: []realtime.Impact{{
			ApplicationPeriods: []realtime.TimeRange{{Start: day, End: day.AddDate(0, 0, 1)}},
			PtObjects:          []realtime.PtObject{{Kind: realtime.Line, ID: "line:1"}},
			Effect:             realtime.NoService,
		}},
	})

	dayIdx, _ := cal.DateToDay(day)
	waitingTime := cal.Compose(dayIdx, 7*3600, time.UTC)
	if _, _, ok := td.EarliestTripToBoardAt(waitingTime, 0, 0, transitdata.Base, nil); !ok {
		t.Error("expected base trip to remain untouched when the impact cannot be resolved")
	}
}

type staticResolver struct {
	vjIDs []string
}

func (r staticResolver) ResolveVehicleJourneys(realtime.PtObject) []string { return r.vjIDs }

func TestApplier_LineLevelNoServiceResolvesToTrips(t *testing.T) {
	cal := mustCalendar(t)
	td := transitdata.New(cal)
	day := time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)
	loadSimpleTrip(t, td, "VJ4", day)

	applier := realtime.New(td, staticResolver{vjIDs: []string{"VJ4"}}, nil)
	applier.Apply(realtime.Disruption{
		ID: "d4",
		Impacts: []realtime.Impact{{
			ApplicationPeriods: []realtime.TimeRange{{Start: day, End: day.AddDate(0, 0, 1)}},
			PtObjects:          []realtime.PtObject{{Kind: realtime.Line, ID: "line:1"}},
			Effect:             realtime.NoService,
		}},
	})

	dayIdx, _ := cal.DateToDay(day)
	waitingTime := cal.Compose(dayIdx, 7*3600, time.UTC)
	if _, _, ok := td.EarliestTripToBoardAt(waitingTime, 0, 0, transitdata.RealTime, nil); ok {
		t.Error("expected line-level NoService to resolve to VJ4 and delete it")
	}
}
