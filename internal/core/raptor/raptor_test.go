package raptor_test

import (
	"context"
	"testing"
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/raptor"
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

func defaultParams() raptor.Params {
	return raptor.Params{
		MaxNbOfLegs:        4,
		MaxJourneyDuration: 6 * time.Hour,
	}
}

func TestEngine_SingleLegJourneyForward(t *testing.T) {
	cal := mustCalendar(t)
	td := transitdata.New(cal)
	day := calendar.Day(2)
	pattern := td.Pool().Singleton(day)

	td.StopRef("A")
	td.StopRef("B")
	td.StopRef("C")
	if _, err := td.LoadBaseTrip(
		"T1",
		[]string{"A", "B", "C"},
		[]timetable.FlowDirection{timetable.BoardAndDebark, timetable.BoardAndDebark, timetable.BoardAndDebark},
		[]calendar.Seconds{8 * 3600, 8*3600 + 600, 8*3600 + 1200},
		[]calendar.Seconds{8 * 3600, 8*3600 + 600, 8*3600 + 1200},
		pattern, "UTC",
	); err != nil {
		t.Fatalf("LoadBaseTrip failed: %v", err)
	}

	stopA, _ := td.StopIndexOf("A")
	stopC, _ := td.StopIndexOf("C")

	engine := raptor.New(td, defaultParams())
	req := raptor.Request{
		Origins:       []raptor.AccessLeg{{Stop: stopA}},
		Destinations:  []raptor.AccessLeg{{Stop: stopC}},
		Datetime:      cal.ToTime(cal.Compose(day, 7*3600, time.UTC)),
		Clockwise:     true,
		MaxTransfers:  2,
		RealTimeLevel: transitdata.Base,
	}

	resp, err := engine.Solve(context.Background(), req)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if len(resp.Journeys) == 0 {
		t.Fatalf("expected at least one journey")
	}
	wantArrival := cal.Compose(day, 8*3600+1200, time.UTC)
	found := false
	for _, j := range resp.Journeys {
		if j.Criteria.Arrival == wantArrival {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a journey arriving at %d, got %+v", wantArrival, resp.Journeys)
	}
}

func TestEngine_TransferJourneyForward(t *testing.T) {
	cal := mustCalendar(t)
	td := transitdata.New(cal)
	day := calendar.Day(4)
	pattern := td.Pool().Singleton(day)

	td.StopRef("A")
	td.StopRef("B")
	td.StopRef("C")
	td.StopRef("D")
	td.AddTransfer("B", "C", 5*time.Minute, 5*time.Minute)

	if _, err := td.LoadBaseTrip(
		"L1",
		[]string{"A", "B"},
		[]timetable.FlowDirection{timetable.BoardAndDebark, timetable.BoardAndDebark},
		[]calendar.Seconds{8 * 3600, 8*3600 + 600},
		[]calendar.Seconds{8 * 3600, 8*3600 + 600},
		pattern, "UTC",
	); err != nil {
		t.Fatalf("LoadBaseTrip L1 failed: %v", err)
	}
	if _, err := td.LoadBaseTrip(
		"L2",
		[]string{"C", "D"},
		[]timetable.FlowDirection{timetable.BoardAndDebark, timetable.BoardAndDebark},
		[]calendar.Seconds{8*3600 + 1200, 8*3600 + 1800},
		[]calendar.Seconds{8*3600 + 1200, 8*3600 + 1800},
		pattern, "UTC",
	); err != nil {
		t.Fatalf("LoadBaseTrip L2 failed: %v", err)
	}

	stopA, _ := td.StopIndexOf("A")
	stopD, _ := td.StopIndexOf("D")

	engine := raptor.New(td, defaultParams())
	req := raptor.Request{
		Origins:       []raptor.AccessLeg{{Stop: stopA}},
		Destinations:  []raptor.AccessLeg{{Stop: stopD}},
		Datetime:      cal.ToTime(cal.Compose(day, 7*3600, time.UTC)),
		Clockwise:     true,
		MaxTransfers:  2,
		RealTimeLevel: transitdata.Base,
	}

	resp, err := engine.Solve(context.Background(), req)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if len(resp.Journeys) == 0 {
		t.Fatalf("expected at least one transferring journey")
	}
	for _, j := range resp.Journeys {
		if j.Criteria.NbOfLegs != 2 {
			t.Errorf("expected a 2-leg journey, got %d legs", j.Criteria.NbOfLegs)
		}
	}
}

// A stop reached only by walking a transfer out of a debark stop is not
// itself an "arrival" in that round: it is simply a new waiting entry,
// available for boarding in the next round. Only a destination that is
// itself directly debarked at may be reported as arrived.
func TestEngine_TransferOnlyStopIsNotAnArrival(t *testing.T) {
	cal := mustCalendar(t)
	td := transitdata.New(cal)
	day := calendar.Day(4)
	pattern := td.Pool().Singleton(day)

	td.StopRef("A")
	td.StopRef("B")
	td.StopRef("C")
	td.AddTransfer("B", "C", 5*time.Minute, 5*time.Minute)

	if _, err := td.LoadBaseTrip(
		"L1",
		[]string{"A", "B"},
		[]timetable.FlowDirection{timetable.BoardAndDebark, timetable.BoardAndDebark},
		[]calendar.Seconds{8 * 3600, 8*3600 + 600},
		[]calendar.Seconds{8 * 3600, 8*3600 + 600},
		pattern, "UTC",
	); err != nil {
		t.Fatalf("LoadBaseTrip L1 failed: %v", err)
	}

	stopA, _ := td.StopIndexOf("A")
	stopC, _ := td.StopIndexOf("C")

	engine := raptor.New(td, defaultParams())
	req := raptor.Request{
		Origins:       []raptor.AccessLeg{{Stop: stopA}},
		Destinations:  []raptor.AccessLeg{{Stop: stopC, AccessDuration: 10 * time.Minute}},
		Datetime:      cal.ToTime(cal.Compose(day, 7*3600, time.UTC)),
		Clockwise:     true,
		MaxTransfers:  2,
		RealTimeLevel: transitdata.Base,
	}

	resp, err := engine.Solve(context.Background(), req)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if len(resp.Journeys) != 0 {
		t.Errorf("expected no arrivals at a stop reached only by transfer, got %+v", resp.Journeys)
	}
}

func TestEngine_BackwardArriveBySearch(t *testing.T) {
	cal := mustCalendar(t)
	td := transitdata.New(cal)
	day := calendar.Day(6)
	pattern := td.Pool().Singleton(day)

	td.StopRef("A")
	td.StopRef("B")
	if _, err := td.LoadBaseTrip(
		"T2",
		[]string{"A", "B"},
		[]timetable.FlowDirection{timetable.BoardAndDebark, timetable.BoardAndDebark},
		[]calendar.Seconds{9 * 3600, 9*3600 + 900},
		[]calendar.Seconds{9 * 3600, 9*3600 + 900},
		pattern, "UTC",
	); err != nil {
		t.Fatalf("LoadBaseTrip failed: %v", err)
	}

	stopA, _ := td.StopIndexOf("A")
	stopB, _ := td.StopIndexOf("B")

	engine := raptor.New(td, defaultParams())
	req := raptor.Request{
		Origins:       []raptor.AccessLeg{{Stop: stopA}},
		Destinations:  []raptor.AccessLeg{{Stop: stopB}},
		Datetime:      cal.ToTime(cal.Compose(day, 10*3600, time.UTC)),
		Clockwise:     false,
		MaxTransfers:  2,
		RealTimeLevel: transitdata.Base,
	}

	resp, err := engine.Solve(context.Background(), req)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if len(resp.Journeys) == 0 {
		t.Fatalf("expected at least one arrive-by journey")
	}
	wantDeparture := cal.Compose(day, 9*3600, time.UTC)
	found := false
	for _, j := range resp.Journeys {
		if j.Criteria.Arrival == wantDeparture {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a journey departing at %d, got %+v", wantDeparture, resp.Journeys)
	}
}
