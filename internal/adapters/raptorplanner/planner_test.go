package raptorplanner_test

import (
	"context"
	"testing"
	"time"

	"github.com/samirrijal/transitplanner/internal/adapters/raptorplanner"
	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/domain"
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
	return raptor.Params{MaxNbOfLegs: 4, MaxJourneyDuration: 6 * time.Hour}
}

type stubRouteInfo struct {
	info    domain.PtDisplayInfo
	routeID string
}

func (s stubRouteInfo) RouteInfoForVehicleJourney(string) (domain.PtDisplayInfo, string, bool) {
	return s.info, s.routeID, true
}

func buildSingleLegFacade(t *testing.T) (*transitdata.TransitData, *calendar.Calendar, calendar.Day) {
	t.Helper()
	cal := mustCalendar(t)
	td := transitdata.New(cal)
	day := calendar.Day(2)
	pattern := td.Pool().Singleton(day)

	if _, err := td.LoadBaseTrip(
		"T1",
		[]string{"A", "B"},
		[]timetable.FlowDirection{timetable.BoardAndDebark, timetable.BoardAndDebark},
		[]calendar.Seconds{8 * 3600, 8*3600 + 600},
		[]calendar.Seconds{8 * 3600, 8*3600 + 600},
		pattern, "UTC",
	); err != nil {
		t.Fatalf("LoadBaseTrip failed: %v", err)
	}
	return td, cal, day
}

func TestPlanner_PlanJourneys_ReturnsITFOnSuccess(t *testing.T) {
	td, cal, day := buildSingleLegFacade(t)
	planner := raptorplanner.New(td, defaultParams(), stubRouteInfo{
		info:    domain.PtDisplayInfo{Line: "Line 1", Code: "L1"},
		routeID: "R1",
	})

	resp, err := planner.PlanJourneys(context.Background(), domain.JourneysRequest{
		Origins:      []domain.AccessLeg{{StopID: "A"}},
		Destinations: []domain.AccessLeg{{StopID: "B"}},
		Datetime:     cal.ToTime(cal.Compose(day, 7*3600, time.UTC)),
		Clockwise:    true,
		MaxTransfers: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ResponseType != domain.ResponseITF {
		t.Fatalf("expected ITF response, got %v (error=%+v)", resp.ResponseType, resp.Error)
	}
	if len(resp.Journeys) == 0 {
		t.Fatal("expected at least one journey")
	}

	journey := resp.Journeys[0]
	var rideSection *domain.Section
	for i := range journey.Sections {
		if journey.Sections[i].Kind == domain.SectionPublicTransport {
			rideSection = &journey.Sections[i]
			break
		}
	}
	if rideSection == nil {
		t.Fatal("expected a public-transport section")
	}
	if rideSection.RouteID != "R1" || rideSection.PtDisplayInformation == nil || rideSection.PtDisplayInformation.Code != "L1" {
		t.Fatalf("expected route info resolved onto the ride section, got %+v", rideSection)
	}
}

func TestPlanner_PlanJourneys_UnknownStopIsBadRequest(t *testing.T) {
	td, cal, day := buildSingleLegFacade(t)
	planner := raptorplanner.New(td, defaultParams(), nil)

	resp, err := planner.PlanJourneys(context.Background(), domain.JourneysRequest{
		Origins:      []domain.AccessLeg{{StopID: "UNKNOWN"}},
		Destinations: []domain.AccessLeg{{StopID: "B"}},
		Datetime:     cal.ToTime(cal.Compose(day, 7*3600, time.UTC)),
		Clockwise:    true,
	})
	if err != nil {
		t.Fatalf("PlanJourneys itself should not error, got: %v", err)
	}
	if resp.ResponseType != domain.ResponseNoSolution || resp.Error == nil {
		t.Fatalf("expected a NoSolution response with an error, got %+v", resp)
	}
	if resp.Error.ID != domain.ErrorBadRequest {
		t.Fatalf("expected BadRequest error id, got %v", resp.Error.ID)
	}
}

func TestPlanner_PlanJourneys_NoOriginsIsBadRequest(t *testing.T) {
	td, cal, day := buildSingleLegFacade(t)
	planner := raptorplanner.New(td, defaultParams(), nil)

	resp, err := planner.PlanJourneys(context.Background(), domain.JourneysRequest{
		Destinations: []domain.AccessLeg{{StopID: "B"}},
		Datetime:     cal.ToTime(cal.Compose(day, 7*3600, time.UTC)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ResponseType != domain.ResponseNoSolution || resp.Error == nil || resp.Error.ID != domain.ErrorBadRequest {
		t.Fatalf("expected BadRequest NoSolution response, got %+v", resp)
	}
}
