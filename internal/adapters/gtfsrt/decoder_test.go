package gtfsrt_test

import (
	"testing"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/samirrijal/transitplanner/internal/adapters/gtfsrt"
	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/realtime"
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

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }
func u64Ptr(v uint64) *uint64 { return &v }

func TestDecodeTripUpdates_CanceledTripYieldsNoService(t *testing.T) {
	cal := mustCalendar(t)
	feed := &gtfsproto.FeedMessage{
		Entity: []*gtfsproto.FeedEntity{{
			Id: proto.String("e1"),
			TripUpdate: &gtfsproto.TripUpdate{
				Trip: &gtfsproto.TripDescriptor{
					TripId:              strPtr("VJ1"),
					ScheduleRelationship: gtfsproto.TripDescriptor_CANCELED.Enum(),
				},
			},
		}},
	}

	d := gtfsrt.NewDecoder("bilbobus", nil)
	disruptions := d.DecodeTripUpdates(feed, cal)
	if len(disruptions) != 1 {
		t.Fatalf("expected 1 disruption, got %d", len(disruptions))
	}
	impact := disruptions[0].Impacts[0]
	if impact.Effect != realtime.NoService {
		t.Fatalf("expected NoService effect, got %v", impact.Effect)
	}
	if len(impact.PtObjects) != 1 || impact.PtObjects[0].ID != "VJ1" {
		t.Fatalf("unexpected pt_objects: %+v", impact.PtObjects)
	}
}

func TestDecodeTripUpdates_DelayOnlySkipped(t *testing.T) {
	cal := mustCalendar(t)
	feed := &gtfsproto.FeedMessage{
		Entity: []*gtfsproto.FeedEntity{{
			Id: proto.String("e2"),
			TripUpdate: &gtfsproto.TripUpdate{
				Trip:  &gtfsproto.TripDescriptor{TripId: strPtr("VJ2")},
				Delay: proto.Int32(300),
			},
		}},
	}

	d := gtfsrt.NewDecoder("bilbobus", nil)
	disruptions := d.DecodeTripUpdates(feed, cal)
	if len(disruptions) != 0 {
		t.Fatalf("expected delay-only update with no absolute stop times to be skipped, got %d", len(disruptions))
	}
}

func TestDecodeTripUpdates_AbsoluteStopTimeLocalised(t *testing.T) {
	cal := mustCalendar(t)
	arrival := cal.FirstDatetime().Add(10 * 24 * time.Hour).Add(8 * time.Hour) // day 10, 08:00 UTC

	feed := &gtfsproto.FeedMessage{
		Entity: []*gtfsproto.FeedEntity{{
			Id: proto.String("e3"),
			TripUpdate: &gtfsproto.TripUpdate{
				Trip: &gtfsproto.TripDescriptor{TripId: strPtr("VJ3")},
				StopTimeUpdate: []*gtfsproto.TripUpdate_StopTimeUpdate{{
					StopId: strPtr("S1"),
					Arrival: &gtfsproto.TripUpdate_StopTimeEvent{
						Time: i64Ptr(arrival.Unix()),
					},
				}},
			},
		}},
	}

	d := gtfsrt.NewDecoder("bilbobus", nil)
	disruptions := d.DecodeTripUpdates(feed, cal)
	if len(disruptions) != 1 {
		t.Fatalf("expected 1 disruption, got %d", len(disruptions))
	}
	updates := disruptions[0].Impacts[0].StopTimeUpdates
	if len(updates) != 1 || updates[0].StopID != "S1" {
		t.Fatalf("unexpected stop time updates: %+v", updates)
	}
	if updates[0].DebarkLocal != 8*3600 {
		t.Fatalf("expected 08:00 local seconds, got %d", updates[0].DebarkLocal)
	}
}

func TestDecodeAlerts_EffectAndInformedEntity(t *testing.T) {
	feed := &gtfsproto.FeedMessage{
		Entity: []*gtfsproto.FeedEntity{{
			Id: proto.String("a1"),
			Alert: &gtfsproto.Alert{
				Effect: gtfsproto.Alert_DETOUR.Enum(),
				InformedEntity: []*gtfsproto.EntitySelector{{
					RouteId: strPtr("R1"),
				}},
				ActivePeriod: []*gtfsproto.TimeRange{{
					Start: u64Ptr(1000),
					End:   u64Ptr(2000),
				}},
			},
		}},
	}

	d := gtfsrt.NewDecoder("bilbobus", nil)
	disruptions := d.DecodeAlerts(feed)
	if len(disruptions) != 1 {
		t.Fatalf("expected 1 disruption, got %d", len(disruptions))
	}
	impact := disruptions[0].Impacts[0]
	if impact.Effect != realtime.Detour {
		t.Fatalf("expected Detour effect, got %v", impact.Effect)
	}
	if len(impact.PtObjects) != 1 || impact.PtObjects[0].Kind != realtime.Route || impact.PtObjects[0].ID != "R1" {
		t.Fatalf("unexpected pt_objects: %+v", impact.PtObjects)
	}
	if len(impact.ApplicationPeriods) != 1 {
		t.Fatalf("expected 1 application period, got %d", len(impact.ApplicationPeriods))
	}
}

func TestDecodeAlerts_NoInformedEntitySkipped(t *testing.T) {
	feed := &gtfsproto.FeedMessage{
		Entity: []*gtfsproto.FeedEntity{{
			Id:    proto.String("a2"),
			Alert: &gtfsproto.Alert{Effect: gtfsproto.Alert_OTHER_EFFECT.Enum()},
		}},
	}

	d := gtfsrt.NewDecoder("bilbobus", nil)
	disruptions := d.DecodeAlerts(feed)
	if len(disruptions) != 0 {
		t.Fatalf("expected alert with no informed_entity to be skipped, got %d", len(disruptions))
	}
}
