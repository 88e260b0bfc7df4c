// Package gtfsrt decodes GTFS-realtime protobuf feed entities into the
// normalised realtime.Disruption shape the applier (C6) consumes, so a
// trip update or a service alert can be applied to a live transitdata
// facade the same way a NATS-delivered disruption envelope would be.
package gtfsrt

import (
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/realtime"
	"github.com/samirrijal/transitplanner/internal/core/timetable"
)

// defaultAlertWindow is the application period assumed for an alert whose
// active_period list is empty: GTFS-RT treats that as "always active", which
// an Applier can't represent, so it is approximated as "from now, for a
// day" and refreshed on the poller's next cycle.
const defaultAlertWindow = 24 * time.Hour

// Decoder turns GTFS-realtime entities into Disruptions for one agency.
// TripTimezone resolves the IANA timezone a trip's stop times are local to;
// the decoder has no static schedule of its own; callers wire this to
// whatever already knows the agency's timezone (a single-timezone agency
// can just return a constant).
type Decoder struct {
	AgencySlug   string
	TripTimezone func(tripID string) string
}

// NewDecoder creates a Decoder. If tripTimezone is nil, UTC is assumed for
// every trip.
func NewDecoder(agencySlug string, tripTimezone func(tripID string) string) *Decoder {
	if tripTimezone == nil {
		tripTimezone = func(string) string { return "UTC" }
	}
	return &Decoder{AgencySlug: agencySlug, TripTimezone: tripTimezone}
}

// DecodeTripUpdates turns every TripUpdate entity of a feed into a
// Disruption, skipping entities that carry no stop-time the decoder can
// resolve to an absolute instant (delay-only updates with no static
// schedule to offset are not actionable without the schedule the applier
// already holds).
func (d *Decoder) DecodeTripUpdates(feed *gtfsproto.FeedMessage, cal *calendar.Calendar) []realtime.Disruption {
	var out []realtime.Disruption
	for _, entity := range feed.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}
		trip := tu.GetTrip()
		if trip == nil || trip.GetTripId() == "" {
			continue
		}

		if trip.GetScheduleRelationship() == gtfsproto.TripDescriptor_CANCELED {
			out = append(out, realtime.Disruption{
				ID: fmt.Sprintf("gtfsrt:%s:trip_update:%s", d.AgencySlug, entity.GetId()),
				Impacts: []realtime.Impact{{
					ApplicationPeriods: []realtime.TimeRange{{Start: time.Now().UTC(), End: time.Now().UTC().Add(defaultAlertWindow)}},
					PtObjects:          []realtime.PtObject{{Kind: realtime.Trip, ID: trip.GetTripId()}},
					Effect:             realtime.NoService,
				}},
			})
			continue
		}

		tz := d.TripTimezone(trip.GetTripId())
		loc, err := time.LoadLocation(tz)
		if err != nil {
			loc = time.UTC
		}

		updates := d.stopTimeUpdates(tu, cal, loc)
		if len(updates) == 0 {
			continue
		}

		out = append(out, realtime.Disruption{
			ID: fmt.Sprintf("gtfsrt:%s:trip_update:%s", d.AgencySlug, entity.GetId()),
			Impacts: []realtime.Impact{{
				ApplicationPeriods: []realtime.TimeRange{{Start: time.Now().UTC(), End: time.Now().UTC().Add(defaultAlertWindow)}},
				PtObjects:          []realtime.PtObject{{Kind: realtime.Trip, ID: trip.GetTripId()}},
				Effect:             realtime.SignificantDelays,
				StopTimeUpdates:    updates,
				Timezone:           tz,
			}},
		})
	}
	return out
}

// stopTimeUpdates resolves each stop_time_update's absolute arrival/departure
// instant (when the feed provides one — delay-only updates with no static
// schedule on hand can't be localised) into a local-seconds-in-day value via
// the facade's calendar, skipping stops that resolve to no in-range day.
func (d *Decoder) stopTimeUpdates(tu *gtfsproto.TripUpdate, cal *calendar.Calendar, loc *time.Location) []realtime.StopTimeUpdate {
	var updates []realtime.StopTimeUpdate
	for _, stu := range tu.GetStopTimeUpdate() {
		stopID := stu.GetStopId()
		if stopID == "" {
			continue
		}
		if stu.GetScheduleRelationship() == gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED {
			continue
		}

		arrival, hasArrival := localSecondsOf(stu.GetArrival(), cal, loc)
		departure, hasDeparture := localSecondsOf(stu.GetDeparture(), cal, loc)
		if !hasArrival && !hasDeparture {
			continue
		}
		if !hasArrival {
			arrival = departure
		}
		if !hasDeparture {
			departure = arrival
		}

		updates = append(updates, realtime.StopTimeUpdate{
			StopID:      stopID,
			Flow:        timetable.BoardAndDebark,
			BoardLocal:  departure,
			DebarkLocal: arrival,
		})
	}
	return updates
}

// localSecondsOf resolves a GTFS-RT StopTimeEvent's absolute time to local
// seconds-in-day from its epoch time field; ok is false when the event has
// no time field (a delay alone is not used) or the instant lies outside the
// calendar.
func localSecondsOf(event *gtfsproto.TripUpdate_StopTimeEvent, cal *calendar.Calendar, loc *time.Location) (calendar.Seconds, bool) {
	if event == nil || event.Time == nil {
		return 0, false
	}
	instant := time.Unix(event.GetTime(), 0).UTC()
	if !cal.ContainsDatetime(instant) {
		return 0, false
	}
	utcSeconds := calendar.Seconds(instant.Sub(cal.FirstDatetime()) / time.Second)
	decompositions := cal.Decompositions(utcSeconds, loc, -24*3600, 48*3600)
	if len(decompositions) == 0 {
		return 0, false
	}
	return decompositions[0].LocalSeconds, true
}

// DecodeAlerts turns every Alert entity of a feed into a Disruption. Alerts
// whose informed_entity list names neither a trip, a route, nor a stop are
// dropped: the applier has nothing to resolve them against.
func (d *Decoder) DecodeAlerts(feed *gtfsproto.FeedMessage) []realtime.Disruption {
	var out []realtime.Disruption
	for _, entity := range feed.GetEntity() {
		alert := entity.GetAlert()
		if alert == nil {
			continue
		}

		objects := ptObjectsOf(alert)
		if len(objects) == 0 {
			continue
		}

		out = append(out, realtime.Disruption{
			ID: fmt.Sprintf("gtfsrt:%s:alert:%s", d.AgencySlug, entity.GetId()),
			Impacts: []realtime.Impact{{
				ApplicationPeriods: periodsOf(alert),
				PtObjects:          objects,
				Effect:             effectOf(alert.GetEffect()),
			}},
		})
	}
	return out
}

func ptObjectsOf(alert *gtfsproto.Alert) []realtime.PtObject {
	var objects []realtime.PtObject
	for _, ie := range alert.GetInformedEntity() {
		switch {
		case ie.GetTrip() != nil && ie.GetTrip().GetTripId() != "":
			objects = append(objects, realtime.PtObject{Kind: realtime.Trip, ID: ie.GetTrip().GetTripId()})
		case ie.GetRouteId() != "":
			objects = append(objects, realtime.PtObject{Kind: realtime.Route, ID: ie.GetRouteId()})
		case ie.GetStopId() != "":
			objects = append(objects, realtime.PtObject{Kind: realtime.StopPoint, ID: ie.GetStopId()})
		}
	}
	return objects
}

func periodsOf(alert *gtfsproto.Alert) []realtime.TimeRange {
	active := alert.GetActivePeriod()
	if len(active) == 0 {
		now := time.Now().UTC()
		return []realtime.TimeRange{{Start: now, End: now.Add(defaultAlertWindow)}}
	}

	periods := make([]realtime.TimeRange, 0, len(active))
	for _, p := range active {
		start := time.Now().UTC()
		if p.Start != nil {
			start = time.Unix(int64(p.GetStart()), 0).UTC()
		}
		end := start.Add(defaultAlertWindow)
		if p.End != nil {
			end = time.Unix(int64(p.GetEnd()), 0).UTC()
		}
		periods = append(periods, realtime.TimeRange{Start: start, End: end})
	}
	return periods
}

func effectOf(e gtfsproto.Alert_Effect) realtime.Effect {
	switch e {
	case gtfsproto.Alert_NO_SERVICE:
		return realtime.NoService
	case gtfsproto.Alert_REDUCED_SERVICE:
		return realtime.ReducedService
	case gtfsproto.Alert_SIGNIFICANT_DELAYS:
		return realtime.SignificantDelays
	case gtfsproto.Alert_DETOUR:
		return realtime.Detour
	case gtfsproto.Alert_ADDITIONAL_SERVICE:
		return realtime.AdditionalService
	case gtfsproto.Alert_MODIFIED_SERVICE:
		return realtime.ModifiedService
	case gtfsproto.Alert_OTHER_EFFECT:
		return realtime.OtherEffect
	case gtfsproto.Alert_STOP_MOVED:
		return realtime.StopMoved
	default:
		return realtime.UnknownEffect
	}
}
