// Package realtime implements C6, the real-time applier: it turns a
// normalised Disruption into C5 (transitdata) mutations, one per affected
// (vehicle-journey, date) pair.
package realtime

import (
	"log/slog"
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/timetable"
	"github.com/samirrijal/transitplanner/internal/core/transitdata"
)

// Effect classifies the kind of disruption an Impact carries, per the
// GTFS-RT Alert.Effect vocabulary extended with service-modification
// semantics.
type Effect int

const (
	NoService Effect = iota
	ReducedService
	SignificantDelays
	Detour
	AdditionalService
	ModifiedService
	OtherEffect
	UnknownEffect
	StopMoved
)

func (e Effect) String() string {
	switch e {
	case NoService:
		return "NoService"
	case ReducedService:
		return "ReducedService"
	case SignificantDelays:
		return "SignificantDelays"
	case Detour:
		return "Detour"
	case AdditionalService:
		return "AdditionalService"
	case ModifiedService:
		return "ModifiedService"
	case OtherEffect:
		return "OtherEffect"
	case UnknownEffect:
		return "UnknownEffect"
	case StopMoved:
		return "StopMoved"
	default:
		return "Unknown"
	}
}

// PtObjectKind identifies the type of public-transit object an Impact
// targets; resolution from a non-Trip object down to the vehicle-journeys
// it covers is delegated to a VehicleJourneyResolver.
type PtObjectKind int

const (
	Network PtObjectKind = iota
	Line
	Route
	Trip
	StopArea
	StopPoint
	LineSection
	RailSection
)

// PtObject is a reference to an affected public-transit object, by
// prefixed-URI identity.
type PtObject struct {
	Kind PtObjectKind
	ID   string
}

// TimeRange is a UTC application period (inclusive start, exclusive end).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// StopTimeUpdate describes one stop-time in a modification's or addition's
// replacement stop sequence.
type StopTimeUpdate struct {
	StopID      string
	Flow        timetable.FlowDirection
	BoardLocal  calendar.Seconds
	DebarkLocal calendar.Seconds
}

// Impact is one effect applied to one or more pt_objects over one or more
// application periods.
type Impact struct {
	ApplicationPeriods []TimeRange
	PtObjects          []PtObject
	Effect             Effect
	StopTimeUpdates     []StopTimeUpdate
	Timezone           string
}

// Disruption is the normalised real-time message the applier consumes,
// whatever its wire origin (GTFS-RT feed, NATS JetStream envelope, ...).
type Disruption struct {
	ID      string
	Impacts []Impact
}

// VehicleJourneyResolver expands a non-Trip pt_object (network, line,
// route, stop area/point, line/rail section) to the vehicle-journey ids
// running through it. A Trip pt_object never needs resolution: its ID is
// already the vehicle-journey id.
type VehicleJourneyResolver interface {
	ResolveVehicleJourneys(obj PtObject) []string
}

// Applier applies Disruptions to a transitdata.TransitData. Each facade
// mutation it makes takes the facade's exclusive write lock for that one
// call; a disruption's impacts are not applied under a single lock, so
// queries can run between them.
type Applier struct {
	data     *transitdata.TransitData
	cal      *calendar.Calendar
	resolver VehicleJourneyResolver
	logger   *slog.Logger
}

// New creates an Applier over a facade and a vehicle-journey resolver.
// logger may be nil, in which case slog.Default() is used.
func New(data *transitdata.TransitData, resolver VehicleJourneyResolver, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{data: data, cal: data.Calendar(), resolver: resolver, logger: logger}
}

func vehicleJourneysOf(obj PtObject) []string {
	if obj.Kind == Trip {
		return []string{obj.ID}
	}
	return nil
}

// daysPatternOf intersects an impact's application periods with the
// facade's calendar, returning the empty pattern (and ok=false) if none of
// the periods overlap the representable calendar at all — per §7, that is
// a silent skip, not an error.
func (a *Applier) daysPatternOf(periods []TimeRange) (calendar.Pattern, bool) {
	pool := a.data.Pool()
	pattern := pool.Empty()
	any := false
	for _, period := range periods {
		for d := period.Start; d.Before(period.End); d = d.AddDate(0, 0, 1) {
			day, ok := a.cal.DateToDay(d)
			if !ok {
				continue
			}
			pattern = pool.WithDay(pattern, day)
			any = true
		}
	}
	return pattern, any
}

func stopTimeColumns(updates []StopTimeUpdate) ([]string, []timetable.FlowDirection, []calendar.Seconds, []calendar.Seconds) {
	stops := make([]string, len(updates))
	flows := make([]timetable.FlowDirection, len(updates))
	board := make([]calendar.Seconds, len(updates))
	debark := make([]calendar.Seconds, len(updates))
	for i, u := range updates {
		stops[i] = u.StopID
		flows[i] = u.Flow
		board[i] = u.BoardLocal
		debark[i] = u.DebarkLocal
	}
	return stops, flows, board, debark
}

// Apply applies every impact of a disruption, in order, discarding (with a
// logged warning) any impact this vehicle-journey/effect combination
// cannot act on. Application is not transactional across impacts: a
// discarded impact never rolls back impacts already applied.
func (a *Applier) Apply(d Disruption) {
	for i, impact := range d.Impacts {
		a.applyImpact(d.ID, i, impact)
	}
}

func (a *Applier) applyImpact(disruptionID string, index int, impact Impact) {
	pattern, ok := a.daysPatternOf(impact.ApplicationPeriods)
	if !ok {
		a.logger.Debug("realtime: impact has no intersection with calendar, skipping",
			"disruption", disruptionID, "impact", index)
		return
	}

	var vjIDs []string
	for _, obj := range impact.PtObjects {
		if ids := vehicleJourneysOf(obj); ids != nil {
			vjIDs = append(vjIDs, ids...)
			continue
		}
		if a.resolver == nil {
			a.logger.Warn("realtime: no resolver configured for non-trip pt_object, skipping",
				"disruption", disruptionID, "impact", index, "object", obj.ID)
			continue
		}
		vjIDs = append(vjIDs, a.resolver.ResolveVehicleJourneys(obj)...)
	}
	if len(vjIDs) == 0 {
		a.logger.Warn("realtime: impact resolved to no vehicle-journeys, skipping",
			"disruption", disruptionID, "impact", index)
		return
	}

	for _, vjID := range vjIDs {
		a.applyToVehicleJourney(disruptionID, index, vjID, impact, pattern)
	}
}

func (a *Applier) applyToVehicleJourney(disruptionID string, index int, vjID string, impact Impact, pattern calendar.Pattern) {
	known := a.data.HasVehicleJourney(vjID)

	switch {
	case impact.Effect == NoService:
		if err := a.data.DeleteTrip(vjID, pattern); err != nil {
			a.logger.Warn("realtime: delete_trip failed, discarding", "disruption", disruptionID, "impact", index, "vehicle_journey", vjID, "error", err)
		}

	case impact.Effect == AdditionalService && !known:
		stops, flows, board, debark := stopTimeColumns(impact.StopTimeUpdates)
		if err := a.data.AddTrip(vjID, pattern, stops, flows, board, debark, impact.Timezone); err != nil {
			a.logger.Warn("realtime: add_trip failed, discarding", "disruption", disruptionID, "impact", index, "vehicle_journey", vjID, "error", err)
		}

	case (impact.Effect == ModifiedService || impact.Effect == SignificantDelays) && known:
		stops, flows, board, debark := stopTimeColumns(impact.StopTimeUpdates)
		if err := a.data.ModifyTrip(vjID, pattern, stops, flows, board, debark, impact.Timezone); err != nil {
			a.logger.Warn("realtime: modify_trip failed, discarding", "disruption", disruptionID, "impact", index, "vehicle_journey", vjID, "error", err)
		}

	default:
		a.logger.Warn("realtime: effect/target combination not handled, discarding",
			"disruption", disruptionID, "impact", index, "vehicle_journey", vjID,
			"effect", impact.Effect.String(), "known", known)
	}
}
