// Package transitdata implements C5, the Transit-Data Facade: a single
// read view combining the stop/transfer graph (C2), the timetable store
// (C3) and the day-to-timetable index (C4) behind a real-time-level
// toggle, under a reader-writer lock that the write path (C6) uses to
// pause search while applying disruptions.
package transitdata

import (
	"fmt"
	"sync"
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/dayindex"
	"github.com/samirrijal/transitplanner/internal/core/timetable"
	"github.com/samirrijal/transitplanner/internal/core/transitgraph"
)

// RealTimeLevel selects which days-pattern of a trip-row a query consults.
type RealTimeLevel int

const (
	Base RealTimeLevel = iota
	RealTime
)

// TripRef identifies one boardable/debarkable trip instance: a row within
// a mission, valid on a specific calendar day.
type TripRef struct {
	Mission timetable.MissionID
	Row     timetable.RowIndex
	Day     calendar.Day
}

// VehicleFilter is a caller-supplied predicate over a trip's vehicle
// identity (forbidden_uris / allowed_ids / wheelchair / bike filters from
// §6), applied in addition to days-pattern/real-time-level membership.
type VehicleFilter func(vj timetable.VehicleJourneyRef) bool

// AcceptAll is the default VehicleFilter that rejects nothing.
func AcceptAll(timetable.VehicleJourneyRef) bool { return true }

// TransitData is the C5 facade: it owns the Calendar, the stop/transfer
// graph, the timetable store, and the per-vehicle-journey day indices.
type TransitData struct {
	mu sync.RWMutex

	cal  *calendar.Calendar
	pool *calendar.Pool

	graph *transitgraph.Graph
	store *timetable.Store

	daysMaps map[timetable.VehicleJourneyRef]*dayindex.DaysMap

	vjByID map[string]timetable.VehicleJourneyRef
	idByVJ map[timetable.VehicleJourneyRef]string
	nextVJ int

	locations map[string]*time.Location
}

// New creates an empty facade over the given calendar.
func New(cal *calendar.Calendar) *TransitData {
	return &TransitData{
		cal:       cal,
		pool:      calendar.NewPool(cal.NbOfDays()),
		graph:     transitgraph.New(),
		store:     timetable.NewStore(),
		daysMaps:  make(map[timetable.VehicleJourneyRef]*dayindex.DaysMap),
		vjByID:    make(map[string]timetable.VehicleJourneyRef),
		idByVJ:    make(map[timetable.VehicleJourneyRef]string),
		locations: make(map[string]*time.Location),
	}
}

// Calendar returns the facade's Calendar.
func (t *TransitData) Calendar() *calendar.Calendar { return t.cal }

// Pool returns the facade's DaysPattern pool.
func (t *TransitData) Pool() *calendar.Pool { return t.pool }

// Lock acquires the exclusive write lock. The write methods (LoadBaseTrip,
// DeleteTrip, ModifyTrip, AddTrip) take it themselves, so it is not held
// while calling them; nothing in this repository calls Lock directly.
func (t *TransitData) Lock() { t.mu.Lock() }

// Unlock releases the exclusive write lock.
func (t *TransitData) Unlock() { t.mu.Unlock() }

// RLock acquires the shared read lock for the duration of one query.
func (t *TransitData) RLock() { t.mu.RLock() }

// RUnlock releases the shared read lock.
func (t *TransitData) RUnlock() { t.mu.RUnlock() }

func (t *TransitData) vehicleJourneyRef(id string, isNew bool) timetable.VehicleJourneyRef {
	if ref, ok := t.vjByID[id]; ok {
		return ref
	}
	ref := timetable.VehicleJourneyRef{IsNew: isNew, Index: t.nextVJ}
	t.nextVJ++
	t.vjByID[id] = ref
	t.idByVJ[ref] = id
	return ref
}

// VehicleJourneyID returns the external identity of a vehicle-journey ref.
func (t *TransitData) VehicleJourneyID(ref timetable.VehicleJourneyRef) string {
	return t.idByVJ[ref]
}

// HasVehicleJourney reports whether a vehicle-journey id has ever been
// loaded or created, base or real-time. Used by C6 to distinguish a
// ModifiedService (known vehicle-journey) from an AdditionalService
// (unknown vehicle-journey) per §6's effect matrix.
func (t *TransitData) HasVehicleJourney(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.vjByID[id]
	return ok
}

func (t *TransitData) daysMapFor(ref timetable.VehicleJourneyRef) *dayindex.DaysMap {
	dm, ok := t.daysMaps[ref]
	if !ok {
		dm = dayindex.NewDaysMap()
		t.daysMaps[ref] = dm
	}
	return dm
}

func (t *TransitData) location(name string) *time.Location {
	if loc, ok := t.locations[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.UTC
	}
	t.locations[name] = loc
	return loc
}

// --- read-side query API (§4.5) ---

// NbOfStops returns the number of interned stops.
func (t *TransitData) NbOfStops() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.graph.NbOfStops()
}

// NbOfMissions returns the number of missions (timetable blocks).
func (t *TransitData) NbOfMissions() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.NbOfMissions()
}

// StopID returns the external identity of a stop.
func (t *TransitData) StopID(s transitgraph.StopIndex) string {
	return t.graph.StopID(s)
}

// StopIndexOf resolves an external stop id to its interned index.
func (t *TransitData) StopIndexOf(id string) (transitgraph.StopIndex, bool) {
	return t.graph.Lookup(id)
}

// IsUpstream reports whether position a precedes position b on a mission.
func (t *TransitData) IsUpstream(a, b int) bool { return a < b }

// NextOnMission returns the next position on a mission, or false at the
// last position.
func (t *TransitData) NextOnMission(mission timetable.MissionID, pos int) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b := t.store.Mission(mission)
	if pos+1 >= b.NbOfPositions() {
		return 0, false
	}
	return pos + 1, true
}

// NbOfPositionsOf returns the number of stop positions on a mission.
func (t *TransitData) NbOfPositionsOf(mission timetable.MissionID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Mission(mission).NbOfPositions()
}

// StopOf returns the stop at a position on a mission.
func (t *TransitData) StopOf(mission timetable.MissionID, pos int) transitgraph.StopIndex {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Mission(mission).StopAt(pos)
}

// FlowOf returns the flow direction at a position on a mission.
func (t *TransitData) FlowOf(mission timetable.MissionID, pos int) timetable.FlowDirection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Mission(mission).FlowAt(pos)
}

// MissionsAt returns the (mission, position) pairs at which a stop appears.
func (t *TransitData) MissionsAt(s transitgraph.StopIndex) []transitgraph.MissionPosition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.graph.MissionsAt(s)
}

// TransfersAt returns the outgoing transfers from a stop.
func (t *TransitData) TransfersAt(s transitgraph.StopIndex) []transitgraph.Transfer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.graph.TransfersAt(s)
}

// IncomingTransfersAt returns the incoming transfers to a stop, used by
// anti-clockwise search to walk transfer edges backward; each Transfer's
// To field names the edge's origin stop.
func (t *TransitData) IncomingTransfersAt(s transitgraph.StopIndex) []transitgraph.Transfer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.graph.IncomingTransfersAt(s)
}

// BoardTimeOf returns the UTC-seconds-since-FirstDatetime board time of a
// trip at a position.
func (t *TransitData) BoardTimeOf(trip TripRef, pos int) calendar.Seconds {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b := t.store.Mission(trip.Mission)
	local := b.BoardTime(trip.Row, pos)
	loc := t.location(b.RowMetaOf(trip.Row).TimezoneName)
	return t.cal.Compose(trip.Day, local, loc)
}

// DebarkTimeOf returns the UTC-seconds-since-FirstDatetime debark time of a
// trip at a position. ArrivalTimeOf is an alias: a stop-time's debark time
// is its arrival time at that position.
func (t *TransitData) DebarkTimeOf(trip TripRef, pos int) calendar.Seconds {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b := t.store.Mission(trip.Mission)
	local := b.DebarkTime(trip.Row, pos)
	loc := t.location(b.RowMetaOf(trip.Row).TimezoneName)
	return t.cal.Compose(trip.Day, local, loc)
}

// ArrivalTimeOf is an alias for DebarkTimeOf.
func (t *TransitData) ArrivalTimeOf(trip TripRef, pos int) calendar.Seconds {
	return t.DebarkTimeOf(trip, pos)
}

// VehicleJourneyRefOf resolves an external vehicle-journey id to its
// interned ref, used by callers building a VehicleFilter from a set of
// forbidden/allowed ids.
func (t *TransitData) VehicleJourneyRefOf(id string) (timetable.VehicleJourneyRef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ref, ok := t.vjByID[id]
	return ref, ok
}

// VehicleJourneyIDOf returns the external vehicle-journey id a trip
// instance rides on, used to attach route/line display information to a
// materialised journey.
func (t *TransitData) VehicleJourneyIDOf(trip TripRef) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	meta := t.store.Mission(trip.Mission).RowMetaOf(trip.Row)
	return t.idByVJ[meta.VehicleJourney]
}

func (t *TransitData) missionFilter(level RealTimeLevel, day calendar.Day, vf VehicleFilter) timetable.Filter {
	if vf == nil {
		vf = AcceptAll
	}
	return func(meta timetable.RowMeta) bool {
		var pattern calendar.Pattern
		if level == Base {
			pattern = meta.BasePattern
		} else {
			pattern = meta.RealTimePattern
		}
		return t.pool.Contains(pattern, day) && vf(meta.VehicleJourney)
	}
}

// EarliestTripToBoardAt finds, across every calendar day reachable from
// utcWaitingTime under the mission's timezone, the trip that can be
// boarded at `pos` no earlier than utcWaitingTime with the earliest
// resulting UTC board time, restricted to `level` and accepted by vf.
func (t *TransitData) EarliestTripToBoardAt(utcWaitingTime calendar.Seconds, mission timetable.MissionID, pos int, level RealTimeLevel, vf VehicleFilter) (TripRef, calendar.Seconds, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b := t.store.Mission(mission)
	if b.NbOfRows() == 0 {
		return TripRef{}, 0, false
	}
	loc := t.location(b.RowMetaOf(0).TimezoneName)
	decomps := t.cal.Decompositions(utcWaitingTime, loc, -48*3600, 48*3600)

	var best TripRef
	var bestUTC calendar.Seconds
	found := false
	for _, d := range decomps {
		filter := t.missionFilter(level, d.Day, vf)
		row, ok := t.store.EarliestTripToBoardAt(mission, pos, d.LocalSeconds, filter)
		if !ok {
			continue
		}
		boardUTC := t.cal.Compose(d.Day, b.BoardTime(row, pos), loc)
		if !found || boardUTC < bestUTC {
			best = TripRef{Mission: mission, Row: row, Day: d.Day}
			bestUTC = boardUTC
			found = true
		}
	}
	return best, bestUTC, found
}

// LatestTripThatDebarksAt is the symmetric query for backward (clockwise =
// false / arrive-by) search: the trip that debarks at `pos` no later than
// utcWaitingTime with the latest resulting UTC debark time.
func (t *TransitData) LatestTripThatDebarksAt(utcWaitingTime calendar.Seconds, mission timetable.MissionID, pos int, level RealTimeLevel, vf VehicleFilter) (TripRef, calendar.Seconds, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b := t.store.Mission(mission)
	if b.NbOfRows() == 0 {
		return TripRef{}, 0, false
	}
	loc := t.location(b.RowMetaOf(0).TimezoneName)
	decomps := t.cal.Decompositions(utcWaitingTime, loc, -48*3600, 48*3600)

	var best TripRef
	var bestUTC calendar.Seconds
	found := false
	for _, d := range decomps {
		filter := t.missionFilter(level, d.Day, vf)
		row, ok := t.store.LatestTripThatDebarksAt(mission, pos, d.LocalSeconds, filter)
		if !ok {
			continue
		}
		debarkUTC := t.cal.Compose(d.Day, b.DebarkTime(row, pos), loc)
		if !found || debarkUTC > bestUTC {
			best = TripRef{Mission: mission, Row: row, Day: d.Day}
			bestUTC = debarkUTC
			found = true
		}
	}
	return best, bestUTC, found
}

// --- write-side API (§4.3, §4.6), called by C6 or the loader. LoadBaseTrip,
// DeleteTrip, ModifyTrip and AddTrip each take the write lock for their own
// call; StopRef and AddTransfer take no lock. ---

// StopRef resolves (interning if necessary) an external stop id.
func (t *TransitData) StopRef(id string) transitgraph.StopIndex {
	return t.graph.InternStop(id)
}

// AddTransfer registers a directed foot transfer between two stops.
func (t *TransitData) AddTransfer(fromID, toID string, duration, walkingDuration time.Duration) {
	from := t.graph.InternStop(fromID)
	to := t.graph.InternStop(toID)
	t.graph.AddTransfer(from, to, duration, walkingDuration)
}

func (t *TransitData) internStops(ids []string) []transitgraph.StopIndex {
	out := make([]transitgraph.StopIndex, len(ids))
	for i, id := range ids {
		out[i] = t.graph.InternStop(id)
	}
	return out
}

func (t *TransitData) registerMemberships(mission timetable.MissionID, stops []transitgraph.StopIndex) {
	// Only the first row of a mission triggers membership registration:
	// later comparable rows share the same (mission, position) pairs.
	if t.store.Mission(mission).NbOfRows() != 1 {
		return
	}
	for pos, s := range stops {
		t.graph.AddMembership(s, transitgraph.MissionPosition{Mission: int(mission), Position: pos})
	}
}

// LoadBaseTrip inserts a trip from the static dataset: no real-time has
// touched it yet, so its base and real-time patterns start out identical.
func (t *TransitData) LoadBaseTrip(vjID string, stopIDs []string, flows []timetable.FlowDirection, boardLocal, debarkLocal []calendar.Seconds, servicePattern calendar.Pattern, tzName string) (TripRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ref := t.vehicleJourneyRef(vjID, false)
	stops := t.internStops(stopIDs)
	meta := timetable.RowMeta{VehicleJourney: ref, BasePattern: servicePattern, RealTimePattern: servicePattern, TimezoneName: tzName}
	mission, row, err := t.store.InsertTrip(stops, flows, boardLocal, debarkLocal, meta)
	if err != nil {
		return TripRef{}, err
	}
	t.registerMemberships(mission, stops)

	dm := t.daysMapFor(ref)
	for _, day := range t.pool.Iter(servicePattern) {
		if err := dm.Insert(t.pool, dayindex.Entry{
			Pattern: t.pool.Singleton(day), State: dayindex.BaseOnly,
			BaseMission: mission, BaseRow: row, HasBase: true,
		}); err != nil {
			return TripRef{}, fmt.Errorf("transitdata: loading %s: %w", vjID, err)
		}
	}
	return TripRef{Mission: mission, Row: row}, nil
}

func (t *TransitData) clearRealTimeDays(e dayindex.Entry, affected calendar.Pattern) {
	mission, row := e.RealTimeMission, e.RealTimeRow
	if !e.HasRealTime {
		// A BaseOnly day is served in the real-time view by its base row.
		if !e.HasBase || e.State == dayindex.Deleted {
			return
		}
		mission, row = e.BaseMission, e.BaseRow
	}
	cur := t.store.RowMetaOf(mission, row).RealTimePattern
	t.store.SetRealTimePattern(mission, row, t.pool.Difference(cur, affected))
	t.store.RemoveRowIfEmpty(mission, row, t.pool)
}

// DeleteTrip applies a NoService effect over `affected` days: it clears
// those days from whichever row currently serves the real-time view for
// (vjID, day), and records the Deleted state in C4. Unknown
// (vehicle-journey, day) pairs are silently skipped per §7.
func (t *TransitData) DeleteTrip(vjID string, affected calendar.Pattern) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ref, ok := t.vjByID[vjID]
	if !ok {
		return nil
	}
	dm := t.daysMapFor(ref)
	for _, day := range t.pool.Iter(affected) {
		e, ok := dm.StateOn(t.pool, day)
		if !ok {
			continue
		}
		t.clearRealTimeDays(e, t.pool.Singleton(day))
	}
	dm.ApplyDeletion(t.pool, affected)
	return nil
}

// ModifyTrip applies a ModifiedService/SignificantDelays effect over
// `affected` days: it inserts a new real-time row with the given
// stop-times, retargets those days' real-time view to it, and records
// SplittedBaseRealTime in C4.
func (t *TransitData) ModifyTrip(vjID string, affected calendar.Pattern, stopIDs []string, flows []timetable.FlowDirection, boardLocal, debarkLocal []calendar.Seconds, tzName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ref := t.vehicleJourneyRef(vjID, false)
	dm := t.daysMapFor(ref)
	for _, day := range t.pool.Iter(affected) {
		if e, ok := dm.StateOn(t.pool, day); ok {
			t.clearRealTimeDays(e, t.pool.Singleton(day))
		}
	}

	stops := t.internStops(stopIDs)
	meta := timetable.RowMeta{VehicleJourney: ref, BasePattern: t.pool.Empty(), RealTimePattern: affected, TimezoneName: tzName}
	mission, row, err := t.store.InsertTrip(stops, flows, boardLocal, debarkLocal, meta)
	if err != nil {
		return err
	}
	t.registerMemberships(mission, stops)
	return dm.ApplyModification(t.pool, affected, mission, row)
}

// AddTrip applies an AdditionalService effect over `affected` days. It is
// rejected wholesale if any affected day already carries a non-Deleted
// schedule for vjID (S5: "reject addition on existing base").
func (t *TransitData) AddTrip(vjID string, affected calendar.Pattern, stopIDs []string, flows []timetable.FlowDirection, boardLocal, debarkLocal []calendar.Seconds, tzName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ref := t.vehicleJourneyRef(vjID, true)
	dm := t.daysMapFor(ref)
	for _, day := range t.pool.Iter(affected) {
		if e, ok := dm.StateOn(t.pool, day); ok && e.State != dayindex.Deleted {
			return fmt.Errorf("transitdata: AddTrip rejected: %s already scheduled on day %d (state %s)", vjID, day, e.State)
		}
	}

	stops := t.internStops(stopIDs)
	meta := timetable.RowMeta{VehicleJourney: ref, BasePattern: t.pool.Empty(), RealTimePattern: affected, TimezoneName: tzName}
	mission, row, err := t.store.InsertTrip(stops, flows, boardLocal, debarkLocal, meta)
	if err != nil {
		return err
	}
	t.registerMemberships(mission, stops)

	reAdd := t.pool.Empty()
	fresh := t.pool.Empty()
	for _, day := range t.pool.Iter(affected) {
		if e, ok := dm.StateOn(t.pool, day); ok && e.State == dayindex.Deleted {
			reAdd = t.pool.WithDay(reAdd, day)
		} else {
			fresh = t.pool.WithDay(fresh, day)
		}
	}
	if !t.pool.IsEmpty(reAdd) {
		if err := dm.ApplyReAddition(t.pool, reAdd, mission, row); err != nil {
			return err
		}
	}
	if !t.pool.IsEmpty(fresh) {
		if err := dm.ApplyModification(t.pool, fresh, mission, row); err != nil {
			return err
		}
	}
	return nil
}
