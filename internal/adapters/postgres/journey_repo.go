package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/domain"
	"github.com/samirrijal/transitplanner/internal/core/timetable"
	"github.com/samirrijal/transitplanner/internal/core/transitdata"
)

// StaticLoader implements ports.StaticDataLoader: it bulk-loads the static
// GTFS-derived schedule (transfers, trips, and their per-stop timings)
// into a transit-data facade in one pass, superseding the old per-query
// "join stop_times against stop_times" raw-SQL journey lookups — that
// search is now the raptor engine's concern.
//
// Service calendars (calendar.txt/calendar_dates.txt) are expected
// pre-expanded by the ingestion pipeline into a flat
// service_dates(service_id, date) table: the loader only needs the
// concrete operating dates of a service, not the weekday-bitmask/exception
// overlay logic that produces them.
type StaticLoader struct {
	db *DB

	mu          sync.RWMutex
	routeInfo   map[string]routeInfoEntry     // vehicle-journey (trip) id -> route display info
	servicePats map[string]calendar.Pattern   // service id -> pattern, memoised across trips
}

type routeInfoEntry struct {
	routeID string
	info    domain.PtDisplayInfo
}

// NewStaticLoader creates a StaticLoader.
func NewStaticLoader(db *DB) *StaticLoader {
	return &StaticLoader{
		db:          db,
		routeInfo:   make(map[string]routeInfoEntry),
		servicePats: make(map[string]calendar.Pattern),
	}
}

// LoadAll implements ports.StaticDataLoader.
func (l *StaticLoader) LoadAll(ctx context.Context, data *transitdata.TransitData) error {
	if err := l.loadTransfers(ctx, data); err != nil {
		return fmt.Errorf("load transfers: %w", err)
	}
	if err := l.loadTrips(ctx, data); err != nil {
		return fmt.Errorf("load trips: %w", err)
	}
	return nil
}

// RouteInfoForVehicleJourney implements raptorplanner.RouteInfoResolver.
func (l *StaticLoader) RouteInfoForVehicleJourney(vjID string) (domain.PtDisplayInfo, string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.routeInfo[vjID]
	return entry.info, entry.routeID, ok
}

func (l *StaticLoader) loadTransfers(ctx context.Context, data *transitdata.TransitData) error {
	rows, err := l.db.Pool.Query(ctx, `
		SELECT fs.stop_id, ts.stop_id, tr.min_transfer_seconds, tr.walking_seconds
		FROM transfers tr
		JOIN stops fs ON fs.id = tr.from_stop_id
		JOIN stops ts ON ts.id = tr.to_stop_id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var fromID, toID string
		var minSeconds, walkSeconds int
		if err := rows.Scan(&fromID, &toID, &minSeconds, &walkSeconds); err != nil {
			return err
		}
		data.AddTransfer(fromID, toID, time.Duration(minSeconds)*time.Second, time.Duration(walkSeconds)*time.Second)
	}
	return rows.Err()
}

type tripHeader struct {
	tripID, serviceID, routeUUID, routeCode, shortName, longName, color, tz string
}

func (l *StaticLoader) loadTrips(ctx context.Context, data *transitdata.TransitData) error {
	rows, err := l.db.Pool.Query(ctx, `
		SELECT t.trip_id, t.service_id, r.id, r.route_id, COALESCE(r.short_name, ''), r.long_name, r.color, a.timezone
		FROM trips t
		JOIN routes r ON r.id = t.route_id
		JOIN agencies a ON a.id = r.agency_id
		ORDER BY t.id
	`)
	if err != nil {
		return err
	}

	var headers []tripHeader
	for rows.Next() {
		var h tripHeader
		if err := rows.Scan(&h.tripID, &h.serviceID, &h.routeUUID, &h.routeCode, &h.shortName, &h.longName, &h.color, &h.tz); err != nil {
			rows.Close()
			return err
		}
		headers = append(headers, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, h := range headers {
		stopIDs, flows, board, debark, err := l.loadStopTimes(ctx, h.tripID)
		if err != nil {
			return fmt.Errorf("trip %s: %w", h.tripID, err)
		}
		if len(stopIDs) == 0 {
			continue
		}

		pattern, err := l.servicePattern(ctx, data, h.serviceID)
		if err != nil {
			return fmt.Errorf("trip %s: %w", h.tripID, err)
		}
		if data.Pool().IsEmpty(pattern) {
			continue
		}

		if _, err := data.LoadBaseTrip(h.tripID, stopIDs, flows, board, debark, pattern, h.tz); err != nil {
			return fmt.Errorf("trip %s: %w", h.tripID, err)
		}

		l.mu.Lock()
		l.routeInfo[h.tripID] = routeInfoEntry{
			routeID: h.routeUUID,
			info:    domain.PtDisplayInfo{Line: h.longName, Code: h.shortName, Color: h.color},
		}
		l.mu.Unlock()
	}
	return nil
}

// loadStopTimes returns the parallel stop-id/flow/board-time/debark-time
// columns InsertTrip expects, derived from GTFS pickup_type/drop_off_type
// (0 = regularly scheduled).
func (l *StaticLoader) loadStopTimes(ctx context.Context, tripID string) ([]string, []timetable.FlowDirection, []calendar.Seconds, []calendar.Seconds, error) {
	rows, err := l.db.Pool.Query(ctx, `
		SELECT s.stop_id, st.arrival_time, st.departure_time, st.pickup_type, st.drop_off_type
		FROM stop_times st
		JOIN trips t ON t.id = st.trip_id
		JOIN stops s ON s.id = st.stop_id
		WHERE t.trip_id = $1
		ORDER BY st.stop_sequence
	`, tripID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	defer rows.Close()

	var stopIDs []string
	var flows []timetable.FlowDirection
	var board, debark []calendar.Seconds

	for rows.Next() {
		var stopID string
		var arrival, departure time.Duration
		var pickupType, dropOffType int
		if err := rows.Scan(&stopID, &arrival, &departure, &pickupType, &dropOffType); err != nil {
			return nil, nil, nil, nil, err
		}

		canBoard := pickupType == 0
		canDebark := dropOffType == 0
		var flow timetable.FlowDirection
		switch {
		case canBoard && canDebark:
			flow = timetable.BoardAndDebark
		case canBoard:
			flow = timetable.BoardOnly
		default:
			flow = timetable.DebarkOnly
		}

		stopIDs = append(stopIDs, stopID)
		flows = append(flows, flow)
		debark = append(debark, calendar.Seconds(arrival/time.Second))
		board = append(board, calendar.Seconds(departure/time.Second))
	}
	return stopIDs, flows, board, debark, rows.Err()
}

// servicePattern resolves a GTFS service id to its DaysPattern, memoised
// per loader instance since many trips share the same service calendar.
func (l *StaticLoader) servicePattern(ctx context.Context, data *transitdata.TransitData, serviceID string) (calendar.Pattern, error) {
	l.mu.RLock()
	p, ok := l.servicePats[serviceID]
	l.mu.RUnlock()
	if ok {
		return p, nil
	}

	rows, err := l.db.Pool.Query(ctx, `
		SELECT date FROM service_dates WHERE service_id = $1
	`, serviceID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cal := data.Calendar()
	var days []calendar.Day
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return 0, err
		}
		if day, ok := cal.DateToDay(date); ok {
			days = append(days, day)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	pattern := data.Pool().Of(days...)
	l.mu.Lock()
	l.servicePats[serviceID] = pattern
	l.mu.Unlock()
	return pattern, nil
}
