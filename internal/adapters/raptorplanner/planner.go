// Package raptorplanner adapts C8's raptor.Engine to the ports.JourneyPlanner
// port: it translates the external stop-id/time vocabulary of
// domain.JourneysRequest into the engine's interned-stop/UTC-seconds
// vocabulary, and walks the resulting journey tree path back into
// rider-facing domain.Section values.
package raptorplanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/domain"
	"github.com/samirrijal/transitplanner/internal/core/journeytree"
	"github.com/samirrijal/transitplanner/internal/core/raptor"
	"github.com/samirrijal/transitplanner/internal/core/timetable"
	"github.com/samirrijal/transitplanner/internal/core/transitdata"
	"github.com/samirrijal/transitplanner/internal/core/transitgraph"
	"github.com/samirrijal/transitplanner/internal/pkg/metrics"
)

// RouteInfoResolver looks up the rider-facing display information and
// route id of the vehicle-journey a trip instance rides on. Implemented
// by the static-data adapter, which alone knows the GTFS route table.
type RouteInfoResolver interface {
	RouteInfoForVehicleJourney(vjID string) (info domain.PtDisplayInfo, routeID string, ok bool)
}

// noRouteInfo is used when no resolver is configured: sections are still
// produced, just without line branding.
type noRouteInfo struct{}

func (noRouteInfo) RouteInfoForVehicleJourney(string) (domain.PtDisplayInfo, string, bool) {
	return domain.PtDisplayInfo{}, "", false
}

// Planner implements ports.JourneyPlanner over a raptor.Engine.
type Planner struct {
	data     *transitdata.TransitData
	engine   *raptor.Engine
	routeRes RouteInfoResolver
}

// New creates a Planner over the given facade and search parameters.
func New(data *transitdata.TransitData, params raptor.Params, routeRes RouteInfoResolver) *Planner {
	if routeRes == nil {
		routeRes = noRouteInfo{}
	}
	return &Planner{data: data, engine: raptor.New(data, params), routeRes: routeRes}
}

// PlanJourneys implements ports.JourneyPlanner.
func (p *Planner) PlanJourneys(ctx context.Context, req domain.JourneysRequest) (domain.JourneysResponse, error) {
	start := time.Now()
	defer func() { metrics.JourneySearchDuration.Observe(time.Since(start).Seconds()) }()

	rreq, err := p.toRaptorRequest(req)
	if err != nil {
		return errorResponse(domain.ErrorBadRequest, err.Error()), nil
	}

	resp, err := p.engine.Solve(ctx, rreq)
	if err != nil {
		if errors.Is(err, raptor.ErrDeadlineReached) {
			out := errorResponse(domain.ErrorDeadlineReached, err.Error())
			metrics.JourneysPlanned.WithLabelValues(string(out.ResponseType)).Inc()
			return out, nil
		}
		out := errorResponse(domain.ErrorInternal, err.Error())
		metrics.JourneysPlanned.WithLabelValues(string(out.ResponseType)).Inc()
		return out, nil
	}

	out := p.toDomainResponse(resp)
	metrics.JourneysPlanned.WithLabelValues(string(out.ResponseType)).Inc()
	return out, nil
}

func errorResponse(id domain.ErrorID, message string) domain.JourneysResponse {
	return domain.JourneysResponse{
		ResponseType: domain.ResponseNoSolution,
		Error:        &domain.ResponseError{ID: id, Message: message},
	}
}

func (p *Planner) toRaptorRequest(req domain.JourneysRequest) (raptor.Request, error) {
	origins, err := p.toAccessLegs(req.Origins)
	if err != nil {
		return raptor.Request{}, fmt.Errorf("origins: %w", err)
	}
	destinations, err := p.toAccessLegs(req.Destinations)
	if err != nil {
		return raptor.Request{}, fmt.Errorf("destinations: %w", err)
	}

	level := transitdata.Base
	if req.RealTimeLevel == domain.Realtime {
		level = transitdata.RealTime
	}

	rreq := raptor.Request{
		Origins:       origins,
		Destinations:  destinations,
		Datetime:      req.Datetime,
		Clockwise:     req.Clockwise,
		MaxDuration:   req.MaxDuration,
		MaxTransfers:  req.MaxTransfers,
		RealTimeLevel: level,
		VehicleFilter: p.vehicleFilterFrom(req),
	}
	if req.Deadline != nil {
		rreq.Deadline = *req.Deadline
	}
	return rreq, nil
}

func (p *Planner) toAccessLegs(legs []domain.AccessLeg) ([]raptor.AccessLeg, error) {
	out := make([]raptor.AccessLeg, 0, len(legs))
	for _, l := range legs {
		idx, ok := p.data.StopIndexOf(l.StopID)
		if !ok {
			return nil, fmt.Errorf("unknown stop %q", l.StopID)
		}
		out = append(out, raptor.AccessLeg{Stop: idx, AccessDuration: l.AccessDuration})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one stop is required")
	}
	return out, nil
}

// vehicleFilterFrom resolves the request's forbidden/allowed id strings to
// interned VehicleJourneyRefs once per query, so the returned closure does
// O(1) map lookups on the engine's hot path instead of comparing strings.
func (p *Planner) vehicleFilterFrom(req domain.JourneysRequest) transitdata.VehicleFilter {
	if len(req.ForbiddenURIs) == 0 && len(req.AllowedIDs) == 0 {
		return transitdata.AcceptAll
	}

	forbidden := make(map[timetable.VehicleJourneyRef]bool, len(req.ForbiddenURIs))
	for _, id := range req.ForbiddenURIs {
		if ref, ok := p.data.VehicleJourneyRefOf(id); ok {
			forbidden[ref] = true
		}
	}

	var allowed map[timetable.VehicleJourneyRef]bool
	if len(req.AllowedIDs) > 0 {
		allowed = make(map[timetable.VehicleJourneyRef]bool, len(req.AllowedIDs))
		for _, id := range req.AllowedIDs {
			if ref, ok := p.data.VehicleJourneyRefOf(id); ok {
				allowed[ref] = true
			}
		}
	}

	return func(vj timetable.VehicleJourneyRef) bool {
		if forbidden[vj] {
			return false
		}
		if allowed != nil && !allowed[vj] {
			return false
		}
		return true
	}
}

func (p *Planner) toDomainResponse(resp raptor.Response) domain.JourneysResponse {
	journeys := make([]domain.Journey, 0, len(resp.Journeys))
	for _, j := range resp.Journeys {
		journeys = append(journeys, p.toDomainJourney(j))
	}
	return domain.JourneysResponse{ResponseType: domain.ResponseITF, Journeys: journeys}
}

func (p *Planner) toDomainJourney(j raptor.Journey) domain.Journey {
	cal := p.data.Calendar()
	sections := p.sectionsFromPath(j.Path, cal)

	var departure, arrival time.Time
	if len(j.Path) > 0 {
		departure = cal.ToTime(j.Path[0].Time)
		arrival = cal.ToTime(j.Path[len(j.Path)-1].Time)
	}

	var walking time.Duration
	for _, s := range sections {
		if s.Kind != domain.SectionPublicTransport {
			walking += s.Duration
		}
	}

	return domain.Journey{
		DepartureDateTime: departure,
		ArrivalDateTime:   arrival,
		Duration:          arrival.Sub(departure),
		NbTransfers:       maxInt(j.Criteria.NbOfLegs-1, 0),
		Sections:          sections,
		Durations: domain.Durations{
			Total:   arrival.Sub(departure),
			Walking: walking,
		},
	}
}

// sectionsFromPath walks a chronological journey-tree path, grouping
// Boarded/Debarked pairs into PublicTransport sections, Transferring nodes
// into Transfer sections, and any other time elapsed at a fixed stop
// (initial access, final egress, or genuine platform waiting — the model
// has no separate street-network section kind) into Waiting sections.
func (p *Planner) sectionsFromPath(path []journeytree.Node, cal *calendar.Calendar) []domain.Section {
	var sections []domain.Section
	var pendingBoard *journeytree.Node
	var originStop transitgraph.StopIndex
	var originTime calendar.Seconds
	haveOrigin := false

	flush := func(kind domain.SectionKind, endStop transitgraph.StopIndex, endTime calendar.Seconds) {
		if !haveOrigin || endTime <= originTime {
			return
		}
		begin := cal.ToTime(originTime)
		end := cal.ToTime(endTime)
		sections = append(sections, domain.Section{
			Kind:          kind,
			Origin:        p.data.StopID(originStop),
			Destination:   p.data.StopID(endStop),
			BeginDateTime: begin,
			EndDateTime:   end,
			Duration:      end.Sub(begin),
			ID:            fmt.Sprintf("section:%d", len(sections)),
		})
	}

	for i := range path {
		n := &path[i]
		switch n.Kind {
		case journeytree.Departure:
			originStop, originTime, haveOrigin = n.Stop, n.Time, true
		case journeytree.Waiting:
			flush(domain.SectionWaiting, n.Stop, n.Time)
			originStop, originTime, haveOrigin = n.Stop, n.Time, true
		case journeytree.Boarded:
			pendingBoard = n
		case journeytree.Debarked:
			if pendingBoard != nil {
				sections = append(sections, p.rideSection(*pendingBoard, *n, cal, len(sections)))
				pendingBoard = nil
			}
			originStop, originTime, haveOrigin = n.Stop, n.Time, true
		case journeytree.Transferring:
			flush(domain.SectionTransfer, n.Stop, n.Time)
			originStop, originTime, haveOrigin = n.Stop, n.Time, true
		case journeytree.Arrived:
			flush(domain.SectionWaiting, n.Stop, n.Time)
			originStop, originTime, haveOrigin = n.Stop, n.Time, true
		}
	}
	return sections
}

func (p *Planner) rideSection(board, debark journeytree.Node, cal *calendar.Calendar, index int) domain.Section {
	beginStop := p.data.StopOf(board.Trip.Mission, board.Position)
	vjID := p.data.VehicleJourneyIDOf(board.Trip)
	info, routeID, ok := p.routeRes.RouteInfoForVehicleJourney(vjID)

	begin := cal.ToTime(board.Time)
	end := cal.ToTime(debark.Time)
	section := domain.Section{
		Kind:          domain.SectionPublicTransport,
		Origin:        p.data.StopID(beginStop),
		Destination:   p.data.StopID(debark.Stop),
		BeginDateTime: begin,
		EndDateTime:   end,
		Duration:      end.Sub(begin),
		ID:            fmt.Sprintf("section:%d", index),
		RouteID:       routeID,
		TripID:        vjID,
	}
	if ok {
		section.PtDisplayInformation = &info
	}
	return section
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
