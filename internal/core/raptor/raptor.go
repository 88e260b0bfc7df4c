package raptor

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/journeytree"
	"github.com/samirrijal/transitplanner/internal/core/timetable"
	"github.com/samirrijal/transitplanner/internal/core/transitdata"
	"github.com/samirrijal/transitplanner/internal/core/transitgraph"
)

// AccessLeg is one origin or destination of a query: a stop reachable (or
// reached) by a fallback mode in a given duration.
type AccessLeg struct {
	Stop           transitgraph.StopIndex
	AccessDuration time.Duration
}

// Request is one journey query.
type Request struct {
	Origins       []AccessLeg
	Destinations  []AccessLeg
	Datetime      time.Time
	Clockwise     bool
	MaxDuration   time.Duration
	MaxTransfers  int
	RealTimeLevel transitdata.RealTimeLevel
	VehicleFilter transitdata.VehicleFilter
	Deadline      time.Time // zero value means no deadline
}

// ErrDeadlineReached is returned when the query's deadline has already
// passed before the search could run.
var ErrDeadlineReached = fmt.Errorf("raptor: deadline reached")

// Journey is one reconstructed, fully-expanded result.
type Journey struct {
	Criteria Criteria
	Path     []journeytree.Node
	Legs     []journeytree.Leg
}

// Response holds every non-dominated journey the search found.
type Response struct {
	Journeys []Journey
}

// Engine runs C8's round-based search over a transit-data facade.
type Engine struct {
	data   *transitdata.TransitData
	params Params
}

// New creates an Engine bound to a facade and a set of dominance/validity
// parameters.
func New(data *transitdata.TransitData, params Params) *Engine {
	return &Engine{data: data, params: params}
}

// Solve runs the round-based search to termination (front fixpoint or
// MaxNbOfLegs rounds) and returns the arrived Pareto front's journeys.
func (e *Engine) Solve(ctx context.Context, req Request) (Response, error) {
	if !req.Deadline.IsZero() && time.Now().After(req.Deadline) {
		return Response{}, ErrDeadlineReached
	}
	if ctx.Err() != nil {
		return Response{}, ctx.Err()
	}

	e.data.RLock()
	defer e.data.RUnlock()

	cal := e.data.Calendar()
	if !cal.ContainsDatetime(req.Datetime) {
		return Response{}, fmt.Errorf("raptor: datetime %v outside calendar range", req.Datetime)
	}

	params := e.params
	if req.MaxTransfers > 0 {
		params.MaxNbOfLegs = req.MaxTransfers + 1
	}
	if req.MaxDuration > 0 {
		params.MaxJourneyDuration = req.MaxDuration
	}

	vf := req.VehicleFilter
	if vf == nil {
		vf = transitdata.AcceptAll
	}

	s := &search{
		engine: e,
		req:    req,
		params: params,
		tree:   journeytree.New(),
		vf:     vf,

		waitingFronts:    make(Fronts),
		newWaitingFronts: make(Fronts),
		debarkedFronts:   make(Fronts),
		arrivedFront:     &Front{},
	}

	if req.Clockwise {
		return s.solveForward()
	}
	return s.solveBackward()
}

func minPos(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxPos(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type search struct {
	engine *Engine
	req    Request
	params Params
	tree   *journeytree.Tree
	vf     transitdata.VehicleFilter

	waitingFronts    Fronts
	newWaitingFronts Fronts
	debarkedFronts   Fronts
	arrivedFront     *Front
}

func (s *search) isLower(a, b Criteria) bool {
	if s.req.Clockwise {
		return s.params.IsLowerThan(a, b)
	}
	return s.params.IsLowerThanBackward(a, b)
}

func (s *search) isValid(c Criteria, reference calendar.Seconds) bool {
	if s.req.Clockwise {
		return s.params.IsValid(c, reference)
	}
	return s.params.IsValidBackward(c, reference)
}

// missionsWithNewWaiting returns, for every mission reachable from a stop
// with a non-empty new-waiting front, the upstream-most boardable
// position (forward) or downstream-most debarkable position (backward).
func (s *search) missionsWithNewWaiting(extreme func(a, b int) int) map[timetable.MissionID]int {
	out := make(map[timetable.MissionID]int)
	for stopInt, front := range s.newWaitingFronts {
		if front.Len() == 0 {
			continue
		}
		stop := transitgraph.StopIndex(stopInt)
		for _, mp := range s.engine.data.MissionsAt(stop) {
			mission := timetable.MissionID(mp.Mission)
			if existing, ok := out[mission]; ok {
				out[mission] = extreme(existing, mp.Position)
			} else {
				out[mission] = mp.Position
			}
		}
	}
	return out
}

// commitWaitings merges new_waiting_fronts into the persistent
// waiting_fronts, per round-body step 5.
func (s *search) commitWaitings() {
	for stop, front := range s.newWaitingFronts {
		persistent := s.waitingFronts.At(stop)
		for _, e := range front.Entries() {
			persistent.Add(e, s.isLower)
		}
	}
}

// reachesAny reports whether stop is the stop of one of legs (the query's
// destinations forward, or its origins backward, since the search runs from
// the arrive-by instant back towards an origin), returning the matching
// access leg.
func reachesAny(legs []AccessLeg, stop transitgraph.StopIndex) (AccessLeg, bool) {
	for _, leg := range legs {
		if leg.Stop == stop {
			return leg, true
		}
	}
	return AccessLeg{}, false
}

func (s *search) materialise() Response {
	var journeys []Journey
	for _, e := range s.arrivedFront.Entries() {
		path := s.tree.Path(e.Handle)
		journeys = append(journeys, Journey{
			Criteria: e.Criteria,
			Path:     path,
			Legs:     journeytree.Legs(path),
		})
	}
	return Response{Journeys: journeys}
}
