// Package raptor implements C8, the round-based multi-criteria Pareto
// search engine: RAPTOR-style route scanning over C5's transit-data
// facade, building journeys in a C7 journey tree and keeping a Pareto
// front of non-dominated (arrival, duration) outcomes per stop.
package raptor

import (
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
)

// Criteria is the multi-dimensional label a journey-in-progress carries:
// the two independent axes the engine optimises are arrival time
// (penalised per leg) and total non-transit duration (penalised per leg).
type Criteria struct {
	Arrival           calendar.Seconds
	NbOfLegs          int
	FallbackDuration  time.Duration
	TransfersDuration time.Duration
}

// Params weights the two dominance axes and bounds the search.
type Params struct {
	LegArrivalPenalty  time.Duration
	LegWalkingPenalty  time.Duration
	MaxNbOfLegs        int
	MaxJourneyDuration time.Duration
}

func seconds(d time.Duration) calendar.Seconds { return calendar.Seconds(d / time.Second) }

// arrivalScore is a.arrival + leg_arrival_penalty * a.nb_of_legs.
func (p Params) arrivalScore(c Criteria) calendar.Seconds {
	return c.Arrival + calendar.Seconds(p.LegArrivalPenalty/time.Second)*calendar.Seconds(c.NbOfLegs)
}

// walkScore is a.fallback_duration + a.transfers_duration +
// leg_walking_penalty * a.nb_of_legs.
func (p Params) walkScore(c Criteria) time.Duration {
	return c.FallbackDuration + c.TransfersDuration + p.LegWalkingPenalty*time.Duration(c.NbOfLegs)
}

// IsLowerThan is the dominance relation: a is at least as good as b on
// both axes. Both weak inequalities must hold.
func (p Params) IsLowerThan(a, b Criteria) bool {
	return p.arrivalScore(a) <= p.arrivalScore(b) && p.walkScore(a) <= p.walkScore(b)
}

// IsValid cuts criteria that exceed the leg bound or the overall duration
// budget measured from a query's departure instant.
func (p Params) IsValid(c Criteria, departure calendar.Seconds) bool {
	if c.NbOfLegs > p.MaxNbOfLegs {
		return false
	}
	if p.MaxJourneyDuration > 0 && c.Arrival > departure+seconds(p.MaxJourneyDuration) {
		return false
	}
	return true
}

// IsLowerThanBackward is the dominance relation used for anti-clockwise
// (arrive-by) search, where Criteria.Arrival instead holds the journey's
// departure instant: later is better on that axis, so the inequality
// flips; the walking/legs axis is unaffected.
func (p Params) IsLowerThanBackward(a, b Criteria) bool {
	return p.arrivalScore(a) >= p.arrivalScore(b) && p.walkScore(a) <= p.walkScore(b)
}

// IsValidBackward bounds an anti-clockwise criteria by the same leg count
// and by a departure instant no earlier than arrival-by minus the journey
// duration budget.
func (p Params) IsValidBackward(c Criteria, arriveBy calendar.Seconds) bool {
	if c.NbOfLegs > p.MaxNbOfLegs {
		return false
	}
	if p.MaxJourneyDuration > 0 && c.Arrival < arriveBy-seconds(p.MaxJourneyDuration) {
		return false
	}
	return true
}
