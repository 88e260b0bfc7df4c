package raptor

import (
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/timetable"
	"github.com/samirrijal/transitplanner/internal/core/transitgraph"
)

// solveBackward runs the anti-clockwise (arrive-by) round body: the
// mirror image of solveForward, propagating from the destinations towards
// the origins, searching latest-debarking trips instead of
// earliest-boardable ones and maximising the departure instant instead of
// minimising the arrival instant.
func (s *search) solveBackward() (Response, error) {
	cal := s.engine.data.Calendar()
	arriveByUTC := calendar.Seconds(s.req.Datetime.Sub(cal.FirstDatetime()) / time.Second)

	// 1. Initialise: destinations become the search's starting points.
	for _, dest := range s.req.Destinations {
		waitTime := arriveByUTC - seconds(dest.AccessDuration)
		dep := s.tree.Depart(dest.Stop, arriveByUTC)
		wait := s.tree.Wait(dep, dest.Stop, waitTime)
		crit := Criteria{Arrival: waitTime, FallbackDuration: dest.AccessDuration}
		s.newWaitingFronts.At(int(dest.Stop)).Add(Entry{Handle: wait, Criteria: crit}, s.isLower)
	}

	for round := 0; round < s.params.MaxNbOfLegs; round++ {
		missions := s.missionsWithNewWaiting(maxPos)
		if len(missions) == 0 {
			break
		}

		newBoarded := make(Fronts)
		for mission, startPos := range missions {
			s.scanMissionBackward(mission, startPos, newBoarded, arriveByUTC)
		}

		// 3. Commit (the "boarded" analogue of forward's debarked commit).
		for stop, front := range newBoarded {
			persistent := s.debarkedFronts.At(stop)
			for _, e := range front.Entries() {
				persistent.Add(e, s.isLower)
			}
		}

		// 4. Transfers (walked incoming) and arrivals (origins reached),
		// both driven off new_boarded directly. Arrival is checked only
		// on entries that just boarded/attached at an origin stop, never
		// on entries reached via an incoming transfer from one (those just
		// become waiting entries for the next round).
		s.checkArrivalsBackward(newBoarded, arriveByUTC)
		s.newWaitingFronts = make(Fronts)
		for stopInt, front := range newBoarded {
			stop := transitgraph.StopIndex(stopInt)
			for _, e := range front.Entries() {
				s.expandTransfersBackward(stop, e, arriveByUTC)
			}
		}

		// 5. Commit waitings.
		s.commitWaitings()
	}

	return s.materialise(), nil
}

func (s *search) scanMissionBackward(mission timetable.MissionID, startPos int, newBoarded Fronts, arriveByUTC calendar.Seconds) {
	data := s.engine.data
	onboard := &Front{}

	for pos := startPos; pos >= 0; pos-- {
		stop := data.StopOf(mission, pos)
		flow := data.FlowOf(mission, pos)

		// (a) attach to a trip: the latest trip debarking here no later
		// than a waiting passenger's required arrival instant.
		if flow == timetable.BoardAndDebark || flow == timetable.DebarkOnly {
			for _, w := range s.newWaitingFronts.At(int(stop)).Entries() {
				trip, debarkUTC, ok := data.LatestTripThatDebarksAt(w.Criteria.Arrival, mission, pos, s.req.RealTimeLevel, s.vf)
				if !ok {
					continue
				}
				crit := Criteria{
					Arrival:           debarkUTC,
					NbOfLegs:          w.Criteria.NbOfLegs + 1,
					FallbackDuration:  w.Criteria.FallbackDuration,
					TransfersDuration: w.Criteria.TransfersDuration,
				}
				if !s.isValid(crit, arriveByUTC) {
					continue
				}
				node := s.tree.Debark(w.Handle, trip, pos, stop, debarkUTC)
				onboard.Add(Entry{Handle: node, Criteria: crit, Trip: trip}, s.isLower)
			}
		}

		// (b) propagate backward along the ride: board time at every
		// earlier position this trip can still be boarded at.
		if pos < startPos && (flow == timetable.BoardAndDebark || flow == timetable.BoardOnly) {
			for _, e := range onboard.Entries() {
				trip := e.Trip
				boardUTC := data.BoardTimeOf(trip, pos)
				crit := Criteria{
					Arrival:           boardUTC,
					NbOfLegs:          e.Criteria.NbOfLegs,
					FallbackDuration:  e.Criteria.FallbackDuration,
					TransfersDuration: e.Criteria.TransfersDuration,
				}
				if !s.isValid(crit, arriveByUTC) {
					continue
				}
				node := s.tree.Board(e.Handle, trip, pos, boardUTC)
				newBoarded.At(int(stop)).Add(Entry{Handle: node, Criteria: crit}, s.isLower)
			}
		}
	}
}

func (s *search) expandTransfersBackward(stop transitgraph.StopIndex, e Entry, arriveByUTC calendar.Seconds) {
	data := s.engine.data
	for _, tr := range data.IncomingTransfersAt(stop) {
		// tr.To names the edge's origin stop for an incoming transfer.
		departureUTC := e.Criteria.Arrival - seconds(tr.Duration)
		crit := Criteria{
			Arrival:           departureUTC,
			NbOfLegs:          e.Criteria.NbOfLegs,
			FallbackDuration:  e.Criteria.FallbackDuration,
			TransfersDuration: e.Criteria.TransfersDuration + tr.WalkingDuration,
		}
		if !s.isValid(crit, arriveByUTC) {
			continue
		}
		node := s.tree.Transfer(e.Handle, tr, departureUTC)
		s.newWaitingFronts.At(int(tr.To)).Add(Entry{Handle: node, Criteria: crit}, s.isLower)
	}
	s.newWaitingFronts.At(int(stop)).Add(e, s.isLower)
}

func (s *search) checkArrivalsBackward(newBoarded Fronts, arriveByUTC calendar.Seconds) {
	for _, origin := range s.req.Origins {
		front := newBoarded[int(origin.Stop)]
		if front == nil {
			continue
		}
		for _, e := range front.Entries() {
			departureUTC := e.Criteria.Arrival - seconds(origin.AccessDuration)
			crit := Criteria{
				Arrival:           departureUTC,
				NbOfLegs:          e.Criteria.NbOfLegs,
				FallbackDuration:  e.Criteria.FallbackDuration + origin.AccessDuration,
				TransfersDuration: e.Criteria.TransfersDuration,
			}
			if !s.isValid(crit, arriveByUTC) {
				continue
			}
			node := s.tree.Arrive(e.Handle, origin.Stop, departureUTC)
			s.arrivedFront.Add(Entry{Handle: node, Criteria: crit}, s.isLower)
		}
	}
}
