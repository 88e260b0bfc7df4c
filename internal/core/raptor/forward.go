package raptor

import (
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/timetable"
	"github.com/samirrijal/transitplanner/internal/core/transitgraph"
)

// solveForward runs the clockwise (depart-after) round body: step 1
// initialises departures, then each round scans marked missions forward,
// commits debarked/waiting fronts, and checks for destination arrivals.
func (s *search) solveForward() (Response, error) {
	cal := s.engine.data.Calendar()
	departureUTC := calendar.Seconds(s.req.Datetime.Sub(cal.FirstDatetime()) / time.Second)

	// 1. Initialise.
	for _, origin := range s.req.Origins {
		waitTime := departureUTC + seconds(origin.AccessDuration)
		dep := s.tree.Depart(origin.Stop, departureUTC)
		wait := s.tree.Wait(dep, origin.Stop, waitTime)
		crit := Criteria{Arrival: waitTime, FallbackDuration: origin.AccessDuration}
		s.newWaitingFronts.At(int(origin.Stop)).Add(Entry{Handle: wait, Criteria: crit}, s.isLower)
	}

	for round := 0; round < s.params.MaxNbOfLegs; round++ {
		missions := s.missionsWithNewWaiting(minPos)
		if len(missions) == 0 {
			break
		}

		newDebarked := make(Fronts)
		for mission, startPos := range missions {
			s.scanMissionForward(mission, startPos, newDebarked, departureUTC)
		}

		// 3. Commit debarked.
		for stop, front := range newDebarked {
			persistent := s.debarkedFronts.At(stop)
			for _, e := range front.Entries() {
				persistent.Add(e, s.isLower)
			}
		}

		// 4. Transfers and arrivals, both driven off new_debarked_fronts
		// directly. Arrival is checked only on entries that just debarked
		// at a destination stop, never on entries reached via an outgoing
		// transfer from one (those just become waiting entries for the
		// next round).
		s.checkArrivalsForward(newDebarked, departureUTC)
		s.newWaitingFronts = make(Fronts)
		for stopInt, front := range newDebarked {
			stop := transitgraph.StopIndex(stopInt)
			for _, e := range front.Entries() {
				s.expandTransfersForward(stop, e, departureUTC)
			}
		}

		// 5. Commit waitings.
		s.commitWaitings()
	}

	return s.materialise(), nil
}

func (s *search) scanMissionForward(mission timetable.MissionID, startPos int, newDebarked Fronts, departureUTC calendar.Seconds) {
	data := s.engine.data
	onboard := &Front{}
	nbPositions := data.NbOfPositionsOf(mission)

	for pos := startPos; pos < nbPositions; pos++ {
		stop := data.StopOf(mission, pos)
		flow := data.FlowOf(mission, pos)

		// (a) try boarding from newly-waiting passengers at this stop.
		if flow == timetable.BoardAndDebark || flow == timetable.BoardOnly {
			for _, w := range s.newWaitingFronts.At(int(stop)).Entries() {
				trip, boardUTC, ok := data.EarliestTripToBoardAt(w.Criteria.Arrival, mission, pos, s.req.RealTimeLevel, s.vf)
				if !ok {
					continue
				}
				crit := Criteria{
					Arrival:           boardUTC,
					NbOfLegs:          w.Criteria.NbOfLegs + 1,
					FallbackDuration:  w.Criteria.FallbackDuration,
					TransfersDuration: w.Criteria.TransfersDuration,
				}
				if !s.isValid(crit, departureUTC) {
					continue
				}
				node := s.tree.Board(w.Handle, trip, pos, boardUTC)
				onboard.Add(Entry{Handle: node, Criteria: crit, Trip: trip}, s.isLower)
			}
		}

		// (b) debark everyone currently onboard who can debark here.
		if pos > startPos && (flow == timetable.BoardAndDebark || flow == timetable.DebarkOnly) {
			for _, e := range onboard.Entries() {
				trip := e.Trip
				debarkUTC := data.DebarkTimeOf(trip, pos)
				crit := Criteria{
					Arrival:           debarkUTC,
					NbOfLegs:          e.Criteria.NbOfLegs,
					FallbackDuration:  e.Criteria.FallbackDuration,
					TransfersDuration: e.Criteria.TransfersDuration,
				}
				if !s.isValid(crit, departureUTC) {
					continue
				}
				node := s.tree.Debark(e.Handle, trip, pos, stop, debarkUTC)
				newDebarked.At(int(stop)).Add(Entry{Handle: node, Criteria: crit}, s.isLower)
			}
		}
	}
}

func (s *search) expandTransfersForward(stop transitgraph.StopIndex, e Entry, departureUTC calendar.Seconds) {
	data := s.engine.data
	for _, tr := range data.TransfersAt(stop) {
		arrivalUTC := e.Criteria.Arrival + seconds(tr.Duration)
		crit := Criteria{
			Arrival:           arrivalUTC,
			NbOfLegs:          e.Criteria.NbOfLegs,
			FallbackDuration:  e.Criteria.FallbackDuration,
			TransfersDuration: e.Criteria.TransfersDuration + tr.WalkingDuration,
		}
		if !s.isValid(crit, departureUTC) {
			continue
		}
		node := s.tree.Transfer(e.Handle, tr, arrivalUTC)
		s.newWaitingFronts.At(int(tr.To)).Add(Entry{Handle: node, Criteria: crit}, s.isLower)
	}
	// A debarked passenger is also, trivially, waiting at the stop they
	// debarked at (the zero-duration "stay put" transfer).
	s.newWaitingFronts.At(int(stop)).Add(e, s.isLower)
}

func (s *search) checkArrivalsForward(newDebarked Fronts, departureUTC calendar.Seconds) {
	for _, dest := range s.req.Destinations {
		front := newDebarked[int(dest.Stop)]
		if front == nil {
			continue
		}
		for _, e := range front.Entries() {
			arrivalUTC := e.Criteria.Arrival + seconds(dest.AccessDuration)
			crit := Criteria{
				Arrival:           arrivalUTC,
				NbOfLegs:          e.Criteria.NbOfLegs,
				FallbackDuration:  e.Criteria.FallbackDuration + dest.AccessDuration,
				TransfersDuration: e.Criteria.TransfersDuration,
			}
			if !s.isValid(crit, departureUTC) {
				continue
			}
			node := s.tree.Arrive(e.Handle, dest.Stop, arrivalUTC)
			s.arrivedFront.Add(Entry{Handle: node, Criteria: crit}, s.isLower)
		}
	}
}
