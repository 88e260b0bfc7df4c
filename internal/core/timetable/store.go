package timetable

import (
	"strconv"
	"strings"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/transitgraph"
)

// Store holds every Mission (Block), keyed first by (stop_sequence,
// flow_sequence) signature so insertion only has to scan blocks that share
// a trip's stop pattern.
type Store struct {
	missions        []*Block
	bySignature     map[string][]MissionID
}

// NewStore creates an empty timetable store.
func NewStore() *Store {
	return &Store{bySignature: make(map[string][]MissionID)}
}

// Mission returns the Block for a MissionID.
func (s *Store) Mission(id MissionID) *Block { return s.missions[id] }

// NbOfMissions returns the number of missions (blocks) in the store.
func (s *Store) NbOfMissions() int { return len(s.missions) }

func signatureOf(stops []transitgraph.StopIndex, flows []FlowDirection) string {
	var sb strings.Builder
	for i, s := range stops {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(strconv.Itoa(int(s)))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(int(flows[i])))
	}
	return sb.String()
}

// InsertTrip validates stop-times and inserts a new row into a comparable
// existing mission with a matching signature, or creates a new mission if
// none is comparable. Returns the (mission, row) the trip was stored at.
func (s *Store) InsertTrip(
	stops []transitgraph.StopIndex,
	flows []FlowDirection,
	board, debark []calendar.Seconds,
	meta RowMeta,
) (MissionID, RowIndex, error) {
	board, debark, err := validateTimes(board, debark, flows)
	if err != nil {
		return 0, 0, err
	}

	sig := signatureOf(stops, flows)
	for _, mid := range s.bySignature[sig] {
		b := s.missions[mid]
		if !b.matchesSignature(stops, flows) {
			continue
		}
		if row, ok := b.tryInsert(board, debark, meta); ok {
			return mid, row, nil
		}
	}

	b := newBlock(stops, flows)
	row, _ := b.tryInsert(board, debark, meta)
	mid := MissionID(len(s.missions))
	s.missions = append(s.missions, b)
	s.bySignature[sig] = append(s.bySignature[sig], mid)
	return mid, row, nil
}

// RemoveTrip deletes a row from a mission, preserving column alignment.
// Per §4.3 the caller (C4/C5) is responsible for first clearing the
// relevant day from the row's days-patterns and only calling RemoveTrip
// once both patterns are empty.
func (s *Store) RemoveTrip(mission MissionID, row RowIndex) {
	s.missions[mission].deleteRow(row)
}

// EarliestTripToBoardAt finds the earliest row in a mission that can be
// boarded at a position no earlier than waitingTime and is accepted by
// filter.
func (s *Store) EarliestTripToBoardAt(mission MissionID, pos int, waitingTime calendar.Seconds, filter Filter) (RowIndex, bool) {
	return s.missions[mission].earliestBoardableRow(pos, waitingTime, filter)
}

// LatestTripThatDebarksAt finds the latest row in a mission that debarks at
// a position no later than waitingTime and is accepted by filter.
func (s *Store) LatestTripThatDebarksAt(mission MissionID, pos int, waitingTime calendar.Seconds, filter Filter) (RowIndex, bool) {
	return s.missions[mission].latestDebarkableRow(pos, waitingTime, filter)
}

// RowMetaOf returns the metadata of a row in a mission.
func (s *Store) RowMetaOf(mission MissionID, row RowIndex) RowMeta {
	return s.missions[mission].RowMetaOf(row)
}

// SetRealTimePattern overwrites the real-time validity pattern of a row.
func (s *Store) SetRealTimePattern(mission MissionID, row RowIndex, p calendar.Pattern) {
	s.missions[mission].SetRealTimePattern(row, p)
}

// SetBasePattern overwrites the base validity pattern of a row.
func (s *Store) SetBasePattern(mission MissionID, row RowIndex, p calendar.Pattern) {
	s.missions[mission].SetBasePattern(row, p)
}

// RemoveRowIfEmpty deletes a row once both its base and real-time patterns
// are empty, per §4.3's removal rule.
func (s *Store) RemoveRowIfEmpty(mission MissionID, row RowIndex, pool *calendar.Pool) {
	meta := s.RowMetaOf(mission, row)
	if pool.IsEmpty(meta.BasePattern) && pool.IsEmpty(meta.RealTimePattern) {
		s.RemoveTrip(mission, row)
	}
}
