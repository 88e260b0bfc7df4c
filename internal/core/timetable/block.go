// Package timetable implements C3, the columnar timetable store: trips
// grouped into pairwise-comparable Missions (blocks) with O(log n)
// earliest/latest-trip binary search, and in-place insert/remove for
// real-time edits.
package timetable

import (
	"fmt"
	"sort"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/transitgraph"
)

// FlowDirection describes, per stop-time, whether a trip accepts boarding,
// debarking, both, or neither at that position.
type FlowDirection int

const (
	BoardAndDebark FlowDirection = iota
	BoardOnly
	DebarkOnly
	NoBoardDebark
)

// VehicleJourneyRef is the sum type "Base vs New vehicle-journey index"
// from the design notes: a tagged integer index, with the disjunction
// resolved at the query layer (C5).
type VehicleJourneyRef struct {
	IsNew bool
	Index int
}

// MissionID identifies a Block within a Store.
type MissionID int

// RowIndex identifies one trip (row) within a Block.
type RowIndex int

// RowMeta is the per-row metadata stored alongside the columnar time
// arrays: vehicle-journey identity, base and real-time validity patterns,
// and the IANA timezone name stop-times are expressed in.
type RowMeta struct {
	VehicleJourney  VehicleJourneyRef
	BasePattern     calendar.Pattern
	RealTimePattern calendar.Pattern
	TimezoneName    string
}

// Block is a Mission: a maximal set of trips sharing the same
// (stop, flow-direction) position sequence, pairwise comparable under the
// pointwise time order, stored as parallel per-position columns.
type Block struct {
	StopSeq []transitgraph.StopIndex
	FlowSeq []FlowDirection

	// BoardTimesByPosition[pos][row] / DebarkTimesByPosition[pos][row]: row
	// order is identical across every column and across Rows.
	BoardTimesByPosition  [][]calendar.Seconds
	DebarkTimesByPosition [][]calendar.Seconds
	Rows                  []RowMeta
}

func newBlock(stops []transitgraph.StopIndex, flows []FlowDirection) *Block {
	b := &Block{
		StopSeq:               append([]transitgraph.StopIndex(nil), stops...),
		FlowSeq:                append([]FlowDirection(nil), flows...),
		BoardTimesByPosition:  make([][]calendar.Seconds, len(stops)),
		DebarkTimesByPosition: make([][]calendar.Seconds, len(stops)),
	}
	return b
}

// NbOfPositions returns the number of stop positions in this mission.
func (b *Block) NbOfPositions() int { return len(b.StopSeq) }

// NbOfRows returns the number of trips currently stored in this mission.
func (b *Block) NbOfRows() int { return len(b.Rows) }

// StopAt returns the stop at a given position.
func (b *Block) StopAt(pos int) transitgraph.StopIndex { return b.StopSeq[pos] }

// FlowAt returns the flow direction at a given position.
func (b *Block) FlowAt(pos int) FlowDirection { return b.FlowSeq[pos] }

// BoardTime returns the board time of a row at a position.
func (b *Block) BoardTime(row RowIndex, pos int) calendar.Seconds {
	return b.BoardTimesByPosition[pos][row]
}

// DebarkTime returns the debark time of a row at a position.
func (b *Block) DebarkTime(row RowIndex, pos int) calendar.Seconds {
	return b.DebarkTimesByPosition[pos][row]
}

// RowMetaOf returns the metadata of a row.
func (b *Block) RowMetaOf(row RowIndex) RowMeta { return b.Rows[row] }

// SetRealTimePattern overwrites the real-time validity pattern of a row,
// used by the real-time applier to clear or extend the days a row's
// real-time view is active on.
func (b *Block) SetRealTimePattern(row RowIndex, p calendar.Pattern) {
	b.Rows[row].RealTimePattern = p
}

// SetBasePattern overwrites the base validity pattern of a row.
func (b *Block) SetBasePattern(row RowIndex, p calendar.Pattern) {
	b.Rows[row].BasePattern = p
}

func (b *Block) rowTimes(i int) tripTimes {
	board := make([]calendar.Seconds, len(b.StopSeq))
	debark := make([]calendar.Seconds, len(b.StopSeq))
	for pos := range b.StopSeq {
		board[pos] = b.BoardTimesByPosition[pos][i]
		debark[pos] = b.DebarkTimesByPosition[pos][i]
	}
	return tripTimes{board: board, debark: debark}
}

type tripTimes struct {
	board  []calendar.Seconds
	debark []calendar.Seconds
}

type order int

const (
	orderLess order = iota
	orderEqual
	orderGreater
	orderIncomparable
)

// compareTimes implements the pointwise order used for block comparability
// and row tie-breaking (§9 open question: ties at position 0 are broken by
// the pointwise order on the full board+debark vectors).
func compareTimes(a, b tripTimes) order {
	allLE, allGE := true, true
	for i := range a.board {
		if a.board[i] > b.board[i] {
			allLE = false
		}
		if a.board[i] < b.board[i] {
			allGE = false
		}
		if a.debark[i] > b.debark[i] {
			allLE = false
		}
		if a.debark[i] < b.debark[i] {
			allGE = false
		}
	}
	switch {
	case allLE && allGE:
		return orderEqual
	case allLE:
		return orderLess
	case allGE:
		return orderGreater
	default:
		return orderIncomparable
	}
}

// VehicleTimesErrorKind classifies why a candidate trip's stop-times were
// rejected.
type VehicleTimesErrorKind int

const (
	NonMonotoneBoardColumn VehicleTimesErrorKind = iota
	NonMonotoneDebarkColumn
	BoardBeforeDebarkPreviousPosition
)

// VehicleTimesError reports a stop-time ordering violation, naming the
// positions involved; per §7 the ingestion path turns this into a
// per-trip warning and skips the trip rather than failing the whole load.
type VehicleTimesError struct {
	Kind      VehicleTimesErrorKind
	Positions []int
}

func (e *VehicleTimesError) Error() string {
	return fmt.Sprintf("vehicle times error kind=%d positions=%v", e.Kind, e.Positions)
}

// canBoardAt and canDebarkAt report whether a position's flow permits that
// half of the board/debark check: a BoardOnly position's debark time is
// unused by any rider and must not be compared against its neighbours, and
// symmetrically for a DebarkOnly position's board time.
func canBoardAt(flow FlowDirection) bool {
	return flow == BoardOnly || flow == BoardAndDebark
}

func canDebarkAt(flow FlowDirection) bool {
	return flow == DebarkOnly || flow == BoardAndDebark
}

// validateTimes checks board/debark monotonicity along a candidate trip,
// restricted per position to the side(s) its FlowDirection actually serves,
// then returns a corrected pair of columns where every BoardOnly position's
// debark time is set equal to its board time (and vice versa for
// DebarkOnly), so the stored vectors stay fully pointwise-comparable even
// though only one side of such a position is ever read through Filter.
func validateTimes(board, debark []calendar.Seconds, flows []FlowDirection) ([]calendar.Seconds, []calendar.Seconds, error) {
	prevPos, havePrev := -1, false
	for i := range board {
		if !canBoardAt(flows[i]) {
			continue
		}
		if havePrev && board[i] < board[prevPos] {
			return nil, nil, &VehicleTimesError{Kind: NonMonotoneBoardColumn, Positions: []int{prevPos, i}}
		}
		prevPos, havePrev = i, true
	}

	prevPos, havePrev = -1, false
	for i := range debark {
		if !canDebarkAt(flows[i]) {
			continue
		}
		if havePrev && debark[i] < debark[prevPos] {
			return nil, nil, &VehicleTimesError{Kind: NonMonotoneDebarkColumn, Positions: []int{prevPos, i}}
		}
		prevPos, havePrev = i, true
	}

	for i := 0; i+1 < len(board); i++ {
		if canBoardAt(flows[i]) && canDebarkAt(flows[i+1]) && board[i] > debark[i+1] {
			return nil, nil, &VehicleTimesError{Kind: BoardBeforeDebarkPreviousPosition, Positions: []int{i, i + 1}}
		}
	}

	correctedBoard := append([]calendar.Seconds(nil), board...)
	correctedDebark := append([]calendar.Seconds(nil), debark...)
	for i, flow := range flows {
		switch flow {
		case BoardOnly:
			correctedDebark[i] = correctedBoard[i]
		case DebarkOnly:
			correctedBoard[i] = correctedDebark[i]
		}
	}
	return correctedBoard, correctedDebark, nil
}

// tryInsert attempts to place a new row into the block. It succeeds iff the
// candidate is pointwise-comparable with every existing row; on success it
// returns the row index the trip was inserted at.
func (b *Block) tryInsert(board, debark []calendar.Seconds, meta RowMeta) (RowIndex, bool) {
	candidate := tripTimes{board: board, debark: debark}
	insertAt := 0
	for i := 0; i < len(b.Rows); i++ {
		existing := b.rowTimes(i)
		switch compareTimes(existing, candidate) {
		case orderIncomparable:
			return 0, false
		case orderLess, orderEqual:
			insertAt = i + 1
		}
	}
	for pos := range b.StopSeq {
		col := b.BoardTimesByPosition[pos]
		b.BoardTimesByPosition[pos] = append(col[:insertAt:insertAt], append([]calendar.Seconds{board[pos]}, col[insertAt:]...)...)
		dcol := b.DebarkTimesByPosition[pos]
		b.DebarkTimesByPosition[pos] = append(dcol[:insertAt:insertAt], append([]calendar.Seconds{debark[pos]}, dcol[insertAt:]...)...)
	}
	rows := b.Rows
	b.Rows = append(rows[:insertAt:insertAt], append([]RowMeta{meta}, rows[insertAt:]...)...)
	return RowIndex(insertAt), true
}

func (b *Block) deleteRow(row RowIndex) {
	for pos := range b.StopSeq {
		b.BoardTimesByPosition[pos] = append(b.BoardTimesByPosition[pos][:row], b.BoardTimesByPosition[pos][row+1:]...)
		b.DebarkTimesByPosition[pos] = append(b.DebarkTimesByPosition[pos][:row], b.DebarkTimesByPosition[pos][row+1:]...)
	}
	b.Rows = append(b.Rows[:row], b.Rows[row+1:]...)
}

func (b *Block) matchesSignature(stops []transitgraph.StopIndex, flows []FlowDirection) bool {
	if len(stops) != len(b.StopSeq) {
		return false
	}
	for i := range stops {
		if stops[i] != b.StopSeq[i] || flows[i] != b.FlowSeq[i] {
			return false
		}
	}
	return true
}

// Filter decides whether a row is an acceptable boarding/debarking
// candidate: days-pattern membership for the target day, real-time level,
// and any caller-supplied allowed/forbidden vehicle filter are all folded
// into this closure by the caller (C5), which alone knows the target day.
type Filter func(meta RowMeta) bool

// earliestBoardableRow binary-searches BoardTimesByPosition[pos] for the
// smallest row with board time >= waitingTime, then scans forward for the
// first row accepted by filter.
func (b *Block) earliestBoardableRow(pos int, waitingTime calendar.Seconds, filter Filter) (RowIndex, bool) {
	col := b.BoardTimesByPosition[pos]
	i := sort.Search(len(col), func(i int) bool { return col[i] >= waitingTime })
	for ; i < len(col); i++ {
		if filter(b.Rows[i]) {
			return RowIndex(i), true
		}
	}
	return 0, false
}

// latestDebarkableRow binary-searches DebarkTimesByPosition[pos] for the
// greatest row with debark time <= waitingTime, then scans backward for the
// first row accepted by filter.
func (b *Block) latestDebarkableRow(pos int, waitingTime calendar.Seconds, filter Filter) (RowIndex, bool) {
	col := b.DebarkTimesByPosition[pos]
	i := sort.Search(len(col), func(i int) bool { return col[i] > waitingTime }) - 1
	for ; i >= 0; i-- {
		if filter(b.Rows[i]) {
			return RowIndex(i), true
		}
	}
	return 0, false
}
