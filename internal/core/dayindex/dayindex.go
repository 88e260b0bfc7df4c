// Package dayindex implements C4, the day-to-timetable index: per
// vehicle-journey, an ordered mapping from DaysPattern to one of five
// base/real-time states, driven by the state machine in the journey
// planner's real-time application design.
package dayindex

import (
	"fmt"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/timetable"
)

// State is the tag of the five-variant union a DaysPattern maps to within a
// vehicle-journey's DaysMap.
type State int

const (
	// BaseOnly: the base schedule applies unchanged on these days.
	BaseOnly State = iota
	// BaseAndRealTime: the real-time view matches the base schedule.
	BaseAndRealTime
	// SplittedBaseRealTime: real-time modifies the base schedule.
	SplittedBaseRealTime
	// RealTimeOnly: no base schedule exists on these days.
	RealTimeOnly
	// Deleted: real-time cancels the base trip on these days.
	Deleted
)

func (s State) String() string {
	switch s {
	case BaseOnly:
		return "BaseOnly"
	case BaseAndRealTime:
		return "BaseAndRealTime"
	case SplittedBaseRealTime:
		return "SplittedBaseRealTime"
	case RealTimeOnly:
		return "RealTimeOnly"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Entry is one (pattern, state) association in a DaysMap, plus the
// timetable location(s) the pattern's days resolve to.
type Entry struct {
	Pattern        calendar.Pattern
	State          State
	BaseMission    timetable.MissionID
	BaseRow        timetable.RowIndex
	HasBase        bool
	RealTimeMission timetable.MissionID
	RealTimeRow    timetable.RowIndex
	HasRealTime    bool
}

// DaysMap is the per-vehicle-journey ordered mapping from DaysPattern to
// state. Invariant: the stored patterns partition the calendar — no two
// entries' patterns may intersect.
type DaysMap struct {
	entries []Entry
}

// NewDaysMap creates an empty DaysMap.
func NewDaysMap() *DaysMap { return &DaysMap{} }

// Entries returns the current (pattern, state) entries, in insertion
// order.
func (m *DaysMap) Entries() []Entry {
	return m.entries
}

// ErrOverlappingPattern is returned when an insertion's pattern is not
// disjoint from an already-stored pattern for this vehicle-journey.
type ErrOverlappingPattern struct {
	New, Existing calendar.Pattern
}

func (e *ErrOverlappingPattern) Error() string {
	return fmt.Sprintf("dayindex: pattern %d overlaps existing pattern %d", e.New, e.Existing)
}

// Insert adds a new (pattern, state) entry. The pattern must be disjoint
// from every pattern already stored under this key.
func (m *DaysMap) Insert(pool *calendar.Pool, entry Entry) error {
	for _, e := range m.entries {
		if !pool.IsEmpty(pool.Intersection(e.Pattern, entry.Pattern)) {
			return &ErrOverlappingPattern{New: entry.Pattern, Existing: e.Pattern}
		}
	}
	m.entries = append(m.entries, entry)
	return nil
}

// StateOn returns the entry whose pattern contains day, if any.
func (m *DaysMap) StateOn(pool *calendar.Pool, day calendar.Day) (Entry, bool) {
	for _, e := range m.entries {
		if pool.Contains(e.Pattern, day) {
			return e, true
		}
	}
	return Entry{}, false
}

// split removes the portion of an existing entry's pattern that intersects
// `affected`, replacing the entry with one covering only the unaffected
// days (dropped entirely if that becomes empty), and returns the
// intersection (the affected subset actually carved out of this entry).
func (m *DaysMap) split(pool *calendar.Pool, idx int, affected calendar.Pattern) calendar.Pattern {
	e := m.entries[idx]
	carved := pool.Intersection(e.Pattern, affected)
	if pool.IsEmpty(carved) {
		return carved
	}
	remaining := pool.Difference(e.Pattern, carved)
	if pool.IsEmpty(remaining) {
		m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
	} else {
		m.entries[idx].Pattern = remaining
	}
	return carved
}

// ApplyModification applies a real-time modification over `affected` days,
// following the state machine:
//
//	BaseOnly / BaseAndRealTime            -> SplittedBaseRealTime
//	SplittedBaseRealTime                  -> SplittedBaseRealTime (new rt)
//	RealTimeOnly                          -> RealTimeOnly (new rt)
//	(absent)                              -> RealTimeOnly
//
// Days of `affected` not covered by any existing entry are treated as
// "(absent)". rtMission/rtRow identify the new real-time timetable row.
func (m *DaysMap) ApplyModification(pool *calendar.Pool, affected calendar.Pattern, rtMission timetable.MissionID, rtRow timetable.RowIndex) error {
	remaining := affected
	for i := 0; i < len(m.entries) && !pool.IsEmpty(remaining); i++ {
		e := m.entries[i]
		carved := pool.Intersection(e.Pattern, remaining)
		if pool.IsEmpty(carved) {
			continue
		}
		m.split(pool, i, carved)
		i-- // the split may have removed or shrunk entries[i]; re-scan from i

		var newState State
		switch e.State {
		case BaseOnly, BaseAndRealTime:
			newState = SplittedBaseRealTime
		case SplittedBaseRealTime:
			newState = SplittedBaseRealTime
		case RealTimeOnly:
			newState = RealTimeOnly
		case Deleted:
			newState = SplittedBaseRealTime
		}
		entry := Entry{
			Pattern:         carved,
			State:           newState,
			RealTimeMission: rtMission,
			RealTimeRow:     rtRow,
			HasRealTime:     true,
		}
		if e.HasBase {
			entry.BaseMission, entry.BaseRow, entry.HasBase = e.BaseMission, e.BaseRow, true
		}
		if err := m.Insert(pool, entry); err != nil {
			return err
		}
		remaining = pool.Difference(remaining, carved)
	}
	if !pool.IsEmpty(remaining) {
		// (absent) -> RealTimeOnly
		if err := m.Insert(pool, Entry{
			Pattern:         remaining,
			State:           RealTimeOnly,
			RealTimeMission: rtMission,
			RealTimeRow:     rtRow,
			HasRealTime:     true,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDeletion applies a real-time NoService (cancellation) over
// `affected` days, following the state machine:
//
//	BaseOnly / BaseAndRealTime / SplittedBaseRealTime -> Deleted
//	RealTimeOnly                                      -> erased entirely
func (m *DaysMap) ApplyDeletion(pool *calendar.Pool, affected calendar.Pattern) {
	remaining := affected
	for i := 0; i < len(m.entries) && !pool.IsEmpty(remaining); i++ {
		e := m.entries[i]
		carved := pool.Intersection(e.Pattern, remaining)
		if pool.IsEmpty(carved) {
			continue
		}
		m.split(pool, i, carved)
		i--

		if e.State == RealTimeOnly {
			// erase: nothing re-inserted.
		} else {
			entry := Entry{Pattern: carved, State: Deleted}
			if e.HasBase {
				entry.BaseMission, entry.BaseRow, entry.HasBase = e.BaseMission, e.BaseRow, true
			}
			m.entries = append(m.entries, entry)
		}
		remaining = pool.Difference(remaining, carved)
	}
}

// ApplyReAddition applies a real-time re-add over `affected` days to
// previously Deleted entries:
//
//	Deleted -> BaseAndRealTime (if a base trip exists on the date) or RealTimeOnly
func (m *DaysMap) ApplyReAddition(pool *calendar.Pool, affected calendar.Pattern, rtMission timetable.MissionID, rtRow timetable.RowIndex) error {
	remaining := affected
	for i := 0; i < len(m.entries) && !pool.IsEmpty(remaining); i++ {
		e := m.entries[i]
		if e.State != Deleted {
			continue
		}
		carved := pool.Intersection(e.Pattern, remaining)
		if pool.IsEmpty(carved) {
			continue
		}
		m.split(pool, i, carved)
		i--

		entry := Entry{Pattern: carved, RealTimeMission: rtMission, RealTimeRow: rtRow, HasRealTime: true}
		if e.HasBase {
			entry.BaseMission, entry.BaseRow, entry.HasBase = e.BaseMission, e.BaseRow, true
			entry.State = BaseAndRealTime
		} else {
			entry.State = RealTimeOnly
		}
		if err := m.Insert(pool, entry); err != nil {
			return err
		}
		remaining = pool.Difference(remaining, carved)
	}
	return nil
}
