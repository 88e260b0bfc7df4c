package raptor

import (
	"github.com/samirrijal/transitplanner/internal/core/journeytree"
	"github.com/samirrijal/transitplanner/internal/core/transitdata"
)

// Entry pairs a journey-tree handle with the Criteria of the journey
// reaching that node. Trip is only meaningful for entries held in an
// onboard front, where it fixes which specific trip instance is being
// ridden so later positions can read off its board/debark times directly
// instead of re-searching.
type Entry struct {
	Handle   journeytree.Handle
	Criteria Criteria
	Trip     transitdata.TripRef
}

// Front is a Pareto front of non-dominated Entries, kept small by evicting
// any entry the newly-inserted one dominates.
type Front struct {
	entries []Entry
}

// Entries returns the current non-dominated entries.
func (f *Front) Entries() []Entry { return f.entries }

// Len reports how many entries the front currently holds.
func (f *Front) Len() int { return len(f.entries) }

// Add inserts e unless an existing entry weakly dominates it (isLower
// returns true for (existing, e)); any existing entry that e weakly
// dominates in turn is evicted. Reports whether e was kept.
func (f *Front) Add(e Entry, isLower func(a, b Criteria) bool) bool {
	for _, ex := range f.entries {
		if isLower(ex.Criteria, e.Criteria) {
			return false
		}
	}
	kept := f.entries[:0]
	for _, ex := range f.entries {
		if !isLower(e.Criteria, ex.Criteria) {
			kept = append(kept, ex)
		}
	}
	f.entries = append(kept, e)
	return true
}

// Fronts is a per-stop map of Pareto fronts, created lazily on first use.
type Fronts map[int]*Front

// At returns (creating if absent) the front for a stop index.
func (fr Fronts) At(stop int) *Front {
	f, ok := fr[stop]
	if !ok {
		f = &Front{}
		fr[stop] = f
	}
	return f
}
