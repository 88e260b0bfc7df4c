// Package journeytree implements C7: an arena of journey-state nodes, each
// holding a handle to its parent, built up by the engine as it explores
// departures, boardings, debarkings, transfers and arrivals, and walked
// backwards to reconstruct a completed journey.
package journeytree

import (
	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/transitdata"
	"github.com/samirrijal/transitplanner/internal/core/transitgraph"
)

// Handle references a node within a Tree's arena.
type Handle int

// NoHandle marks the absence of a parent (a root Departure node).
const NoHandle Handle = -1

// Kind tags the six node variants a journey can be built from.
type Kind int

const (
	Departure Kind = iota
	Waiting
	Boarded
	Debarked
	Transferring
	Arrived
)

func (k Kind) String() string {
	switch k {
	case Departure:
		return "Departure"
	case Waiting:
		return "Waiting"
	case Boarded:
		return "Boarded"
	case Debarked:
		return "Debarked"
	case Transferring:
		return "Transferring"
	case Arrived:
		return "Arrived"
	default:
		return "Unknown"
	}
}

// Node is one step of a journey under construction. Only the fields
// meaningful for Kind are populated; the rest are zero.
type Node struct {
	Kind   Kind
	Parent Handle

	Stop transitgraph.StopIndex
	Time calendar.Seconds

	// Boarded / Debarked
	Trip     transitdata.TripRef
	Position int

	// Transferring
	Transfer transitgraph.Transfer
}

// Tree is an arena of Nodes, reset at the start of each query and owned
// exclusively by the goroutine running that query — it is never shared
// across queries or mutated concurrently.
type Tree struct {
	nodes []Node
}

// New creates an empty journey tree.
func New() *Tree { return &Tree{} }

// Reset clears the arena for a new query, reusing its backing storage.
func (t *Tree) Reset() { t.nodes = t.nodes[:0] }

func (t *Tree) push(n Node) Handle {
	t.nodes = append(t.nodes, n)
	return Handle(len(t.nodes) - 1)
}

// Node returns the node at a handle.
func (t *Tree) Node(h Handle) Node { return t.nodes[h] }

// Depart creates a root Departure node at a stop and time (an access leg's
// arrival at an origin stop, or the origin itself with zero access time).
func (t *Tree) Depart(stop transitgraph.StopIndex, departTime calendar.Seconds) Handle {
	return t.push(Node{Kind: Departure, Parent: NoHandle, Stop: stop, Time: departTime})
}

// Wait creates a Waiting node: a passenger present at a stop at a given
// time, available to board any mission callable from there.
func (t *Tree) Wait(parent Handle, stop transitgraph.StopIndex, waitTime calendar.Seconds) Handle {
	return t.push(Node{Kind: Waiting, Parent: parent, Stop: stop, Time: waitTime})
}

// Board creates a Boarded node: the passenger has boarded a trip at a
// position, at its board time.
func (t *Tree) Board(parent Handle, trip transitdata.TripRef, pos int, boardTime calendar.Seconds) Handle {
	return t.push(Node{Kind: Boarded, Parent: parent, Trip: trip, Position: pos, Time: boardTime})
}

// Debark creates a Debarked node: the passenger has left a trip at a
// position, at its debark time.
func (t *Tree) Debark(parent Handle, trip transitdata.TripRef, pos int, stop transitgraph.StopIndex, debarkTime calendar.Seconds) Handle {
	return t.push(Node{Kind: Debarked, Parent: parent, Trip: trip, Position: pos, Stop: stop, Time: debarkTime})
}

// Transfer creates a Transferring node: the passenger has walked a
// transfer edge, arriving at its destination stop at a given time.
func (t *Tree) Transfer(parent Handle, edge transitgraph.Transfer, arrivalTime calendar.Seconds) Handle {
	return t.push(Node{Kind: Transferring, Parent: parent, Stop: edge.To, Time: arrivalTime, Transfer: edge})
}

// Arrive creates an Arrived node: the journey has reached a destination
// stop. Arrived nodes are the only ones reported to the caller.
func (t *Tree) Arrive(parent Handle, stop transitgraph.StopIndex, arrivalTime calendar.Seconds) Handle {
	return t.push(Node{Kind: Arrived, Parent: parent, Stop: stop, Time: arrivalTime})
}

// Path walks parent pointers from h back to its root Departure and returns
// the nodes in chronological (departure-first) order.
func (t *Tree) Path(h Handle) []Node {
	var reversed []Node
	for cur := h; cur != NoHandle; cur = t.nodes[cur].Parent {
		reversed = append(reversed, t.nodes[cur])
	}
	path := make([]Node, len(reversed))
	for i, n := range reversed {
		path[len(reversed)-1-i] = n
	}
	return path
}

// Legs groups a Path into (Boarded, Debarked) ride pairs and
// (Transferring) walk legs, skipping the bookkeeping Waiting nodes; this
// is the shape the external Section representation is built from.
type Leg struct {
	Board    *Node // nil for a walk leg
	Debark   *Node // nil for a walk leg
	Transfer *Node // nil for a ride leg
}

// Legs extracts the ride/walk legs of a path produced by Path.
func Legs(path []Node) []Leg {
	var legs []Leg
	var pendingBoard *Node
	for i := range path {
		n := &path[i]
		switch n.Kind {
		case Boarded:
			b := *n
			pendingBoard = &b
		case Debarked:
			if pendingBoard != nil {
				d := *n
				legs = append(legs, Leg{Board: pendingBoard, Debark: &d})
				pendingBoard = nil
			}
		case Transferring:
			tr := *n
			legs = append(legs, Leg{Transfer: &tr})
		}
	}
	return legs
}
