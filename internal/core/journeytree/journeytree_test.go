package journeytree_test

import (
	"testing"

	"github.com/samirrijal/transitplanner/internal/core/journeytree"
	"github.com/samirrijal/transitplanner/internal/core/transitdata"
	"github.com/samirrijal/transitplanner/internal/core/transitgraph"
)

func TestTree_PathReconstructsChronologicalOrder(t *testing.T) {
	tree := journeytree.New()

	origin := transitgraph.StopIndex(0)
	boardStop := transitgraph.StopIndex(1)
	destStop := transitgraph.StopIndex(2)

	dep := tree.Depart(origin, 1000)
	wait := tree.Wait(dep, boardStop, 1100)
	board := tree.Board(wait, transitdata.TripRef{Mission: 0, Row: 0, Day: 1}, 0, 1100)
	debark := tree.Debark(board, transitdata.TripRef{Mission: 0, Row: 0, Day: 1}, 3, destStop, 1600)
	arrive := tree.Arrive(debark, destStop, 1600)

	path := tree.Path(arrive)
	if len(path) != 5 {
		t.Fatalf("expected 5 nodes in path, got %d", len(path))
	}
	wantKinds := []journeytree.Kind{
		journeytree.Departure, journeytree.Waiting, journeytree.Boarded,
		journeytree.Debarked, journeytree.Arrived,
	}
	for i, k := range wantKinds {
		if path[i].Kind != k {
			t.Errorf("path[%d]: expected kind %v, got %v", i, k, path[i].Kind)
		}
	}
	if path[0].Time != 1000 || path[len(path)-1].Time != 1600 {
		t.Errorf("expected chronological times, got first=%d last=%d", path[0].Time, path[len(path)-1].Time)
	}
}

func TestTree_LegsGroupsRideAndSkipsWaiting(t *testing.T) {
	tree := journeytree.New()

	origin := transitgraph.StopIndex(0)
	mid := transitgraph.StopIndex(1)
	dest := transitgraph.StopIndex(2)

	dep := tree.Depart(origin, 0)
	wait := tree.Wait(dep, origin, 100)
	board := tree.Board(wait, transitdata.TripRef{Mission: 1}, 0, 100)
	debark := tree.Debark(board, transitdata.TripRef{Mission: 1}, 1, mid, 500)
	transfer := tree.Transfer(debark, transitgraph.Transfer{To: dest}, 600)
	arrive := tree.Arrive(transfer, dest, 600)

	legs := journeytree.Legs(tree.Path(arrive))
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs (ride + walk), got %d", len(legs))
	}
	if legs[0].Board == nil || legs[0].Debark == nil || legs[0].Transfer != nil {
		t.Errorf("expected first leg to be a ride leg, got %+v", legs[0])
	}
	if legs[1].Transfer == nil || legs[1].Board != nil {
		t.Errorf("expected second leg to be a walk leg, got %+v", legs[1])
	}
}

func TestTree_ResetClearsArena(t *testing.T) {
	tree := journeytree.New()
	tree.Depart(transitgraph.StopIndex(0), 0)
	tree.Depart(transitgraph.StopIndex(1), 10)
	tree.Reset()
	h := tree.Depart(transitgraph.StopIndex(2), 20)
	if h != 0 {
		t.Errorf("expected first handle after reset to be 0, got %d", h)
	}
}
