package transitgraph_test

import (
	"testing"
	"time"

	"github.com/samirrijal/transitplanner/internal/core/transitgraph"
)

func TestGraph_InternStopIsStableAndLazy(t *testing.T) {
	g := transitgraph.New()

	a := g.InternStop("massy")
	b := g.InternStop("paris")
	aAgain := g.InternStop("massy")

	if a != aAgain {
		t.Errorf("expected repeated InternStop to return the same index, got %d and %d", a, aAgain)
	}
	if a == b {
		t.Error("expected distinct stop ids to get distinct indices")
	}
	if g.NbOfStops() != 2 {
		t.Errorf("expected 2 stops, got %d", g.NbOfStops())
	}
}

func TestGraph_Transfers(t *testing.T) {
	g := transitgraph.New()
	a := g.InternStop("a")
	b := g.InternStop("b")

	g.AddTransfer(a, b, 3*time.Minute, 2*time.Minute)

	out := g.TransfersAt(a)
	if len(out) != 1 || out[0].To != b {
		t.Fatalf("expected one outgoing transfer to b, got %+v", out)
	}
	in := g.IncomingTransfersAt(b)
	if len(in) != 1 || in[0].To != a {
		t.Fatalf("expected one incoming transfer from a, got %+v", in)
	}
}

func TestGraph_Memberships(t *testing.T) {
	g := transitgraph.New()
	s := g.InternStop("s")
	g.AddMembership(s, transitgraph.MissionPosition{Mission: 4, Position: 2})

	got := g.MissionsAt(s)
	if len(got) != 1 || got[0].Mission != 4 || got[0].Position != 2 {
		t.Fatalf("unexpected memberships: %+v", got)
	}
}
