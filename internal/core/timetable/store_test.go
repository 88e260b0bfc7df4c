package timetable_test

import (
	"errors"
	"testing"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/timetable"
	"github.com/samirrijal/transitplanner/internal/core/transitgraph"
)

func seconds(vals ...int) []calendar.Seconds {
	out := make([]calendar.Seconds, len(vals))
	for i, v := range vals {
		out[i] = calendar.Seconds(v)
	}
	return out
}

func flows(n int) []timetable.FlowDirection {
	out := make([]timetable.FlowDirection, n)
	for i := range out {
		out[i] = timetable.BoardAndDebark
	}
	return out
}

func TestStore_InsertComparableRowsShareMission(t *testing.T) {
	s := timetable.NewStore()
	stops := []transitgraph.StopIndex{0, 1, 2}

	mid1, _, err := s.InsertTrip(stops, flows(3), seconds(0, 100, 200), seconds(0, 100, 200), timetable.RowMeta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mid2, _, err := s.InsertTrip(stops, flows(3), seconds(50, 150, 250), seconds(50, 150, 250), timetable.RowMeta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mid1 != mid2 {
		t.Errorf("expected comparable trips to share a mission, got %d and %d", mid1, mid2)
	}
	if s.Mission(mid1).NbOfRows() != 2 {
		t.Errorf("expected 2 rows in mission, got %d", s.Mission(mid1).NbOfRows())
	}
}

func TestStore_IncomparableRowsSplitMissions(t *testing.T) {
	s := timetable.NewStore()
	stops := []transitgraph.StopIndex{0, 1, 2}

	mid1, _, _ := s.InsertTrip(stops, flows(3), seconds(0, 200, 400), seconds(0, 200, 400), timetable.RowMeta{})
	// Crosses: earlier at position 0 but later at position 2.
	mid2, _, _ := s.InsertTrip(stops, flows(3), seconds(10, 100, 500), seconds(10, 100, 500), timetable.RowMeta{})

	if mid1 == mid2 {
		t.Error("expected crossing trips to be split into different missions")
	}
}

func TestStore_RejectsNonMonotoneTimes(t *testing.T) {
	s := timetable.NewStore()
	stops := []transitgraph.StopIndex{0, 1, 2}

	_, _, err := s.InsertTrip(stops, flows(3), seconds(100, 50, 200), seconds(100, 50, 200), timetable.RowMeta{})
	if err == nil {
		t.Fatal("expected VehicleTimesError for non-monotone board column")
	}
	var vte *timetable.VehicleTimesError
	if !errors.As(err, &vte) {
		t.Fatalf("expected VehicleTimesError, got %T: %v", err, err)
	}
}

func TestStore_FlowDirectionGatesMonotonicityCheck(t *testing.T) {
	s := timetable.NewStore()
	stops := []transitgraph.StopIndex{0, 1, 2}
	// Position 1 is DebarkOnly, so its board time (never read by any
	// rider) is free to look non-monotone without tripping the board
	// column's increasing check.
	flowSeq := []timetable.FlowDirection{
		timetable.BoardAndDebark,
		timetable.DebarkOnly,
		timetable.BoardAndDebark,
	}
	board := seconds(0, 9999, 200)
	debark := seconds(0, 100, 200)

	mid, row, err := s.InsertTrip(stops, flowSeq, board, debark, timetable.RowMeta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Mission(mid).BoardTime(row, 1); got != 100 {
		t.Errorf("expected DebarkOnly position's board time corrected to its debark time 100, got %d", got)
	}
}

func TestStore_BoardOnlyPositionDebarkCorrected(t *testing.T) {
	s := timetable.NewStore()
	stops := []transitgraph.StopIndex{0, 1}
	flowSeq := []timetable.FlowDirection{timetable.BoardAndDebark, timetable.BoardOnly}

	mid, row, err := s.InsertTrip(stops, flowSeq, seconds(0, 100), seconds(0, 9999), timetable.RowMeta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Mission(mid).DebarkTime(row, 1); got != 100 {
		t.Errorf("expected BoardOnly position's debark time corrected to its board time 100, got %d", got)
	}
}

func TestStore_EarliestTripToBoardAt(t *testing.T) {
	s := timetable.NewStore()
	stops := []transitgraph.StopIndex{0, 1, 2}
	acceptAll := func(timetable.RowMeta) bool { return true }

	s.InsertTrip(stops, flows(3), seconds(0, 100, 200), seconds(0, 100, 200), timetable.RowMeta{})
	mid, _, _ := s.InsertTrip(stops, flows(3), seconds(500, 600, 700), seconds(500, 600, 700), timetable.RowMeta{})

	row, ok := s.EarliestTripToBoardAt(mid, 0, 300, acceptAll)
	if !ok {
		t.Fatal("expected a boardable trip")
	}
	if s.Mission(mid).BoardTime(row, 0) != 500 {
		t.Errorf("expected board time 500, got %d", s.Mission(mid).BoardTime(row, 0))
	}
}

func TestStore_EarliestTripToBoardAt_Filtered(t *testing.T) {
	s := timetable.NewStore()
	stops := []transitgraph.StopIndex{0, 1}

	mid, _, _ := s.InsertTrip(stops, flows(2), seconds(0, 100), seconds(0, 100), timetable.RowMeta{TimezoneName: "skip"})
	s.InsertTrip(stops, flows(2), seconds(500, 600), seconds(500, 600), timetable.RowMeta{TimezoneName: "take"})

	filter := func(m timetable.RowMeta) bool { return m.TimezoneName == "take" }
	row, ok := s.EarliestTripToBoardAt(mid, 0, 0, filter)
	if !ok {
		t.Fatal("expected a filtered boardable trip")
	}
	if s.Mission(mid).RowMetaOf(row).TimezoneName != "take" {
		t.Error("expected filter to skip the non-matching row")
	}
}

func TestStore_LatestTripThatDebarksAt(t *testing.T) {
	s := timetable.NewStore()
	stops := []transitgraph.StopIndex{0, 1}
	acceptAll := func(timetable.RowMeta) bool { return true }

	s.InsertTrip(stops, flows(2), seconds(0, 100), seconds(0, 100), timetable.RowMeta{})
	mid, _, _ := s.InsertTrip(stops, flows(2), seconds(200, 300), seconds(200, 300), timetable.RowMeta{})

	row, ok := s.LatestTripThatDebarksAt(mid, 1, 250, acceptAll)
	if !ok {
		t.Fatal("expected a debarkable trip")
	}
	if s.Mission(mid).DebarkTime(row, 1) != 100 {
		t.Errorf("expected debark time 100, got %d", s.Mission(mid).DebarkTime(row, 1))
	}
}

func TestStore_RemoveTrip(t *testing.T) {
	s := timetable.NewStore()
	stops := []transitgraph.StopIndex{0, 1}

	mid, row, _ := s.InsertTrip(stops, flows(2), seconds(0, 100), seconds(0, 100), timetable.RowMeta{})
	s.InsertTrip(stops, flows(2), seconds(200, 300), seconds(200, 300), timetable.RowMeta{})

	s.RemoveTrip(mid, row)
	if s.Mission(mid).NbOfRows() != 1 {
		t.Errorf("expected 1 row after removal, got %d", s.Mission(mid).NbOfRows())
	}
	if s.Mission(mid).BoardTime(0, 0) != 200 {
		t.Errorf("expected remaining row to be the 200 row, got board time %d", s.Mission(mid).BoardTime(0, 0))
	}
}
