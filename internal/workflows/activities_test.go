package workflows_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/transitdata"
	"github.com/samirrijal/transitplanner/internal/workflows"
)

type stubFetcher struct {
	path string
	err  error
}

func (s *stubFetcher) FetchFeed(ctx context.Context, url string) (string, error) {
	return s.path, s.err
}

type stubBuilder struct {
	data *transitdata.TransitData
	err  error
}

func (s *stubBuilder) BuildFacade(ctx context.Context, agencySlug, feedPath string) (*transitdata.TransitData, error) {
	return s.data, s.err
}

type stubSwitcher struct {
	swapped    bool
	agencySlug string
	data       *transitdata.TransitData
}

func (s *stubSwitcher) Swap(agencySlug string, data *transitdata.TransitData) {
	s.swapped = true
	s.agencySlug = agencySlug
	s.data = data
}

func newTestFacade(t *testing.T) *transitdata.TransitData {
	t.Helper()
	cal, err := calendar.New(
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("unexpected error building calendar: %v", err)
	}
	return transitdata.New(cal)
}

func TestGTFSReloadActivities_FetchGTFSFeed(t *testing.T) {
	fetcher := &stubFetcher{path: "/tmp/feed.zip"}
	acts := workflows.NewGTFSReloadActivities(fetcher, &stubBuilder{}, &stubSwitcher{})

	path, err := acts.FetchGTFSFeed(context.Background(), "https://example.com/feed.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/tmp/feed.zip" {
		t.Fatalf("expected staged path, got %q", path)
	}
}

func TestGTFSReloadActivities_FetchGTFSFeed_WrapsError(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("boom")}
	acts := workflows.NewGTFSReloadActivities(fetcher, &stubBuilder{}, &stubSwitcher{})

	if _, err := acts.FetchGTFSFeed(context.Background(), "https://example.com/feed.zip"); err == nil {
		t.Fatal("expected error")
	}
}

func TestGTFSReloadActivities_BuildAndSwapIn(t *testing.T) {
	data := newTestFacade(t)
	builder := &stubBuilder{data: data}
	switcher := &stubSwitcher{}
	acts := workflows.NewGTFSReloadActivities(&stubFetcher{}, builder, switcher)

	shadowID, err := acts.BuildShadowFacade(context.Background(), "bilbobus", "/tmp/feed.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shadowID == "" {
		t.Fatal("expected non-empty shadow id")
	}

	if err := acts.SwapInFacade(context.Background(), shadowID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !switcher.swapped || switcher.agencySlug != "bilbobus" || switcher.data != data {
		t.Fatalf("expected facade swapped in for bilbobus, got %+v", switcher)
	}

	// The shadow is consumed by the swap: swapping the same id again fails.
	if err := acts.SwapInFacade(context.Background(), shadowID); err == nil {
		t.Fatal("expected error re-swapping a consumed shadow id")
	}
}

func TestGTFSReloadActivities_DiscardShadowFacade(t *testing.T) {
	builder := &stubBuilder{data: newTestFacade(t)}
	switcher := &stubSwitcher{}
	acts := workflows.NewGTFSReloadActivities(&stubFetcher{}, builder, switcher)

	shadowID, err := acts.BuildShadowFacade(context.Background(), "bilbobus", "/tmp/feed.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := acts.DiscardShadowFacade(context.Background(), shadowID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if switcher.swapped {
		t.Fatal("discarded shadow must never reach the switcher")
	}

	// Discarding twice is a no-op, not an error.
	if err := acts.DiscardShadowFacade(context.Background(), shadowID); err != nil {
		t.Fatalf("unexpected error discarding already-discarded shadow: %v", err)
	}
}
