package workflows

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/samirrijal/transitplanner/internal/core/transitdata"
	"github.com/samirrijal/transitplanner/internal/pkg/metrics"
)

// GTFSFeedFetcher downloads a GTFS feed to a local staging path.
type GTFSFeedFetcher interface {
	FetchFeed(ctx context.Context, url string) (path string, err error)
}

// GTFSFacadeBuilder parses a staged GTFS feed into a fresh, fully-loaded
// transit-data facade (C5), independent of whatever facade is currently
// live.
type GTFSFacadeBuilder interface {
	BuildFacade(ctx context.Context, agencySlug, feedPath string) (*transitdata.TransitData, error)
}

// LiveFacadeSwitcher swaps the process's live transit-data facade for a
// newly built one, atomically from the caller's perspective.
type LiveFacadeSwitcher interface {
	Swap(agencySlug string, data *transitdata.TransitData)
}

type shadowFacade struct {
	agencySlug string
	data       *transitdata.TransitData
}

// GTFSReloadActivities holds the activity implementations for
// GTFSReloadWorkflow. Shadow facades built mid-reload are held here,
// keyed by an opaque id, until the swap-in or discard activity consumes
// them.
type GTFSReloadActivities struct {
	Fetcher  GTFSFeedFetcher
	Builder  GTFSFacadeBuilder
	Switcher LiveFacadeSwitcher

	mu      sync.Mutex
	shadows map[string]shadowFacade
	nextID  int
}

// NewGTFSReloadActivities creates a GTFSReloadActivities.
func NewGTFSReloadActivities(fetcher GTFSFeedFetcher, builder GTFSFacadeBuilder, switcher LiveFacadeSwitcher) *GTFSReloadActivities {
	return &GTFSReloadActivities{
		Fetcher:  fetcher,
		Builder:  builder,
		Switcher: switcher,
		shadows:  make(map[string]shadowFacade),
	}
}

// FetchGTFSFeed stages a GTFS feed locally for parsing.
func (a *GTFSReloadActivities) FetchGTFSFeed(ctx context.Context, url string) (string, error) {
	path, err := a.Fetcher.FetchFeed(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetch GTFS feed %s: %w", url, err)
	}
	return path, nil
}

// BuildShadowFacade parses a staged feed into a new facade, not yet live.
func (a *GTFSReloadActivities) BuildShadowFacade(ctx context.Context, agencySlug, feedPath string) (string, error) {
	data, err := a.Builder.BuildFacade(ctx, agencySlug, feedPath)
	if err != nil {
		return "", fmt.Errorf("build shadow facade for %s: %w", agencySlug, err)
	}

	a.mu.Lock()
	a.nextID++
	id := fmt.Sprintf("shadow-%d", a.nextID)
	a.shadows[id] = shadowFacade{agencySlug: agencySlug, data: data}
	a.mu.Unlock()
	return id, nil
}

// SwapInFacade makes a previously-built shadow facade live.
func (a *GTFSReloadActivities) SwapInFacade(ctx context.Context, shadowID string) error {
	a.mu.Lock()
	shadow, ok := a.shadows[shadowID]
	delete(a.shadows, shadowID)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown shadow facade %s", shadowID)
	}

	a.Switcher.Swap(shadow.agencySlug, shadow.data)
	metrics.GTFSReloadsTotal.WithLabelValues(shadow.agencySlug, "success").Inc()
	log.Printf("facade swapped in for %s (shadow %s)", shadow.agencySlug, shadowID)
	return nil
}

// DiscardShadowFacade drops a shadow facade that never went live: the
// saga's compensating activity for a failed swap-in.
func (a *GTFSReloadActivities) DiscardShadowFacade(ctx context.Context, shadowID string) error {
	a.mu.Lock()
	shadow, ok := a.shadows[shadowID]
	delete(a.shadows, shadowID)
	a.mu.Unlock()
	if ok {
		metrics.GTFSReloadsTotal.WithLabelValues(shadow.agencySlug, "discarded").Inc()
	}
	log.Printf("shadow facade %s discarded", shadowID)
	return nil
}
