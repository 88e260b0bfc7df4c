package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samirrijal/transitplanner/internal/core/domain"
	"github.com/samirrijal/transitplanner/internal/core/ports"
)

// journeyCacheTTLSeconds bounds how stale a served journey response may be:
// short enough that a just-applied disruption is reflected on the next
// request for the same origin/destination/minute, long enough to absorb
// repeat searches during a single rider session.
const journeyCacheTTLSeconds = 30

// JourneyService handles journey planning between stops.
type JourneyService struct {
	planner ports.JourneyPlanner
	stops   ports.StopRepository
	cache   ports.CacheService
}

// NewJourneyService creates a new JourneyService. cache may be nil, in
// which case every search bypasses the cache.
func NewJourneyService(planner ports.JourneyPlanner, stops ports.StopRepository, cache ports.CacheService) *JourneyService {
	return &JourneyService{planner: planner, stops: stops, cache: cache}
}

// PlanJourney finds Pareto-optimal journeys between two stops.
func (s *JourneyService) PlanJourney(ctx context.Context, fromStopID, toStopID string, departAt *time.Time, maxTransfers int) (domain.JourneysResponse, error) {
	if fromStopID == "" || toStopID == "" {
		return domain.JourneysResponse{}, fmt.Errorf("from and to stop IDs are required")
	}
	if fromStopID == toStopID {
		return domain.JourneysResponse{}, fmt.Errorf("from and to stops must be different")
	}

	depTime := time.Now()
	if departAt != nil {
		depTime = *departAt
	}

	if maxTransfers < 0 || maxTransfers > 10 {
		maxTransfers = 5
	}

	req := domain.JourneysRequest{
		Origins:       []domain.AccessLeg{{StopID: fromStopID}},
		Destinations:  []domain.AccessLeg{{StopID: toStopID}},
		Datetime:      depTime,
		Clockwise:     true,
		MaxDuration:   6 * time.Hour,
		MaxTransfers:  maxTransfers,
		RealTimeLevel: domain.Realtime,
	}

	cacheKey := fmt.Sprintf("journeys:%s:%s:%d:%d", fromStopID, toStopID, depTime.Truncate(time.Minute).Unix(), maxTransfers)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var resp domain.JourneysResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				return resp, nil
			}
		}
	}

	resp, err := s.planner.PlanJourneys(ctx, req)
	if err != nil {
		return resp, err
	}

	if s.cache != nil && resp.Error == nil {
		if data, err := json.Marshal(resp); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, journeyCacheTTLSeconds)
		}
	}

	return resp, nil
}

// PlanJourneyByName finds stops by name first, then plans a journey.
func (s *JourneyService) PlanJourneyByName(ctx context.Context, fromName, toName string, departAt *time.Time) (domain.JourneysResponse, error) {
	fromStops, err := s.stops.Search(ctx, fromName, nil, 1)
	if err != nil || len(fromStops) == 0 {
		return domain.JourneysResponse{}, fmt.Errorf("origin stop not found: %s", fromName)
	}

	toStops, err := s.stops.Search(ctx, toName, nil, 1)
	if err != nil || len(toStops) == 0 {
		return domain.JourneysResponse{}, fmt.Errorf("destination stop not found: %s", toName)
	}

	return s.PlanJourney(ctx, fromStops[0].ID, toStops[0].ID, departAt, 5)
}
