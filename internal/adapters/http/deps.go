package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/transitplanner/internal/adapters/postgres"
	"github.com/samirrijal/transitplanner/internal/adapters/valkey"
	"github.com/samirrijal/transitplanner/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Stops         *usecases.StopService
	Routes        *usecases.RouteService
	Agencies      *usecases.AgencyService
	Departures    *usecases.DepartureService
	Trips         *usecases.TripService
	Journeys      *usecases.JourneyService
	Realtime      *usecases.RealtimeService
	NATS          *nats.Conn
	DB            *postgres.DB
	Cache         *valkey.Cache
}
