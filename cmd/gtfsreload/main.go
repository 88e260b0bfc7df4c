package main

import (
	"context"
	"log"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/transitplanner/internal/adapters/gtfsload"
	"github.com/samirrijal/transitplanner/internal/adapters/postgres"
	"github.com/samirrijal/transitplanner/internal/pkg/config"
	"github.com/samirrijal/transitplanner/internal/workflows"
)

func main() {
	cfg, err := config.Load("transitplanner-gtfsreload")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	firstDate := now.AddDate(0, 0, -cfg.GTFS.HorizonDaysPast)
	lastDate := now.AddDate(0, 0, cfg.GTFS.HorizonDaysFuture)

	ingester := gtfsload.NewIngester(db.Pool, cfg.GTFS.AgencySlug, cfg.GTFS.AgencyName)
	builder := gtfsload.NewFacadeBuilder(db, firstDate, lastDate)
	registry := gtfsload.NewFacadeRegistry()

	c, err := client.Dial(client.Options{
		HostPort: "localhost:7233",
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, "gtfs-reload-queue", worker.Options{})

	w.RegisterWorkflow(workflows.GTFSReloadWorkflow)
	activities := workflows.NewGTFSReloadActivities(ingester, builder, registry)
	w.RegisterActivity(activities)

	log.Println("gtfs reload worker started")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
