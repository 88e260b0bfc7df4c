// Package gtfsload implements the activities the GTFS reload workflow
// depends on: fetching and ingesting a GTFS static feed into Postgres, and
// building a fresh in-memory facade from whatever is currently ingested
// there. It adapts cmd/ingestor's CSV-to-SQL pipeline into a reusable
// library, since the workflow needs it as a Go value rather than a
// one-shot CLI run.
package gtfsload

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/transitplanner/internal/adapters/postgres"
	"github.com/samirrijal/transitplanner/internal/core/calendar"
	"github.com/samirrijal/transitplanner/internal/core/transitdata"
)

// Ingester downloads a GTFS static feed and upserts it into Postgres,
// implementing workflows.GTFSFeedFetcher. The returned "path" is an opaque
// revision token (the feed URL plus the ingest timestamp), since nothing
// downstream needs the raw CSVs once they are in Postgres.
type Ingester struct {
	Pool       *pgxpool.Pool
	HTTPClient *http.Client
	AgencySlug string
	AgencyName string
}

// NewIngester creates an Ingester with a sensibly-timed default client.
func NewIngester(pool *pgxpool.Pool, agencySlug, agencyName string) *Ingester {
	return &Ingester{
		Pool:       pool,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		AgencySlug: agencySlug,
		AgencyName: agencyName,
	}
}

// FetchFeed implements workflows.GTFSFeedFetcher.
func (g *Ingester) FetchFeed(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}

	agencyID, err := g.upsertAgency(ctx, url)
	if err != nil {
		return "", fmt.Errorf("upsert agency: %w", err)
	}
	if err := g.processStops(ctx, zr, agencyID); err != nil {
		return "", fmt.Errorf("stops: %w", err)
	}
	if err := g.processRoutes(ctx, zr, agencyID); err != nil {
		return "", fmt.Errorf("routes: %w", err)
	}
	if err := g.processTrips(ctx, zr, agencyID); err != nil {
		return "", fmt.Errorf("trips: %w", err)
	}
	if err := g.processStopTimes(ctx, zr, agencyID); err != nil {
		return "", fmt.Errorf("stop_times: %w", err)
	}

	return fmt.Sprintf("%s@%s", url, time.Now().UTC().Format(time.RFC3339)), nil
}

func (g *Ingester) upsertAgency(ctx context.Context, feedURL string) (string, error) {
	var id string
	err := g.Pool.QueryRow(ctx, `
		INSERT INTO agencies (slug, name, url, timezone)
		VALUES ($1, $2, $3, 'Europe/Madrid')
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, url = EXCLUDED.url
		RETURNING id
	`, g.AgencySlug, g.AgencyName, feedURL).Scan(&id)
	return id, err
}

func (g *Ingester) processStops(ctx context.Context, zr *zip.Reader, agencyID string) error {
	f, err := openCSV(zr, "stops.txt")
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return err
	}
	cols := indexColumns(header)

	batch := &pgx.Batch{}
	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		stopID := strings.TrimSpace(record[cols["stop_id"]])
		name := strings.TrimSpace(record[cols["stop_name"]])
		lat, _ := strconv.ParseFloat(strings.TrimSpace(record[cols["stop_lat"]]), 64)
		lon, _ := strconv.ParseFloat(strings.TrimSpace(record[cols["stop_lon"]]), 64)
		if lat == 0 && lon == 0 {
			continue
		}
		batch.Queue(`
			INSERT INTO stops (stop_id, agency_id, name, location)
			VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography)
			ON CONFLICT (agency_id, stop_id) DO UPDATE
			SET name = EXCLUDED.name, location = EXCLUDED.location
		`, stopID, agencyID, name, lon, lat)
		count++
		if count >= 500 {
			if err := g.flush(ctx, batch, count); err != nil {
				return err
			}
			batch, count = &pgx.Batch{}, 0
		}
	}
	if count > 0 {
		return g.flush(ctx, batch, count)
	}
	return nil
}

func (g *Ingester) processRoutes(ctx context.Context, zr *zip.Reader, agencyID string) error {
	f, err := openCSV(zr, "routes.txt")
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return err
	}
	cols := indexColumns(header)

	batch := &pgx.Batch{}
	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		routeID := record[cols["route_id"]]
		shortName := getField(record, cols, "route_short_name")
		longName := getField(record, cols, "route_long_name")
		color := getField(record, cols, "route_color")
		if longName == "" {
			longName = shortName
		}
		if color == "" {
			color = "000000"
		}
		batch.Queue(`
			INSERT INTO routes (route_id, agency_id, short_name, long_name, color)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (agency_id, route_id) DO UPDATE
			SET short_name = EXCLUDED.short_name, long_name = EXCLUDED.long_name, color = EXCLUDED.color
		`, routeID, agencyID, shortName, longName, color)
		count++
	}
	if count > 0 {
		return g.flush(ctx, batch, count)
	}
	return nil
}

func (g *Ingester) processTrips(ctx context.Context, zr *zip.Reader, agencyID string) error {
	f, err := openCSV(zr, "trips.txt")
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return err
	}
	cols := indexColumns(header)

	batch := &pgx.Batch{}
	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		tripID := record[cols["trip_id"]]
		routeID := record[cols["route_id"]]
		serviceID := record[cols["service_id"]]
		batch.Queue(`
			INSERT INTO trips (trip_id, route_id, service_id)
			VALUES ($1, (SELECT id FROM routes WHERE route_id = $2 AND agency_id = $3), $4)
			ON CONFLICT (route_id, trip_id) DO UPDATE SET service_id = EXCLUDED.service_id
		`, tripID, routeID, agencyID, serviceID)
		count++
		if count >= 500 {
			if err := g.flush(ctx, batch, count); err != nil {
				return err
			}
			batch, count = &pgx.Batch{}, 0
		}
	}
	if count > 0 {
		return g.flush(ctx, batch, count)
	}
	return nil
}

func (g *Ingester) processStopTimes(ctx context.Context, zr *zip.Reader, agencyID string) error {
	f, err := openCSV(zr, "stop_times.txt")
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return err
	}
	cols := indexColumns(header)

	batch := &pgx.Batch{}
	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		tripID := record[cols["trip_id"]]
		stopID := record[cols["stop_id"]]
		arrival := parseGTFSTime(record[cols["arrival_time"]])
		departure := parseGTFSTime(record[cols["departure_time"]])
		stopSeq, _ := strconv.Atoi(record[cols["stop_sequence"]])
		pickupType, _ := strconv.Atoi(getField(record, cols, "pickup_type"))
		dropOffType, _ := strconv.Atoi(getField(record, cols, "drop_off_type"))

		batch.Queue(`
			INSERT INTO stop_times (trip_id, stop_id, arrival_time, departure_time, stop_sequence, pickup_type, drop_off_type)
			VALUES (
				(SELECT id FROM trips WHERE trip_id = $1 AND route_id IN (SELECT id FROM routes WHERE agency_id = $6)),
				(SELECT id FROM stops WHERE stop_id = $2 AND agency_id = $6),
				$3, $4, $5, $7, $8
			)
			ON CONFLICT DO NOTHING
		`, tripID, stopID, arrival, departure, stopSeq, agencyID, pickupType, dropOffType)
		count++
		if count >= 1000 {
			if err := g.flush(ctx, batch, count); err != nil {
				return err
			}
			batch, count = &pgx.Batch{}, 0
		}
	}
	if count > 0 {
		return g.flush(ctx, batch, count)
	}
	return nil
}

func (g *Ingester) flush(ctx context.Context, batch *pgx.Batch, count int) error {
	br := g.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < count; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return nil
}

func openCSV(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, name) {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("file %s not found in zip", name)
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.TrimSpace(col)] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseGTFSTime(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	sec, _ := strconv.Atoi(parts[2])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
}

// FacadeBuilder builds a fresh transit-data facade from whatever is
// currently ingested in Postgres, implementing workflows.GTFSFacadeBuilder.
// The feedPath argument is only used for logging context: the actual
// source of truth is Postgres, already updated by the preceding
// FetchGTFSFeed activity.
type FacadeBuilder struct {
	DB         *postgres.DB
	FirstDate  time.Time
	LastDate   time.Time
}

// NewFacadeBuilder creates a FacadeBuilder covering the given static
// schedule horizon.
func NewFacadeBuilder(db *postgres.DB, firstDate, lastDate time.Time) *FacadeBuilder {
	return &FacadeBuilder{DB: db, FirstDate: firstDate, LastDate: lastDate}
}

// BuildFacade implements workflows.GTFSFacadeBuilder.
func (b *FacadeBuilder) BuildFacade(ctx context.Context, agencySlug, feedPath string) (*transitdata.TransitData, error) {
	cal, err := calendar.New(b.FirstDate, b.LastDate)
	if err != nil {
		return nil, fmt.Errorf("build calendar: %w", err)
	}
	data := transitdata.New(cal)

	loader := postgres.NewStaticLoader(b.DB)
	if err := loader.LoadAll(ctx, data); err != nil {
		return nil, fmt.Errorf("load static data for %s (revision %s): %w", agencySlug, feedPath, err)
	}
	return data, nil
}

// FacadeRegistry holds the live facade per agency and implements
// workflows.LiveFacadeSwitcher. Current returns the facade last swapped in
// for an agency; cmd/api does not read the registry (it builds and keeps
// its own facade), so Current is only called by this package's tests.
type FacadeRegistry struct {
	mu   sync.RWMutex
	live map[string]*transitdata.TransitData
}

// NewFacadeRegistry creates an empty FacadeRegistry.
func NewFacadeRegistry() *FacadeRegistry {
	return &FacadeRegistry{live: make(map[string]*transitdata.TransitData)}
}

// Swap implements workflows.LiveFacadeSwitcher.
func (r *FacadeRegistry) Swap(agencySlug string, data *transitdata.TransitData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[agencySlug] = data
}

// Current returns the facade currently live for an agency, if any.
func (r *FacadeRegistry) Current(agencySlug string) (*transitdata.TransitData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.live[agencySlug]
	return data, ok
}
