package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"itinerary-shaper/internal/gtfs"
	"itinerary-shaper/internal/itinerary"
)

// LookupMetrics is implemented by the metrics collector. A nil value disables metrics.
type LookupMetrics interface {
	TripLookup(result string)
}

// TripStore resolves trip ids to schedules and caches them until the
// database is swapped.
type TripStore struct {
	stops   *gtfs.StopRegistry
	metrics LookupMetrics

	mu       sync.Mutex
	db       *sql.DB
	trips    map[string]*gtfs.TripSchedule
	services map[string]map[string]bool // service date -> active service ids
}

func NewTripStore(db *sql.DB, stops *gtfs.StopRegistry, m LookupMetrics) *TripStore {
	return &TripStore{
		db:       db,
		stops:    stops,
		metrics:  m,
		trips:    make(map[string]*gtfs.TripSchedule),
		services: make(map[string]map[string]bool),
	}
}

func (s *TripStore) Stops() *gtfs.StopRegistry { return s.stops }

// Swap points the store at another database and drops every cached entry.
func (s *TripStore) Swap(db *sql.DB) *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.db
	s.db = db
	s.trips = make(map[string]*gtfs.TripSchedule)
	s.services = make(map[string]map[string]bool)
	return old
}

func (s *TripStore) Ping(ctx context.Context) error { return Ping(ctx, s.conn()) }

func (s *TripStore) conn() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// LoadStops registers every stop of the database.
func (s *TripStore) LoadStops(ctx context.Context) (int, error) {
	stops, err := FetchStops(ctx, s.conn())
	if err != nil {
		return 0, err
	}
	for _, st := range stops {
		s.stops.Add(st)
	}
	return len(stops), nil
}

// Trip returns the schedule of tripID, checking that it runs on serviceDate.
func (s *TripStore) Trip(ctx context.Context, tripID string, serviceDate time.Time) (*gtfs.TripSchedule, error) {
	s.mu.Lock()
	ts, ok := s.trips[tripID]
	s.mu.Unlock()
	if !ok {
		var err error
		ts, err = s.load(ctx, tripID)
		if err != nil {
			s.observe("error")
			return nil, err
		}
		s.observe("miss")
	} else {
		s.observe("hit")
	}

	active, err := s.activeServices(ctx, serviceDate)
	if err != nil {
		return nil, err
	}
	if !active[ts.Trip.ServiceID] {
		return nil, fmt.Errorf("%w: %s on %s", ErrTripNotRunning, tripID, serviceDate.Format("2006-01-02"))
	}
	return ts, nil
}

func (s *TripStore) load(ctx context.Context, tripID string) (*gtfs.TripSchedule, error) {
	conn := s.conn()
	trip, route, err := FetchTrip(ctx, conn, tripID)
	if err != nil {
		return nil, err
	}
	sts, err := FetchStopTimes(ctx, conn, tripID)
	if err != nil {
		return nil, err
	}
	ts, err := newSchedule(trip, route, sts, s.stops)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.db == conn {
		s.trips[tripID] = ts
	}
	s.mu.Unlock()
	return ts, nil
}

// newSchedule builds the schedule of a trip with its slack and reluctance
// entries chosen by the transit mode of the route.
func newSchedule(trip gtfs.Trip, route gtfs.Route, sts []gtfs.StopTime, reg *gtfs.StopRegistry) (*gtfs.TripSchedule, error) {
	ts, err := gtfs.NewTripSchedule(trip, route, sts, reg)
	if err != nil {
		return nil, err
	}
	ts.SetModeIndex(int(itinerary.ModeFromRouteType(route.RouteType)))
	return ts, nil
}

func (s *TripStore) activeServices(ctx context.Context, date time.Time) (map[string]bool, error) {
	key := date.Format("2006-01-02")
	s.mu.Lock()
	active, ok := s.services[key]
	s.mu.Unlock()
	if ok {
		return active, nil
	}
	conn := s.conn()
	ids, err := FetchActiveServiceIDs(ctx, conn, date)
	if err != nil {
		return nil, err
	}
	active = make(map[string]bool, len(ids))
	for _, id := range ids {
		active[id] = true
	}
	s.mu.Lock()
	if s.db == conn {
		s.services[key] = active
	}
	s.mu.Unlock()
	return active, nil
}

func (s *TripStore) observe(result string) {
	if s.metrics != nil {
		s.metrics.TripLookup(result)
	}
}
