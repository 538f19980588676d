package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"itinerary-shaper/internal/gtfs"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	ErrTripNotFound   = errors.New("trip not found")
	ErrTripNotRunning = errors.New("trip not running on service date")
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// FetchTrip returns the trip and its route.
func FetchTrip(ctx context.Context, db *sql.DB, tripID string) (gtfs.Trip, gtfs.Route, error) {
	q := `
SELECT t.trip_id, t.route_id, t.service_id, COALESCE(t.wheelchair_accessible::text, ''),
       COALESCE(r.route_short_name, ''), COALESCE(r.route_long_name, ''),
       COALESCE(r.route_type::text, '3'), COALESCE(r.agency_id, '')
FROM trips t
JOIN routes r ON r.route_id = t.route_id
WHERE t.trip_id = $1`

	var t gtfs.Trip
	var r gtfs.Route
	var wheelchair, routeType string
	err := db.QueryRowContext(ctx, q, tripID).Scan(&t.TripID, &t.RouteID, &t.ServiceID, &wheelchair,
		&r.ShortName, &r.LongName, &routeType, &r.AgencyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, r, fmt.Errorf("%w: %s", ErrTripNotFound, tripID)
		}
		return t, r, fmt.Errorf("query trip %s: %w", tripID, err)
	}
	r.RouteID = t.RouteID
	t.WheelchairAccessible = parseEnum(wheelchair, map[string]int{"accessible": 1, "not_accessible": 2})
	r.RouteType, _ = strconv.Atoi(strings.TrimSpace(routeType))
	return t, r, nil
}

// FetchStops returns every stop with its parent station and wheelchair boarding.
func FetchStops(ctx context.Context, db *sql.DB) ([]gtfs.Stop, error) {
	lat, lon, err := stopCoords(ctx, db, "s")
	if err != nil {
		return nil, err
	}
	q := `SELECT s.stop_id, COALESCE(s.stop_name, ''), COALESCE(s.parent_station, ''), ` + lat + `, ` + lon + `,
       COALESCE(s.wheelchair_boarding::text, '')
FROM stops s`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	var stops []gtfs.Stop
	for rows.Next() {
		var s gtfs.Stop
		var wheelchair string
		if err := rows.Scan(&s.StopID, &s.Name, &s.ParentStation, &s.Lat, &s.Lon, &wheelchair); err != nil {
			return nil, err
		}
		s.WheelchairBoarding = parseEnum(wheelchair, map[string]int{"accessible": 1, "not_accessible": 2})
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

var weekdayColumns = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// FetchActiveServiceIDs returns the services running on the date of day:
// calendar entries for its weekday plus added minus removed calendar_dates.
func FetchActiveServiceIDs(ctx context.Context, db *sql.DB, day time.Time) ([]string, error) {
	// Enum labels come from postgis-gtfs-importer, numbers from plain imports.
	q := `
SELECT service_id FROM calendar
WHERE start_date <= $1::date AND end_date >= $1::date
  AND ` + weekdayColumns[day.Weekday()] + `::text IN ('1', 't', 'true', 'available')
UNION
SELECT service_id FROM calendar_dates
WHERE date = $1::date AND exception_type::text IN ('1', 'added')
EXCEPT
SELECT service_id FROM calendar_dates
WHERE date = $1::date AND exception_type::text IN ('2', 'removed')`

	rows, err := db.QueryContext(ctx, q, day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query active services: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FetchStopTimes returns the stop times of a trip ordered by stop sequence.
// Missing times are filled from their neighbours.
func FetchStopTimes(ctx context.Context, db *sql.DB, tripID string) ([]gtfs.StopTime, error) {
	lat, lon, err := stopCoords(ctx, db, "s")
	if err != nil {
		return nil, err
	}
	q := `SELECT st.stop_sequence, COALESCE(st.arrival_time::text, ''), COALESCE(st.departure_time::text, ''),
       COALESCE(st.shape_dist_traveled, 0), st.stop_id, ` + lat + `, ` + lon + `
FROM stop_times st
JOIN stops s ON s.stop_id = st.stop_id
WHERE st.trip_id = $1
ORDER BY st.stop_sequence`
	rows, err := db.QueryContext(ctx, q, tripID)
	if err != nil {
		return nil, fmt.Errorf("query stop_times: %w", err)
	}
	defer rows.Close()

	var sts []gtfs.StopTime
	for rows.Next() {
		var st gtfs.StopTime
		var arr, dep string
		if err := rows.Scan(&st.StopSequence, &arr, &dep, &st.ShapeDistTraveled, &st.StopID, &st.StopLat, &st.StopLon); err != nil {
			return nil, err
		}
		st.ArrivalSec = parseDaySeconds(arr)
		st.DepartureSec = parseDaySeconds(dep)
		sts = append(sts, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	fillMissingTimes(sts)
	return sts, nil
}

// stopCoords returns the latitude and longitude expressions for the stops
// table aliased as alias: stop_lat/stop_lon, else the PostGIS stop_loc column.
func stopCoords(ctx context.Context, db *sql.DB, alias string) (lat, lon string, err error) {
	cols, err := hasColumns(ctx, db, "public", "stops", "stop_lat", "stop_lon", "stop_loc")
	if err != nil {
		return "", "", fmt.Errorf("introspect stops columns: %w", err)
	}
	switch {
	case cols["stop_lat"] && cols["stop_lon"]:
		return "COALESCE(" + alias + ".stop_lat, 0)", "COALESCE(" + alias + ".stop_lon, 0)", nil
	case cols["stop_loc"]:
		return "COALESCE(ST_Y(" + alias + ".stop_loc::geometry), 0)", "COALESCE(ST_X(" + alias + ".stop_loc::geometry), 0)", nil
	}
	return "", "", fmt.Errorf("stops table missing expected columns (stop_lat/lon or stop_loc)")
}

// fillMissingTimes copies the departure into a missing arrival and vice versa.
// Untimed intermediate stops inherit the previous departure.
func fillMissingTimes(sts []gtfs.StopTime) {
	prev := 0
	for i := range sts {
		st := &sts[i]
		switch {
		case st.ArrivalSec < 0 && st.DepartureSec < 0:
			st.ArrivalSec, st.DepartureSec = prev, prev
		case st.ArrivalSec < 0:
			st.ArrivalSec = st.DepartureSec
		case st.DepartureSec < 0:
			st.DepartureSec = st.ArrivalSec
		}
		prev = st.DepartureSec
	}
}

// parseDaySeconds parses HH:MM:SS possibly with hours >= 24. Empty or
// malformed values return -1.
func parseDaySeconds(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return -1
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return -1
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return -1
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return -1
	}
	sec := 0
	if len(parts) > 2 {
		sec, _ = strconv.Atoi(parts[2])
	}
	total := h*3600 + m*60 + sec
	if total < 0 {
		return -1
	}
	return total
}

// parseEnum accepts GTFS enum columns stored as numbers or as importer labels.
func parseEnum(s string, labels map[string]int) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return labels[strings.ToLower(s)]
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	// Initialize to false
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
