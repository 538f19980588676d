package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"itinerary-shaper/internal/itinerary"
	"itinerary-shaper/internal/path"
)

type Config struct {
	DatabaseURL         string
	City                string
	NATSURL             string
	PlanSubject         string
	QueueGroup          string
	ResultSubjectPrefix string
	Workers             int
	LogNATSSubjects     bool
	MetricsAddr         string
	Location            *time.Location

	FiltersFile           string
	AlertsFeed            string
	AlertsRefreshInterval time.Duration
	ResolveConcurrency    int

	Slack path.StaticSlack
	Cost  path.DefaultCostCalculator
	// StopTransferCost is keyed by stop id; see gtfs.StopRegistry.IndexedCosts.
	StopTransferCost map[string]int
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL (cluster DSN): prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		// If CITY is provided, default base DB to 'postgres' when PGDATABASE is not set.
		if db == "" && os.Getenv("CITY") != "" {
			db = "postgres"
		}
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set (set PGDATABASE=postgres when using CITY)")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}
	cfg.City = firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME"))

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.PlanSubject = getenvDefault("PLAN_SUBJECT", "plan.requests")
	cfg.QueueGroup = getenvDefault("PLAN_QUEUE_GROUP", "itinerary-shaper")
	cfg.ResultSubjectPrefix = strings.TrimSuffix(getenvDefault("RESULT_SUBJECT_PREFIX", "plan.results"), ".")

	// Debug logging for NATS subjects
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	cfg.FiltersFile = os.Getenv("FILTERS_FILE")
	cfg.AlertsFeed = os.Getenv("ALERTS_FEED_FILE")

	sec, err := envInt("ALERTS_REFRESH_INTERVAL_SEC", 60, 0)
	if err != nil {
		return nil, err
	}
	cfg.AlertsRefreshInterval = time.Duration(sec) * time.Second

	if cfg.ResolveConcurrency, err = envInt("RESOLVE_CONCURRENCY", 4, 1); err != nil {
		return nil, err
	}
	if cfg.Workers, err = envInt("PLAN_WORKERS", 8, 1); err != nil {
		return nil, err
	}

	if cfg.Slack.BoardSec, err = envInt("SLACK_BOARD_SEC", 0, 0); err != nil {
		return nil, err
	}
	if cfg.Slack.AlightSec, err = envInt("SLACK_ALIGHT_SEC", 0, 0); err != nil {
		return nil, err
	}
	if cfg.Slack.TransferSec, err = envInt("SLACK_TRANSFER_SEC", 120, 0); err != nil {
		return nil, err
	}

	if cfg.Cost.BoardCost, err = envInt("COST_BOARD", 600, 0); err != nil {
		return nil, err
	}
	if cfg.Cost.TransferCost, err = envInt("COST_TRANSFER", 0, 0); err != nil {
		return nil, err
	}
	if cfg.Cost.WaitReluctance, err = envFloat("COST_WAIT_RELUCTANCE", 1.0); err != nil {
		return nil, err
	}
	reluctance, err := modeValues("COST_TRANSIT_RELUCTANCE", 0.01)
	if err != nil {
		return nil, err
	}
	cfg.Cost.TransitReluctance = byModeIndex(reluctance, 1.0)
	if cfg.Slack.BoardByIndex, err = slackByMode("SLACK_BOARD_BY_MODE"); err != nil {
		return nil, err
	}
	if cfg.Slack.AlightByIndex, err = slackByMode("SLACK_ALIGHT_BY_MODE"); err != nil {
		return nil, err
	}
	if cfg.StopTransferCost, err = stopCosts("COST_STOP_TRANSFER"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// modeValues parses "RAIL=1.3,BUS=1" into values keyed by transit mode.
func modeValues(k string, minimum float64) (map[itinerary.Mode]float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return nil, nil
	}
	res := make(map[itinerary.Mode]float64)
	for _, part := range strings.Split(v, ",") {
		name, num, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid %s: %q", k, v)
		}
		m, err := itinerary.ParseMode(strings.TrimSpace(name))
		if err != nil || !m.IsTransit() {
			return nil, fmt.Errorf("invalid %s: unknown transit mode %q", k, name)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil || f < minimum {
			return nil, fmt.Errorf("invalid %s: %q", k, v)
		}
		res[m] = f
	}
	return res, nil
}

// byModeIndex lays values out by mode, filling unset modes with def.
func byModeIndex(values map[itinerary.Mode]float64, def float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	res := make([]float64, int(slices.Max(slices.Collect(maps.Keys(values))))+1)
	for i := range res {
		res[i] = def
	}
	for m, f := range values {
		res[m] = f
	}
	return res
}

func slackByMode(k string) (map[int]int, error) {
	values, err := modeValues(k, 0)
	if err != nil || values == nil {
		return nil, err
	}
	res := make(map[int]int, len(values))
	for m, f := range values {
		res[int(m)] = int(f)
	}
	return res, nil
}

// stopCosts parses "NSR:StopPlace:1=60,NSR:StopPlace:2=30".
func stopCosts(k string) (map[string]int, error) {
	v := os.Getenv(k)
	if v == "" {
		return nil, nil
	}
	res := make(map[string]int)
	for _, part := range strings.Split(v, ",") {
		id, num, ok := strings.Cut(part, "=")
		id = strings.TrimSpace(id)
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if !ok || id == "" || err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s: %q", k, v)
		}
		res[id] = n
	}
	return res, nil
}

func envInt(k string, def, minimum int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func envFloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return f, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
