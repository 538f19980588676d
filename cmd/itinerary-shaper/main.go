package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"itinerary-shaper/internal/alerts"
	"itinerary-shaper/internal/config"
	"itinerary-shaper/internal/db"
	"itinerary-shaper/internal/filterchain"
	"itinerary-shaper/internal/gtfs"
	"itinerary-shaper/internal/metrics"
	"itinerary-shaper/internal/path"
	"itinerary-shaper/internal/planner"
	"itinerary-shaper/internal/publisher"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Resolve latest city database if CITY is set; the meta DB is the cluster's 'postgres'
	var currentDBName string
	finalDSN := cfg.DatabaseURL
	if cfg.City != "" {
		finalDSN, currentDBName, err = db.ResolveCityDSN(ctx, cfg.DatabaseURL, cfg.City)
		if err != nil {
			log.Fatalf("resolve latest import for city %q: %v", cfg.City, err)
		}
		log.Printf("Using database %q for city %q", currentDBName, cfg.City)
	}
	sqlDB, err := db.Open(finalDSN)
	if err != nil {
		log.Fatalf("db open (city) error: %v", err)
	}
	if err := db.Ping(ctx, sqlDB); err != nil {
		log.Fatalf("db ping (city) error: %v", err)
	}

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrvCancel context.CancelFunc
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(time.Duration(cfg.Slack.TransferSec)*time.Second, cfg.AlertsRefreshInterval, cfg.ResolveConcurrency)
		mctx, mcancel := context.WithCancel(ctx)
		metricsSrvCancel = mcancel
		srv := mcol.Serve(cfg.MetricsAddr)
		go func() {
			<-mctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}
	// Interfaces stay nil without a collector.
	var (
		asmMetrics  path.AssemblerMetrics
		observer    filterchain.Observer
		planMetrics planner.Metrics
		lookups     db.LookupMetrics
	)
	if mcol != nil {
		asmMetrics, observer, planMetrics, lookups = mcol, mcol, mcol, mcol
	}

	stops := gtfs.NewStopRegistry()
	store := db.NewTripStore(sqlDB, stops, lookups)
	n, err := store.LoadStops(ctx)
	if err != nil {
		log.Fatalf("load stops error: %v", err)
	}
	log.Printf("loaded %d stops", n)
	cfg.Cost.StopTransferCost = stops.IndexedCosts(cfg.StopTransferCost)

	var alertIdx *alerts.Index
	var alertSvc filterchain.AlertService
	if cfg.AlertsFeed != "" {
		alertIdx = alerts.NewIndex(cfg.AlertsFeed, cfg.AlertsRefreshInterval)
		if mcol != nil {
			alertIdx.SetMetrics(mcol)
		}
		alertIdx.StartRefresher(ctx)
		alertSvc = alertIdx
	}

	svc := planner.New(planner.Params{
		Trips:              store,
		Stops:              stops,
		Slack:              cfg.Slack,
		Cost:               cfg.Cost,
		AssemblerMetrics:   asmMetrics,
		Location:           cfg.Location,
		Alerts:             alertSvc,
		Observer:           observer,
		Metrics:            planMetrics,
		ResolveConcurrency: cfg.ResolveConcurrency,
	})
	if cfg.FiltersFile != "" {
		f, err := config.LoadFilters(cfg.FiltersFile)
		if err != nil {
			log.Fatalf("filters error: %v", err)
		}
		opts, err := f.Options()
		if err != nil {
			log.Fatalf("filters error: %v", err)
		}
		if err := svc.SetOptions(opts); err != nil {
			log.Fatalf("filters error: %v", err)
		}
		err = config.WatchFilters(ctx, cfg.FiltersFile, func(f config.Filters) {
			opts, err := f.Options()
			if err == nil {
				err = svc.SetOptions(opts)
			}
			if err != nil {
				log.Printf("filters rejected: %v", err)
			}
		})
		if err != nil {
			log.Printf("filters watch disabled: %v", err)
		}
	}

	// Initialize NATS publisher and serve plan requests
	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.ResultSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	if _, err := pub.ServeRequests(ctx, cfg.PlanSubject, cfg.QueueGroup, cfg.Workers, svc.HandleMessage); err != nil {
		log.Fatalf("nats subscribe error: %v", err)
	}

	// Start periodic city DB watcher (every 30 minutes) if CITY is set
	var done chan struct{}
	if cfg.City != "" {
		done = make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(30 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				if name, ok := switchCityDB(ctx, cfg, store, currentDBName, mcol); ok {
					currentDBName = name
				}
			}
		}()
	}

	// Block until context cancelled
	<-ctx.Done()
	pub.Close()
	if alertIdx != nil {
		alertIdx.Stop()
	}
	if done != nil {
		<-done
	}
	if old := store.Swap(nil); old != nil {
		old.Close()
	}
	if metricsSrvCancel != nil {
		metricsSrvCancel()
	}
	log.Println("shutdown complete")
}

// switchCityDB re-resolves the latest import of the city and points the trip
// store at it when it changed or the current database stopped answering.
func switchCityDB(ctx context.Context, cfg *config.Config, store *db.TripStore, currentDBName string, mcol *metrics.Collector) (string, bool) {
	// 1) Ping current DB; if it fails, force re-resolve
	needSwitch := false
	if err := store.Ping(ctx); err != nil {
		log.Printf("db ping failed: %v, re-resolving city DB", err)
		if mcol != nil {
			mcol.DBSwitches.WithLabelValues("ping_failure").Inc()
		}
		needSwitch = true
	}

	// 2) Always re-resolve latest import, compare db_name
	newDSN, newName, err := db.ResolveCityDSN(ctx, cfg.DatabaseURL, cfg.City)
	if err != nil {
		log.Printf("resolve latest import error: %v", err)
		return "", false
	}
	if newName != currentDBName {
		log.Printf("Detected updated DB for city %q: %q -> %q", cfg.City, currentDBName, newName)
		if mcol != nil {
			mcol.DBSwitches.WithLabelValues("update").Inc()
		}
		needSwitch = true
	}
	if !needSwitch {
		return "", false
	}

	newDB, err := db.Open(newDSN)
	if err != nil {
		log.Printf("open new DB error: %v", err)
		return "", false
	}
	if err := db.Ping(ctx, newDB); err != nil {
		log.Printf("ping new DB error: %v", err)
		newDB.Close()
		return "", false
	}

	if old := store.Swap(newDB); old != nil {
		old.Close()
	}
	if n, err := store.LoadStops(ctx); err != nil {
		log.Printf("reload stops error: %v", err)
	} else {
		log.Printf("loaded %d stops", n)
	}
	log.Printf("Switched to DB %q for city %q", newName, cfg.City)
	return newName, true
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
