package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	PathsAssembled prometheus.Counter
	PathsUnusable  prometheus.Counter

	ItinerariesIn  prometheus.Counter
	ItinerariesOut prometheus.Counter
	Removals       *prometheus.CounterVec // filter label: removal tag of the stage
	RoutingErrors  *prometheus.CounterVec // code label
	ChainDuration  prometheus.Histogram

	PlanRequests *prometheus.CounterVec // result label: ok|error
	PlanDuration prometheus.Histogram
	TripLookups  *prometheus.CounterVec // result label: hit|miss|error
	AlertsLoaded prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	DBSwitches *prometheus.CounterVec // reason label: update|ping_failure

	TransferSlack      prometheus.Gauge // seconds
	AlertsRefresh      prometheus.Gauge // seconds
	ResolveConcurrency prometheus.Gauge
}

func NewCollector(transferSlack, alertsRefresh time.Duration, resolveConcurrency int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PathsAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shaper_paths_assembled_total",
			Help: "Candidate paths assembled into time-consistent paths.",
		}),
		PathsUnusable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shaper_paths_unusable_total",
			Help: "Candidate paths dropped because they could not be time-shifted.",
		}),
		ItinerariesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shaper_itineraries_in_total",
			Help: "Itineraries entering the filter chain.",
		}),
		ItinerariesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shaper_itineraries_out_total",
			Help: "Itineraries returned by the filter chain.",
		}),
		Removals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shaper_itineraries_flagged_total",
			Help: "Itineraries flagged for removal, by filter.",
		}, []string{"filter"}),
		RoutingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shaper_routing_errors_total",
			Help: "Routing errors raised by the filter chain, by code.",
		}, []string{"code"}),
		ChainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shaper_chain_duration_seconds",
			Help:    "Duration of one filter chain run.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		PlanRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shaper_plan_requests_total",
			Help: "Plan requests handled, by result.",
		}, []string{"result"}),
		PlanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shaper_plan_duration_seconds",
			Help:    "Duration of a plan request from trip lookup to page cursors.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		TripLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shaper_trip_lookups_total",
			Help: "Trip schedule lookups, by result.",
		}, []string{"result"}),
		AlertsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shaper_alerts_loaded",
			Help: "Service alerts currently indexed.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shaper_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shaper_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shaper_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shaper_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		DBSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shaper_db_switches_total",
			Help: "Number of database switches.",
		}, []string{"reason"}),
		TransferSlack: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shaper_transfer_slack_seconds",
			Help: "Configured transfer slack in seconds.",
		}),
		AlertsRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shaper_alerts_refresh_interval_seconds",
			Help: "Alerts feed refresh interval in seconds.",
		}),
		ResolveConcurrency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shaper_resolve_concurrency",
			Help: "Trip lookups run in parallel per request.",
		}),
	}

	// Register
	reg.MustRegister(
		c.PathsAssembled, c.PathsUnusable,
		c.ItinerariesIn, c.ItinerariesOut, c.Removals, c.RoutingErrors, c.ChainDuration,
		c.PlanRequests, c.PlanDuration, c.TripLookups, c.AlertsLoaded,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.DBSwitches,
		c.TransferSlack, c.AlertsRefresh, c.ResolveConcurrency,
	)

	// Set static gauges
	c.TransferSlack.Set(transferSlack.Seconds())
	c.AlertsRefresh.Set(alertsRefresh.Seconds())
	c.ResolveConcurrency.Set(float64(resolveConcurrency))

	return c
}

// Path assembly

func (c *Collector) PathAssembled() { c.PathsAssembled.Inc() }
func (c *Collector) PathUnusable()  { c.PathsUnusable.Inc() }

// Filter chain

func (c *Collector) ItineraryFlagged(filter string) { c.Removals.WithLabelValues(filter).Inc() }
func (c *Collector) RoutingErrorRaised(code string) { c.RoutingErrors.WithLabelValues(code).Inc() }

func (c *Collector) ChainFinished(in, out int, elapsed time.Duration) {
	c.ItinerariesIn.Add(float64(in))
	c.ItinerariesOut.Add(float64(out))
	c.ChainDuration.Observe(elapsed.Seconds())
}

// Planner

func (c *Collector) PlanObserved(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.PlanRequests.WithLabelValues(result).Inc()
	c.PlanDuration.Observe(d.Seconds())
}

func (c *Collector) TripLookup(result string) { c.TripLookups.WithLabelValues(result).Inc() }

func (c *Collector) AlertsIndexed(n int) { c.AlertsLoaded.Set(float64(n)) }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
