// Package alerts indexes GTFS-Realtime service alerts by trip, route and stop.
package alerts

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"itinerary-shaper/internal/itinerary"
)

type period struct {
	start, end int64 // unix seconds, 0 means open
}

type entry struct {
	alert   itinerary.Alert
	periods []period
}

func (e entry) activeAt(at time.Time) bool {
	if len(e.periods) == 0 || at.IsZero() {
		return true
	}
	ts := at.Unix()
	for _, p := range e.periods {
		if (p.start == 0 || ts >= p.start) && (p.end == 0 || ts < p.end) {
			return true
		}
	}
	return false
}

// Index is safe for concurrent lookups while a refresher swaps its content.
type Index struct {
	source          string
	refreshInterval time.Duration

	mu      sync.RWMutex
	alerts  []entry
	byTrip  map[string][]int
	byRoute map[string][]int
	byStop  map[string][]int

	metrics Metrics

	refreshCancel context.CancelFunc
	refreshWG     sync.WaitGroup
}

// Metrics is implemented by the metrics collector.
type Metrics interface {
	AlertsIndexed(n int)
}

// NewIndex reads alerts from source, a file path or an http(s) URL.
func NewIndex(source string, refreshInterval time.Duration) *Index {
	return &Index{
		source:          source,
		refreshInterval: refreshInterval,
		byTrip:          map[string][]int{},
		byRoute:         map[string][]int{},
		byStop:          map[string][]int{},
	}
}

// SetMetrics must be called before StartRefresher.
func (x *Index) SetMetrics(m Metrics) { x.metrics = m }

func (x *Index) TripAlerts(tripID string, at time.Time) []itinerary.Alert {
	return x.lookup(func() []int { return x.byTrip[tripID] }, at)
}

func (x *Index) RouteAlerts(routeID string, at time.Time) []itinerary.Alert {
	return x.lookup(func() []int { return x.byRoute[routeID] }, at)
}

func (x *Index) StopAlerts(stopID string, at time.Time) []itinerary.Alert {
	return x.lookup(func() []int { return x.byStop[stopID] }, at)
}

func (x *Index) lookup(ids func() []int, at time.Time) []itinerary.Alert {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []itinerary.Alert
	for _, i := range ids() {
		if e := x.alerts[i]; e.activeAt(at) {
			out = append(out, e.alert)
		}
	}
	return out
}

// Len returns the number of indexed alerts.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.alerts)
}

// Refresh reloads the feed and replaces the index content.
func (x *Index) Refresh(ctx context.Context) error {
	b, err := x.read(ctx)
	if err != nil {
		return fmt.Errorf("read alerts feed %s: %w", x.source, err)
	}
	return x.Load(b)
}

// Load replaces the index content with the alerts of a serialized FeedMessage.
func (x *Index) Load(b []byte) error {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &fm); err != nil {
		return fmt.Errorf("decode alerts feed: %w", err)
	}
	alerts, byTrip, byRoute, byStop := index(&fm)

	x.mu.Lock()
	x.alerts, x.byTrip, x.byRoute, x.byStop = alerts, byTrip, byRoute, byStop
	x.mu.Unlock()
	if x.metrics != nil {
		x.metrics.AlertsIndexed(len(alerts))
	}
	return nil
}

func (x *Index) read(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(x.source, "http://") && !strings.HasPrefix(x.source, "https://") {
		return os.ReadFile(x.source)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// StartRefresher loads the feed immediately and then on every tick.
func (x *Index) StartRefresher(parent context.Context) {
	if x.refreshInterval <= 0 {
		if err := x.Refresh(parent); err != nil {
			log.Printf("alerts load error: %v", err)
		}
		return
	}
	ctx, cancel := context.WithCancel(parent)
	x.refreshCancel = cancel
	x.refreshWG.Add(1)
	go func() {
		defer x.refreshWG.Done()
		if err := x.Refresh(ctx); err != nil {
			log.Printf("alerts refresh error: %v", err)
		}
		ticker := time.NewTicker(x.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := x.Refresh(ctx); err != nil {
					log.Printf("alerts refresh error: %v", err)
					continue
				}
				log.Printf("alerts refreshed: %d entries", x.Len())
			}
		}
	}()
}

func (x *Index) Stop() {
	if x.refreshCancel != nil {
		x.refreshCancel()
	}
	x.refreshWG.Wait()
}

func index(fm *gtfsrtpb.FeedMessage) ([]entry, map[string][]int, map[string][]int, map[string][]int) {
	var alerts []entry
	byTrip, byRoute, byStop := map[string][]int{}, map[string][]int{}, map[string][]int{}
	for _, e := range fm.Entity {
		if e.Alert == nil || e.GetIsDeleted() {
			continue
		}
		a := e.Alert
		en := entry{alert: itinerary.Alert{
			ID:          e.GetId(),
			Header:      text(a.HeaderText),
			Description: text(a.DescriptionText),
		}}
		if a.Cause != nil {
			en.alert.Cause = a.Cause.String()
		}
		if a.Effect != nil {
			en.alert.Effect = a.Effect.String()
		}
		if a.SeverityLevel != nil {
			en.alert.Severity = a.SeverityLevel.String()
		}
		for _, ap := range a.ActivePeriod {
			en.periods = append(en.periods, period{start: int64(ap.GetStart()), end: int64(ap.GetEnd())})
		}
		if len(en.periods) > 0 {
			if p := en.periods[0]; p.start > 0 {
				en.alert.Start = time.Unix(p.start, 0).UTC()
			}
			if p := en.periods[0]; p.end > 0 {
				en.alert.End = time.Unix(p.end, 0).UTC()
			}
		}

		idx := len(alerts)
		alerts = append(alerts, en)
		seen := map[string]bool{}
		add := func(m map[string][]int, kind, id string) {
			if id == "" || seen[kind+id] {
				return
			}
			seen[kind+id] = true
			m[id] = append(m[id], idx)
		}
		for _, ie := range a.InformedEntity {
			add(byRoute, "r", ie.GetRouteId())
			add(byStop, "s", ie.GetStopId())
			if ie.Trip != nil {
				add(byTrip, "t", ie.Trip.GetTripId())
				if ie.RouteId == nil {
					add(byRoute, "r", ie.Trip.GetRouteId())
				}
			}
		}
	}
	return alerts, byTrip, byRoute, byStop
}

// text prefers the untagged translation, then the first one.
func text(ts *gtfsrtpb.TranslatedString) string {
	if ts == nil {
		return ""
	}
	var first string
	for _, tr := range ts.Translation {
		if tr.GetLanguage() == "" {
			return tr.GetText()
		}
		if first == "" {
			first = tr.GetText()
		}
	}
	return first
}
