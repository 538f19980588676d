// Package planner turns plan requests carrying raw search results into pages
// of filtered itineraries.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"itinerary-shaper/internal/db"
	"itinerary-shaper/internal/filterchain"
	"itinerary-shaper/internal/gtfs"
	"itinerary-shaper/internal/itinerary"
	"itinerary-shaper/internal/paging"
	"itinerary-shaper/internal/path"
)

var ErrBadRequest = errors.New("bad plan request")

// TripSource resolves trip ids to schedules running on a service date.
type TripSource interface {
	Trip(ctx context.Context, tripID string, serviceDate time.Time) (*gtfs.TripSchedule, error)
}

type Metrics interface {
	PlanObserved(d time.Duration, err error)
}

type Params struct {
	Trips            TripSource
	Stops            *gtfs.StopRegistry
	Slack            path.SlackProvider
	Cost             path.CostCalculator
	AssemblerMetrics path.AssemblerMetrics
	Location         *time.Location
	Alerts           filterchain.AlertService
	Observer         filterchain.Observer
	Metrics          Metrics
	// ResolveConcurrency bounds parallel trip lookups per request.
	ResolveConcurrency int
}

type Service struct {
	trips       TripSource
	stops       *gtfs.StopRegistry
	assembler   *path.Assembler
	loc         *time.Location
	alerts      filterchain.AlertService
	observer    filterchain.Observer
	metrics     Metrics
	concurrency int

	opts atomic.Pointer[filterchain.Options]
}

var validate = validator.New()

func New(p Params) *Service {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		trips:       p.Trips,
		stops:       p.Stops,
		assembler:   path.NewAssembler(p.Slack, p.Cost, p.AssemblerMetrics),
		loc:         loc,
		alerts:      p.Alerts,
		observer:    p.Observer,
		metrics:     p.Metrics,
		concurrency: max(p.ResolveConcurrency, 1),
	}
	opts := filterchain.DefaultOptions()
	s.opts.Store(&opts)
	return s
}

// SetOptions replaces the filter options used by subsequent requests.
func (s *Service) SetOptions(opts filterchain.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	s.opts.Store(&opts)
	return nil
}

func (s *Service) Options() filterchain.Options { return *s.opts.Load() }

// Plan assembles, filters and pages the candidates of req.
func (s *Service) Plan(ctx context.Context, req PlanRequest) (res PlanResult, err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.PlanObserved(time.Since(start), err)
		}
	}()
	res.RequestID = req.RequestID

	if err := validate.Struct(req); err != nil {
		return res, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	opts, page, err := s.requestOptions(req)
	if err != nil {
		return res, err
	}

	day, err := s.serviceDate(req, page.edt)
	if err != nil {
		return res, err
	}
	trips, err := s.resolveTrips(ctx, req.Candidates, day)
	if err != nil {
		return res, err
	}

	traces := make([]path.RawTrace, 0, len(req.Candidates))
	for i, c := range req.Candidates {
		t, err := c.trace(s.stops, trips)
		if err != nil {
			log.Printf("drop candidate %d: %v", i, err)
			res.DroppedCandidates++
			continue
		}
		traces = append(traces, t)
	}
	paths, unusable := s.assembler.AssembleAll(traces)
	res.DroppedCandidates += unusable

	mapper := itinerary.Mapper{
		Stops:       s.stops,
		ServiceDay:  itinerary.ServiceDayStart(day, s.loc),
		Origin:      req.From,
		Destination: req.To,
	}
	its := make([]*itinerary.Itinerary, 0, len(paths)+len(req.Direct))
	for _, p := range paths {
		its = append(its, mapper.Map(p))
	}
	// Street-only results belong to the first page only.
	if !page.paging {
		for _, d := range req.Direct {
			it, err := d.itinerary(req.From, req.To)
			if err != nil {
				return res, fmt.Errorf("%w: %v", ErrBadRequest, err)
			}
			its = append(its, it)
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	chain, err := filterchain.Build(opts)
	if err != nil {
		return res, err
	}
	out := chain.Filter(its)
	res.Itineraries = out.Itineraries
	res.RoutingErrors = out.RoutingErrors

	if page.sw > 0 {
		f := paging.Factory{
			SortOrder:             opts.SortOrder,
			EarliestDepartureTime: page.edt,
			LatestArrivalTime:     page.lat,
			SearchWindow:          page.sw,
			Input:                 out.PageCursorInput,
		}
		if res.NextPageCursor, err = f.Next().Encode(); err != nil {
			return res, err
		}
		if res.PreviousPageCursor, err = f.Previous().Encode(); err != nil {
			return res, err
		}
		res.SearchWindowUsed = int(page.sw / time.Second)
	}
	return res, nil
}

type pageParams struct {
	paging bool
	edt    time.Time
	lat    *time.Time
	sw     time.Duration
}

// requestOptions derives the chain options of one request from the current
// snapshot, the request overrides and the page cursor.
func (s *Service) requestOptions(req PlanRequest) (filterchain.Options, pageParams, error) {
	opts := s.Options()
	page := pageParams{
		edt: req.EarliestDepartureTime,
		lat: req.LatestArrivalTime,
		sw:  time.Duration(req.SearchWindowSec) * time.Second,
	}
	arriveBy := req.ArriveBy

	if req.NumItineraries != nil {
		opts.MaxNumberOfItineraries = *req.NumItineraries
	}
	if req.DebugItineraryFilter != "" {
		p, err := filterchain.ParseDebugProfile(req.DebugItineraryFilter)
		if err != nil {
			return opts, page, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		opts.DebugProfile = p
	}

	if req.PageCursor != "" {
		c, err := paging.Decode(req.PageCursor)
		if err != nil {
			return opts, page, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		if c.LatestArrivalTime == nil {
			arriveBy = false
		}
		c.Apply(&opts)
		page = pageParams{paging: true, edt: c.EarliestDepartureTime, lat: c.LatestArrivalTime, sw: c.SearchWindow}
	} else {
		if page.edt.IsZero() {
			return opts, page, fmt.Errorf("%w: earliest departure time or page cursor required", ErrBadRequest)
		}
		if opts.SortOrder != itinerary.GeneralizedCost {
			opts.SortOrder = itinerary.StreetAndArrivalTime
			if arriveBy {
				opts.SortOrder = itinerary.StreetAndDepartureTime
			}
		}
		opts.EarliestDepartureTime = page.edt
		opts.SearchWindow = page.sw
	}
	opts.ArriveBy = arriveBy

	if opts.Alerts == nil && s.alerts != nil {
		opts.Alerts = s.alerts
	}
	if s.observer != nil {
		opts.Observer = s.observer
	}
	return opts, page, nil
}

func (s *Service) serviceDate(req PlanRequest, edt time.Time) (time.Time, error) {
	if req.ServiceDate == "" {
		return edt.In(s.loc), nil
	}
	d, err := time.ParseInLocation("2006-01-02", req.ServiceDate, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: service date: %v", ErrBadRequest, err)
	}
	return d, nil
}

// resolveTrips looks up every distinct trip of the candidates. Trips that do
// not exist or do not run on day are left out of the map.
func (s *Service) resolveTrips(ctx context.Context, candidates []Candidate, day time.Time) (map[string]*gtfs.TripSchedule, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		for _, seg := range c.Segments {
			if !seen[seg.TripID] {
				seen[seg.TripID] = true
				ids = append(ids, seg.TripID)
			}
		}
	}
	slices.Sort(ids)

	var mu sync.Mutex
	trips := make(map[string]*gtfs.TripSchedule, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			ts, err := s.trips.Trip(gctx, id, day)
			switch {
			case errors.Is(err, db.ErrTripNotFound), errors.Is(err, db.ErrTripNotRunning):
				log.Printf("skip trip %s: %v", id, err)
				return nil
			case err != nil:
				return fmt.Errorf("resolve trip %s: %w", id, err)
			}
			mu.Lock()
			trips[id] = ts
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trips, nil
}

// HandleMessage decodes a JSON plan request and returns the JSON result. It
// matches publisher.RequestHandler.
func (s *Service) HandleMessage(ctx context.Context, data []byte) ([]byte, string) {
	var req PlanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return marshalResult(PlanResult{Error: fmt.Sprintf("%v: %v", ErrBadRequest, err)}), ""
	}
	res, err := s.Plan(ctx, req)
	if err != nil {
		log.Printf("plan %s failed: %v", req.RequestID, err)
		res = PlanResult{RequestID: req.RequestID, Error: err.Error()}
	}
	return marshalResult(res), req.RequestID
}

func marshalResult(res PlanResult) []byte {
	b, err := json.Marshal(res)
	if err != nil {
		log.Printf("marshal plan result: %v", err)
		return []byte(`{"error":"internal error"}`)
	}
	return b
}
