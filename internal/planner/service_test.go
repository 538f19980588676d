package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"itinerary-shaper/internal/db"
	"itinerary-shaper/internal/filterchain"
	"itinerary-shaper/internal/gtfs"
	"itinerary-shaper/internal/itinerary"
	"itinerary-shaper/internal/paging"
	"itinerary-shaper/internal/path"
)

var errDown = errors.New("database down")

type fakeTrips map[string]*gtfs.TripSchedule

func (f fakeTrips) Trip(_ context.Context, tripID string, _ time.Time) (*gtfs.TripSchedule, error) {
	switch tripID {
	case "gone":
		return nil, fmt.Errorf("%w: %s", db.ErrTripNotFound, tripID)
	case "boom":
		return nil, errDown
	}
	ts, ok := f[tripID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrTripNotRunning, tripID)
	}
	return ts, nil
}

func hms(h, m int) int { return h*3600 + m*60 }

func newService(t *testing.T) *Service {
	t.Helper()
	reg := gtfs.NewStopRegistry()
	reg.Add(gtfs.Stop{StopID: "A", Name: "Alpha"})
	reg.Add(gtfs.Stop{StopID: "B", Name: "Bravo"})

	trips := fakeTrips{}
	for id, dep := range map[string]int{"T1": hms(8, 0), "T2": hms(8, 30)} {
		ts, err := gtfs.NewTripSchedule(
			gtfs.Trip{TripID: id, RouteID: "R21", ServiceID: "WD"},
			gtfs.Route{RouteID: "R21", ShortName: "21", RouteType: 3},
			[]gtfs.StopTime{
				{StopSequence: 1, StopID: "A", ArrivalSec: dep, DepartureSec: dep},
				{StopSequence: 2, StopID: "B", ArrivalSec: dep + 20*60, DepartureSec: dep + 20*60},
			}, reg)
		if err != nil {
			t.Fatal(err)
		}
		trips[id] = ts
	}
	return New(Params{
		Trips:              trips,
		Stops:              reg,
		Slack:              path.StaticSlack{},
		Cost:               path.DefaultCostCalculator{BoardCost: 600, WaitReluctance: 1},
		Location:           time.UTC,
		ResolveConcurrency: 2,
	})
}

func candidate(tripID string) Candidate {
	return Candidate{
		IterationDepartureSec: hms(7, 50),
		Access:                AccessEgress{StopID: "A", DurationSec: 120, C1: 240, Mode: "WALK"},
		Segments:              []Segment{{TripID: tripID, BoardPos: 0, AlightPos: 1}},
		Egress:                AccessEgress{StopID: "B", DurationSec: 60, C1: 120, Mode: "WALK"},
	}
}

func baseRequest(candidates ...Candidate) PlanRequest {
	return PlanRequest{
		RequestID:             "req-1",
		ServiceDate:           "2025-03-10",
		From:                  itinerary.Place{Name: "Home"},
		To:                    itinerary.Place{Name: "Work"},
		EarliestDepartureTime: time.Date(2025, 3, 10, 7, 55, 0, 0, time.UTC),
		SearchWindowSec:       3600,
		Candidates:            candidates,
	}
}

func tripsOf(its []*itinerary.Itinerary) []string {
	var ids []string
	for _, it := range its {
		ids = append(ids, it.TripIDs()...)
	}
	return ids
}

func TestPlanAssemblesAndSorts(t *testing.T) {
	s := newService(t)
	res, err := s.Plan(context.Background(), baseRequest(candidate("T2"), candidate("T1")))
	if err != nil {
		t.Fatal(err)
	}
	if got := tripsOf(res.Itineraries); !slices.Equal(got, []string{"T1", "T2"}) {
		t.Fatalf("trips = %v, want [T1 T2]", got)
	}
	first := res.Itineraries[0]
	if want := time.Date(2025, 3, 10, 7, 58, 0, 0, time.UTC); !first.StartTime().Equal(want) {
		t.Fatalf("start = %s, want %s", first.StartTime(), want)
	}
	if first.Legs[0].From.Name != "Home" || first.Legs[1].From.Name != "Alpha" {
		t.Fatalf("places = %q -> %q", first.Legs[0].From.Name, first.Legs[1].From.Name)
	}
	if res.SearchWindowUsed != 3600 || res.NextPageCursor == "" || res.PreviousPageCursor == "" {
		t.Fatalf("paging = %+v", res)
	}
	next, err := paging.Decode(res.NextPageCursor)
	if err != nil {
		t.Fatal(err)
	}
	if next.Type != paging.NextPage || !next.EarliestDepartureTime.Equal(time.Date(2025, 3, 10, 8, 55, 0, 0, time.UTC)) {
		t.Fatalf("next cursor = %s", next)
	}
}

func TestPlanDropsUnusableCandidates(t *testing.T) {
	bad := candidate("T1")
	bad.Segments[0].AlightPos = 5
	stray := candidate("T1")
	stray.Egress.StopID = "NSR:Quay:999"
	strayTransfer := candidate("T1")
	strayTransfer.TransferBeforeEgress = &Transfer{ToStopID: "NSR:Quay:998", DurationSec: 60}
	tests := []struct {
		name        string
		candidates  []Candidate
		wantTrips   []string
		wantDropped int
	}{
		{"unknown trip", []Candidate{candidate("gone"), candidate("T1")}, []string{"T1"}, 1},
		{"not running", []Candidate{candidate("T9"), candidate("T2")}, []string{"T2"}, 1},
		{"bad positions", []Candidate{bad, candidate("T2")}, []string{"T2"}, 1},
		{"unknown egress stop", []Candidate{stray, candidate("T2")}, []string{"T2"}, 1},
		{"unknown transfer stop", []Candidate{strayTransfer, candidate("T2")}, []string{"T2"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(t)
			res, err := s.Plan(context.Background(), baseRequest(tt.candidates...))
			if err != nil {
				t.Fatal(err)
			}
			if n := s.stops.Len(); n != 2 {
				t.Fatalf("registry grew to %d stops", n)
			}
			if got := tripsOf(res.Itineraries); !slices.Equal(got, tt.wantTrips) {
				t.Fatalf("trips = %v, want %v", got, tt.wantTrips)
			}
			if res.DroppedCandidates != tt.wantDropped {
				t.Fatalf("dropped = %d, want %d", res.DroppedCandidates, tt.wantDropped)
			}
		})
	}
}

func TestPlanErrors(t *testing.T) {
	noDeparture := baseRequest(candidate("T1"))
	noDeparture.EarliestDepartureTime = time.Time{}
	badCursor := baseRequest(candidate("T1"))
	badCursor.PageCursor = "not-a-cursor"
	badDate := baseRequest(candidate("T1"))
	badDate.ServiceDate = "10.03.2025"
	missingStop := baseRequest(candidate("T1"))
	missingStop.Candidates[0].Access.StopID = ""
	transitDirect := baseRequest()
	transitDirect.Direct = []DirectStreet{{Mode: "BUS", DepartureTime: noDeparture.EarliestDepartureTime, DurationSec: 60}}

	tests := []struct {
		name    string
		req     PlanRequest
		wantErr error
	}{
		{"no departure time", noDeparture, ErrBadRequest},
		{"bad cursor", badCursor, ErrBadRequest},
		{"bad service date", badDate, ErrBadRequest},
		{"missing stop", missingStop, ErrBadRequest},
		{"transit direct", transitDirect, ErrBadRequest},
		{"trip source down", baseRequest(candidate("boom")), errDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService(t).Plan(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlanCancelledBeforeFiltering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newService(t)
	// without candidates no trip lookup observes the cancellation
	req := baseRequest()
	req.Direct = []DirectStreet{{Mode: "WALK", DepartureTime: req.EarliestDepartureTime, DurationSec: 600, C1: 1200}}
	if _, err := s.Plan(ctx, req); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPlanPagesThroughCappedResults(t *testing.T) {
	s := newService(t)
	one := 1
	req := baseRequest(candidate("T1"), candidate("T2"))
	req.NumItineraries = &one
	req.Direct = []DirectStreet{{Mode: "WALK", DepartureTime: req.EarliestDepartureTime, DurationSec: 3600, C1: 90000}}

	first, err := s.Plan(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Itineraries) != 1 || !first.Itineraries[0].IsWalkOnly() {
		t.Fatalf("first page = %v", first.Itineraries)
	}
	if !slices.ContainsFunc(first.RoutingErrors, func(e filterchain.RoutingError) bool {
		return e.Code == filterchain.NumItinerariesCapped
	}) {
		t.Fatalf("routing errors = %v", first.RoutingErrors)
	}

	var got []string
	cursor := first.NextPageCursor
	for range 3 {
		page := baseRequest(candidate("T1"), candidate("T2"))
		page.NumItineraries = &one
		page.Direct = req.Direct
		page.PageCursor = cursor
		res, err := s.Plan(context.Background(), page)
		if err != nil {
			t.Fatal(err)
		}
		for _, it := range res.Itineraries {
			if it.IsStreetOnly() {
				t.Fatalf("street only itinerary on a later page")
			}
		}
		got = append(got, tripsOf(res.Itineraries)...)
		cursor = res.NextPageCursor
	}
	if !slices.Equal(got, []string{"T1", "T2"}) {
		t.Fatalf("paged trips = %v, want [T1 T2]", got)
	}
}

func TestRequestOptions(t *testing.T) {
	edt := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	token, err := paging.PageCursor{
		Type:                  paging.PreviousPage,
		OriginalSortOrder:     itinerary.StreetAndDepartureTime,
		EarliestDepartureTime: edt,
		SearchWindow:          time.Hour,
	}.Encode()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		base     itinerary.SortOrder
		req      PlanRequest
		order    itinerary.SortOrder
		crop     itinerary.ListSection
		arriveBy bool
	}{
		{"depart after", itinerary.StreetAndArrivalTime, PlanRequest{EarliestDepartureTime: edt}, itinerary.StreetAndArrivalTime, itinerary.Tail, false},
		{"arrive by", itinerary.StreetAndArrivalTime, PlanRequest{EarliestDepartureTime: edt, ArriveBy: true}, itinerary.StreetAndDepartureTime, itinerary.Tail, true},
		{"cost order kept", itinerary.GeneralizedCost, PlanRequest{EarliestDepartureTime: edt, ArriveBy: true}, itinerary.GeneralizedCost, itinerary.Tail, true},
		{"cursor without arrival", itinerary.StreetAndArrivalTime, PlanRequest{ArriveBy: true, PageCursor: token}, itinerary.StreetAndDepartureTime, itinerary.Head, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(t)
			opts := filterchain.DefaultOptions()
			opts.SortOrder = tt.base
			if err := s.SetOptions(opts); err != nil {
				t.Fatal(err)
			}
			got, page, err := s.requestOptions(tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if got.SortOrder != tt.order || got.CropSection != tt.crop || got.ArriveBy != tt.arriveBy {
				t.Fatalf("options = %s/%s/%v, want %s/%s/%v", got.SortOrder, got.CropSection, got.ArriveBy, tt.order, tt.crop, tt.arriveBy)
			}
			if !got.EarliestDepartureTime.Equal(edt) || page.paging != (tt.req.PageCursor != "") {
				t.Fatalf("edt = %s, paging = %v", got.EarliestDepartureTime, page.paging)
			}
		})
	}
}

func TestSetOptionsRejectsInvalid(t *testing.T) {
	s := newService(t)
	opts := filterchain.DefaultOptions()
	opts.MaxNumberOfItineraries = -5
	if err := s.SetOptions(opts); !errors.Is(err, filterchain.ErrInvalidOptions) {
		t.Fatalf("err = %v", err)
	}
	if s.Options().MaxNumberOfItineraries != -1 {
		t.Fatalf("options replaced by invalid snapshot")
	}
}

func TestHandleMessage(t *testing.T) {
	s := newService(t)

	resp, id := s.HandleMessage(context.Background(), []byte("{"))
	var res PlanResult
	if err := json.Unmarshal(resp, &res); err != nil {
		t.Fatal(err)
	}
	if id != "" || res.Error == "" {
		t.Fatalf("garbage request: id=%q result=%+v", id, res)
	}

	body, err := json.Marshal(baseRequest(candidate("T1")))
	if err != nil {
		t.Fatal(err)
	}
	resp, id = s.HandleMessage(context.Background(), body)
	res = PlanResult{}
	if err := json.Unmarshal(resp, &res); err != nil {
		t.Fatal(err)
	}
	if id != "req-1" || res.RequestID != "req-1" || res.Error != "" || len(res.Itineraries) != 1 {
		t.Fatalf("id=%q result=%+v", id, res)
	}
}
