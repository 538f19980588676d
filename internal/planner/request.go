package planner

import (
	"errors"
	"fmt"
	"time"

	"itinerary-shaper/internal/filterchain"
	"itinerary-shaper/internal/gtfs"
	"itinerary-shaper/internal/itinerary"
	"itinerary-shaper/internal/path"
)

// PlanRequest carries the raw candidates of one search plus the paging and
// filtering parameters of the request.
type PlanRequest struct {
	RequestID             string          `json:"requestId"`
	ServiceDate           string          `json:"serviceDate,omitempty"` // YYYY-MM-DD, defaults to the departure date
	From                  itinerary.Place `json:"from"`
	To                    itinerary.Place `json:"to"`
	EarliestDepartureTime time.Time       `json:"earliestDepartureTime"`
	LatestArrivalTime     *time.Time      `json:"latestArrivalTime,omitempty"`
	SearchWindowSec       int             `json:"searchWindowSec,omitempty" validate:"gte=0"`
	ArriveBy              bool            `json:"arriveBy,omitempty"`
	NumItineraries        *int            `json:"numItineraries,omitempty" validate:"omitempty,gte=-1"`
	DebugItineraryFilter  string          `json:"debugItineraryFilter,omitempty"`
	PageCursor            string          `json:"pageCursor,omitempty"`

	Candidates []Candidate    `json:"candidates" validate:"dive"`
	Direct     []DirectStreet `json:"direct,omitempty" validate:"dive"`
}

// Candidate is one raw search result. Times are seconds after the service day start.
type Candidate struct {
	IterationDepartureSec int          `json:"iterationDepartureSec"`
	Access                AccessEgress `json:"access"`
	Segments              []Segment    `json:"segments" validate:"dive"`
	TransferBeforeEgress  *Transfer    `json:"transferBeforeEgress,omitempty"`
	Egress                AccessEgress `json:"egress"`
	C2                    *int         `json:"c2,omitempty"`
}

type AccessEgress struct {
	StopID         string  `json:"stopId" validate:"required"`
	DurationSec    int     `json:"durationSec" validate:"gte=0"`
	C1             int     `json:"c1"`
	Rides          int     `json:"rides,omitempty"`
	TimePenaltySec int     `json:"timePenaltySec,omitempty"`
	Mode           string  `json:"mode,omitempty"`
	DistanceMeters float64 `json:"distanceMeters,omitempty"`
	OpenSec        *int    `json:"openSec,omitempty"`
	CloseSec       *int    `json:"closeSec,omitempty"`
}

type Transfer struct {
	ToStopID       string  `json:"toStopId" validate:"required"`
	DurationSec    int     `json:"durationSec" validate:"gte=0"`
	C1             int     `json:"c1"`
	DistanceMeters float64 `json:"distanceMeters,omitempty"`
}

// Segment is one ride. Positions index the stop times of the trip.
type Segment struct {
	TripID                   string    `json:"tripId" validate:"required"`
	BoardPos                 int       `json:"boardPos" validate:"gte=0"`
	AlightPos                int       `json:"alightPos"`
	ConstrainedTransferAfter string    `json:"constrainedTransferAfter,omitempty"`
	TransferBefore           *Transfer `json:"transferBefore,omitempty"`
}

// DirectStreet is a street-only result computed outside the transit search.
type DirectStreet struct {
	Mode           string    `json:"mode" validate:"required"`
	DepartureTime  time.Time `json:"departureTime"`
	DurationSec    int       `json:"durationSec" validate:"gte=0"`
	DistanceMeters float64   `json:"distanceMeters"`
	C1             int       `json:"c1"`
	Rental         bool      `json:"rental,omitempty"`
}

type PlanResult struct {
	RequestID          string                     `json:"requestId"`
	Itineraries        []*itinerary.Itinerary     `json:"itineraries"`
	RoutingErrors      []filterchain.RoutingError `json:"routingErrors,omitempty"`
	NextPageCursor     string                     `json:"nextPageCursor,omitempty"`
	PreviousPageCursor string                     `json:"previousPageCursor,omitempty"`
	SearchWindowUsed   int                        `json:"searchWindowUsedSec,omitempty"`
	DroppedCandidates  int                        `json:"droppedCandidates,omitempty"`
	Error              string                     `json:"error,omitempty"`
}

var ErrUnknownStop = errors.New("unknown stop")

// stopIndex returns the registry index of stopID. Requests never add stops.
func stopIndex(reg *gtfs.StopRegistry, stopID string) (int, error) {
	if idx, ok := reg.Index(stopID); ok {
		return idx, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownStop, stopID)
}

func (a AccessEgress) toPath(reg *gtfs.StopRegistry) (path.AccessEgress, error) {
	stop, err := stopIndex(reg, a.StopID)
	if err != nil {
		return path.AccessEgress{}, err
	}
	ae := path.AccessEgress{
		Stop:          stop,
		DurationSec:   a.DurationSec,
		C1:            a.C1,
		NumberOfRides: a.Rides,
		TimePenalty:   a.TimePenaltySec,
		Mode:          path.ParseStreetMode(a.Mode),
		Distance:      a.DistanceMeters,
	}
	if a.OpenSec != nil && a.CloseSec != nil {
		ae.Opening = &path.OpeningHours{Open: *a.OpenSec, Close: *a.CloseSec}
	}
	return ae, nil
}

func (t *Transfer) toPath(reg *gtfs.StopRegistry) (*path.Transfer, error) {
	if t == nil {
		return nil, nil
	}
	stop, err := stopIndex(reg, t.ToStopID)
	if err != nil {
		return nil, err
	}
	return &path.Transfer{
		ToStop:      stop,
		DurationSec: t.DurationSec,
		C1:          t.C1,
		Distance:    t.DistanceMeters,
	}, nil
}

func parseConstraint(s string) (path.TransferConstraint, error) {
	for _, c := range []path.TransferConstraint{path.Regular, path.Guaranteed, path.StaySeated} {
		if s == c.String() {
			return c, nil
		}
	}
	if s == "" {
		return path.Regular, nil
	}
	return path.Regular, fmt.Errorf("unknown transfer constraint %q", s)
}

// trace converts a candidate whose trips and stops are all known.
func (c Candidate) trace(reg *gtfs.StopRegistry, trips map[string]*gtfs.TripSchedule) (path.RawTrace, error) {
	t := path.RawTrace{IterationDepartureTime: c.IterationDepartureSec, C2: c.C2}
	var err error
	if t.Access, err = c.Access.toPath(reg); err != nil {
		return t, err
	}
	if t.TransferBeforeEgress, err = c.TransferBeforeEgress.toPath(reg); err != nil {
		return t, err
	}
	if t.Egress, err = c.Egress.toPath(reg); err != nil {
		return t, err
	}
	for _, s := range c.Segments {
		trip, ok := trips[s.TripID]
		if !ok {
			return t, fmt.Errorf("trip %s unavailable", s.TripID)
		}
		if s.BoardPos < 0 || s.AlightPos <= s.BoardPos || s.AlightPos >= trip.NumberOfStops() {
			return t, fmt.Errorf("trip %s: invalid positions %d..%d", s.TripID, s.BoardPos, s.AlightPos)
		}
		tx, err := parseConstraint(s.ConstrainedTransferAfter)
		if err != nil {
			return t, err
		}
		before, err := s.TransferBefore.toPath(reg)
		if err != nil {
			return t, err
		}
		t.Segments = append(t.Segments, path.TransitSegment{
			TransferBefore:           before,
			Trip:                     trip,
			BoardPos:                 s.BoardPos,
			AlightPos:                s.AlightPos,
			ConstrainedTransferAfter: tx,
		})
	}
	return t, nil
}

func (d DirectStreet) itinerary(from, to itinerary.Place) (*itinerary.Itinerary, error) {
	mode, err := itinerary.ParseMode(d.Mode)
	if err != nil {
		return nil, err
	}
	if mode.IsTransit() {
		return nil, fmt.Errorf("direct result with transit mode %s", mode)
	}
	leg := itinerary.Leg{
		Mode:            mode,
		From:            from,
		To:              to,
		StartTime:       d.DepartureTime,
		EndTime:         d.DepartureTime.Add(time.Duration(d.DurationSec) * time.Second),
		Distance:        d.DistanceMeters,
		GeneralizedCost: d.C1,
		Rental:          d.Rental,
	}
	return itinerary.NewStreetOnly([]itinerary.Leg{leg}, d.C1), nil
}
