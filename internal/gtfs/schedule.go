package gtfs

import (
	"fmt"
	"sync"
)

// TripSchedule is the timetable of one trip on one service day. It implements
// path.TripSchedule and the extra trip details used when mapping itineraries.
type TripSchedule struct {
	Trip      Trip
	Route     Route
	StopTimes []StopTime

	stops           []int
	cumDistance     []float64
	slackIndex      int
	reluctanceIndex int
}

// NewTripSchedule resolves the stop indexes of the stop times through the registry.
// Stop times must be ordered by stop sequence.
func NewTripSchedule(trip Trip, route Route, sts []StopTime, reg *StopRegistry) (*TripSchedule, error) {
	if len(sts) < 2 {
		return nil, fmt.Errorf("trip %s has %d stop times", trip.TripID, len(sts))
	}
	t := &TripSchedule{
		Trip:        trip,
		Route:       route,
		StopTimes:   sts,
		stops:       make([]int, len(sts)),
		cumDistance: cumDistances(sts),
		slackIndex:  route.RouteType,
	}
	for i, st := range sts {
		idx, ok := reg.Index(st.StopID)
		if !ok {
			idx = reg.Add(Stop{StopID: st.StopID, Lat: st.StopLat, Lon: st.StopLon})
		}
		t.stops[i] = idx
	}
	return t, nil
}

// SetModeIndex selects the slack and transit reluctance entries used for this trip.
func (t *TripSchedule) SetModeIndex(i int) { t.slackIndex, t.reluctanceIndex = i, i }

func (t *TripSchedule) TripID() string                { return t.Trip.TripID }
func (t *TripSchedule) DepartureTime(stopPos int) int { return t.StopTimes[stopPos].DepartureSec }
func (t *TripSchedule) ArrivalTime(stopPos int) int   { return t.StopTimes[stopPos].ArrivalSec }
func (t *TripSchedule) StopIndex(stopPos int) int     { return t.stops[stopPos] }
func (t *TripSchedule) NumberOfStops() int            { return len(t.stops) }
func (t *TripSchedule) SlackIndex() int               { return t.slackIndex }
func (t *TripSchedule) TransitReluctanceIndex() int   { return t.reluctanceIndex }
func (t *TripSchedule) RouteID() string               { return t.Route.RouteID }
func (t *TripSchedule) RouteShortName() string        { return t.Route.ShortName }
func (t *TripSchedule) RouteType() int                { return t.Route.RouteType }
func (t *TripSchedule) WheelchairAccessible() int     { return t.Trip.WheelchairAccessible }
func (t *TripSchedule) Distance(fromPos, toPos int) float64 {
	return t.cumDistance[toPos] - t.cumDistance[fromPos]
}

// cumDistances uses shape_dist_traveled when present and falls back to the
// straight-line distance between consecutive stops.
func cumDistances(sts []StopTime) []float64 {
	cum := make([]float64, len(sts))
	useShape := sts[len(sts)-1].ShapeDistTraveled > 0
	for i := 1; i < len(sts); i++ {
		var d float64
		if useShape {
			d = sts[i].ShapeDistTraveled - sts[i-1].ShapeDistTraveled
			if d < 0 {
				d = 0
			}
		} else {
			d = Haversine(sts[i-1].StopLat, sts[i-1].StopLon, sts[i].StopLat, sts[i].StopLon)
		}
		cum[i] = cum[i-1] + d
	}
	return cum
}

// StopRegistry assigns dense integer indexes to stop ids. It is safe for
// concurrent use.
type StopRegistry struct {
	mu    sync.RWMutex
	byID  map[string]int
	stops []Stop
}

func NewStopRegistry() *StopRegistry {
	return &StopRegistry{byID: make(map[string]int)}
}

// Add registers a stop and returns its index. Adding a known stop id updates
// its details and keeps the index, unless s carries neither a name nor
// coordinates.
func (r *StopRegistry) Add(s Stop) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.byID[s.StopID]; ok {
		if s.Name != "" || s.Lat != 0 || s.Lon != 0 {
			s.Index = idx
			r.stops[idx] = s
		}
		return idx
	}
	s.Index = len(r.stops)
	r.byID[s.StopID] = s.Index
	r.stops = append(r.stops, s)
	return s.Index
}

func (r *StopRegistry) Index(stopID string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byID[stopID]
	return idx, ok
}

func (r *StopRegistry) Stop(index int) (Stop, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.stops) {
		return Stop{}, false
	}
	return r.stops[index], true
}

// IndexedCosts lays out costs keyed by stop id as a slice indexed by stop
// index. Unknown stop ids are registered so a later load keeps their index.
func (r *StopRegistry) IndexedCosts(byID map[string]int) []int {
	if len(byID) == 0 {
		return nil
	}
	idx := make(map[int]int, len(byID))
	n := 0
	for id, cost := range byID {
		i, ok := r.Index(id)
		if !ok {
			i = r.Add(Stop{StopID: id})
		}
		idx[i] = cost
		n = max(n, i+1)
	}
	res := make([]int, n)
	for i, cost := range idx {
		res[i] = cost
	}
	return res
}

func (r *StopRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stops)
}
