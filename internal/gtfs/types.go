package gtfs

import "math"

type Trip struct {
	TripID    string
	RouteID   string
	ServiceID string
	// 0 no information, 1 accessible, 2 not accessible
	WheelchairAccessible int
}

type Route struct {
	RouteID   string
	ShortName string
	LongName  string
	RouteType int
	AgencyID  string
}

type StopTime struct {
	StopSequence      int
	ArrivalSec        int     // seconds since midnight (can exceed 24h)
	DepartureSec      int     // seconds since midnight (can exceed 24h)
	ShapeDistTraveled float64 // meters, if available; 0 if missing
	StopID            string
	StopLat           float64
	StopLon           float64
}

type Stop struct {
	Index         int
	StopID        string
	Name          string
	ParentStation string
	Lat           float64
	Lon           float64
	// 0 no information, 1 accessible, 2 not accessible
	WheelchairBoarding int
}

// Station returns the parent station id, or the stop id for a stop without parent.
func (s Stop) Station() string {
	if s.ParentStation != "" {
		return s.ParentStation
	}
	return s.StopID
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
