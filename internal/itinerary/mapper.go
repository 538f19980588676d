package itinerary

import (
	"time"

	"itinerary-shaper/internal/gtfs"
	"itinerary-shaper/internal/path"
)

// StopLookup resolves stop indexes used by paths.
type StopLookup interface {
	Stop(index int) (gtfs.Stop, bool)
}

// TransitTrip is the optional route and trip detail a path trip may carry.
type TransitTrip interface {
	path.TripSchedule
	RouteID() string
	RouteShortName() string
	RouteType() int
	WheelchairAccessible() int
	Distance(fromPos, toPos int) float64
}

// Mapper converts paths of one service day into itineraries.
type Mapper struct {
	Stops       StopLookup
	ServiceDay  time.Time
	Origin      Place
	Destination Place
}

// ServiceDayStart returns the GTFS service day reference ("noon minus 12h") of date.
func ServiceDayStart(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, loc).Add(-12 * time.Hour)
}

func (m Mapper) Map(p path.Path) *Itinerary {
	it := &Itinerary{
		GeneralizedCost:   p.C1,
		NumberOfTransfers: p.NumberOfTransfers,
		SearchWindowAware: true,
		Legs:              make([]Leg, 0, len(p.Legs)),
	}
	if p.C2 != path.NotSet {
		c2 := p.C2
		it.GeneralizedCost2 = &c2
	}
	for _, pl := range p.Legs {
		switch pl.Kind {
		case path.AccessLeg:
			it.AccessPenalty = time.Duration(pl.Street.TimePenalty) * time.Second
			if pl.Duration() == 0 {
				continue
			}
			it.Legs = append(it.Legs, m.streetLeg(pl, m.Origin, m.place(pl.ToStop)))
		case path.EgressLeg:
			it.EgressPenalty = time.Duration(pl.Street.TimePenalty) * time.Second
			if pl.Duration() == 0 {
				continue
			}
			it.Legs = append(it.Legs, m.streetLeg(pl, m.place(pl.FromStop), m.Destination))
		case path.TransferLeg:
			it.Legs = append(it.Legs, Leg{
				Mode:            Walk,
				From:            m.place(pl.FromStop),
				To:              m.place(pl.ToStop),
				StartTime:       m.at(pl.FromTime),
				EndTime:         m.at(pl.ToTime),
				Distance:        pl.Transfer.Distance,
				GeneralizedCost: pl.C1,
			})
		case path.TransitLeg:
			it.Legs = append(it.Legs, m.transitLeg(pl))
		}
	}
	return it
}

func (m Mapper) transitLeg(pl path.PathLeg) Leg {
	l := Leg{
		Mode:            Bus,
		From:            m.place(pl.FromStop),
		To:              m.place(pl.ToStop),
		StartTime:       m.at(pl.FromTime),
		EndTime:         m.at(pl.ToTime),
		GeneralizedCost: pl.C1,
		TripID:          pl.Trip.TripID(),
		StaySeated:      pl.StaySeated,
	}
	if t, ok := pl.Trip.(TransitTrip); ok {
		l.Mode = ModeFromRouteType(t.RouteType())
		l.RouteID = t.RouteID()
		l.RouteShortName = t.RouteShortName()
		l.TripWheelchair = Accessibility(t.WheelchairAccessible())
		l.Distance = t.Distance(pl.BoardPos, pl.AlightPos)
	}
	return l
}

func (m Mapper) streetLeg(pl path.PathLeg, from, to Place) Leg {
	l := Leg{
		From:            from,
		To:              to,
		StartTime:       m.at(pl.FromTime),
		EndTime:         m.at(pl.ToTime),
		Distance:        pl.Street.Distance,
		GeneralizedCost: pl.C1,
	}
	switch pl.Street.Mode {
	case path.Bicycle, path.BikeToPark:
		l.Mode = Bicycle
	case path.BikeRental:
		l.Mode, l.Rental = Bicycle, true
	case path.Car, path.CarToPark:
		l.Mode = Car
	case path.Flex:
		l.Mode = Flex
	default:
		l.Mode = Walk
	}
	return l
}

func (m Mapper) place(stop int) Place {
	if m.Stops == nil {
		return Place{}
	}
	s, ok := m.Stops.Stop(stop)
	if !ok {
		return Place{}
	}
	name := s.Name
	if name == "" {
		name = s.StopID
	}
	return Place{
		Name:       name,
		StopID:     s.StopID,
		Station:    s.Station(),
		Lat:        s.Lat,
		Lon:        s.Lon,
		Wheelchair: Accessibility(s.WheelchairBoarding),
	}
}

func (m Mapper) at(sec int) time.Time {
	return m.ServiceDay.Add(time.Duration(sec) * time.Second)
}
