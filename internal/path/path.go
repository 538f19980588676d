package path

import (
	"fmt"
	"strings"
)

// PathLeg is one frozen leg. Street is set for access and egress legs,
// Transfer for transfer legs and the trip fields for transit legs.
type PathLeg struct {
	Kind     LegKind
	FromStop int
	ToStop   int
	FromTime int
	ToTime   int
	C1       int

	Street   AccessEgress
	Transfer Transfer

	Trip                     TripSchedule
	BoardPos                 int
	AlightPos                int
	ConstrainedTransferAfter TransferConstraint
	StaySeated               bool
}

// Duration returns the leg duration in seconds.
func (l PathLeg) Duration() int { return l.ToTime - l.FromTime }

// Path is an immutable, time-resolved and costed journey candidate. Values are
// shared read-only once built.
type Path struct {
	IterationDepartureTime int
	StartTime              int
	EndTime                int
	StartTimeInclPenalty   int
	EndTimeInclPenalty     int
	C1                     int
	C2                     int
	NumberOfTransfers      int
	Legs                   []PathLeg
}

// Duration returns the travel time without time penalties.
func (p Path) Duration() int { return p.EndTime - p.StartTime }

// TransitLegs returns the number of transit legs.
func (p Path) TransitLegs() int {
	n := 0
	for _, l := range p.Legs {
		if l.Kind == TransitLeg {
			n++
		}
	}
	return n
}

// String renders the path in a compact form, e.g.
// "Walk 2m ~ 3 ~ BUS T1 10:02 10:20 ~ 7 ~ Walk 1m [10:00 10:21 C₁1320 Tₓ0]".
func (p Path) String() string {
	var b strings.Builder
	for i, l := range p.Legs {
		if i > 0 {
			b.WriteString(" ~ ")
		}
		switch l.Kind {
		case AccessLeg, EgressLeg:
			fmt.Fprintf(&b, "%s %s", titleMode(l.Street.Mode), durationStr(l.Duration()))
			if l.Kind == AccessLeg {
				fmt.Fprintf(&b, " ~ %d", l.ToStop)
			}
		case TransferLeg:
			fmt.Fprintf(&b, "Walk %s ~ %d", durationStr(l.Duration()), l.ToStop)
		case TransitLeg:
			fmt.Fprintf(&b, "%s %s %s ~ %d", l.Trip.TripID(), TimeStr(l.FromTime), TimeStr(l.ToTime), l.ToStop)
		}
	}
	fmt.Fprintf(&b, " [%s %s C₁%d Tₓ%d]", TimeStr(p.StartTime), TimeStr(p.EndTime), p.C1, p.NumberOfTransfers)
	return b.String()
}

// TimeStr formats seconds since midnight as HH:MM, or HH:MM:SS when seconds are set.
func TimeStr(t int) string {
	if t == NotSet {
		return "-"
	}
	h, m, s := t/3600, (t/60)%60, t%60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func durationStr(sec int) string {
	if sec%60 != 0 {
		return fmt.Sprintf("%ds", sec)
	}
	return fmt.Sprintf("%dm", sec/60)
}

func titleMode(m StreetMode) string {
	s := m.String()
	return s[:1] + strings.ToLower(s[1:])
}
