package path

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTimeShiftable means no legal instant exists for a free leg; the
	// candidate is unusable.
	ErrNotTimeShiftable = errors.New("leg not time-shiftable")
	// ErrInvalidChain means the legs do not form access, [transfer] transit..., egress.
	ErrInvalidChain = errors.New("invalid leg chain")
)

// LegKind tags the variant stored in a leg.
type LegKind uint8

const (
	AccessLeg LegKind = iota
	TransferLeg
	TransitLeg
	EgressLeg
)

func (k LegKind) String() string {
	switch k {
	case AccessLeg:
		return "access"
	case TransferLeg:
		return "transfer"
	case TransitLeg:
		return "transit"
	case EgressLeg:
		return "egress"
	}
	return "unknown"
}

// LegRef addresses a leg inside the arena of one LegChain.
type LegRef int

const noLeg LegRef = -1

type transitPart struct {
	trip      TripSchedule
	boardPos  int
	alightPos int
	txAfter   TransferConstraint
}

type leg struct {
	kind LegKind

	street   *AccessEgress
	transfer *Transfer
	transit  *transitPart

	fromTime int
	toTime   int
	c1       int
	valid    bool

	prev LegRef
	next LegRef
}

// LegChain is the mutable leg sequence of one candidate path. Legs live in an
// arena and are linked by index. A chain is owned by its creator and must not
// be shared between goroutines.
type LegChain struct {
	slack                  SlackProvider
	cost                   CostCalculator
	iterationDepartureTime int
	c2                     int

	legs []leg
	head LegRef
	tail LegRef
}

// NewLegChain returns an empty chain. A nil cost calculator yields zero costs.
func NewLegChain(slack SlackProvider, cost CostCalculator, iterationDepartureTime int) *LegChain {
	return &LegChain{
		slack:                  slack,
		cost:                   cost,
		iterationDepartureTime: iterationDepartureTime,
		c2:                     NotSet,
		head:                   noLeg,
		tail:                   noLeg,
	}
}

func (c *LegChain) Access(a AccessEgress) LegRef {
	return c.push(leg{kind: AccessLeg, street: &a})
}

func (c *LegChain) Transfer(t Transfer) LegRef {
	return c.push(leg{kind: TransferLeg, transfer: &t})
}

func (c *LegChain) Transit(trip TripSchedule, boardPos, alightPos int, txAfter TransferConstraint) LegRef {
	return c.push(leg{kind: TransitLeg, transit: &transitPart{
		trip:      trip,
		boardPos:  boardPos,
		alightPos: alightPos,
		txAfter:   txAfter,
	}})
}

func (c *LegChain) Egress(e AccessEgress) LegRef {
	return c.push(leg{kind: EgressLeg, street: &e})
}

// SetC2 sets the optional secondary cost carried over to the path.
func (c *LegChain) SetC2(c2 int) { c.c2 = c2 }

func (c *LegChain) push(l leg) LegRef {
	l.fromTime, l.toTime = NotSet, NotSet
	l.prev, l.next = c.tail, noLeg
	ref := LegRef(len(c.legs))
	c.legs = append(c.legs, l)
	if c.tail != noLeg {
		c.legs[c.tail].next = ref
	} else {
		c.head = ref
	}
	c.tail = ref
	return ref
}

// Len returns the number of linked legs.
func (c *LegChain) Len() int {
	n := 0
	for r := c.head; r != noLeg; r = c.legs[r].next {
		n++
	}
	return n
}

// Kind returns the kind of the referenced leg.
func (c *LegChain) Kind(r LegRef) LegKind { return c.legs[r].kind }

// Next returns the leg after r and false when r is the last one.
func (c *LegChain) Next(r LegRef) (LegRef, bool) {
	n := c.legs[r].next
	return n, n != noLeg
}

// Head returns the first leg.
func (c *LegChain) Head() LegRef { return c.head }

// Mutate returns a structurally independent copy of the chain. Every leg is
// copied into a fresh arena slot; the legs from r onward, and the free legs
// shifted towards r, are marked for recomputation. The returned ref addresses
// the copy of r.
func (c *LegChain) Mutate(r LegRef) (*LegChain, LegRef) {
	n := &LegChain{
		slack:                  c.slack,
		cost:                   c.cost,
		iterationDepartureTime: c.iterationDepartureTime,
		c2:                     c.c2,
		legs:                   make([]leg, 0, len(c.legs)),
		head:                   noLeg,
		tail:                   noLeg,
	}
	mapped := noLeg
	for it := c.head; it != noLeg; it = c.legs[it].next {
		src := c.legs[it]
		cp := src
		if src.transit != nil {
			t := *src.transit
			cp.transit = &t
		}
		cp.prev, cp.next = n.tail, noLeg
		ref := LegRef(len(n.legs))
		n.legs = append(n.legs, cp)
		if n.tail != noLeg {
			n.legs[n.tail].next = ref
		} else {
			n.head = ref
		}
		n.tail = ref
		if it == r {
			mapped = ref
		}
	}
	if mapped != noLeg {
		n.invalidate(mapped)
	}
	return n, mapped
}

// ChangeBoardingPosition moves the boarding of a transit leg to another stop
// position on the same trip.
func (c *LegChain) ChangeBoardingPosition(r LegRef, stopPos int) error {
	l := &c.legs[r]
	if l.kind != TransitLeg {
		return fmt.Errorf("change boarding on %s leg: %w", l.kind, ErrInvalidChain)
	}
	if stopPos < 0 || stopPos >= l.transit.alightPos {
		return fmt.Errorf("boarding position %d outside [0,%d): %w", stopPos, l.transit.alightPos, ErrInvalidChain)
	}
	l.transit.boardPos = stopPos
	c.invalidate(r)
	return nil
}

// ChangeAlightPosition moves the alighting of a transit leg to another stop
// position on the same trip.
func (c *LegChain) ChangeAlightPosition(r LegRef, stopPos int) error {
	l := &c.legs[r]
	if l.kind != TransitLeg {
		return fmt.Errorf("change alighting on %s leg: %w", l.kind, ErrInvalidChain)
	}
	if stopPos <= l.transit.boardPos || stopPos >= l.transit.trip.NumberOfStops() {
		return fmt.Errorf("alight position %d outside (%d,%d): %w", stopPos, l.transit.boardPos, l.transit.trip.NumberOfStops(), ErrInvalidChain)
	}
	l.transit.alightPos = stopPos
	c.invalidate(r)
	return nil
}

// SetConstrainedTransferAfter attaches a transfer constraint to the transit leg
// r, affecting the boarding cost of the next transit leg.
func (c *LegChain) SetConstrainedTransferAfter(r LegRef, tx TransferConstraint) error {
	l := &c.legs[r]
	if l.kind != TransitLeg {
		return fmt.Errorf("constrained transfer on %s leg: %w", l.kind, ErrInvalidChain)
	}
	l.transit.txAfter = tx
	c.invalidate(r)
	return nil
}

// invalidate marks r, everything downstream of it and the free legs directly
// in front of it for recomputation.
func (c *LegChain) invalidate(r LegRef) {
	for it := c.legs[r].prev; it != noLeg && c.legs[it].kind != TransitLeg; it = c.legs[it].prev {
		c.legs[it].valid = false
	}
	for it := r; it != noLeg; it = c.legs[it].next {
		c.legs[it].valid = false
	}
}

// Build time-shifts the free legs, computes leg costs and freezes the chain
// into a Path. Only legs marked for recomputation are touched, so calling Build
// again on an unchanged chain returns the same Path.
func (c *LegChain) Build() (Path, error) {
	if err := c.validate(); err != nil {
		return Path{}, err
	}
	for r := c.head; r != noLeg; r = c.legs[r].next {
		if c.legs[r].valid {
			continue
		}
		if err := c.timeShift(r); err != nil {
			return Path{}, fmt.Errorf("%s leg: %w", c.legs[r].kind, err)
		}
	}
	prevTo := NotSet
	for r := c.head; r != noLeg; r = c.legs[r].next {
		l := c.legs[r]
		if l.toTime < l.fromTime || (prevTo != NotSet && l.fromTime < prevTo) {
			return Path{}, fmt.Errorf("%s leg at %d starts before previous leg ends at %d: %w", l.kind, l.fromTime, prevTo, ErrNotTimeShiftable)
		}
		prevTo = l.toTime
	}
	for r := c.head; r != noLeg; r = c.legs[r].next {
		if !c.legs[r].valid {
			c.legs[r].c1 = c.legCost(r)
		}
	}
	for r := c.head; r != noLeg; r = c.legs[r].next {
		c.legs[r].valid = true
	}
	return c.freeze(), nil
}

func (c *LegChain) validate() error {
	if c.head == noLeg || c.legs[c.head].kind != AccessLeg {
		return fmt.Errorf("chain must start with access: %w", ErrInvalidChain)
	}
	if c.legs[c.tail].kind != EgressLeg {
		return fmt.Errorf("chain must end with egress: %w", ErrInvalidChain)
	}
	for r := c.legs[c.head].next; r != noLeg; r = c.legs[r].next {
		l := c.legs[r]
		prev := c.legs[l.prev]
		switch l.kind {
		case AccessLeg:
			return fmt.Errorf("access leg after %s: %w", prev.kind, ErrInvalidChain)
		case TransferLeg:
			if prev.kind != AccessLeg && prev.kind != TransitLeg {
				return fmt.Errorf("transfer leg after %s: %w", prev.kind, ErrInvalidChain)
			}
		case TransitLeg:
			pos := l.transit
			if pos.boardPos < 0 || pos.alightPos <= pos.boardPos || pos.alightPos >= pos.trip.NumberOfStops() {
				return fmt.Errorf("trip %s board %d alight %d: %w", pos.trip.TripID(), pos.boardPos, pos.alightPos, ErrInvalidChain)
			}
			if c.toStop(l.prev) != pos.trip.StopIndex(pos.boardPos) {
				return fmt.Errorf("trip %s boards at stop %d, previous leg ends at %d: %w",
					pos.trip.TripID(), pos.trip.StopIndex(pos.boardPos), c.toStop(l.prev), ErrInvalidChain)
			}
		case EgressLeg:
			if l.next != noLeg {
				return fmt.Errorf("egress leg is not last: %w", ErrInvalidChain)
			}
		}
	}
	return nil
}

func (c *LegChain) timeShift(r LegRef) error {
	l := &c.legs[r]
	switch l.kind {
	case AccessLeg:
		return c.timeShiftAccess(r)
	case TransferLeg:
		c.timeShiftTransfer(r)
	case TransitLeg:
		l.fromTime = l.transit.trip.DepartureTime(l.transit.boardPos)
		l.toTime = l.transit.trip.ArrivalTime(l.transit.alightPos)
	case EgressLeg:
		return c.timeShiftEgress(r)
	}
	return nil
}

// timeShiftAccess moves the access to arrive just in time for the first
// boarding, or to depart at the iteration departure time when no transit follows.
func (c *LegChain) timeShiftAccess(r LegRef) error {
	l := &c.legs[r]
	a := l.street
	next := c.nextTransit(r)
	if next == noLeg {
		dep := a.EarliestDepartureTime(c.iterationDepartureTime)
		if dep == NotSet {
			return ErrNotTimeShiftable
		}
		l.fromTime, l.toTime = dep, dep+a.DurationSec
		return nil
	}
	t := c.legs[next].transit
	to := t.trip.DepartureTime(t.boardPos) - c.slack.BoardSlack(t.trip.SlackIndex())
	if a.HasRides() {
		to -= c.slack.TransferSlack()
	}
	if n := c.legs[l.next]; n.kind == TransferLeg {
		to -= n.transfer.DurationSec
	}
	to = a.LatestArrivalTime(to)
	if to == NotSet {
		return ErrNotTimeShiftable
	}
	l.fromTime, l.toTime = to-a.DurationSec, to
	return nil
}

func (c *LegChain) timeShiftTransfer(r LegRef) {
	l := &c.legs[r]
	from := c.stopArrivalTime(l.prev)
	l.fromTime, l.toTime = from, from+l.transfer.DurationSec
}

func (c *LegChain) timeShiftEgress(r LegRef) error {
	l := &c.legs[r]
	e := l.street
	dep := c.stopArrivalTime(l.prev)
	if e.HasRides() {
		dep += c.slack.TransferSlack()
	}
	dep = e.EarliestDepartureTime(dep)
	if dep == NotSet {
		return ErrNotTimeShiftable
	}
	l.fromTime, l.toTime = dep, dep+e.DurationSec
	return nil
}

// stopArrivalTime is the time the traveller is ready at the stop reached by r,
// alight slack included for transit.
func (c *LegChain) stopArrivalTime(r LegRef) int {
	l := c.legs[r]
	if l.kind == TransitLeg {
		return l.toTime + c.slack.AlightSlack(l.transit.trip.SlackIndex())
	}
	return l.toTime
}

func (c *LegChain) nextTransit(r LegRef) LegRef {
	for it := c.legs[r].next; it != noLeg; it = c.legs[it].next {
		if c.legs[it].kind == TransitLeg {
			return it
		}
	}
	return noLeg
}

// prevTransit returns the transit leg before r, skipping at most one transfer.
func (c *LegChain) prevTransit(r LegRef) LegRef {
	it := c.legs[r].prev
	if it != noLeg && c.legs[it].kind == TransferLeg {
		it = c.legs[it].prev
	}
	if it != noLeg && c.legs[it].kind == TransitLeg {
		return it
	}
	return noLeg
}

func (c *LegChain) toStop(r LegRef) int {
	l := c.legs[r]
	switch l.kind {
	case AccessLeg:
		return l.street.Stop
	case TransferLeg:
		return l.transfer.ToStop
	case TransitLeg:
		return l.transit.trip.StopIndex(l.transit.alightPos)
	}
	return -1
}

func (c *LegChain) legCost(r LegRef) int {
	if c.cost == nil {
		return 0
	}
	l := c.legs[r]
	switch l.kind {
	case AccessLeg:
		return l.street.C1
	case TransferLeg:
		return l.transfer.C1
	case TransitLeg:
		return c.transitCost(r)
	case EgressLeg:
		cost := c.cost.CostEgress(*l.street)
		if l.prev != noLeg {
			cost += c.cost.WaitCost(l.fromTime - c.stopArrivalTime(l.prev))
		}
		return cost
	}
	return 0
}

func (c *LegChain) transitCost(r LegRef) int {
	l := c.legs[r]
	t := l.transit
	prevArrival := l.fromTime
	firstBoarding := false
	if l.prev != noLeg {
		prevArrival = c.stopArrivalTime(l.prev)
		p := c.legs[l.prev]
		firstBoarding = p.kind == AccessLeg && !p.street.HasRides()
	}
	constraint := Regular
	if pt := c.prevTransit(r); pt != noLeg {
		constraint = c.legs[pt].transit.txAfter
	}
	boardStop := t.trip.StopIndex(t.boardPos)
	board := c.cost.BoardingCost(firstBoarding, prevArrival, boardStop, l.fromTime, t.trip, constraint)
	return c.cost.TransitArrivalCost(
		board,
		c.slack.AlightSlack(t.trip.SlackIndex()),
		l.toTime-l.fromTime,
		t.trip,
		t.trip.StopIndex(t.alightPos),
	)
}

func (c *LegChain) freeze() Path {
	p := Path{
		IterationDepartureTime: c.iterationDepartureTime,
		C2:                     c.c2,
		Legs:                   make([]PathLeg, 0, len(c.legs)),
	}
	rides := 0
	for r := c.head; r != noLeg; r = c.legs[r].next {
		l := c.legs[r]
		pl := PathLeg{
			Kind:     l.kind,
			FromStop: -1,
			ToStop:   c.toStop(r),
			FromTime: l.fromTime,
			ToTime:   l.toTime,
			C1:       l.c1,
		}
		if l.prev != noLeg {
			pl.FromStop = c.toStop(l.prev)
		}
		switch l.kind {
		case AccessLeg, EgressLeg:
			pl.Street = *l.street
			rides += l.street.NumberOfRides
		case TransferLeg:
			pl.Transfer = *l.transfer
		case TransitLeg:
			pl.Trip = l.transit.trip
			pl.BoardPos = l.transit.boardPos
			pl.AlightPos = l.transit.alightPos
			pl.ConstrainedTransferAfter = l.transit.txAfter
			pt := c.prevTransit(r)
			if pt == noLeg || c.legs[pt].transit.txAfter != StaySeated {
				rides++
			} else {
				pl.StaySeated = true
			}
		}
		p.C1 += l.c1
		p.Legs = append(p.Legs, pl)
	}
	access, egress := c.legs[c.head], c.legs[c.tail]
	p.StartTime = access.fromTime
	p.EndTime = egress.toTime
	p.StartTimeInclPenalty = access.fromTime - access.street.TimePenalty
	p.EndTimeInclPenalty = egress.toTime + egress.street.TimePenalty
	p.NumberOfTransfers = max(0, rides-1)
	return p
}
