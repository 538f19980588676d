package path

import "math"

// SlackProvider supplies the minimum buffers around board, alight and transfer events.
type SlackProvider interface {
	BoardSlack(slackIndex int) int
	AlightSlack(slackIndex int) int
	TransferSlack() int
}

// StaticSlack is a SlackProvider with one value per event type and optional
// per slack-index overrides.
type StaticSlack struct {
	TransferSec   int
	BoardSec      int
	AlightSec     int
	BoardByIndex  map[int]int
	AlightByIndex map[int]int
}

func (s StaticSlack) BoardSlack(slackIndex int) int {
	if v, ok := s.BoardByIndex[slackIndex]; ok {
		return v
	}
	return s.BoardSec
}

func (s StaticSlack) AlightSlack(slackIndex int) int {
	if v, ok := s.AlightByIndex[slackIndex]; ok {
		return v
	}
	return s.AlightSec
}

func (s StaticSlack) TransferSlack() int { return s.TransferSec }

// CostCalculator computes the generalized cost (c1) contributions of transit
// boardings, rides, waiting and egress.
type CostCalculator interface {
	BoardingCost(firstBoarding bool, prevArrivalTime, boardStop, boardTime int, trip TripSchedule, constraint TransferConstraint) int
	TransitArrivalCost(boardingCost, alightSlack, transitTime int, trip TripSchedule, toStop int) int
	WaitCost(waitTimeSec int) int
	CostEgress(egress AccessEgress) int
}

// DefaultCostCalculator weighs time by reluctance factors and adds fixed board
// and transfer costs.
type DefaultCostCalculator struct {
	BoardCost         int
	TransferCost      int
	WaitReluctance    float64
	TransitReluctance []float64
	StopTransferCost  []int
}

func (c DefaultCostCalculator) BoardingCost(firstBoarding bool, prevArrivalTime, boardStop, boardTime int, trip TripSchedule, constraint TransferConstraint) int {
	wait := boardTime - prevArrivalTime
	if !firstBoarding {
		switch constraint {
		case StaySeated:
			// time spent on board counts as riding
			return round(float64(wait) * c.transitFactor(trip))
		case Guaranteed:
			return c.WaitCost(wait)
		}
	}
	cost := c.WaitCost(wait)
	if firstBoarding {
		cost += c.BoardCost
	} else {
		cost += c.TransferCost
	}
	return cost + c.stopCost(boardStop)
}

func (c DefaultCostCalculator) TransitArrivalCost(boardingCost, alightSlack, transitTime int, trip TripSchedule, toStop int) int {
	cost := round(float64(transitTime)*c.transitFactor(trip)) + c.WaitCost(alightSlack)
	return boardingCost + cost + c.stopCost(toStop)
}

func (c DefaultCostCalculator) WaitCost(waitTimeSec int) int {
	return round(float64(waitTimeSec) * c.WaitReluctance)
}

func (c DefaultCostCalculator) CostEgress(egress AccessEgress) int {
	if egress.HasRides() {
		return egress.C1 + c.TransferCost
	}
	return egress.C1
}

func (c DefaultCostCalculator) transitFactor(trip TripSchedule) float64 {
	if trip == nil {
		return 1.0
	}
	i := trip.TransitReluctanceIndex()
	if i >= 0 && i < len(c.TransitReluctance) {
		return c.TransitReluctance[i]
	}
	return 1.0
}

func (c DefaultCostCalculator) stopCost(stop int) int {
	if stop >= 0 && stop < len(c.StopTransferCost) {
		return c.StopTransferCost[stop]
	}
	return 0
}

func round(v float64) int { return int(math.Round(v)) }
