package filterchain

import "itinerary-shaper/internal/itinerary"

// MaxLimit flags everything after the first max itineraries. The input is
// expected to be sorted.
type MaxLimit struct {
	name string
	max  int
}

// NewMaxLimit clamps max to at least one.
func NewMaxLimit(name string, max int) MaxLimit {
	return MaxLimit{name: name, max: max1(max)}
}

func (m MaxLimit) Name() string { return m.name }

func (m MaxLimit) FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	if len(itineraries) <= m.max {
		return nil
	}
	return itineraries[m.max:]
}

// Criterion reports whether a is strictly better than b on one criterion.
type Criterion func(a, b *itinerary.Itinerary) bool

func LowerGeneralizedCost(a, b *itinerary.Itinerary) bool {
	return a.GeneralizedCost < b.GeneralizedCost
}

func FewerTransfers(a, b *itinerary.Itinerary) bool { return a.NumberOfTransfers < b.NumberOfTransfers }

// BetterTransitGroupPriority compares c2 as a set of transit groups: a is
// better when its groups are a strict subset of b's.
func BetterTransitGroupPriority(a, b *itinerary.Itinerary) bool {
	if a.GeneralizedCost2 == nil || b.GeneralizedCost2 == nil {
		return false
	}
	x, y := *a.GeneralizedCost2, *b.GeneralizedCost2
	return x != y && x&^y == 0
}

// McMaxLimit keeps at most max itineraries chosen by pareto dominance over the
// criteria. The best itinerary for each criterion is kept first, then the
// remaining pareto-optimal ones, then the rest, each in input order.
type McMaxLimit struct {
	name     string
	max      int
	criteria []Criterion
}

func NewMcMaxLimit(name string, max int, criteria ...Criterion) McMaxLimit {
	return McMaxLimit{name: name, max: max1(max), criteria: criteria}
}

func (m McMaxLimit) Name() string { return m.name }

func (m McMaxLimit) FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	if len(itineraries) <= m.max {
		return nil
	}
	keep := make([]bool, len(itineraries))
	kept := 0
	mark := func(i int) {
		if !keep[i] && kept < m.max {
			keep[i] = true
			kept++
		}
	}
	for _, better := range m.criteria {
		for i := range itineraries {
			if m.isBest(itineraries, i, better) {
				mark(i)
				break
			}
		}
	}
	for i := range itineraries {
		if !m.isDominated(itineraries, i) {
			mark(i)
		}
	}
	for i := range itineraries {
		mark(i)
	}

	var res []*itinerary.Itinerary
	for i, it := range itineraries {
		if !keep[i] {
			res = append(res, it)
		}
	}
	return res
}

func (m McMaxLimit) isBest(its []*itinerary.Itinerary, i int, better Criterion) bool {
	for j := range its {
		if j != i && better(its[j], its[i]) {
			return false
		}
	}
	return true
}

func (m McMaxLimit) isDominated(its []*itinerary.Itinerary, i int) bool {
	for j := range its {
		if j != i && m.dominates(its[j], its[i]) {
			return true
		}
	}
	return false
}

func (m McMaxLimit) dominates(a, b *itinerary.Itinerary) bool {
	strictly := false
	for _, better := range m.criteria {
		if better(b, a) {
			return false
		}
		if better(a, b) {
			strictly = true
		}
	}
	return strictly
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
