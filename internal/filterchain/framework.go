package filterchain

import (
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"itinerary-shaper/internal/itinerary"
)

// Filter is one stage of the chain. Implementations return a new slice and
// never modify the one they receive.
type Filter interface {
	Filter(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary
}

// Flagger selects itineraries to remove. The returned itineraries must be
// members of the input.
type Flagger interface {
	Name() string
	FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary
}

// Flaggers implement skipper to also see itineraries already flagged by an
// earlier stage. Without it flagged itineraries are hidden from the flagger.
type skipper interface {
	SkipAlreadyFlagged() bool
}

// Decorator attaches derived data to an itinerary. It never removes or reorders.
type Decorator interface {
	Decorate(it *itinerary.Itinerary)
}

// Observer receives chain events. The metrics collector implements it; it must
// be safe for concurrent use when group-by buckets run in parallel.
type Observer interface {
	ItineraryFlagged(filter string)
	ChainFinished(in, out int, elapsed time.Duration)
	RoutingErrorRaised(code string)
}

// RemoveFilter flags the itineraries chosen by its Flagger. Physical deletion
// is left to the DeleteResultHandler at the end of the chain.
type RemoveFilter struct {
	flagger  Flagger
	observer Observer
}

func NewRemoveFilter(f Flagger, o Observer) *RemoveFilter {
	return &RemoveFilter{flagger: f, observer: o}
}

func (f *RemoveFilter) Filter(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	input := itineraries
	if s, ok := f.flagger.(skipper); !ok || s.SkipAlreadyFlagged() {
		input = unflagged(itineraries)
	}
	name := f.flagger.Name()
	for _, it := range f.flagger.FlagForRemoval(input) {
		if it.HasFlag(name) {
			continue
		}
		it.Flag(name, fmt.Sprintf("This itinerary is marked as deleted by the %s filter.", name))
		if f.observer != nil {
			f.observer.ItineraryFlagged(name)
		}
	}
	return slices.Clone(itineraries)
}

func unflagged(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	res := make([]*itinerary.Itinerary, 0, len(itineraries))
	for _, it := range itineraries {
		if !it.IsFlagged() {
			res = append(res, it)
		}
	}
	return res
}

// SortingFilter orders itineraries with a stable sort.
type SortingFilter struct {
	cmp func(a, b *itinerary.Itinerary) int
}

func NewSortingFilter(cmp func(a, b *itinerary.Itinerary) int) *SortingFilter {
	return &SortingFilter{cmp: cmp}
}

func (f *SortingFilter) Filter(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	res := slices.Clone(itineraries)
	slices.SortStableFunc(res, f.cmp)
	return res
}

// GroupByFilter partitions itineraries by key, runs the nested filters on each
// group and concatenates the groups in order of first occurrence. After, when
// set, runs once over the concatenated result.
type GroupByFilter struct {
	key         func(*itinerary.Itinerary) string
	nested      []Filter
	after       Filter
	concurrency int
}

// NewGroupByFilter creates a group stage. A concurrency above one evaluates
// groups in parallel; the output order does not depend on it.
func NewGroupByFilter(key func(*itinerary.Itinerary) string, nested []Filter, after Filter, concurrency int) *GroupByFilter {
	return &GroupByFilter{key: key, nested: nested, after: after, concurrency: concurrency}
}

func (f *GroupByFilter) Filter(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	var keys []string
	groups := make(map[string][]*itinerary.Itinerary)
	for _, it := range itineraries {
		k := f.key(it)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], it)
	}

	results := make([][]*itinerary.Itinerary, len(keys))
	run := func(i int) {
		list := groups[keys[i]]
		for _, n := range f.nested {
			list = n.Filter(list)
		}
		results[i] = list
	}
	if f.concurrency > 1 && len(keys) > 1 {
		var g errgroup.Group
		g.SetLimit(f.concurrency)
		for i := range keys {
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range keys {
			run(i)
		}
	}

	res := make([]*itinerary.Itinerary, 0, len(itineraries))
	for _, r := range results {
		res = append(res, r...)
	}
	if f.after != nil {
		res = f.after.Filter(res)
	}
	return res
}

// DecorateFilter applies a Decorator to every itinerary.
type DecorateFilter struct {
	decorator Decorator
}

func NewDecorateFilter(d Decorator) *DecorateFilter {
	return &DecorateFilter{decorator: d}
}

func (f *DecorateFilter) Filter(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	for _, it := range itineraries {
		f.decorator.Decorate(it)
	}
	return slices.Clone(itineraries)
}
