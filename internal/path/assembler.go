package path

import "log"

// TransitSegment is one ride of a raw search trace.
type TransitSegment struct {
	TransferBefore           *Transfer
	Trip                     TripSchedule
	BoardPos                 int
	AlightPos                int
	ConstrainedTransferAfter TransferConstraint
}

// RawTrace is a candidate journey as emitted by the search, with nominal times.
type RawTrace struct {
	IterationDepartureTime int
	Access                 AccessEgress
	Segments               []TransitSegment
	TransferBeforeEgress   *Transfer
	Egress                 AccessEgress
	C2                     *int
}

// AssemblerMetrics is implemented by the metrics collector. A nil value disables metrics.
type AssemblerMetrics interface {
	PathAssembled()
	PathUnusable()
}

// Assembler turns raw traces into paths.
type Assembler struct {
	slack   SlackProvider
	cost    CostCalculator
	metrics AssemblerMetrics
}

func NewAssembler(slack SlackProvider, cost CostCalculator, m AssemblerMetrics) *Assembler {
	return &Assembler{slack: slack, cost: cost, metrics: m}
}

// Chain links the legs of a trace without building it.
func (a *Assembler) Chain(t RawTrace) *LegChain {
	c := NewLegChain(a.slack, a.cost, t.IterationDepartureTime)
	c.Access(t.Access)
	for _, s := range t.Segments {
		if s.TransferBefore != nil {
			c.Transfer(*s.TransferBefore)
		}
		c.Transit(s.Trip, s.BoardPos, s.AlightPos, s.ConstrainedTransferAfter)
	}
	if t.TransferBeforeEgress != nil {
		c.Transfer(*t.TransferBeforeEgress)
	}
	c.Egress(t.Egress)
	if t.C2 != nil {
		c.SetC2(*t.C2)
	}
	return c
}

// Assemble builds one path. ErrNotTimeShiftable and ErrInvalidChain mark the
// candidate as unusable.
func (a *Assembler) Assemble(t RawTrace) (Path, error) {
	return a.Chain(t).Build()
}

// AssembleAll builds every usable path and returns how many candidates were dropped.
func (a *Assembler) AssembleAll(traces []RawTrace) ([]Path, int) {
	paths := make([]Path, 0, len(traces))
	dropped := 0
	for i, t := range traces {
		p, err := a.Assemble(t)
		if err != nil {
			log.Printf("drop candidate path %d: %v", i, err)
			dropped++
			if a.metrics != nil {
				a.metrics.PathUnusable()
			}
			continue
		}
		if a.metrics != nil {
			a.metrics.PathAssembled()
		}
		paths = append(paths, p)
	}
	return paths, dropped
}
