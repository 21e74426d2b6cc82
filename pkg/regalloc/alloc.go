// Package regalloc maps the virtual values of a shader onto the physical
// register file by greedy graph coloring, spilling values to scratch memory
// and retrying whenever the coloring does not fit.
package regalloc

import (
	"context"
	"sort"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"

	"github.com/raymyers/ralph-ra/pkg/hw"
	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/liveness"
)

// LivenessFunc computes live ranges for the current instruction stream.
type LivenessFunc func(p *ir.Program, cfg hw.Config) *liveness.Info

// DefaultLiveness runs liveness.Analyze over the payload slots and message registers of cfg
func DefaultLiveness(p *ir.Program, cfg hw.Config) *liveness.Info {
	return liveness.Analyze(p, cfg.PayloadSlots, cfg.AliasWindow)
}

// Options tune a single allocation.
type Options struct {
	// Liveness is the live-range oracle; DefaultLiveness when nil
	Liveness LivenessFunc
	// MaxIterations caps the number of spill-and-retry rounds; 0 means no cap.
	// Spills made up front by SpillAll do not count against it.
	MaxIterations int
	// SpillAll spills every spillable value before the first coloring (debugging aid)
	SpillAll bool
	// OnGraph is called with every interference graph built, before coloring
	OnGraph func(g *Graph, attempt int)
	// Metrics records allocator activity; may be nil
	Metrics *Metrics
}

// AllocationResult holds the result of register allocation
type AllocationResult struct {
	// Colors maps each live virtual value to its first physical slot
	Colors map[int]int
	// Spilled lists the values moved to scratch memory, in spill order
	Spilled []int
	// ScratchSize is the scratch memory needed for spills, in bytes
	ScratchSize int
	// Iterations is the number of spill-and-retry rounds
	Iterations int
	// RegistersUsed is one past the highest slot holding a value or payload
	RegistersUsed int
}

// Allocator runs the build, color, spill loop for one program.
// An Allocator must not be shared between goroutines.
type Allocator struct {
	prog    *ir.Program
	cfg     hw.Config
	opts    Options
	spiller *spiller

	info    *liveness.Info // nil when stale
	spilled []int
	forced  int // leading entries of spilled made by SpillAll
}

// NewAllocator creates a new register allocator
func NewAllocator(p *ir.Program, cfg hw.Config, opts Options) *Allocator {
	if opts.Liveness == nil {
		opts.Liveness = DefaultLiveness
	}
	return &Allocator{
		prog:    p,
		cfg:     cfg,
		opts:    opts,
		spiller: newSpiller(p, cfg),
	}
}

// AllocateProgram performs register allocation for a program
func AllocateProgram(ctx context.Context, p *ir.Program, cfg hw.Config, opts Options) (*AllocationResult, error) {
	return NewAllocator(p, cfg, opts).Allocate(ctx)
}

// Allocate colors the program, spilling as needed, and on success rewrites
// every operand to its physical location. The only error outcomes are an
// invalid input, a cancelled context and *AllocationError.
func (a *Allocator) Allocate(ctx context.Context) (*AllocationResult, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := a.prog.Validate(); err != nil {
		return nil, err
	}
	if err := CheckOperands(a.prog, a.cfg); err != nil {
		return nil, err
	}
	logger := log.G(ctx).WithField("shader", a.prog.Name)

	if a.opts.SpillAll {
		a.spillEverything(logger)
		a.forced = len(a.spilled)
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		g := Build(a.prog, a.liveness(), a.cfg)
		if a.opts.OnGraph != nil {
			a.opts.OnGraph(g, attempt)
		}
		a.opts.Metrics.attempt()

		witness, ok := g.Color(g.Order())
		if ok {
			result := a.finish(g)
			a.opts.Metrics.done("ok", result.Iterations)
			logger.WithFields(logrus.Fields{
				"attempts":  attempt + 1,
				"spills":    len(a.spilled),
				"registers": result.RegistersUsed,
			}).Debug("register allocation succeeded")
			return result, nil
		}

		logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"node":    witness,
			"size":    g.Nodes[witness].Size,
		}).Debug("coloring failed")

		node, costs, ok := g.SelectSpill(a.prog, a.cfg.LoopWeight)
		if !ok {
			a.opts.Metrics.done("out_of_registers", len(a.spilled))
			return nil, a.fatal(ErrOutOfRegisters, witness, costs)
		}
		if a.opts.MaxIterations > 0 && len(a.spilled)-a.forced >= a.opts.MaxIterations {
			a.opts.Metrics.done("iteration_limit", len(a.spilled))
			return nil, a.fatal(ErrIterationLimit, witness, costs)
		}
		a.spillValue(node, logger)
	}
}

// liveness returns the cached live ranges, recomputing them when stale
func (a *Allocator) liveness() *liveness.Info {
	if a.info == nil {
		a.info = a.opts.Liveness(a.prog, a.cfg)
	}
	return a.info
}

func (a *Allocator) spillValue(v int, logger *logrus.Entry) {
	offset, temps := a.spiller.spill(v)
	a.spilled = append(a.spilled, v)
	// The stream changed; every cached range is stale.
	a.info = nil
	a.opts.Metrics.spill()
	logger.WithFields(logrus.Fields{
		"node":    v,
		"offset":  offset,
		"temps":   len(temps),
		"scratch": a.spiller.scratchSize(),
	}).Debug("spilled value")
}

// spillEverything spills each value the selector would accept, once.
func (a *Allocator) spillEverything(logger *logrus.Entry) {
	g := Build(a.prog, a.liveness(), a.cfg)
	_, costs, _ := g.SelectSpill(a.prog, a.cfg.LoopWeight)
	for _, c := range costs {
		if !c.Unspillable && c.Cost > 0 {
			a.spillValue(c.Node, logger)
		}
	}
}

func (a *Allocator) fatal(err error, witness int, costs []SpillCost) *AllocationError {
	return &AllocationError{
		Err:       err,
		Shader:    a.prog.Name,
		Witness:   witness,
		Iteration: len(a.spilled),
		Costs:     costs,
	}
}

// finish records the coloring and rewrites the program to physical registers.
func (a *Allocator) finish(g *Graph) *AllocationResult {
	result := &AllocationResult{
		Colors:      make(map[int]int),
		Spilled:     append([]int(nil), a.spilled...),
		ScratchSize: a.spiller.scratchSize(),
		Iterations:  len(a.spilled),
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Kind == KindAlias || n.Color == NoColor {
			continue
		}
		if n.Kind == KindVirtual {
			result.Colors[n.ID] = n.Color
		}
		result.RegistersUsed = max(result.RegistersUsed, n.Color+n.Size)
	}

	AssignRegisters(a.prog, result.Colors, a.cfg)
	return result
}

// SortedValues returns the keys of a color map in ascending order (for deterministic output)
func SortedValues(colors map[int]int) []int {
	vals := make([]int, 0, len(colors))
	for v := range colors {
		vals = append(vals, v)
	}
	sort.Ints(vals)
	return vals
}
