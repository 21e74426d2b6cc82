package regalloc

import (
	"fmt"

	"github.com/raymyers/ralph-ra/pkg/hw"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// AssignTrivial packs every value end to end after the payload, in id order,
// with no reuse and no spilling. It trades register pressure for speed and
// fails only when the packed values do not fit below the alias window.
func AssignTrivial(p *ir.Program, cfg hw.Config) (*AllocationResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := CheckOperands(p, cfg); err != nil {
		return nil, err
	}

	limit := cfg.Slots
	if cfg.HasAliasWindow() {
		limit = cfg.AliasBase()
	}

	result := &AllocationResult{Colors: make(map[int]int)}
	next := cfg.PayloadSlots
	for v, val := range p.Values {
		if val.Spilled {
			continue
		}
		if next+val.Size > limit {
			return nil, &AllocationError{
				Err:     fmt.Errorf("%w: trivial assignment needs more than %d slots", ErrOutOfRegisters, limit),
				Shader:  p.Name,
				Witness: v,
			}
		}
		result.Colors[v] = next
		next += val.Size
	}
	result.RegistersUsed = next

	AssignRegisters(p, result.Colors, cfg)
	return result, nil
}
