package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/raymyers/ralph-ra/pkg/hw"
	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/regalloc"
)

func smallConfig(slots int) hw.Config {
	return hw.Config{Name: "test", Slots: slots, SlotBytes: 32, SpillAlign: 32, LoopWeight: 10}
}

// chain builds a program that keeps n unit values live at once
func chain(t *testing.T, name string, n int) *ir.Program {
	t.Helper()
	p := ir.NewProgram(name)
	send := ir.Instr{Op: ir.OpSend, Dst: ir.M(0)}
	for i := 0; i < n; i++ {
		v := p.NewValue(1)
		p.Emit(ir.Instr{Op: ir.OpMov, Dst: ir.V(v), Srcs: []ir.Operand{ir.Imm(int64(i))}})
		send.Srcs = append(send.Srcs, ir.V(v))
	}
	p.Emit(send)
	assert.NilError(t, p.Validate())
	return p
}

func TestRunKeepsJobOrder(t *testing.T) {
	var jobs []Job
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("shader%d", i)
		jobs = append(jobs, Job{Name: name, Program: chain(t, name, i+1), Config: smallConfig(16)})
	}

	outcomes := NewScheduler(3).Run(context.Background(), jobs)
	assert.Assert(t, is.Len(outcomes, len(jobs)))
	for i, o := range outcomes {
		assert.Check(t, is.Equal(o.Name, jobs[i].Name))
		assert.Check(t, o.Err)
		assert.Check(t, is.Len(o.Result.Colors, i+1))
	}
	assert.Check(t, is.Len(Failed(outcomes), 0))
}

func TestRunIsolatesFailures(t *testing.T) {
	bad := chain(t, "bad", 3)
	for i := range bad.Values {
		bad.Values[i].NoSpill = true
	}
	jobs := []Job{
		{Name: "good", Program: chain(t, "good", 2), Config: smallConfig(2)},
		{Name: "bad", Program: bad, Config: smallConfig(2)},
		{Name: "trivial", Program: chain(t, "trivial", 2), Config: smallConfig(4), Trivial: true},
	}

	outcomes := NewScheduler(0).Run(context.Background(), jobs)
	assert.Check(t, outcomes[0].Err)
	assert.Check(t, is.ErrorIs(outcomes[1].Err, regalloc.ErrOutOfRegisters))
	assert.Check(t, outcomes[1].Result == nil)
	assert.Check(t, outcomes[2].Err)
	assert.Check(t, is.DeepEqual(outcomes[2].Result.Colors, map[int]int{0: 0, 1: 1}))

	failed := Failed(outcomes)
	assert.Assert(t, is.Len(failed, 1))
	assert.Check(t, is.Equal(failed[0].Name, "bad"))
}

func TestRunBoundsConcurrency(t *testing.T) {
	const limit = 2
	var running, peak atomic.Int32
	var mu sync.Mutex
	seen := map[string]bool{}

	var jobs []Job
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("s%d", i)
		jobs = append(jobs, Job{
			Name:    name,
			Program: chain(t, name, 4),
			Config:  smallConfig(8),
			Options: regalloc.Options{
				OnGraph: func(*regalloc.Graph, int) {
					n := running.Add(1)
					for {
						old := peak.Load()
						if n <= old || peak.CompareAndSwap(old, n) {
							break
						}
					}
					mu.Lock()
					seen[name] = true
					mu.Unlock()
					running.Add(-1)
				},
			},
		})
	}

	NewScheduler(limit).Run(context.Background(), jobs)
	assert.Check(t, peak.Load() <= limit, "peak concurrency %d", peak.Load())
	assert.Check(t, is.Len(seen, len(jobs)))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := NewScheduler(1).Run(ctx, []Job{
		{Name: "a", Program: chain(t, "a", 1), Config: smallConfig(4)},
		{Name: "b", Program: chain(t, "b", 1), Config: smallConfig(4), Trivial: true},
	})
	for _, o := range outcomes {
		assert.Check(t, is.ErrorIs(o.Err, context.Canceled), o.Name)
	}
}
