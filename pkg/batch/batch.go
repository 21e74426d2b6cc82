// Package batch compiles many shaders concurrently. Every job owns its
// program, interference graph and scratch counter; the Scheduler only bounds
// how many run at once.
package batch

import (
	"context"
	"time"

	"github.com/containerd/log"
	"golang.org/x/sync/errgroup"

	"github.com/raymyers/ralph-ra/pkg/hw"
	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/regalloc"
)

// Job is one shader to allocate
type Job struct {
	Name    string
	Program *ir.Program
	Config  hw.Config
	Options regalloc.Options
	// Trivial selects the bump allocator instead of graph coloring
	Trivial bool
}

// Outcome is the result of one job. Exactly one of Result and Err is set.
type Outcome struct {
	Name    string
	Result  *regalloc.AllocationResult
	Err     error
	Elapsed time.Duration
}

// Scheduler runs allocation jobs on a bounded number of goroutines.
type Scheduler struct {
	limit int
}

// NewScheduler returns a scheduler running at most limit jobs at once.
// A limit below 1 means no bound.
func NewScheduler(limit int) *Scheduler {
	return &Scheduler{limit: limit}
}

// Run allocates every job and returns the outcomes in job order. A failing
// job does not stop the others; cancelling ctx fails the jobs that have not
// finished yet.
func (s *Scheduler) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))

	var eg errgroup.Group
	if s.limit > 0 {
		eg.SetLimit(s.limit)
	}
	for i := range jobs {
		i := i
		eg.Go(func() error {
			outcomes[i] = runJob(ctx, &jobs[i])
			return nil
		})
	}
	_ = eg.Wait()
	return outcomes
}

func runJob(ctx context.Context, job *Job) Outcome {
	ctx = log.WithLogger(ctx, log.G(ctx).WithField("job", job.Name))
	start := time.Now()

	out := Outcome{Name: job.Name}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	if job.Trivial {
		out.Result, out.Err = regalloc.AssignTrivial(job.Program, job.Config)
	} else {
		out.Result, out.Err = regalloc.AllocateProgram(ctx, job.Program, job.Config, job.Options)
	}
	out.Elapsed = time.Since(start)

	if out.Err != nil {
		log.G(ctx).WithError(out.Err).Warn("allocation failed")
	} else {
		log.G(ctx).WithField("spills", len(out.Result.Spilled)).Debug("allocation done")
	}
	return out
}

// Failed returns the outcomes that carry an error
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
