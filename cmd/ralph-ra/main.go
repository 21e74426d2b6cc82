package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/containerd/log"
	"github.com/davecgh/go-spew/spew"
	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/raymyers/ralph-ra/pkg/batch"
	"github.com/raymyers/ralph-ra/pkg/hw"
	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/regalloc"
	"github.com/raymyers/ralph-ra/pkg/shaderfile"
)

var version = "0.1.0"

// Hardware selection
var (
	hwName   string
	hwConfig string
)

// Allocation options
var (
	trivial       bool
	spillAll      bool
	maxIterations int
	jobs          int
)

// Debug output
var (
	dDot     bool
	dDump    bool
	dMetrics bool
	logLevel string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralph-ra [file...]",
		Short: "ralph-ra assigns physical registers to shader programs",
		Long: `ralph-ra runs the graph-coloring register allocator over shader
description files and prints each program rewritten to physical
registers, with spill code inserted where the register file ran out.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			logrus.SetOutput(errOut)
			if err := log.SetLevel(logLevel); err != nil {
				fmt.Fprintf(errOut, "ralph-ra: %v\n", err)
				return err
			}
			return doAllocate(cmd.Context(), args, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringVar(&hwName, "hw", "", fmt.Sprintf("Hardware generation %v (default: from the shader file, else %s)", hw.Generations(), hw.DefaultGeneration))
	rootCmd.Flags().StringVar(&hwConfig, "hw-config", "", "Load the hardware description from a YAML file")
	rootCmd.Flags().BoolVar(&trivial, "trivial", false, "Pack values end to end without graph coloring")
	rootCmd.Flags().BoolVar(&spillAll, "spill-all", false, "Spill every spillable value before coloring")
	rootCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Give up after this many spills (0 = no limit)")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "Number of shaders to allocate in parallel")
	rootCmd.Flags().BoolVar(&dDot, "ddot", false, "Write the final interference graph of each shader to <file>.dot")
	rootCmd.Flags().BoolVar(&dDump, "dump", false, "Dump the allocation result of each shader")
	rootCmd.Flags().BoolVar(&dMetrics, "metrics", false, "Print allocator metrics after the run")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "error", "Log level (trace, debug, info, warn, error)")

	return rootCmd
}

// hardwareFor resolves the register file for one shader: --hw-config wins
// over --hw, which wins over the generation named in the file. Environment
// overrides apply last.
func hardwareFor(s *shaderfile.Shader) (hw.Config, error) {
	var c hw.Config
	var err error
	switch {
	case hwConfig != "":
		c, err = hw.Load(hwConfig)
	case hwName != "":
		c, err = hw.Lookup(hwName)
	default:
		c, err = hw.Lookup(s.Generation)
	}
	if err != nil {
		return hw.Config{}, err
	}
	c = hw.ApplyEnv(s.Apply(c))
	return c, c.Validate()
}

// unit is one input file on its way through the allocator
type unit struct {
	filename string
	shader   *shaderfile.Shader
	graph    *regalloc.Graph
}

func doAllocate(ctx context.Context, filenames []string, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	reg := prometheus.NewRegistry()
	metrics := regalloc.NewMetrics(reg)

	inputs := make([]*unit, len(filenames))
	batchJobs := make([]batch.Job, len(filenames))
	for i, filename := range filenames {
		s, err := shaderfile.Load(filename)
		if err != nil {
			fmt.Fprintf(errOut, "ralph-ra: %v\n", err)
			return err
		}
		cfg, err := hardwareFor(s)
		if err != nil {
			fmt.Fprintf(errOut, "ralph-ra: %s: %v\n", filename, err)
			return err
		}

		u := &unit{filename: filename, shader: s}
		inputs[i] = u
		batchJobs[i] = batch.Job{
			Name:    s.Program.Name,
			Program: s.Program,
			Config:  cfg,
			Trivial: trivial,
			Options: regalloc.Options{
				MaxIterations: maxIterations,
				SpillAll:      spillAll,
				Metrics:       metrics,
				OnGraph: func(g *regalloc.Graph, _ int) {
					u.graph = g
				},
			},
		}
	}

	outcomes := batch.NewScheduler(jobs).Run(ctx, batchJobs)

	printer := ir.NewPrinter(out)
	for i, o := range outcomes {
		u := inputs[i]
		if o.Err != nil {
			fmt.Fprintf(errOut, "ralph-ra: %v\n", o.Err)
			continue
		}
		printer.PrintProgram(u.shader.Program)
		fmt.Fprintln(out, summary(o))
		if dDump {
			dumpConfig.Fdump(out, o.Result)
		}
		if dDot && u.graph != nil {
			if err := writeDOT(u); err != nil {
				fmt.Fprintf(errOut, "ralph-ra: %v\n", err)
				return err
			}
		}
	}

	if dMetrics {
		if err := writeMetrics(out, reg); err != nil {
			fmt.Fprintf(errOut, "ralph-ra: %v\n", err)
			return err
		}
	}

	if failed := batch.Failed(outcomes); len(failed) > 0 {
		return errors.Errorf("%d of %d shaders failed", len(failed), len(outcomes))
	}
	return nil
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// summary is the one-line report printed under each allocated program
func summary(o batch.Outcome) string {
	r := o.Result
	return fmt.Sprintf("; %s: %d registers, %d spills, %s scratch",
		o.Name, r.RegistersUsed, len(r.Spilled), units.BytesSize(float64(r.ScratchSize)))
}

// dotOutputFilename returns the output filename for --ddot
func dotOutputFilename(filename string) string {
	ext := ".yaml"
	if strings.HasSuffix(filename, ext) {
		return filename[:len(filename)-len(ext)] + ".dot"
	}
	return filename + ".dot"
}

func writeDOT(u *unit) error {
	outputFilename := dotOutputFilename(u.filename)
	f, err := os.Create(outputFilename)
	if err != nil {
		return errors.Wrap(err, "creating graph dump")
	}
	defer f.Close()
	return regalloc.WriteDOT(f, u.graph, u.shader.Program.Name)
}

func writeMetrics(out io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}
