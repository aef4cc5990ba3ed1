package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wiresim/wiresim/sim"
	"github.com/wiresim/wiresim/sim/level"
	"github.com/wiresim/wiresim/sim/telemetry"
	"github.com/wiresim/wiresim/sim/trace"
)

var (
	scenarioPath      string // Path to the scenario YAML
	seed              int64  // Seed for disguises and stochastic cadences
	simulationHorizon int64  // Total simulation time (in ms)
	tickMs            int64  // Simulation step (in ms)
	logLevel          string // Log verbosity level
	traceLevel        string // Decision trace verbosity
	metricsFile       string // Prometheus text-format output path
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "wiresim",
	Short: "Real-time flow-network simulator",
}

// runCmd starts a scenario and runs it until the level is decided or the horizon is reached
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		sc, err := LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if cmd.Flags().Changed("seed") || sc.Seed == nil {
			sc.Seed = &seed
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		startTime := time.Now()
		lvl, err := buildLevel(sc, tickMs, trace.TraceLevel(traceLevel))
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := lvl.Start(); err != nil {
			logrus.Fatalf("%v", err)
		}

		horizon, err := runHorizon(sc, simulationHorizon, cmd.Flags().Changed("horizon"))
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		res, err := lvl.Run(horizon)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		report(os.Stdout, lvl, res)
		logrus.Infof("Simulation complete in %s.", time.Since(startTime))

		if metricsFile != "" {
			if err := telemetry.WriteTextfile(metricsFile, lvl.Sim.Snapshot()); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
	},
}

// checkCmd validates a scenario and reports whether it can start
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a scenario without running it",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		if err := check(os.Stdout, scenarioPath); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// buildLevel turns a validated scenario into a level.
func buildLevel(sc *Scenario, tickMs int64, traceLvl trace.TraceLevel) (*level.Level, error) {
	bp, err := sc.Blueprint()
	if err != nil {
		return nil, err
	}
	cfg := sim.SimConfig{
		Engine:        sc.EngineConfig(tickMs),
		WireBudget:    sc.WireBudget,
		StartingCoins: sc.StartingCoins,
		Trace:         trace.TraceConfig{Level: traceLvl},
		Notifier:      sim.LogNotifier{},
	}
	if sc.Seed != nil {
		cfg.Seed = *sc.Seed
	}
	return level.New(sc.Name, cfg, bp, sc.LevelPolicy())
}

// runHorizon picks how long a run may last. An explicit --horizon wins,
// then the level timer. A level with neither a timer nor a delivery target
// is only accepted when every cadence is bounded, because nothing else
// would end the run.
func runHorizon(sc *Scenario, flagHorizon int64, flagSet bool) (int64, error) {
	switch {
	case flagSet:
		return flagHorizon, nil
	case sc.Policy.TimeLimitMs > 0:
		return sc.Policy.TimeLimitMs, nil
	case sc.Policy.TargetDelivered > 0:
		return math.MaxInt64, nil
	}
	for _, c := range sc.Cadence {
		if c.Count == 0 && c.StopMs == 0 {
			return 0, fmt.Errorf("scenario %q: source %q emits forever and the level has no time limit or delivery target; pass --horizon", sc.Name, c.System)
		}
	}
	return math.MaxInt64, nil
}

// check loads a scenario and reports start readiness to w.
func check(w io.Writer, path string) error {
	sc, err := LoadScenario(path)
	if err != nil {
		return err
	}
	lvl, err := buildLevel(sc, 0, trace.TraceLevelNone)
	if err != nil {
		return err
	}
	snap := lvl.Sim.Snapshot()
	fmt.Fprintf(w, "scenario %q: %d systems, %d wires, %.1f of %.1f wire left\n",
		sc.Name, len(snap.Systems), len(snap.Wires), snap.WireRemaining, snap.WireTotal)
	for _, ws := range snap.Wires {
		for _, seg := range ws.Segments {
			fmt.Fprintf(w, "  %s\n", seg)
			fmt.Fprintf(w, "    suggested bends: %v\n", lvl.Sim.Collisions.SuggestBendPoints(seg))
		}
	}
	if err := lvl.Start(); err != nil {
		return err
	}
	fmt.Fprintln(w, "ready to start")
	return nil
}

// report prints the outcome and counters of a finished run.
func report(w io.Writer, lvl *level.Level, res level.Result) {
	fmt.Fprintf(w, "Level %q (run %s): %s", lvl.Name, lvl.RunID, res.Outcome)
	if res.Reason != "" {
		fmt.Fprintf(w, " (%s)", res.Reason)
	}
	fmt.Fprintln(w)
	lvl.Sim.Engine.Counters().Print(w, lvl.Sim.Clock())
	fmt.Fprintf(w, "Score                : %d\n", lvl.Score())

	if lvl.Sim.Trace != nil {
		ts := trace.Summarize(lvl.Sim.Trace)
		fmt.Fprintln(w, "=== Trace Summary ===")
		fmt.Fprintf(w, "Routing Decisions    : %d\n", ts.TotalDecisions)
		fmt.Fprintf(w, "Fallback Ratio       : %.3f\n", ts.FallbackRatio)
		fmt.Fprintf(w, "Mean Latency         : %.1f ms\n", ts.MeanLatency)
		fmt.Fprintf(w, "Bend Edits           : %d\n", ts.BendEdits)
		reasons := make([]string, 0, len(ts.LossReasons))
		for reason := range ts.LossReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(w, "Lost (%s) : %d\n", reason, ts.LossReasons[reason])
		}
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, checkCmd} {
		c.Flags().StringVar(&scenarioPath, "scenario", "", "Path to the scenario YAML")
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
		_ = c.MarkFlagRequired("scenario")
	}
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for protected-packet disguises and stochastic cadences")
	runCmd.Flags().Int64Var(&simulationHorizon, "horizon", math.MaxInt64, "Total simulation horizon (in ms); defaults to the level time limit")
	runCmd.Flags().Int64Var(&tickMs, "tick", sim.DefaultEngineConfig().TickMs, "Simulation step (in ms)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Decision trace level (none, decisions)")
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write final metrics in Prometheus text format to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
}
