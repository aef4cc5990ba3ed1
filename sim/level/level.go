// Package level is the controller around one simulation run: it validates
// the start transition, resets the network to its blueprint and applies the
// win/lose policy to the engine's counters.
package level

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wiresim/wiresim/sim"
)

// Outcome is the state of a level run.
type Outcome string

const (
	OutcomeRunning Outcome = "running"
	OutcomeWon     Outcome = "won"
	OutcomeFailed  Outcome = "failed"
)

// Failure reasons reported by Evaluate.
const (
	FailCapacityExceeded = "storage capacity exceeded"
	FailLossThreshold    = "packet loss above threshold"
	FailTimer            = "time expired before enough deliveries"
)

// Policy holds the level-defined thresholds.
type Policy struct {
	MaxLossPercent  float64 // fail when loss exceeds this; 0 disables
	TimeLimitMs     int64   // 0 means no timer
	TargetDelivered int     // deliveries needed to win
}

// Result is the evaluated outcome of a run.
type Result struct {
	Outcome Outcome
	Reason  string // set for OutcomeFailed
}

// Level owns the simulator built from a blueprint and rebuilds it on reset.
type Level struct {
	Name  string
	RunID uuid.UUID
	Sim   *sim.Simulator

	blueprint *sim.Blueprint
	cfg       sim.SimConfig
	policy    Policy
	started   bool
	score     int // coins earned by earlier runs, kept across resets
}

// New builds a level and its first simulator.
func New(name string, cfg sim.SimConfig, bp *sim.Blueprint, policy Policy) (*Level, error) {
	if policy.MaxLossPercent < 0 || policy.MaxLossPercent > 100 {
		return nil, fmt.Errorf("level %q: max loss percent must be in [0, 100], got %f", name, policy.MaxLossPercent)
	}
	if policy.TimeLimitMs < 0 || policy.TargetDelivered < 0 {
		return nil, fmt.Errorf("level %q: time limit and target must be non-negative", name)
	}
	l := &Level{Name: name, blueprint: bp, cfg: cfg, policy: policy}
	if err := l.rebuild(cfg.StartingCoins); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Level) rebuild(coins int) error {
	l.RunID = uuid.New()
	cfg := l.cfg
	cfg.StartingCoins = coins
	cfg.Trace.RunID = l.RunID.String()
	s, err := sim.NewSimulator(cfg, l.blueprint)
	if err != nil {
		return fmt.Errorf("level %q: %w", l.Name, err)
	}
	l.Sim = s
	l.started = false
	return nil
}

// Policy returns the level thresholds.
func (l *Level) Policy() Policy { return l.policy }

// Started reports whether Start succeeded since the last reset.
func (l *Level) Started() bool { return l.started }

// Score returns the coins earned across runs, including the current one.
func (l *Level) Score() int {
	return l.score + l.Sim.Engine.Counters().CoinsEarned
}

// Start validates the network and, when it is runnable, lets the clock
// run. A *StartError names the first blocking condition.
func (l *Level) Start() error {
	if l.started {
		return nil
	}
	if err := Validate(l.Sim); err != nil {
		logrus.Infof("level %q: start blocked: %v", l.Name, err)
		return err
	}
	l.started = true
	logrus.Infof("level %q: started (run %s)", l.Name, l.RunID)
	return nil
}

// Reset stops the current run and rebuilds the level from its blueprint.
// When preserveScore is set, the wallet and cumulative score carry over;
// otherwise both return to their starting values.
func (l *Level) Reset(preserveScore bool) error {
	l.Sim.Scheduler.Stop()
	coins := l.cfg.StartingCoins
	if preserveScore {
		l.score = l.Score()
		coins = l.Sim.Wallet.Coins()
	} else {
		l.score = 0
	}
	logrus.Infof("level %q: reset (preserve score: %t)", l.Name, preserveScore)
	return l.rebuild(coins)
}

// Step advances one tick if the level has started and is still running,
// and returns the evaluated result.
func (l *Level) Step() Result {
	res := l.Evaluate()
	if !l.started || res.Outcome != OutcomeRunning {
		return res
	}
	l.Sim.Step()
	return l.Evaluate()
}

// Run steps until the outcome is decided or horizon ms have elapsed.
// Without a timer it also returns once the simulator is idle, since the
// outcome can no longer change. Returns an error if the level has not been
// started.
func (l *Level) Run(horizon int64) (Result, error) {
	if !l.started {
		return Result{}, fmt.Errorf("level %q: not started", l.Name)
	}
	res := l.Evaluate()
	for res.Outcome == OutcomeRunning && l.Sim.Clock() < horizon {
		if l.policy.TimeLimitMs == 0 && l.Sim.Idle() {
			logrus.Infof("level %q: idle at %d ms with no outcome", l.Name, l.Sim.Clock())
			break
		}
		res = l.Step()
	}
	if res.Outcome != OutcomeRunning {
		l.Sim.Scheduler.Stop()
		logrus.Infof("level %q: %s %s", l.Name, res.Outcome, res.Reason)
	}
	return res, nil
}

// Evaluate applies the level policy to the current counters.
func (l *Level) Evaluate() Result {
	if l.Sim.Engine.Failed() {
		return Result{Outcome: OutcomeFailed, Reason: FailCapacityExceeded}
	}
	c := l.Sim.Engine.Counters()
	if l.policy.MaxLossPercent > 0 && c.LossPercentage() > l.policy.MaxLossPercent {
		return Result{Outcome: OutcomeFailed, Reason: FailLossThreshold}
	}
	if l.policy.TimeLimitMs > 0 {
		if l.Sim.Clock() < l.policy.TimeLimitMs {
			return Result{Outcome: OutcomeRunning}
		}
		if c.Delivered >= l.policy.TargetDelivered {
			return Result{Outcome: OutcomeWon}
		}
		return Result{Outcome: OutcomeFailed, Reason: FailTimer}
	}
	if l.policy.TargetDelivered > 0 && c.Delivered >= l.policy.TargetDelivered {
		return Result{Outcome: OutcomeWon}
	}
	return Result{Outcome: OutcomeRunning}
}
