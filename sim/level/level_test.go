package level

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiresim/wiresim/sim"
	"github.com/wiresim/wiresim/sim/geom"
	"github.com/wiresim/wiresim/sim/trace"
	"github.com/wiresim/wiresim/sim/workload"
)

// lineLevel is a source and a sink 100 apart, joined by one square wire,
// with a source emitting count square packets every 500 ms.
func lineLevel(count int) *sim.Blueprint {
	return &sim.Blueprint{
		Systems: []sim.SystemSpec{
			{Label: "src", Role: sim.RoleSource, X: 0, Y: 0, Width: 20, Height: 20, Outputs: []sim.PortType{sim.PortSquare}},
			{Label: "sink", Role: sim.RoleSink, X: 120, Y: 0, Width: 20, Height: 20, Inputs: []sim.PortType{sim.PortSquare}},
		},
		Wires: []sim.WireSpec{{From: sim.PortRef{System: "src"}, To: sim.PortRef{System: "sink"}}},
		Cadence: []workload.SourceCadence{
			{System: "src", IntervalMs: 500, Sequence: []string{"square"}, Count: count},
		},
	}
}

func levelConfig(budget float64, coins int) sim.SimConfig {
	return sim.SimConfig{
		Engine:        sim.DefaultEngineConfig(),
		Seed:          7,
		WireBudget:    budget,
		StartingCoins: coins,
		Trace:         trace.TraceConfig{Level: trace.TraceLevelDecisions},
	}
}

func newLevel(t *testing.T, cfg sim.SimConfig, bp *sim.Blueprint, policy Policy) *Level {
	t.Helper()
	l, err := New("test", cfg, bp, policy)
	require.NoError(t, err)
	return l
}

func startError(t *testing.T, err error) *StartError {
	t.Helper()
	var se *StartError
	require.True(t, errors.As(err, &se), "expected *StartError, got %v", err)
	return se
}

func TestNew_RejectsBadPolicy(t *testing.T) {
	_, err := New("bad", levelConfig(200, 0), lineLevel(1), Policy{MaxLossPercent: 150})
	assert.Error(t, err)
	_, err = New("bad", levelConfig(200, 0), lineLevel(1), Policy{TimeLimitMs: -1})
	assert.Error(t, err)
}

func TestStart_ReadyNetwork(t *testing.T) {
	l := newLevel(t, levelConfig(200, 0), lineLevel(1), Policy{TargetDelivered: 1})

	require.NoError(t, l.Start())

	assert.True(t, l.Started())
	assert.NotEmpty(t, l.RunID.String())
}

func TestStart_BlockedByIncompleteWiring(t *testing.T) {
	// GIVEN the line level without its wire
	bp := lineLevel(1)
	bp.Wires = nil
	l := newLevel(t, levelConfig(200, 0), bp, Policy{})

	// WHEN started
	err := l.Start()

	// THEN both dangling ports are reported and the clock cannot run
	se := startError(t, err)
	assert.Equal(t, BlockIncompleteWiring, se.Reason)
	assert.Len(t, se.Ports, 2)
	assert.False(t, l.Started())
	_, runErr := l.Run(1000)
	assert.Error(t, runErr)
}

func TestStart_BlockedByCollision(t *testing.T) {
	// GIVEN a fully wired layout where the src->sink wire runs through a relay
	bp := &sim.Blueprint{
		Systems: []sim.SystemSpec{
			{Label: "src", Role: sim.RoleSource, X: 0, Y: 0, Width: 20, Height: 20, Outputs: []sim.PortType{sim.PortSquare}},
			{Label: "wall", Role: sim.RoleRelay, X: 60, Y: 0, Width: 20, Height: 20, Inputs: []sim.PortType{sim.PortSquare}, Outputs: []sim.PortType{sim.PortSquare}},
			{Label: "sink", Role: sim.RoleSink, X: 120, Y: 0, Width: 20, Height: 20, Inputs: []sim.PortType{sim.PortSquare}},
			{Label: "src2", Role: sim.RoleSource, X: 0, Y: 60, Width: 20, Height: 20, Outputs: []sim.PortType{sim.PortSquare}},
			{Label: "sink2", Role: sim.RoleSink, X: 120, Y: 60, Width: 20, Height: 20, Inputs: []sim.PortType{sim.PortSquare}},
		},
		Wires: []sim.WireSpec{
			{From: sim.PortRef{System: "src"}, To: sim.PortRef{System: "sink"}},
			{From: sim.PortRef{System: "src2"}, To: sim.PortRef{System: "wall"}},
			{From: sim.PortRef{System: "wall"}, To: sim.PortRef{System: "sink2"}},
		},
	}
	l := newLevel(t, levelConfig(1000, 0), bp, Policy{})

	// WHEN started
	err := l.Start()

	// THEN only the crossing wire blocks the start
	se := startError(t, err)
	assert.Equal(t, BlockCollision, se.Reason)
	assert.Equal(t, []sim.ConnectionID{1}, se.Wires)
}

func TestStart_BlockedByWireOverBudget(t *testing.T) {
	// GIVEN a line level whose wire uses the whole budget
	l := newLevel(t, levelConfig(100, 0), lineLevel(1), Policy{})
	sink, ok := l.Sim.Network.SystemByLabel("sink")
	require.True(t, ok)

	// WHEN the sink is dragged further away than the budget allows
	l.Sim.MoveSystem(sink.ID, geom.Pt(200, 0))

	// THEN the stretched wire blocks the start
	se := startError(t, l.Start())
	assert.Equal(t, BlockWireOverBudget, se.Reason)
	assert.Equal(t, []sim.ConnectionID{1}, se.Wires)

	// WHEN the sink moves back
	l.Sim.MoveSystem(sink.ID, geom.Pt(120, 0))

	// THEN the level can start
	assert.NoError(t, l.Start())
}

func TestRun_WinsWhenTargetMetBeforeTimer(t *testing.T) {
	// GIVEN four packets, a 5 s timer and a target of four deliveries
	l := newLevel(t, levelConfig(200, 0), lineLevel(4), Policy{TimeLimitMs: 5000, TargetDelivered: 4})
	require.NoError(t, l.Start())

	// WHEN run well past the timer
	res, err := l.Run(20000)

	// THEN the level is decided when the timer expires
	require.NoError(t, err)
	assert.Equal(t, OutcomeWon, res.Outcome)
	assert.Equal(t, int64(5000), l.Sim.Clock())
	assert.Equal(t, 4, l.Sim.Engine.Counters().Delivered)
	assert.True(t, l.Sim.Scheduler.Stopped())
}

func TestRun_FailsWhenTimerExpiresShortOfTarget(t *testing.T) {
	l := newLevel(t, levelConfig(200, 0), lineLevel(4), Policy{TimeLimitMs: 5000, TargetDelivered: 5})
	require.NoError(t, l.Start())

	res, err := l.Run(20000)

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, FailTimer, res.Reason)
}

func TestRun_WinsOnTargetWithoutTimer(t *testing.T) {
	l := newLevel(t, levelConfig(200, 0), lineLevel(10), Policy{TargetDelivered: 2})
	require.NoError(t, l.Start())

	res, err := l.Run(60000)

	require.NoError(t, err)
	assert.Equal(t, OutcomeWon, res.Outcome)
	assert.Equal(t, 2, l.Sim.Engine.Counters().Delivered)
	assert.Less(t, l.Sim.Clock(), int64(60000))
}

func TestRun_ReturnsWhenIdleWithoutTimer(t *testing.T) {
	// GIVEN three packets, no timer and a target they cannot meet
	l := newLevel(t, levelConfig(200, 0), lineLevel(3), Policy{TargetDelivered: 5})
	require.NoError(t, l.Start())

	// WHEN run without a horizon
	res, err := l.Run(math.MaxInt64)

	// THEN it returns undecided once the last packet has landed
	require.NoError(t, err)
	assert.Equal(t, OutcomeRunning, res.Outcome)
	assert.Equal(t, 3, l.Sim.Engine.Counters().Delivered)
	assert.True(t, l.Sim.Idle())
	assert.Less(t, l.Sim.Clock(), int64(5000))
	assert.False(t, l.Sim.Scheduler.Stopped())
}

func TestRun_NoCadenceReturnsAtOnce(t *testing.T) {
	bp := lineLevel(1)
	bp.Cadence = nil
	l := newLevel(t, levelConfig(200, 0), bp, Policy{})
	require.NoError(t, l.Start())

	res, err := l.Run(math.MaxInt64)

	require.NoError(t, err)
	assert.Equal(t, OutcomeRunning, res.Outcome)
	assert.Equal(t, int64(0), l.Sim.Clock())
}

func TestRun_TimerOutlastsIdle(t *testing.T) {
	// GIVEN a single packet and a 3 s timer
	l := newLevel(t, levelConfig(200, 0), lineLevel(1), Policy{TimeLimitMs: 3000, TargetDelivered: 1})
	require.NoError(t, l.Start())

	// WHEN run
	res, err := l.Run(math.MaxInt64)

	// THEN the level keeps ticking to the timer even though nothing moves
	require.NoError(t, err)
	assert.Equal(t, OutcomeWon, res.Outcome)
	assert.Equal(t, int64(3000), l.Sim.Clock())
}

func TestEvaluate_LossThreshold(t *testing.T) {
	// GIVEN a started level with a packet in flight
	l := newLevel(t, levelConfig(200, 0), lineLevel(1), Policy{MaxLossPercent: 50})
	require.NoError(t, l.Start())
	res := l.Step()
	require.Equal(t, OutcomeRunning, res.Outcome)
	require.Equal(t, 1, l.Sim.Engine.Counters().Generated)

	// WHEN its wire is deleted under it
	lost := l.Sim.RemoveConnection(1)

	// THEN the run fails on the loss threshold
	assert.Equal(t, 1, lost)
	res = l.Evaluate()
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, FailLossThreshold, res.Reason)
}

func TestEvaluate_CapacityExceeded(t *testing.T) {
	// GIVEN a relay holding one packet, fed every 50 ms over a short wire
	// and drained over a 4 s wire
	bp := &sim.Blueprint{
		Systems: []sim.SystemSpec{
			{Label: "src", Role: sim.RoleSource, X: 0, Y: 0, Width: 20, Height: 20, Outputs: []sim.PortType{sim.PortSquare}},
			{Label: "hub", Role: sim.RoleRelay, X: 30, Y: 0, Width: 20, Height: 20, Capacity: 1,
				Inputs: []sim.PortType{sim.PortSquare}, Outputs: []sim.PortType{sim.PortSquare}},
			{Label: "sink", Role: sim.RoleSink, X: 450, Y: 0, Width: 20, Height: 20, Inputs: []sim.PortType{sim.PortSquare}},
		},
		Wires: []sim.WireSpec{
			{From: sim.PortRef{System: "src"}, To: sim.PortRef{System: "hub"}},
			{From: sim.PortRef{System: "hub"}, To: sim.PortRef{System: "sink"}},
		},
		Cadence: []workload.SourceCadence{{System: "src", IntervalMs: 50, Sequence: []string{"square"}}},
	}
	l := newLevel(t, levelConfig(500, 0), bp, Policy{})
	require.NoError(t, l.Start())

	// WHEN run
	res, err := l.Run(3000)

	// THEN the overflow ends the run
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, FailCapacityExceeded, res.Reason)
	assert.ErrorIs(t, l.Sim.Engine.Failure(), sim.ErrCapacityExceeded)
	assert.Less(t, l.Sim.Clock(), int64(3000))
}

func TestStep_NotStarted_ClockHolds(t *testing.T) {
	l := newLevel(t, levelConfig(200, 0), lineLevel(1), Policy{})

	res := l.Step()

	assert.Equal(t, OutcomeRunning, res.Outcome)
	assert.Equal(t, int64(0), l.Sim.Clock())
}

func TestReset_DiscardsScore(t *testing.T) {
	// GIVEN a level that earned coins
	l := newLevel(t, levelConfig(200, 3), lineLevel(4), Policy{TargetDelivered: 4})
	require.NoError(t, l.Start())
	_, err := l.Run(10000)
	require.NoError(t, err)
	require.Positive(t, l.Score())
	firstRun := l.RunID

	// WHEN reset without preserving the score
	require.NoError(t, l.Reset(false))

	// THEN a fresh network is rebuilt from the blueprint
	assert.NotEqual(t, firstRun, l.RunID)
	assert.False(t, l.Started())
	assert.Equal(t, int64(0), l.Sim.Clock())
	assert.Equal(t, 0, l.Score())
	assert.Equal(t, 3, l.Sim.Wallet.Coins())
	assert.Len(t, l.Sim.Network.Connections(), 1)
	assert.Equal(t, sim.Counters{}, l.Sim.Engine.Counters())
}

func TestReset_PreservesScore(t *testing.T) {
	l := newLevel(t, levelConfig(200, 3), lineLevel(4), Policy{TargetDelivered: 4})
	require.NoError(t, l.Start())
	_, err := l.Run(10000)
	require.NoError(t, err)
	earned := l.Score()
	coins := l.Sim.Wallet.Coins()

	require.NoError(t, l.Reset(true))

	assert.Equal(t, earned, l.Score())
	assert.Equal(t, coins, l.Sim.Wallet.Coins())

	// THEN a second run adds to the carried score
	require.NoError(t, l.Start())
	_, err = l.Run(10000)
	require.NoError(t, err)
	assert.Equal(t, 2*earned, l.Score())
}

func TestReset_ReplaysIdentically(t *testing.T) {
	cv := 2.0
	bp := lineLevel(6)
	bp.Cadence[0].Arrival = workload.ArrivalSpec{Process: "gamma", CV: &cv}
	l := newLevel(t, levelConfig(200, 0), bp, Policy{})

	require.NoError(t, l.Start())
	_, err := l.Run(8000)
	require.NoError(t, err)
	first := l.Sim.Engine.Counters()

	require.NoError(t, l.Reset(false))
	require.NoError(t, l.Start())
	_, err = l.Run(8000)
	require.NoError(t, err)

	assert.Equal(t, first, l.Sim.Engine.Counters())
}
