// sim/simulator.go
package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wiresim/wiresim/sim/geom"
	"github.com/wiresim/wiresim/sim/trace"
)

// Simulator is the core object wiring the network, the routing engine, the
// collision manager and the scheduler together. It is the command surface
// the presentation layer talks to.
type Simulator struct {
	Config     SimConfig
	Network    *Network
	Engine     *Engine
	Collisions *CollisionManager
	Scheduler  *Scheduler
	Wallet     *Wallet
	// Trace is nil unless SimConfig.Trace enables recording.
	Trace *trace.SimulationTrace
	RNG   *PartitionedRNG
}

// NewSimulator builds a simulator from a blueprint.
func NewSimulator(cfg SimConfig, bp *Blueprint) (*Simulator, error) {
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if cfg.WireBudget < 0 {
		return nil, fmt.Errorf("wire budget must be non-negative, got %f", cfg.WireBudget)
	}
	if bp == nil {
		bp = &Blueprint{}
	}
	sim := &Simulator{
		Config:  cfg,
		Network: NewNetwork(cfg.WireBudget),
		Wallet:  NewWallet(cfg.StartingCoins),
		RNG:     NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
	}
	if cfg.Trace.Enabled() {
		sim.Trace = trace.NewSimulationTrace(cfg.Trace)
	}
	sim.Engine = NewEngine(sim.Network, cfg.Engine, sim.Wallet, cfg.Notifier, sim.Trace, sim.RNG)
	sim.Collisions = NewCollisionManager(sim.Network, sim.Wallet, cfg.Engine, sim.Trace, sim.Engine.Now)
	sim.Scheduler = NewScheduler(sim.Engine, sim.Network, cfg.Engine.RetryIntervalMs, sim.RNG)
	if err := bp.build(sim); err != nil {
		return nil, fmt.Errorf("building layout: %w", err)
	}
	return sim, nil
}

// Clock returns the simulation time in ms.
func (sim *Simulator) Clock() int64 {
	return sim.Scheduler.Clock()
}

// Step advances the simulation by one configured tick.
func (sim *Simulator) Step() {
	sim.Scheduler.Tick(sim.Config.Engine.TickMs)
}

// Run ticks until the clock reaches horizon, the engine fails, the
// scheduler is stopped or the simulator goes idle.
func (sim *Simulator) Run(horizon int64) {
	logrus.Infof("running until %d ms (tick %d ms)", horizon, sim.Config.Engine.TickMs)
	for sim.Clock() < horizon && !sim.Engine.Failed() && !sim.Scheduler.Stopped() && !sim.Idle() {
		sim.Step()
	}
	if err := sim.Engine.Failure(); err != nil {
		logrus.Warnf("run ended at %d ms: %v", sim.Clock(), err)
		return
	}
	logrus.Infof("run ended at %d ms", sim.Clock())
}

// Idle reports whether further ticks can no longer change the run: every
// cadence has finished, nothing is moving, and no waiting packet sits at a
// system with a wired output it could leave by.
func (sim *Simulator) Idle() bool {
	if !sim.Scheduler.Exhausted() {
		return false
	}
	for _, p := range sim.Engine.Packets() {
		if p.State == StateInFlight {
			return false
		}
		for _, pid := range sim.Network.System(p.System).Outputs {
			if sim.Network.Port(pid).Connected() {
				return false
			}
		}
	}
	return true
}

// CreateConnection wires an output port to an input port.
func (sim *Simulator) CreateConnection(from, to PortID) (ConnectionID, error) {
	c, err := sim.Network.CreateConnection(from, to)
	if err != nil {
		return 0, err
	}
	return c.ID, nil
}

// RemoveConnection deletes a wire, refunds its length and any provisional
// bend, and writes off the packet travelling on it. Returns the number of
// packets lost.
func (sim *Simulator) RemoveConnection(id ConnectionID) int {
	if c, ok := sim.Network.Connection(id); ok {
		if _, pending := c.PendingBend(); pending {
			_ = sim.Collisions.CancelBend(id)
		}
	}
	sim.Network.RemoveConnection(id)
	return sim.Engine.SweepLost()
}

// InsertBend places a provisional bend on a wire.
func (sim *Simulator) InsertBend(id ConnectionID, at geom.Point) error {
	return sim.Collisions.InsertBend(id, at)
}

// ConfirmBend commits the provisional bend of a wire.
func (sim *Simulator) ConfirmBend(id ConnectionID) error {
	return sim.Collisions.ConfirmBend(id)
}

// CancelBend discards the provisional bend of a wire and refunds it.
func (sim *Simulator) CancelBend(id ConnectionID) error {
	return sim.Collisions.CancelBend(id)
}

// MoveSystem relocates a system; attached wires follow and every wire is
// checked for collisions again.
func (sim *Simulator) MoveSystem(id SystemID, origin geom.Point) {
	sim.Network.MoveSystem(id, origin)
}

// SystemStatus is the queryable state of one system.
type SystemStatus struct {
	ID       SystemID
	Label    string
	Role     Role
	Used     int // storage slots in use
	Capacity int
	Pending  int // packets waiting at a source
}

// WireStatus is the queryable state of one wire.
type WireStatus struct {
	ID          ConnectionID
	From        string // source system label
	To          string // destination system label
	Length      float64
	Remaining   float64 // approved length still unused
	Bends       int
	Occupied    bool
	OutOfBudget bool
	Collision   CollisionState
	Segments    []CollisionSegment
}

// Snapshot is a point-in-time copy of everything the HUD and telemetry
// read. It shares no state with the simulator.
type Snapshot struct {
	Clock          int64
	Counters       Counters
	LossPercentage float64
	Coins          int
	WireTotal      float64
	WireRemaining  float64
	Systems        []SystemStatus
	Wires          []WireStatus
	Failed         bool
}

// Snapshot captures the current state.
func (sim *Simulator) Snapshot() Snapshot {
	counters := sim.Engine.Counters()
	snap := Snapshot{
		Clock:          sim.Clock(),
		Counters:       counters,
		LossPercentage: counters.LossPercentage(),
		Coins:          sim.Wallet.Coins(),
		WireTotal:      sim.Network.Budget().Total(),
		WireRemaining:  sim.Network.Budget().Remaining(),
		Failed:         sim.Engine.Failed(),
	}
	for _, s := range sim.Network.Systems() {
		used, capacity := s.CapacityUsage()
		snap.Systems = append(snap.Systems, SystemStatus{
			ID:       s.ID,
			Label:    s.Label,
			Role:     s.Role,
			Used:     used,
			Capacity: capacity,
			Pending:  s.Pending(),
		})
	}
	for _, c := range sim.Network.Connections() {
		state, segments := c.Collision()
		snap.Wires = append(snap.Wires, WireStatus{
			ID:          c.ID,
			From:        sim.Network.System(sim.Network.Port(c.From).System).Label,
			To:          sim.Network.System(sim.Network.Port(c.To).System).Label,
			Length:      c.Length,
			Remaining:   c.RemainingLength(),
			Bends:       len(c.Bends()),
			Occupied:    c.Occupied(),
			OutOfBudget: c.OutOfBudget(),
			Collision:   state,
			Segments:    segments,
		})
	}
	return snap
}
