package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wiresim/wiresim/sim/geom"
	"github.com/wiresim/wiresim/sim/trace"
)

// recordingNotifier captures notifications in arrival order.
type recordingNotifier struct {
	delivered []PacketID
	lost      []PacketID
	reasons   []string
	overflows []SystemID
}

func (r *recordingNotifier) PacketDelivered(p *Packet, _ *System) {
	r.delivered = append(r.delivered, p.ID)
}

func (r *recordingNotifier) PacketLost(p *Packet, reason string) {
	r.lost = append(r.lost, p.ID)
	r.reasons = append(r.reasons, reason)
}

func (r *recordingNotifier) StorageOverflow(s *System, _ *Packet) {
	r.overflows = append(r.overflows, s.ID)
}

// rig is a hand-assembled kernel for tests that drive the engine directly.
type rig struct {
	net    *Network
	wallet *Wallet
	eng    *Engine
	cm     *CollisionManager
	trace  *trace.SimulationTrace
	notes  *recordingNotifier
}

func newRig(budget float64, coins int) *rig {
	cfg := DefaultEngineConfig()
	r := &rig{
		net:    NewNetwork(budget),
		wallet: NewWallet(coins),
		trace:  trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions}),
		notes:  &recordingNotifier{},
	}
	r.eng = NewEngine(r.net, cfg, r.wallet, r.notes, r.trace, NewPartitionedRNG(NewSimulationKey(42)))
	r.cm = NewCollisionManager(r.net, r.wallet, cfg, r.trace, r.eng.Now)
	return r
}

// source adds a 20x20 source at (x, y) with the given output types.
func (r *rig) source(label string, x, y float64, outputs ...PortType) SystemID {
	id := r.net.AddSystem(label, RoleSource, geom.Pt(x, y), 20, 20, 0)
	for _, t := range outputs {
		r.net.AddPort(id, Output, t)
	}
	return id
}

// sink adds a 20x20 sink at (x, y) with the given input types.
func (r *rig) sink(label string, x, y float64, inputs ...PortType) SystemID {
	id := r.net.AddSystem(label, RoleSink, geom.Pt(x, y), 20, 20, 0)
	for _, t := range inputs {
		r.net.AddPort(id, Input, t)
	}
	return id
}

// relay adds a 20x20 relay with one input and one output per listed type.
func (r *rig) relay(label string, x, y float64, capacity int, types ...PortType) SystemID {
	id := r.net.AddSystem(label, RoleRelay, geom.Pt(x, y), 20, 20, capacity)
	for _, t := range types {
		r.net.AddPort(id, Input, t)
	}
	for _, t := range types {
		r.net.AddPort(id, Output, t)
	}
	return id
}

func (r *rig) out(sys SystemID, i int) PortID { return r.net.System(sys).Outputs[i] }
func (r *rig) in(sys SystemID, i int) PortID  { return r.net.System(sys).Inputs[i] }

func (r *rig) wire(t *testing.T, from, to PortID) *Connection {
	t.Helper()
	c, err := r.net.CreateConnection(from, to)
	require.NoError(t, err)
	return c
}

// lineBlueprint is a source and a sink whose square ports are 100 apart:
// output anchor (20,10), input anchor (120,10).
func lineBlueprint() *Blueprint {
	return &Blueprint{
		Systems: []SystemSpec{
			{Label: "src", Role: RoleSource, X: 0, Y: 0, Width: 20, Height: 20, Outputs: []PortType{PortSquare}},
			{Label: "sink", Role: RoleSink, X: 120, Y: 0, Width: 20, Height: 20, Inputs: []PortType{PortSquare}},
		},
	}
}

func testSimConfig(budget float64) SimConfig {
	return SimConfig{
		Engine:     DefaultEngineConfig(),
		Seed:       42,
		WireBudget: budget,
		Trace:      trace.TraceConfig{Level: trace.TraceLevelDecisions},
	}
}

func newTestSimulator(t *testing.T, cfg SimConfig, bp *Blueprint) *Simulator {
	t.Helper()
	s, err := NewSimulator(cfg, bp)
	require.NoError(t, err)
	return s
}
