package sim

import (
	"fmt"

	"github.com/wiresim/wiresim/sim/geom"
	"github.com/wiresim/wiresim/sim/workload"
)

// SystemSpec describes a system of a level layout.
type SystemSpec struct {
	Label    string
	Role     Role
	X, Y     float64
	Width    float64
	Height   float64
	Capacity int // relay storage; 0 uses EngineConfig.StorageCapacity
	Inputs   []PortType
	Outputs  []PortType
}

// PortRef names a port by system label and index within its direction.
type PortRef struct {
	System string
	Index  int
}

// WireSpec describes a pre-placed wire.
type WireSpec struct {
	From  PortRef // output port
	To    PortRef // input port
	Bends []geom.Point
}

// Blueprint is the immutable description a level is built from. Rebuilding
// from the same blueprint yields an identical network.
type Blueprint struct {
	Systems []SystemSpec
	Wires   []WireSpec
	Cadence []workload.SourceCadence
}

// build populates sim from the blueprint.
func (bp *Blueprint) build(sim *Simulator) error {
	labels := make(map[string]SystemID, len(bp.Systems))
	for i, spec := range bp.Systems {
		if spec.Label == "" {
			return fmt.Errorf("systems[%d]: label required", i)
		}
		if _, dup := labels[spec.Label]; dup {
			return fmt.Errorf("systems[%d]: duplicate label %q", i, spec.Label)
		}
		if spec.Width <= 0 || spec.Height <= 0 {
			return fmt.Errorf("system %q: footprint must be positive", spec.Label)
		}
		if err := checkRolePorts(spec); err != nil {
			return err
		}
		capacity := spec.Capacity
		if capacity == 0 {
			capacity = sim.Config.Engine.StorageCapacity
		}
		id := sim.Network.AddSystem(spec.Label, spec.Role, geom.Pt(spec.X, spec.Y), spec.Width, spec.Height, capacity)
		for _, t := range spec.Inputs {
			sim.Network.AddPort(id, Input, t)
		}
		for _, t := range spec.Outputs {
			sim.Network.AddPort(id, Output, t)
		}
		labels[spec.Label] = id
	}

	for i, w := range bp.Wires {
		from, err := bp.resolve(sim.Network, labels, w.From, Output)
		if err != nil {
			return fmt.Errorf("wires[%d]: %w", i, err)
		}
		to, err := bp.resolve(sim.Network, labels, w.To, Input)
		if err != nil {
			return fmt.Errorf("wires[%d]: %w", i, err)
		}
		c, err := sim.Network.CreateConnection(from, to)
		if err != nil {
			return fmt.Errorf("wires[%d]: %w", i, err)
		}
		if len(w.Bends) > sim.Config.Engine.MaxBends {
			return fmt.Errorf("wires[%d]: %d bends exceed the limit of %d", i, len(w.Bends), sim.Config.Engine.MaxBends)
		}
		if len(w.Bends) > 0 {
			sim.Network.setBends(c, append([]geom.Point(nil), w.Bends...))
		}
	}

	for i, cadence := range bp.Cadence {
		id, ok := labels[cadence.System]
		if !ok {
			return fmt.Errorf("cadence[%d]: unknown system %q", i, cadence.System)
		}
		if err := sim.Scheduler.Register(id, cadence); err != nil {
			return fmt.Errorf("cadence[%d]: %w", i, err)
		}
	}
	return nil
}

func (bp *Blueprint) resolve(net *Network, labels map[string]SystemID, ref PortRef, dir Direction) (PortID, error) {
	id, ok := labels[ref.System]
	if !ok {
		return 0, fmt.Errorf("unknown system %q", ref.System)
	}
	s := net.System(id)
	ports := s.Inputs
	if dir == Output {
		ports = s.Outputs
	}
	if ref.Index < 0 || ref.Index >= len(ports) {
		return 0, fmt.Errorf("system %q has no %s port %d", ref.System, dir, ref.Index)
	}
	return ports[ref.Index], nil
}

func checkRolePorts(spec SystemSpec) error {
	switch spec.Role {
	case RoleSource:
		if len(spec.Inputs) > 0 {
			return fmt.Errorf("source %q cannot have input ports", spec.Label)
		}
	case RoleSink:
		if len(spec.Outputs) > 0 {
			return fmt.Errorf("sink %q cannot have output ports", spec.Label)
		}
	case RoleRelay:
		if len(spec.Inputs) == 0 || len(spec.Outputs) == 0 {
			return fmt.Errorf("relay %q needs at least one input and one output port", spec.Label)
		}
	default:
		return fmt.Errorf("system %q: unknown role %q", spec.Label, spec.Role)
	}
	return nil
}
