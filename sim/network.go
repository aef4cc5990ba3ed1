package sim

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/wiresim/wiresim/sim/geom"
)

// travelDir is the direction packets travel when leaving an output anchor
// and when arriving at an input anchor: outputs sit on the right edge of a
// system, inputs on the left edge.
var travelDir = geom.Pt(1, 0)

// LayoutObserver is told whenever wire or system geometry changes.
type LayoutObserver interface {
	LayoutChanged()
}

// Network is the arena holding every System, Port and Connection.
// Systems and ports are never removed during a run; connections are.
type Network struct {
	systems     []*System
	ports       []*Port
	connections map[ConnectionID]*Connection
	nextWire    ConnectionID
	budget      *WireBudget
	observer    LayoutObserver
}

// NewNetwork creates an empty network with the given wire-length budget.
func NewNetwork(wireBudget float64) *Network {
	return &Network{
		connections: make(map[ConnectionID]*Connection),
		nextWire:    1,
		budget:      NewWireBudget(wireBudget),
	}
}

// SetObserver installs the layout observer (normally the CollisionManager).
func (n *Network) SetObserver(o LayoutObserver) {
	n.observer = o
}

// Budget returns the shared wire budget.
func (n *Network) Budget() *WireBudget {
	return n.budget
}

// AddSystem registers a system. storageCapacity is used for Relays only.
func (n *Network) AddSystem(label string, role Role, origin geom.Point, width, height float64, storageCapacity int) SystemID {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("AddSystem %q: footprint must be positive, got %gx%g", label, width, height))
	}
	s := &System{
		ID:       SystemID(len(n.systems)),
		Label:    label,
		Role:     role,
		Position: origin,
		Width:    width,
		Height:   height,
	}
	if role == RoleRelay {
		s.Storage = NewPacketStorage(storageCapacity)
	}
	n.systems = append(n.systems, s)
	return s.ID
}

// AddPort attaches a new port to a system. Sources take no inputs and
// Sinks no outputs; violating that is a programming error.
func (n *Network) AddPort(sys SystemID, dir Direction, typ PortType) PortID {
	s := n.System(sys)
	if dir == Input && s.Role == RoleSource {
		panic(fmt.Sprintf("AddPort: source %q cannot have input ports", s.Label))
	}
	if dir == Output && s.Role == RoleSink {
		panic(fmt.Sprintf("AddPort: sink %q cannot have output ports", s.Label))
	}
	p := &Port{ID: PortID(len(n.ports)), System: sys, Direction: dir, Type: typ}
	if dir == Input {
		p.Index = len(s.Inputs)
		s.Inputs = append(s.Inputs, p.ID)
	} else {
		p.Index = len(s.Outputs)
		s.Outputs = append(s.Outputs, p.ID)
	}
	n.ports = append(n.ports, p)
	n.refreshSystem(s)
	return p.ID
}

// System returns the system with the given ID. Unknown IDs panic.
func (n *Network) System(id SystemID) *System {
	if id < 0 || int(id) >= len(n.systems) {
		panic(fmt.Sprintf("unknown system %d", id))
	}
	return n.systems[id]
}

// SystemByLabel looks a system up by label.
func (n *Network) SystemByLabel(label string) (*System, bool) {
	for _, s := range n.systems {
		if s.Label == label {
			return s, true
		}
	}
	return nil, false
}

// Port returns the port with the given ID. Unknown IDs panic.
func (n *Network) Port(id PortID) *Port {
	if id < 0 || int(id) >= len(n.ports) {
		panic(fmt.Sprintf("unknown port %d", id))
	}
	return n.ports[id]
}

// Connection returns a live connection.
func (n *Network) Connection(id ConnectionID) (*Connection, bool) {
	c, ok := n.connections[id]
	return c, ok
}

func (n *Network) mustConnection(id ConnectionID) *Connection {
	c, ok := n.connections[id]
	if !ok {
		panic(fmt.Sprintf("unknown connection %d", id))
	}
	return c
}

// Systems returns every system in registration order.
func (n *Network) Systems() []*System {
	return n.systems
}

// Ports returns every port in creation order.
func (n *Network) Ports() []*Port {
	return n.ports
}

// Connections returns the live connections in creation order.
func (n *Network) Connections() []*Connection {
	out := make([]*Connection, 0, len(n.connections))
	for _, c := range n.connections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PortAnchor returns the point where wires attach to a port: outputs are
// spread along the right edge of their system, inputs along the left edge.
func (n *Network) PortAnchor(id PortID) geom.Point {
	p := n.Port(id)
	s := n.System(p.System)
	count := len(s.Inputs)
	x := s.Position.X
	if p.Direction == Output {
		count = len(s.Outputs)
		x += s.Width
	}
	y := s.Position.Y + s.Height*float64(p.Index+1)/float64(count+1)
	return geom.Pt(x, y)
}

// CreateConnection wires an output port to an input port. The charged
// length is the straight-line distance between the anchors.
func (n *Network) CreateConnection(from, to PortID) (*Connection, error) {
	src, dst := n.Port(from), n.Port(to)
	if src.Direction != Output || dst.Direction != Input {
		return nil, reject(RejectWrongDirection, "%s -> %s", src.Direction, dst.Direction)
	}
	if src.System == dst.System {
		return nil, reject(RejectSameSystem, "system %d", src.System)
	}
	if src.Connected() || dst.Connected() {
		return nil, reject(RejectAlreadyConnected, "port %d or %d already wired", from, to)
	}
	if src.Type != dst.Type {
		return nil, reject(RejectTypeMismatch, "%s -> %s", src.Type, dst.Type)
	}
	c := &Connection{ID: n.nextWire, From: from, To: to}
	c.path = n.buildPath(c, nil)
	length := c.path.Length()
	if !n.budget.Fits(length) {
		return nil, reject(RejectInsufficientWire, "need %.1f, %.1f left", length, n.budget.Remaining())
	}
	n.nextWire++
	n.budget.Consume(length)
	c.Length = length
	c.Allotted = length
	src.Wire = c.ID
	dst.Wire = c.ID
	n.connections[c.ID] = c
	logrus.Debugf("wire %d created: port %d -> port %d (%.1f, %.1f left)", c.ID, from, to, length, n.budget.Remaining())
	n.notify()
	return c, nil
}

// RemoveConnection deletes a wire, refunds its length and detaches both
// ports. It returns the packet that was in flight on it (0 if none); the
// caller is responsible for writing that packet off.
func (n *Network) RemoveConnection(id ConnectionID) PacketID {
	c := n.mustConnection(id)
	n.budget.Refund(c.Length)
	n.Port(c.From).Wire = 0
	n.Port(c.To).Wire = 0
	delete(n.connections, id)
	n.reconcileAllotments()
	logrus.Debugf("wire %d removed (%.1f refunded, %.1f left)", id, c.Length, n.budget.Remaining())
	n.notify()
	return c.Occupant
}

// MoveSystem relocates a system and re-routes every attached wire.
func (n *Network) MoveSystem(id SystemID, origin geom.Point) {
	s := n.System(id)
	s.Position = origin
	n.refreshSystem(s)
	n.notify()
}

// ResizeSystem changes a system's footprint.
func (n *Network) ResizeSystem(id SystemID, width, height float64) {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("ResizeSystem: footprint must be positive, got %gx%g", width, height))
	}
	s := n.System(id)
	s.Width, s.Height = width, height
	n.refreshSystem(s)
	n.notify()
}

// UnconnectedPorts lists ports without a wire, in creation order.
func (n *Network) UnconnectedPorts() []PortID {
	var out []PortID
	for _, p := range n.ports {
		if !p.Connected() {
			out = append(out, p.ID)
		}
	}
	return out
}

// TotalWireLength sums the lengths of all live connections.
func (n *Network) TotalWireLength() float64 {
	total := 0.0
	for _, c := range n.connections {
		total += c.Length
	}
	return total
}

func (n *Network) buildPath(c *Connection, bends []geom.Point) geom.Path {
	return geom.NewPath(n.PortAnchor(c.From), travelDir, n.PortAnchor(c.To), travelDir, bends)
}

// setBends replaces a wire's confirmed bends and charges the length delta.
func (n *Network) setBends(c *Connection, bends []geom.Point) {
	c.bends = bends
	n.reroute(c)
	n.notify()
}

// reroute rebuilds a wire's path and moves the length difference between
// the wire and the shared budget.
func (n *Network) reroute(c *Connection) {
	c.path = n.buildPath(c, c.bends)
	length := c.path.Length()
	delta := length - c.Length
	if delta > 0 {
		n.budget.Consume(delta)
	} else {
		n.budget.Refund(-delta)
	}
	c.Length = length
	n.reconcileAllotments()
}

// reconcileAllotments approves every wire's current length while the pool
// is not overdrawn.
func (n *Network) reconcileAllotments() {
	if n.budget.Overdrawn() {
		logrus.Warnf("wire budget overdrawn by %.1f", -n.budget.Remaining())
		return
	}
	for _, c := range n.connections {
		c.Allotted = c.Length
	}
}

// refreshSystem re-routes the wires attached to s.
func (n *Network) refreshSystem(s *System) {
	for _, group := range [][]PortID{s.Inputs, s.Outputs} {
		for _, pid := range group {
			if w := n.ports[pid].Wire; w != 0 {
				n.reroute(n.connections[w])
			}
		}
	}
}

func (n *Network) notify() {
	if n.observer != nil {
		n.observer.LayoutChanged()
	}
}
