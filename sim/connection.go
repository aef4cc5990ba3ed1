package sim

import (
	"fmt"

	"github.com/wiresim/wiresim/sim/geom"
)

// ConnectionID identifies a wire; 0 means "no wire".
type ConnectionID int

// Connection is a directed wire from an output port to an input port.
// It carries at most one packet at a time.
type Connection struct {
	ID   ConnectionID
	From PortID // output port
	To   PortID // input port

	bends   []geom.Point
	pending *geom.Point // provisional bend awaiting confirm/cancel
	path    geom.Path

	// Length is the charged arc length of the current path.
	Length float64
	// Allotted is the length approved against the wire budget.
	Allotted float64

	// Occupant is the in-flight packet, 0 when the wire is free.
	Occupant PacketID

	collision CollisionState
	segments  []CollisionSegment
}

// Occupied reports whether a packet is travelling on the wire.
func (c *Connection) Occupied() bool {
	return c.Occupant != 0
}

// OutOfBudget reports whether the wire is longer than its approved share.
func (c *Connection) OutOfBudget() bool {
	return c.Length > c.Allotted+budgetTolerance
}

// RemainingLength is the approved length not yet used; negative when the
// wire is out of budget.
func (c *Connection) RemainingLength() float64 {
	return c.Allotted - c.Length
}

// Bends returns a copy of the confirmed bend points.
func (c *Connection) Bends() []geom.Point {
	return append([]geom.Point(nil), c.bends...)
}

// PendingBend returns the provisional bend, if any.
func (c *Connection) PendingBend() (geom.Point, bool) {
	if c.pending == nil {
		return geom.Point{}, false
	}
	return *c.pending, true
}

// Path returns the geometry the wire currently follows.
func (c *Connection) Path() geom.Path {
	return c.path
}

// Collision returns the collision state and the current segments.
func (c *Connection) Collision() (CollisionState, []CollisionSegment) {
	return c.collision, append([]CollisionSegment(nil), c.segments...)
}

func (c *Connection) String() string {
	return fmt.Sprintf("Connection(%d: port %d -> port %d, len %.1f, bends %d)", c.ID, c.From, c.To, c.Length, len(c.bends))
}
