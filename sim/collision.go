package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/wiresim/wiresim/sim/geom"
	"github.com/wiresim/wiresim/sim/trace"
)

// CollisionState is the per-wire collision state machine:
// Clear -> Colliding -> Bending -> Resolved (or back to Clear).
type CollisionState string

const (
	CollisionClear     CollisionState = "clear"
	CollisionColliding CollisionState = "colliding"
	CollisionBending   CollisionState = "bending"
	CollisionResolved  CollisionState = "resolved"
)

// crossingTolerance merges crossing points closer than this.
const crossingTolerance = 1e-6

// bendClearance is the gap SuggestBendPoints keeps from an obstruction.
const bendClearance = 20.0

// CollisionSegment is the stretch of a wire that passes over a system it is
// not attached to.
type CollisionSegment struct {
	Wire   ConnectionID
	System SystemID
	Entry  geom.Point
	Exit   geom.Point
}

// Midpoint is where the UI places the bend button for the segment.
func (s CollisionSegment) Midpoint() geom.Point {
	return s.Entry.Lerp(s.Exit, 0.5)
}

// CollisionManager detects wires crossing intervening systems and manages
// the bend points that route wires around them.
type CollisionManager struct {
	net    *Network
	wallet *Wallet
	cfg    EngineConfig
	trace  *trace.SimulationTrace
	clock  func() int64
}

// NewCollisionManager creates a manager and installs it as the network's
// layout observer.
func NewCollisionManager(net *Network, wallet *Wallet, cfg EngineConfig, st *trace.SimulationTrace, clock func() int64) *CollisionManager {
	if clock == nil {
		clock = func() int64 { return 0 }
	}
	cm := &CollisionManager{net: net, wallet: wallet, cfg: cfg, trace: st, clock: clock}
	net.SetObserver(cm)
	return cm
}

// LayoutChanged implements LayoutObserver: any move can make any wire
// collide, so every wire is checked again.
func (cm *CollisionManager) LayoutChanged() {
	cm.CheckAll()
}

// CheckAll re-runs CheckCollision on every wire.
func (cm *CollisionManager) CheckAll() {
	for _, c := range cm.net.Connections() {
		cm.check(c)
	}
}

// CheckCollision tests the wire's current path against the footprint of
// every system other than its two endpoints and updates the wire's
// collision state. It never fails.
func (cm *CollisionManager) CheckCollision(id ConnectionID) []CollisionSegment {
	c := cm.net.mustConnection(id)
	cm.check(c)
	return append([]CollisionSegment(nil), c.segments...)
}

func (cm *CollisionManager) check(c *Connection) {
	from := cm.net.Port(c.From).System
	to := cm.net.Port(c.To).System
	line := c.path.Polyline()

	var segments []CollisionSegment
	for _, s := range cm.net.Systems() {
		if s.ID == from || s.ID == to {
			continue
		}
		hits := s.Footprint().Crossings(line, crossingTolerance)
		if len(hits) < 2 {
			continue
		}
		segments = append(segments, CollisionSegment{
			Wire:   c.ID,
			System: s.ID,
			Entry:  hits[0],
			Exit:   hits[len(hits)-1],
		})
	}
	c.segments = segments

	prev := c.collision
	switch {
	case c.pending != nil:
		c.collision = CollisionBending
	case len(segments) > 0:
		c.collision = CollisionColliding
	case prev == CollisionColliding || prev == CollisionBending || prev == CollisionResolved:
		c.collision = CollisionResolved
	default:
		c.collision = CollisionClear
	}
	if prev != c.collision {
		logrus.Debugf("wire %d collision %s -> %s (%d segments)", c.ID, prev, c.collision, len(segments))
	}
}

// State returns the collision state of a wire.
func (cm *CollisionManager) State(id ConnectionID) CollisionState {
	return cm.net.mustConnection(id).collision
}

// Segments returns the last computed collision segments of a wire.
func (cm *CollisionManager) Segments(id ConnectionID) []CollisionSegment {
	return append([]CollisionSegment(nil), cm.net.mustConnection(id).segments...)
}

// Colliding lists the wires whose current path crosses a system.
func (cm *CollisionManager) Colliding() []ConnectionID {
	var out []ConnectionID
	for _, c := range cm.net.Connections() {
		if len(c.segments) > 0 {
			out = append(out, c.ID)
		}
	}
	return out
}

// InsertBend places a provisional bend point on a wire. It costs BendCost
// coins and is refused when the wire already holds MaxBends bends, has an
// unconfirmed bend, or the wallet cannot pay.
func (cm *CollisionManager) InsertBend(id ConnectionID, at geom.Point) error {
	c := cm.net.mustConnection(id)
	if c.pending != nil {
		return reject(RejectBendPending, "wire %d", id)
	}
	if len(c.bends) >= cm.cfg.MaxBends {
		return reject(RejectBendLimit, "wire %d already has %d bends", id, len(c.bends))
	}
	if !cm.wallet.Spend(cm.cfg.BendCost) {
		return reject(RejectInsufficientCurrency, "bend costs %d, have %d", cm.cfg.BendCost, cm.wallet.Coins())
	}
	p := at
	c.pending = &p
	c.collision = CollisionBending
	cm.record(c, trace.BendInserted, at)
	return nil
}

// MovePendingBend drags the provisional bend.
func (cm *CollisionManager) MovePendingBend(id ConnectionID, at geom.Point) error {
	c := cm.net.mustConnection(id)
	if c.pending == nil {
		return reject(RejectNoPendingBend, "wire %d", id)
	}
	*c.pending = at
	return nil
}

// ConfirmBend locks the provisional bend into the wire's path, recomputes
// the path and its length charge, and re-runs collision detection.
func (cm *CollisionManager) ConfirmBend(id ConnectionID) error {
	c := cm.net.mustConnection(id)
	if c.pending == nil {
		return reject(RejectNoPendingBend, "wire %d", id)
	}
	at := *c.pending
	c.pending = nil
	bends := cm.insertOrdered(c, at)
	cm.net.setBends(c, bends)
	cm.check(c)
	cm.record(c, trace.BendConfirmed, at)
	return nil
}

// CancelBend discards the provisional bend and refunds its cost.
func (cm *CollisionManager) CancelBend(id ConnectionID) error {
	c := cm.net.mustConnection(id)
	if c.pending == nil {
		return reject(RejectNoPendingBend, "wire %d", id)
	}
	at := *c.pending
	c.pending = nil
	cm.wallet.Earn(cm.cfg.BendCost)
	cm.check(c)
	cm.record(c, trace.BendCancelled, at)
	return nil
}

// MoveBend relocates a confirmed bend.
func (cm *CollisionManager) MoveBend(id ConnectionID, index int, at geom.Point) error {
	c := cm.net.mustConnection(id)
	if index < 0 || index >= len(c.bends) {
		return reject(RejectUnknownBend, "wire %d has no bend %d", id, index)
	}
	bends := c.Bends()
	bends[index] = at
	cm.net.setBends(c, bends)
	cm.record(c, trace.BendMoved, at)
	return nil
}

// RemoveBend deletes a confirmed bend, freeing the detour length. The coin
// cost is not refunded.
func (cm *CollisionManager) RemoveBend(id ConnectionID, index int) error {
	c := cm.net.mustConnection(id)
	if index < 0 || index >= len(c.bends) {
		return reject(RejectUnknownBend, "wire %d has no bend %d", id, index)
	}
	at := c.bends[index]
	bends := append(c.Bends()[:index], c.bends[index+1:]...)
	cm.net.setBends(c, bends)
	cm.record(c, trace.BendRemoved, at)
	return nil
}

// SuggestBendPoints proposes the bends that take the wire around the
// segment's obstruction: the two corners of the footprint, grown by
// bendClearance, on the side the segment runs closer to, in travel order.
// Confirming both clears a footprint of any width.
func (cm *CollisionManager) SuggestBendPoints(seg CollisionSegment) []geom.Point {
	foot := cm.net.System(seg.System).Footprint()
	box := foot.Expand(bendClearance)
	mid := seg.Midpoint()
	d := seg.Exit.Sub(seg.Entry)
	if math.Abs(d.X) >= math.Abs(d.Y) {
		y := box.Max.Y
		if math.Abs(mid.Y-foot.Min.Y) <= math.Abs(mid.Y-foot.Max.Y) {
			y = box.Min.Y
		}
		first, second := box.Min.X, box.Max.X
		if d.X < 0 {
			first, second = second, first
		}
		return []geom.Point{geom.Pt(first, y), geom.Pt(second, y)}
	}
	x := box.Max.X
	if math.Abs(mid.X-foot.Min.X) <= math.Abs(mid.X-foot.Max.X) {
		x = box.Min.X
	}
	first, second := box.Min.Y, box.Max.Y
	if d.Y < 0 {
		first, second = second, first
	}
	return []geom.Point{geom.Pt(x, first), geom.Pt(x, second)}
}

// insertOrdered returns the bends with at inserted where it adds the least
// straight-line length to the knot sequence.
func (cm *CollisionManager) insertOrdered(c *Connection, at geom.Point) []geom.Point {
	start := cm.net.PortAnchor(c.From)
	end := cm.net.PortAnchor(c.To)
	best, bestLen := 0, math.Inf(1)
	for i := 0; i <= len(c.bends); i++ {
		knots := make([]geom.Point, 0, len(c.bends)+3)
		knots = append(knots, start)
		knots = append(knots, c.bends[:i]...)
		knots = append(knots, at)
		knots = append(knots, c.bends[i:]...)
		knots = append(knots, end)
		l := 0.0
		for k := 0; k+1 < len(knots); k++ {
			l += knots[k].DistanceTo(knots[k+1])
		}
		if l < bestLen {
			best, bestLen = i, l
		}
	}
	out := make([]geom.Point, 0, len(c.bends)+1)
	out = append(out, c.bends[:best]...)
	out = append(out, at)
	return append(out, c.bends[best:]...)
}

func (cm *CollisionManager) record(c *Connection, action trace.BendAction, at geom.Point) {
	logrus.Debugf("wire %d bend %s at %v", c.ID, action, at)
	if cm.trace == nil {
		return
	}
	cm.trace.RecordBend(trace.BendRecord{
		Clock:  cm.clock(),
		Wire:   int(c.ID),
		Action: action,
		X:      at.X,
		Y:      at.Y,
		Bends:  len(c.bends),
		Length: c.Length,
	})
}

func (s CollisionSegment) String() string {
	return fmt.Sprintf("wire %d crosses system %d from %v to %v", s.Wire, s.System, s.Entry, s.Exit)
}
