package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/wiresim/wiresim/sim/trace"
)

// Loss reasons reported to the notifier and the trace.
const (
	LossStorageOverflow = "storage overflow"
	LossWireRemoved     = "wire removed"
	LossDetached        = "detached from storage"
	LossNoise           = "noise exceeded size"
)

// Engine is the routing and flow-control engine. It decides, per packet,
// whether to forward, buffer or write it off, moves in-flight packets along
// their wires and keeps the run counters.
type Engine struct {
	net      *Network
	cfg      EngineConfig
	wallet   *Wallet
	notifier Notifier
	trace    *trace.SimulationTrace
	rng      *PartitionedRNG

	packets  map[PacketID]*Packet
	order    []PacketID // active packets in creation order
	nextID   PacketID
	counters Counters
	now      int64 // ms
	failure  error
}

// NewEngine creates an engine over net. notifier may be nil; st may be nil
// when tracing is disabled.
func NewEngine(net *Network, cfg EngineConfig, wallet *Wallet, notifier Notifier, st *trace.SimulationTrace, rng *PartitionedRNG) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		net:      net,
		cfg:      cfg,
		wallet:   wallet,
		notifier: notifier,
		trace:    st,
		rng:      rng,
		packets:  make(map[PacketID]*Packet),
		nextID:   1,
	}
}

// Now returns the engine clock in ms.
func (e *Engine) Now() int64 { return e.now }

func (e *Engine) setNow(ms int64) { e.now = ms }

// Counters returns a copy of the run counters.
func (e *Engine) Counters() Counters { return e.counters }

// Failure returns the fatal error that ended the run, if any.
func (e *Engine) Failure() error { return e.failure }

// Failed reports whether a fatal condition ended the run.
func (e *Engine) Failed() bool { return e.failure != nil }

// Packet returns an active packet.
func (e *Engine) Packet(id PacketID) (*Packet, bool) {
	p, ok := e.packets[id]
	return p, ok
}

// Packets returns the active packets in creation order.
func (e *Engine) Packets() []*Packet {
	out := make([]*Packet, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.packets[id])
	}
	return out
}

// NewPacket creates and registers a packet. Protected packets get a random
// disguise from DisguiseTypes.
func (e *Engine) NewPacket(kind PacketKind) *Packet {
	kind.profile() // panics on unknown kinds
	p := &Packet{ID: e.nextID, Kind: kind, CreatedAt: e.now}
	if kind == KindProtected {
		rng := e.rng.ForSubsystem(SubsystemDisguise)
		p.Disguise = DisguiseTypes[rng.Intn(len(DisguiseTypes))]
	}
	e.nextID++
	e.packets[p.ID] = p
	e.order = append(e.order, p.ID)
	e.counters.Generated++
	return p
}

// Generate creates a packet at a Source and places it: straight onto a wire
// when one is free and nothing is already waiting, otherwise at the back of
// the source's pending list.
func (e *Engine) Generate(kind PacketKind, source SystemID) *Packet {
	s := e.net.System(source)
	if s.Role != RoleSource {
		panic(fmt.Sprintf("Generate: %s is not a source", s))
	}
	p := e.NewPacket(kind)
	p.System = source
	p.Position = s.Footprint().Center()
	logrus.Debugf("[%07d] generated packet %d (%s) at %q", e.now, p.ID, kind, s.Label)
	if len(s.pending) == 0 && e.TryForward(p, source) {
		return p
	}
	// Store when every wired output is busy; wait when nothing is wired.
	decision := trace.DecisionWait
	for _, pid := range s.Outputs {
		if e.net.Port(pid).Connected() {
			decision = trace.DecisionStore
			break
		}
	}
	p.State = StateBuffered
	s.pending = append(s.pending, p)
	e.recordRouting(p, s, decision, nil)
	return p
}

// TryForward attempts to place p on an output wire of the system. A free
// wire whose port matches the packet's effective type wins; otherwise any
// free wire is taken (fallback). Returns false when every wired output is
// busy or unwired.
func (e *Engine) TryForward(p *Packet, at SystemID) bool {
	s := e.net.System(at)
	var fallback *Port
	for _, pid := range s.Outputs {
		port := e.net.Port(pid)
		if !port.Connected() {
			continue
		}
		c := e.net.mustConnection(port.Wire)
		if c.Occupied() {
			continue
		}
		if p.Accepts(port.Type) {
			e.launch(p, s, port, c, true)
			return true
		}
		if fallback == nil {
			fallback = port
		}
	}
	if fallback == nil {
		return false
	}
	e.counters.Fallbacks++
	e.launch(p, s, fallback, e.net.mustConnection(fallback.Wire), false)
	return true
}

func (e *Engine) launch(p *Packet, s *System, port *Port, c *Connection, compatible bool) {
	if p.State == StateBuffered {
		e.unbuffer(p)
	}
	c.Occupant = p.ID
	p.State = StateInFlight
	p.System = s.ID
	p.Wire = c.ID
	p.Progress = 0
	p.Traveled = 0
	p.Compatible = compatible
	p.Velocity = e.cfg.BaseSpeed * p.SpeedMultiplier(compatible)
	p.Position = c.path.Start

	decision := trace.DecisionForward
	if !compatible {
		decision = trace.DecisionFallback
	}
	logrus.Debugf("[%07d] packet %d %s on wire %d from %q", e.now, p.ID, decision, c.ID, s.Label)
	e.recordRouting(p, s, decision, port)
}

// unbuffer takes a buffered packet out of its storage or pending list.
func (e *Engine) unbuffer(p *Packet) {
	s := e.net.System(p.System)
	if s.Storage != nil && s.Storage.Remove(p.ID) {
		return
	}
	s.removePending(p.ID)
}

// BufferOrDrop appends p to the system's storage. A full storage is fatal
// to the run: the packet is written off and a *CapacityExceededError is
// returned (and kept as the engine's failure).
func (e *Engine) BufferOrDrop(p *Packet, at SystemID) error {
	s := e.net.System(at)
	if s.Storage == nil {
		panic(fmt.Sprintf("BufferOrDrop: %s has no storage", s))
	}
	if !s.Storage.Enqueue(p) {
		err := &CapacityExceededError{System: s.ID, Label: s.Label, Capacity: s.Storage.Cap(), Packet: p.ID}
		if e.failure == nil {
			e.failure = err
		}
		logrus.Warnf("[%07d] %v", e.now, err)
		e.recordRouting(p, s, trace.DecisionOverflow, nil)
		e.notifier.StorageOverflow(s, p)
		p.System = s.ID
		e.writeOff(p, LossStorageOverflow)
		return err
	}
	p.State = StateBuffered
	p.System = s.ID
	p.Wire = 0
	p.Position = s.Footprint().Center()
	logrus.Debugf("[%07d] packet %d buffered at %q (%d/%d)", e.now, p.ID, s.Label, s.Storage.Len(), s.Storage.Cap())
	e.recordRouting(p, s, trace.DecisionBuffer, nil)
	return nil
}

// Receive handles a packet reaching an input port. At a Sink the packet is
// delivered (counted at most once) and dropped; at a Relay it is forwarded
// or buffered.
func (e *Engine) Receive(p *Packet, at PortID) {
	port := e.net.Port(at)
	s := e.net.System(port.System)
	if s.Role == RoleSink {
		e.deliver(p, s)
		e.detach(p)
		e.remove(p.ID)
		return
	}
	if s.Role != RoleRelay {
		panic(fmt.Sprintf("Receive: packet %d arrived at %s", p.ID, s))
	}
	e.detach(p)
	p.System = s.ID
	p.Position = e.net.PortAnchor(at)
	if e.TryForward(p, s.ID) {
		return
	}
	_ = e.BufferOrDrop(p, s.ID) // failure is kept on the engine
}

func (e *Engine) deliver(p *Packet, sink *System) {
	if p.Counted {
		logrus.Debugf("[%07d] packet %d already accounted, ignoring delivery", e.now, p.ID)
		return
	}
	p.Counted = true
	p.State = StateDelivered
	p.System = sink.ID
	e.counters.Delivered++
	e.counters.VisualDelivered++
	e.counters.CoinsEarned += p.Value()
	e.wallet.Earn(p.Value())
	e.notifier.PacketDelivered(p, sink)
	logrus.Debugf("[%07d] packet %d delivered at %q (+%d coins)", e.now, p.ID, sink.Label, p.Value())
	if e.trace != nil {
		e.trace.RecordDelivery(trace.DeliveryRecord{
			PacketID: int64(p.ID),
			Clock:    e.now,
			Sink:     sink.Label,
			Kind:     p.Kind.String(),
			Value:    p.Value(),
			Latency:  e.now - p.CreatedAt,
		})
	}
}

// detach frees the packet's wire.
func (e *Engine) detach(p *Packet) {
	if p.Wire == 0 {
		return
	}
	if c, ok := e.net.Connection(p.Wire); ok && c.Occupant == p.ID {
		c.Occupant = 0
	}
	p.Wire = 0
}

// RetryBuffered re-attempts forwarding of the head of a relay's storage.
// The queue is strict FIFO: a blocked head stalls everything behind it.
func (e *Engine) RetryBuffered(at SystemID) bool {
	s := e.net.System(at)
	if s.Storage == nil {
		return false
	}
	head := s.Storage.Peek()
	if head == nil {
		return false
	}
	return e.TryForward(head, at)
}

// RetryPending re-attempts every packet waiting at a source, in order.
// Unlike RetryBuffered, a packet that cannot leave does not block those
// behind it. Returns the number of packets placed.
func (e *Engine) RetryPending(at SystemID) int {
	s := e.net.System(at)
	placed := 0
	for _, p := range append([]*Packet(nil), s.pending...) {
		if e.TryForward(p, at) {
			placed++
		}
	}
	return placed
}

// Advance moves every in-flight packet by dt ms. Packets reaching the end
// of their wire are handed to Receive. Movement stops at the first fatal
// failure so that nothing is counted after it.
func (e *Engine) Advance(dt int64) {
	secs := float64(dt) / 1000
	for _, id := range append([]PacketID(nil), e.order...) {
		if e.failure != nil {
			return
		}
		p, ok := e.packets[id]
		if !ok || p.State != StateInFlight {
			continue
		}
		c, ok := e.net.Connection(p.Wire)
		if !ok || c.Occupant != p.ID {
			continue // SweepLost writes it off
		}
		p.Velocity += p.acceleration() * e.cfg.BaseSpeed * secs
		p.Traveled += p.Velocity * secs
		if c.Length <= 0 {
			p.Progress = 1
		} else {
			p.Progress = math.Min(p.Traveled/c.Length, 1)
		}
		if p.Progress >= 1 {
			p.Position = c.path.End
			e.Receive(p, c.To)
			continue
		}
		p.Position = c.path.PointAt(p.Progress)
	}
}

// SweepLost writes off every active packet that is neither held by a
// storage (or source pending list) nor travelling on a live wire, and every
// packet whose noise reached its size. Returns the number written off.
func (e *Engine) SweepLost() int {
	lost := 0
	for _, id := range append([]PacketID(nil), e.order...) {
		p, ok := e.packets[id]
		if !ok {
			continue
		}
		if reason, alive := e.liveness(p); !alive {
			e.writeOff(p, reason)
			lost++
		}
	}
	return lost
}

func (e *Engine) liveness(p *Packet) (string, bool) {
	if p.Noise >= float64(p.Size()) {
		return LossNoise, false
	}
	switch p.State {
	case StateBuffered:
		s := e.net.System(p.System)
		if (s.Storage != nil && s.Storage.Contains(p.ID)) || s.holdsPending(p.ID) {
			return "", true
		}
		return LossDetached, false
	case StateInFlight:
		if c, ok := e.net.Connection(p.Wire); ok && c.Occupant == p.ID {
			return "", true
		}
		return LossWireRemoved, false
	}
	return LossDetached, false
}

// writeOff removes p from wherever it is and counts it lost, at most once.
func (e *Engine) writeOff(p *Packet, reason string) {
	if p.State == StateBuffered {
		e.unbuffer(p)
	}
	e.detach(p)
	p.State = StateLost
	e.remove(p.ID)
	if p.Counted {
		return
	}
	p.Counted = true
	e.counters.Lost++
	e.notifier.PacketLost(p, reason)
	logrus.Debugf("[%07d] packet %d lost: %s", e.now, p.ID, reason)
	if e.trace != nil {
		e.trace.RecordLoss(trace.LossRecord{PacketID: int64(p.ID), Clock: e.now, Kind: p.Kind.String(), Reason: reason})
	}
}

// AddNoise raises a packet's noise level. The packet is lost at the next
// sweep once its noise reaches its size.
func (e *Engine) AddNoise(id PacketID, amount float64) bool {
	p, ok := e.packets[id]
	if !ok {
		return false
	}
	p.Noise += amount
	return true
}

// ResetNoise clears the noise of every active packet.
func (e *Engine) ResetNoise() {
	for _, p := range e.packets {
		p.Noise = 0
	}
}

func (e *Engine) remove(id PacketID) {
	if _, ok := e.packets[id]; !ok {
		return
	}
	delete(e.packets, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func (e *Engine) recordRouting(p *Packet, s *System, decision trace.Decision, port *Port) {
	if e.trace == nil {
		return
	}
	rec := trace.RoutingRecord{
		PacketID: int64(p.ID),
		Clock:    e.now,
		System:   s.Label,
		Kind:     p.Kind.String(),
		Decision: decision,
	}
	if port != nil {
		rec.Wire = int(port.Wire)
		rec.Port = port.Type.String()
	}
	e.trace.RecordRouting(rec)
}
