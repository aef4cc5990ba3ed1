package sim

import (
	"fmt"
	"strings"

	"github.com/wiresim/wiresim/sim/geom"
)

// PacketID is a monotonic packet identity; the first packet gets 1.
type PacketID int64

// PacketKind is the variant tag of a packet.
type PacketKind int

const (
	KindSquare PacketKind = iota + 1
	KindTriangle
	KindHexagon
	KindPentagon
	KindProtected
)

// kindProfile is the per-variant behaviour table. Looking behaviour up by
// kind keeps routing code free of per-variant branches.
type kindProfile struct {
	name       string
	routing    PortType // routing type; KindProtected routes by its disguise instead
	speed      float64  // multiplier of the base speed on a matching wire
	slowSpeed  float64  // multiplier on a mismatched wire
	mismatchAc float64  // acceleration on a mismatched wire, in base speeds per second
	size       int      // noise tolerance
	value      int      // coins awarded on delivery
	wildcard   bool     // may traverse any port type without penalty
}

var kindProfiles = map[PacketKind]kindProfile{
	KindSquare:    {name: "square", routing: PortSquare, speed: 1, slowSpeed: 0.5, size: 2, value: 2},
	KindTriangle:  {name: "triangle", routing: PortTriangle, speed: 1, slowSpeed: 1, mismatchAc: 0.5, size: 3, value: 3},
	KindHexagon:   {name: "hexagon", routing: PortHexagon, speed: 1, slowSpeed: 1, size: 1, value: 1, wildcard: true},
	KindPentagon:  {name: "pentagon", routing: PortPentagon, speed: 1.5, slowSpeed: 1.5, size: 4, value: 3},
	KindProtected: {name: "protected", routing: PortProtected, speed: 1, slowSpeed: 1, size: 4, value: 5},
}

func (k PacketKind) profile() kindProfile {
	prof, ok := kindProfiles[k]
	if !ok {
		panic(fmt.Sprintf("unknown packet kind %d", int(k)))
	}
	return prof
}

func (k PacketKind) String() string {
	if prof, ok := kindProfiles[k]; ok {
		return prof.name
	}
	return fmt.Sprintf("PacketKind(%d)", int(k))
}

// ParsePacketKind converts a kind name into a PacketKind.
func ParsePacketKind(name string) (PacketKind, error) {
	for k, prof := range kindProfiles {
		if prof.name == strings.ToLower(name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown packet kind %q; valid: square, triangle, hexagon, pentagon, protected", name)
}

// DisguiseTypes are the port types a protected packet may pose as.
var DisguiseTypes = []PortType{PortSquare, PortTriangle, PortHexagon}

// PacketState represents the lifecycle state of a packet.
type PacketState string

const (
	StateBuffered  PacketState = "buffered"
	StateInFlight  PacketState = "in-flight"
	StateDelivered PacketState = "delivered"
	StateLost      PacketState = "lost"
)

// Routable is the routing-facing behaviour of a packet.
type Routable interface {
	EffectiveRoutingType() PortType
	SpeedMultiplier(compatible bool) float64
	Wildcard() bool
}

// Packet is a discrete flow unit.
type Packet struct {
	ID       PacketID
	Kind     PacketKind
	Disguise PortType // routing type override, only for KindProtected
	Noise    float64

	State PacketState

	// Location. System is the buffering system (or the last system left);
	// Wire/Progress/Traveled are meaningful while in flight.
	System   SystemID
	Wire     ConnectionID
	Progress float64 // fraction of the wire covered, in [0,1]
	Traveled float64 // distance covered on the current wire
	Velocity float64 // current speed in units per second
	Position geom.Point

	// Compatible records whether the current wire matches the packet.
	Compatible bool

	// Counted guards delivery/loss accounting: once set, the packet never
	// moves a counter again.
	Counted bool

	CreatedAt int64 // ms
}

var _ Routable = (*Packet)(nil)

// EffectiveRoutingType is the type used for port matching: the disguise for
// protected packets, the nominal type for everything else.
func (p *Packet) EffectiveRoutingType() PortType {
	if p.Kind == KindProtected && p.Disguise != 0 {
		return p.Disguise
	}
	return p.Kind.profile().routing
}

// SpeedMultiplier returns the base-speed factor on a matching or mismatched wire.
func (p *Packet) SpeedMultiplier(compatible bool) float64 {
	prof := p.Kind.profile()
	if compatible {
		return prof.speed
	}
	return prof.slowSpeed
}

// Wildcard reports whether the packet may traverse any port type.
func (p *Packet) Wildcard() bool {
	return p.Kind.profile().wildcard
}

// Accepts reports whether a port of type t counts as a type match.
func (p *Packet) Accepts(t PortType) bool {
	return p.Wildcard() || t == p.EffectiveRoutingType()
}

// Size is the noise tolerance: a packet whose noise reaches its size is lost.
func (p *Packet) Size() int {
	return p.Kind.profile().size
}

// Value is the coin reward on delivery.
func (p *Packet) Value() int {
	return p.Kind.profile().value
}

func (p *Packet) acceleration() float64 {
	if p.Compatible {
		return 0
	}
	return p.Kind.profile().mismatchAc
}

func (p Packet) String() string {
	return fmt.Sprintf("Packet: (ID: %d, Kind: %s, State: %s, Progress: %.2f)", p.ID, p.Kind, p.State, p.Progress)
}
