package sim

import (
	"fmt"
	"strings"

	"github.com/wiresim/wiresim/sim/geom"
)

// Role classifies a System.
type Role string

const (
	RoleSource Role = "source" // generates packets
	RoleRelay  Role = "relay"  // stores and forwards
	RoleSink   Role = "sink"   // consumes and scores
)

// ParseRole converts a role name into a Role.
func ParseRole(name string) (Role, error) {
	switch r := Role(strings.ToLower(name)); r {
	case RoleSource, RoleRelay, RoleSink:
		return r, nil
	}
	return "", fmt.Errorf("unknown system role %q; valid: source, relay, sink", name)
}

// SystemID indexes Network.systems.
type SystemID int

// System is a node of the flow network.
type System struct {
	ID       SystemID
	Label    string
	Role     Role
	Position geom.Point // top-left corner of the footprint
	Width    float64
	Height   float64

	Inputs  []PortID
	Outputs []PortID

	// Storage is the bounded FIFO of a Relay; nil for Sources and Sinks.
	Storage *PacketStorage

	// pending holds freshly generated packets a Source could not place yet.
	pending []*Packet
}

// Footprint returns the rectangle used for collision geometry.
func (s *System) Footprint() geom.Rect {
	return geom.RectAt(s.Position, s.Width, s.Height)
}

// Active reports whether the system has pending work.
func (s *System) Active() bool {
	if s.Storage != nil && s.Storage.Len() > 0 {
		return true
	}
	return len(s.pending) > 0
}

// Pending returns the number of generated packets waiting at a Source.
func (s *System) Pending() int {
	return len(s.pending)
}

// CapacityUsage returns used and total storage slots. Systems without
// storage report 0, 0.
func (s *System) CapacityUsage() (used, total int) {
	if s.Storage == nil {
		return 0, 0
	}
	return s.Storage.Len(), s.Storage.Cap()
}

func (s *System) removePending(id PacketID) bool {
	for i, p := range s.pending {
		if p.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (s *System) holdsPending(id PacketID) bool {
	for _, p := range s.pending {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (s *System) String() string {
	return fmt.Sprintf("System(%d %q %s)", s.ID, s.Label, s.Role)
}
