package sim

import (
	"fmt"
	"strings"
)

// PortType is the shape tag used to match packets to ports.
type PortType int

const (
	PortSquare PortType = iota + 1
	PortTriangle
	PortHexagon
	PortPentagon
	PortProtected
)

var portTypeNames = map[PortType]string{
	PortSquare:    "square",
	PortTriangle:  "triangle",
	PortHexagon:   "hexagon",
	PortPentagon:  "pentagon",
	PortProtected: "protected",
}

func (t PortType) String() string {
	if name, ok := portTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PortType(%d)", int(t))
}

// ParsePortType converts a lower-case shape name into a PortType.
func ParsePortType(name string) (PortType, error) {
	for t, n := range portTypeNames {
		if n == strings.ToLower(name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown port type %q; valid: square, triangle, hexagon, pentagon, protected", name)
}

// Direction says whether packets leave (Output) or enter (Input) through a port.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// PortID indexes Network.ports.
type PortID int

// Port is a typed, directional attachment point on exactly one System.
type Port struct {
	ID        PortID
	System    SystemID // owning system
	Direction Direction
	Type      PortType
	Index     int          // position among the system's ports of the same direction
	Wire      ConnectionID // 0 when unconnected
}

// Connected reports whether a wire is attached.
func (p *Port) Connected() bool {
	return p.Wire != 0
}

func (p *Port) String() string {
	return fmt.Sprintf("Port(%d %s %s of system %d)", p.ID, p.Direction, p.Type, p.System)
}
