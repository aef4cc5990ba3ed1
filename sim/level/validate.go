package level

import (
	"fmt"

	"github.com/wiresim/wiresim/sim"
)

// StartBlockReason names why the network cannot start.
type StartBlockReason string

const (
	BlockIncompleteWiring StartBlockReason = "incomplete-wiring"
	BlockTypeMismatch     StartBlockReason = "type-mismatch"
	BlockCollision        StartBlockReason = "collision"
	BlockWireOverBudget   StartBlockReason = "wire-over-budget"
)

// StartError reports a refused start.
type StartError struct {
	Reason StartBlockReason
	Ports  []sim.PortID       // unconnected ports (incomplete-wiring)
	Wires  []sim.ConnectionID // offending wires (other reasons)
}

func (e *StartError) Error() string {
	switch e.Reason {
	case BlockIncompleteWiring:
		return fmt.Sprintf("start blocked: %s (%d unconnected ports)", e.Reason, len(e.Ports))
	default:
		return fmt.Sprintf("start blocked: %s (wires %v)", e.Reason, e.Wires)
	}
}

// Validate checks that every port is wired, every wire joins ports of the
// same type, no wire crosses a system and no wire exceeds its share of the
// wire budget.
func Validate(s *sim.Simulator) error {
	if ports := s.Network.UnconnectedPorts(); len(ports) > 0 {
		return &StartError{Reason: BlockIncompleteWiring, Ports: ports}
	}
	var mismatched, overBudget []sim.ConnectionID
	for _, c := range s.Network.Connections() {
		if s.Network.Port(c.From).Type != s.Network.Port(c.To).Type {
			mismatched = append(mismatched, c.ID)
		}
		if c.OutOfBudget() {
			overBudget = append(overBudget, c.ID)
		}
	}
	if len(mismatched) > 0 {
		return &StartError{Reason: BlockTypeMismatch, Wires: mismatched}
	}
	if colliding := s.Collisions.Colliding(); len(colliding) > 0 {
		return &StartError{Reason: BlockCollision, Wires: colliding}
	}
	if len(overBudget) > 0 {
		return &StartError{Reason: BlockWireOverBudget, Wires: overBudget}
	}
	return nil
}
