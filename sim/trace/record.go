// Package trace provides decision-trace recording for flow-network runs.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// Decision is the outcome of one routing attempt.
type Decision string

const (
	// DecisionForward places a packet on a wire whose port matches its type.
	DecisionForward Decision = "forward"
	// DecisionFallback places a packet on a free wire of another type.
	DecisionFallback Decision = "fallback"
	// DecisionBuffer stores a packet in a relay's FIFO.
	DecisionBuffer Decision = "buffer"
	// DecisionStore holds a fresh packet at its source because every wired output is busy.
	DecisionStore Decision = "store"
	// DecisionWait holds a fresh packet at its source because no output is wired.
	DecisionWait Decision = "wait"
	// DecisionOverflow is a fatal buffering attempt on a full relay.
	DecisionOverflow Decision = "overflow"
)

// RoutingRecord captures a single routing decision.
type RoutingRecord struct {
	PacketID int64
	Clock    int64
	System   string
	Kind     string
	Decision Decision
	Wire     int // 0 unless the packet was placed on a wire
	Port     string
}

// DeliveryRecord captures a packet reaching a sink.
type DeliveryRecord struct {
	PacketID int64
	Clock    int64
	Sink     string
	Kind     string
	Value    int
	Latency  int64 // ms since generation
}

// LossRecord captures a packet written off.
type LossRecord struct {
	PacketID int64
	Clock    int64
	Kind     string
	Reason   string
}

// BendAction names an edit of a wire's bend points.
type BendAction string

const (
	BendInserted  BendAction = "inserted"
	BendConfirmed BendAction = "confirmed"
	BendCancelled BendAction = "cancelled"
	BendMoved     BendAction = "moved"
	BendRemoved   BendAction = "removed"
)

// BendRecord captures one bend edit.
type BendRecord struct {
	Clock  int64
	Wire   int
	Action BendAction
	X, Y   float64
	Bends  int     // confirmed bends after the edit
	Length float64 // wire length after the edit
}
