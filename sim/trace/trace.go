package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures routing decisions, deliveries, losses and bend edits.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	RunID string
}

// Enabled reports whether the configuration records anything.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelDecisions
}

// SimulationTrace collects decision records during a run.
type SimulationTrace struct {
	Config     TraceConfig
	Routings   []RoutingRecord
	Deliveries []DeliveryRecord
	Losses     []LossRecord
	Bends      []BendRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Routings:   make([]RoutingRecord, 0),
		Deliveries: make([]DeliveryRecord, 0),
		Losses:     make([]LossRecord, 0),
		Bends:      make([]BendRecord, 0),
	}
}

// RecordRouting appends a routing decision record.
func (st *SimulationTrace) RecordRouting(record RoutingRecord) {
	st.Routings = append(st.Routings, record)
}

// RecordDelivery appends a delivery record.
func (st *SimulationTrace) RecordDelivery(record DeliveryRecord) {
	st.Deliveries = append(st.Deliveries, record)
}

// RecordLoss appends a loss record.
func (st *SimulationTrace) RecordLoss(record LossRecord) {
	st.Losses = append(st.Losses, record)
}

// RecordBend appends a bend edit record.
func (st *SimulationTrace) RecordBend(record BendRecord) {
	st.Bends = append(st.Bends, record)
}
