package trace

import "testing"

func TestIsValidTraceLevel(t *testing.T) {
	for _, level := range []string{"", "none", "decisions"} {
		if !IsValidTraceLevel(level) {
			t.Errorf("expected %q to be valid", level)
		}
	}
	if IsValidTraceLevel("verbose") {
		t.Error("expected verbose to be invalid")
	}
}

func TestTraceConfig_Enabled(t *testing.T) {
	if (TraceConfig{Level: TraceLevelNone}).Enabled() {
		t.Error("none must not be enabled")
	}
	if !(TraceConfig{Level: TraceLevelDecisions}).Enabled() {
		t.Error("decisions must be enabled")
	}
}

func TestSimulationTrace_Record_AppendsInOrder(t *testing.T) {
	// GIVEN a fresh trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN records of every kind are appended
	st.RecordRouting(RoutingRecord{PacketID: 1, Decision: DecisionForward})
	st.RecordRouting(RoutingRecord{PacketID: 2, Decision: DecisionBuffer})
	st.RecordDelivery(DeliveryRecord{PacketID: 1, Sink: "out"})
	st.RecordLoss(LossRecord{PacketID: 3, Reason: "detached"})
	st.RecordBend(BendRecord{Wire: 1, Action: BendInserted})

	// THEN each list keeps insertion order
	if len(st.Routings) != 2 || st.Routings[0].PacketID != 1 || st.Routings[1].PacketID != 2 {
		t.Errorf("unexpected routings %+v", st.Routings)
	}
	if len(st.Deliveries) != 1 || len(st.Losses) != 1 || len(st.Bends) != 1 {
		t.Errorf("unexpected record counts: %d deliveries, %d losses, %d bends",
			len(st.Deliveries), len(st.Losses), len(st.Bends))
	}
}
