// Package sim provides the flow-network simulation kernel for wiresim.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - network.go: the arena holding Systems, Ports and Connections, and the wire budget
//   - packet.go: Packet kinds, routing behaviour and the lifecycle state machine
//   - routing.go: the Engine (forward, buffer, receive, advance, loss detection)
//   - collision.go: wire/system intersection and the bend-point editor
//   - scheduler.go: the single tick function driving generation, retries and movement
//   - simulator.go: wiring of the above plus the external command surface
//
// # Architecture
//
// Systems, Ports and Connections live in indexed collections owned by Network;
// back-references (Port to System, Connection to Port) are IDs, never pointers.
// Everything runs on one goroutine: there is no locking inside this package.
//
// Pure helpers live in sub-packages:
//   - sim/geom/: plane geometry and smooth bend paths
//   - sim/workload/: per-Source cadence tables
//   - sim/trace/: decision trace recording
//
// The level controller (sim/level/) and the Prometheus collector
// (sim/telemetry/) sit on top of Simulator.
//
// # Key Interfaces
//
//   - Routable: effective routing type and speed behaviour of a packet kind
//   - Notifier: delivery / loss / overflow notifications for UI and audio collaborators
//   - LayoutObserver: told whenever wire geometry changes (implemented by CollisionManager)
package sim
