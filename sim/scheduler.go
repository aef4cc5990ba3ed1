package sim

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/wiresim/wiresim/sim/workload"
)

// sourceGenerator drives one Source from its cadence pattern.
type sourceGenerator struct {
	system  SystemID
	label   string
	pattern *workload.Pattern
	kinds   map[string]PacketKind
	rng     *rand.Rand
}

// Scheduler owns the simulation clock. Each Tick advances in-flight
// packets, runs the periodic retry sweep when due, fires every Source whose
// cadence is due (in system registration order) and finally sweeps lost
// packets.
type Scheduler struct {
	engine        *Engine
	net           *Network
	rng           *PartitionedRNG
	retryInterval int64

	clock     int64
	nextRetry int64
	sources   []*sourceGenerator
	stopped   bool
}

// NewScheduler creates a scheduler whose retry sweep runs every
// retryIntervalMs. Panics if the interval is not positive.
func NewScheduler(engine *Engine, net *Network, retryIntervalMs int64, rng *PartitionedRNG) *Scheduler {
	if retryIntervalMs <= 0 {
		panic(fmt.Sprintf("NewScheduler: retry interval must be positive, got %d", retryIntervalMs))
	}
	return &Scheduler{
		engine:        engine,
		net:           net,
		rng:           rng,
		retryInterval: retryIntervalMs,
		nextRetry:     retryIntervalMs,
	}
}

// Register attaches a cadence to a Source. Sources fire in the order their
// systems were added to the network, whatever the order of Register calls.
func (s *Scheduler) Register(sys SystemID, cadence workload.SourceCadence) error {
	system := s.net.System(sys)
	if system.Role != RoleSource {
		return fmt.Errorf("cadence for %q: system is a %s, not a source", system.Label, system.Role)
	}
	if err := cadence.Validate(); err != nil {
		return err
	}
	for _, g := range s.sources {
		if g.system == sys {
			return fmt.Errorf("cadence for %q: already registered", system.Label)
		}
	}
	kinds := make(map[string]PacketKind, len(cadence.Sequence))
	for _, name := range cadence.Sequence {
		k, err := ParsePacketKind(name)
		if err != nil {
			return fmt.Errorf("cadence for %q: %w", system.Label, err)
		}
		kinds[name] = k
	}
	g := &sourceGenerator{
		system:  sys,
		label:   system.Label,
		pattern: workload.NewPattern(cadence),
		kinds:   kinds,
		rng:     s.rng.ForSubsystem(SubsystemCadence(system.Label)),
	}
	i := sort.Search(len(s.sources), func(i int) bool { return s.sources[i].system > sys })
	s.sources = append(s.sources, nil)
	copy(s.sources[i+1:], s.sources[i:])
	s.sources[i] = g
	logrus.Debugf("registered cadence for %q: every %.0f ms, %v", system.Label, cadence.IntervalMs, cadence.Sequence)
	return nil
}

// Clock returns the current simulation time in ms.
func (s *Scheduler) Clock() int64 { return s.clock }

// Stopped reports whether Stop was called.
func (s *Scheduler) Stopped() bool { return s.stopped }

// Tick advances the simulation by dt ms. It does nothing once the
// scheduler is stopped or the engine has failed.
func (s *Scheduler) Tick(dt int64) {
	if s.stopped || s.engine.Failed() || dt <= 0 {
		return
	}
	s.clock += dt
	s.engine.setNow(s.clock)

	s.engine.Advance(dt)
	if s.engine.Failed() {
		return
	}
	for s.nextRetry <= s.clock {
		s.retry()
		s.nextRetry += s.retryInterval
	}
	for _, g := range s.sources {
		for _, name := range g.pattern.Due(s.clock, g.rng) {
			s.engine.Generate(g.kinds[name], g.system)
		}
	}
	s.engine.SweepLost()
}

// retry re-attempts every relay holding packets and every source with
// pending packets, in system registration order.
func (s *Scheduler) retry() {
	for _, sys := range s.net.Systems() {
		if s.engine.Failed() {
			return
		}
		if sys.Storage != nil && sys.Storage.Len() > 0 {
			s.engine.RetryBuffered(sys.ID)
		}
		if sys.Pending() > 0 {
			s.engine.RetryPending(sys.ID)
		}
	}
}

// Exhausted reports whether no registered Source will emit again.
func (s *Scheduler) Exhausted() bool {
	for _, g := range s.sources {
		if !g.pattern.Done() {
			return false
		}
	}
	return true
}

// Stop halts all future ticks.
func (s *Scheduler) Stop() {
	s.stopped = true
}
